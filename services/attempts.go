package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"student-portal/db"
	"student-portal/logger"
	"student-portal/models"
)

// AttemptRepository is the local ledger of payment attempts.
type AttemptRepository struct {
	conn   *sql.DB
	driver string
	now    func() time.Time
}

func NewAttemptRepository(conn *sql.DB) *AttemptRepository {
	return &AttemptRepository{conn: conn, driver: db.DriverOf(conn), now: time.Now}
}

func (r *AttemptRepository) q(query string) string {
	return db.Rebind(r.driver, query)
}

// Create inserts a new attempt row.
func (r *AttemptRepository) Create(ctx context.Context, a *models.PaymentAttempt) error {
	_, err := r.conn.ExecContext(ctx, r.q(`
		INSERT INTO payment_attempt
			(id, application_id, application_type, amount, gateway_id, psid, redirect_url, session_key,
			 state, status, tran_id, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`),
		a.ID, a.ApplicationID, string(a.Type), a.Amount.String(), a.GatewayID, a.PSID, a.RedirectURL, a.SessionKey,
		string(a.State), string(a.Status), a.TransactionID, a.ErrorMessage, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving payment attempt: %w", err)
	}
	return nil
}

// PaymentVerified stamps the application's attempts with the verified
// status. Pending results never reach here. A payment can be confirmed after
// the student backed out of the gateway, so cancelled attempts are updated
// too.
func (r *AttemptRepository) PaymentVerified(ctx context.Context, res models.VerificationResult) {
	n, err := r.transition(ctx, res.ApplicationID, models.AttemptVerified, res.Status, res.TransactionID,
		models.AttemptInitiated, models.AttemptCancelled)
	if err != nil {
		logger.Error("recording verification for application %s: %v", res.ApplicationID, err)
		return
	}
	logger.Debug("marked %d attempt(s) of application %s as %s", n, res.ApplicationID, res.Status)
}

// MarkCancelled closes the open attempts of an application whose gateway
// session was abandoned.
func (r *AttemptRepository) MarkCancelled(ctx context.Context, applicationID string) (int64, error) {
	return r.transition(ctx, applicationID, models.AttemptCancelled, "", "", models.AttemptInitiated)
}

// SessionKey returns the gateway session key of the application's most
// recent attempt that has one.
func (r *AttemptRepository) SessionKey(ctx context.Context, applicationID string) (string, error) {
	var key string
	err := r.conn.QueryRowContext(ctx, r.q(`
		SELECT session_key FROM payment_attempt
		WHERE application_id = $1 AND session_key IS NOT NULL AND session_key <> ''
		ORDER BY created_at DESC
		LIMIT 1`), applicationID).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading session key: %w", err)
	}
	return key, nil
}

func (r *AttemptRepository) transition(ctx context.Context, applicationID string, to models.AttemptState, status models.PaymentStatus, tranID string, from ...models.AttemptState) (int64, error) {
	args := []interface{}{string(to), string(status), tranID, r.now().UTC(), applicationID}
	in := make([]string, len(from))
	for i, st := range from {
		args = append(args, string(st))
		in[i] = fmt.Sprintf("$%d", len(args))
	}
	result, err := r.conn.ExecContext(ctx, r.q(`
		UPDATE payment_attempt
		SET state = $1, status = $2, tran_id = $3, updated_at = $4
		WHERE application_id = $5 AND state IN (`+strings.Join(in, ", ")+`)`),
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("error updating payment attempt: %w", err)
	}
	return result.RowsAffected()
}

// List returns attempts newest first.
func (r *AttemptRepository) List(ctx context.Context, f models.AttemptFilter) ([]models.PaymentAttempt, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ApplicationID != "" {
		add("application_id = $%d", f.ApplicationID)
	}
	if f.CreatedAfter != nil {
		add("created_at >= $%d", f.CreatedAfter.UTC())
	}
	if f.CreatedBefore != nil {
		add("created_at < $%d", f.CreatedBefore.UTC())
	}

	query := `SELECT id, application_id, application_type, amount, gateway_id, psid, redirect_url, session_key,
		state, status, tran_id, error_message, created_at, updated_at
		FROM payment_attempt`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.conn.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error listing payment attempts: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentAttempt
	for rows.Next() {
		var (
			a                                models.PaymentAttempt
			appType, state                   string
			redirect, key, status, tranID    sql.NullString
			errMsg                           sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ApplicationID, &appType, &a.Amount, &a.GatewayID, &a.PSID, &redirect, &key,
			&state, &status, &tranID, &errMsg, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning payment attempt: %w", err)
		}
		a.Type = models.ApplicationType(appType)
		a.State = models.AttemptState(state)
		a.Status = models.PaymentStatus(status.String)
		a.RedirectURL = redirect.String
		a.SessionKey = key.String
		a.TransactionID = tranID.String
		a.ErrorMessage = errMsg.String
		out = append(out, a)
	}
	return out, rows.Err()
}
