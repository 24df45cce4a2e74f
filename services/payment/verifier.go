package payment

import (
	"context"
	"strings"
	"time"

	"student-portal/errors"
	"student-portal/logger"
	"student-portal/metrics"
	"student-portal/models"
	"student-portal/portal"
	"student-portal/session"

	"go.opentelemetry.io/otel/attribute"
)

const genericVerifyFailure = "Unable to check payment status. Please try again."

// Observer is told about every verification that reached a terminal status.
type Observer interface {
	PaymentVerified(ctx context.Context, res models.VerificationResult)
}

// Verifier asks the backend for the authoritative status of a payment.
type Verifier struct {
	store     session.Store
	provider  Provider
	observers []Observer
	now       func() time.Time
}

func NewVerifier(store session.Store, provider Provider, observers ...Observer) *Verifier {
	return &Verifier{store: store, provider: provider, observers: observers, now: time.Now}
}

// Verify can be called at any time, with or without a gateway session.
// Unknown statuses are reported as PENDING.
func (v *Verifier) Verify(ctx context.Context, applicationID string) (*models.VerificationResult, error) {
	ctx, span := tracer.Start(ctx, "payment.verify")
	defer span.End()
	span.SetAttributes(attribute.String("application.id", applicationID))

	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return nil, errors.E(errors.Invalid, "Application ID is required.")
	}

	token, err := session.Token(ctx, v.store)
	if err != nil || token == "" {
		return nil, errors.NewUnauthenticatedError()
	}

	body, err := v.provider.Status(ctx, applicationID)
	if err != nil {
		if errors.IsKind(err, errors.SessionExpired) {
			return nil, err
		}
		span.RecordError(err)
		metrics.PaymentVerifyTotal.WithLabelValues("error").Inc()
		return nil, verificationError(err)
	}

	raw, ok := extractStatus(body)
	if !ok {
		metrics.PaymentVerifyTotal.WithLabelValues("malformed").Inc()
		return nil, errors.E(errors.Verification, "Payment status response did not include a status.")
	}

	res := models.VerificationResult{
		ApplicationID:     applicationID,
		Status:            models.ParsePaymentStatus(raw),
		TransactionID:     extract(body, tranIDKeys),
		BankTransactionID: extract(body, bankTranIDKeys),
		CardType:          extract(body, cardTypeKeys),
		CardBrand:         extract(body, cardBrandKeys),
		CheckedAt:         v.now().UTC(),
	}
	if res.Status == models.StatusPending && !strings.EqualFold(raw, string(models.StatusPending)) {
		logger.Warn("unrecognized payment status %q for application %s, treating as PENDING", raw, applicationID)
	}
	metrics.PaymentVerifyTotal.WithLabelValues(string(res.Status)).Inc()

	if res.Status.IsTerminal() {
		for _, o := range v.observers {
			o.PaymentVerified(ctx, res)
		}
	}
	return &res, nil
}

func verificationError(err error) error {
	var herr *portal.HTTPError
	if errors.As(err, &herr) && herr.Message != "" {
		return errors.E(errors.Verification, herr.Message, err)
	}
	return errors.E(errors.Verification, genericVerifyFailure, err)
}
