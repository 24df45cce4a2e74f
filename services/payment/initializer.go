package payment

import (
	"context"
	"encoding/json"
	"time"

	"student-portal/config"
	"student-portal/errors"
	"student-portal/logger"
	"student-portal/metrics"
	"student-portal/models"
	"student-portal/portal"
	"student-portal/session"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GenericInitFailure is shown when the backend gives no reason of its own.
const GenericInitFailure = "Unable to initialize payment. Please try again later."

var tracer = otel.Tracer("student-portal/services/payment")

// Ledger records payment attempts. Implementations must be safe for
// concurrent use.
type Ledger interface {
	Create(ctx context.Context, a *models.PaymentAttempt) error
}

// Events receives best-effort notifications about attempts.
type Events interface {
	PaymentInitiated(ctx context.Context, a models.PaymentAttempt)
}

type InitializeInput struct {
	ApplicationID   string                 `json:"application_id" validate:"required"`
	TotalAmount     decimal.Decimal        `json:"amount"`
	Type            models.ApplicationType `json:"type" validate:"required"`
	Depositor       string                 `json:"depositor,omitempty"`
	GatewayID       int                    `json:"gateway_id,omitempty" validate:"gte=0"`
	ExistingDetails []models.PaymentDetail `json:"payment_details,omitempty" validate:"dive"`
}

// NeedsRecord reports whether the backend's application record should be
// consulted: itemized details are authoritative and none were supplied.
func (in InitializeInput) NeedsRecord() bool {
	return len(in.ExistingDetails) == 0
}

// ApplyRecord takes the itemized details from rec. The record's amount only
// fills in a missing total.
func (in *InitializeInput) ApplyRecord(rec *models.ApplicationRecord) {
	if rec == nil {
		return
	}
	if len(in.ExistingDetails) == 0 {
		in.ExistingDetails = rec.PaymentDetails
	}
	if in.TotalAmount.IsZero() {
		in.TotalAmount = rec.Amount
	}
}

// Deps wires an Initializer. Store, Resolver, Provider and Settings are
// required; the rest may be nil.
type Deps struct {
	Store    session.Store
	Resolver *Resolver
	Provider Provider
	Gateways GatewayDirectory
	Settings *config.Settings
	Money    *MoneyFormatter
	Ledger   Ledger
	Events   Events
	Scheme   string
}

type Initializer struct {
	deps     Deps
	validate *validator.Validate
	now      func() time.Time
}

func NewInitializer(d Deps) *Initializer {
	if d.Money == nil {
		d.Money = NewMoneyFormatter("")
	}
	if d.Settings == nil {
		d.Settings = config.NewSettings(nil)
	}
	if d.Scheme == "" {
		d.Scheme = "duportal"
	}
	return &Initializer{deps: d, validate: validator.New(), now: time.Now}
}

// Settings exposes the runtime options the initializer reads.
func (in *Initializer) Settings() *config.Settings {
	return in.deps.Settings
}

// Initialize builds the gateway request for an application and returns the
// page the student must be sent to. It never retries; any failure other than
// a missing session or bad input comes back as a *Failure with manual
// payment instructions.
func (in *Initializer) Initialize(ctx context.Context, input InitializeInput) (*models.InitResult, error) {
	ctx, span := tracer.Start(ctx, "payment.initialize")
	defer span.End()

	input.Type = models.ParseApplicationType(string(input.Type))
	span.SetAttributes(
		attribute.String("application.id", input.ApplicationID),
		attribute.String("application.type", input.Type.String()),
	)

	token, err := session.Token(ctx, in.deps.Store)
	if err != nil || token == "" {
		if err != nil {
			logger.Error("reading session token: %v", err)
		}
		metrics.PaymentInitTotal.WithLabelValues(input.Type.String(), "unauthenticated").Inc()
		return nil, errors.NewUnauthenticatedError()
	}

	if err := in.validate.Struct(input); err != nil {
		return nil, errors.E(errors.Invalid, "Application ID and type are required.", err)
	}
	if input.TotalAmount.IsNegative() {
		return nil, errors.E(errors.Invalid, "Amount cannot be negative.")
	}

	psid := PSIDOf(input.Type)
	fail := func(result string, cause error) error {
		metrics.PaymentInitTotal.WithLabelValues(input.Type.String(), result).Inc()
		span.RecordError(cause)
		in.record(ctx, input, psid, 0, "", "", cause)
		return &Failure{
			Err:          cause,
			Instructions: in.deps.Money.Instructions(input.ApplicationID, input.Type, input.TotalAmount),
		}
	}

	if !in.deps.Settings.DirectPayment() {
		return nil, fail("direct_disabled", errors.E(errors.DirectPaymentDisabled,
			"Online payment is currently unavailable. Please follow the manual payment instructions."))
	}

	heads, err := in.deps.Resolver.Resolve(ctx, input.Type, input.ExistingDetails)
	if err != nil {
		if errors.IsKind(err, errors.SessionExpired) {
			return nil, err
		}
		if !errors.IsKind(err, errors.NoPaymentHeadsFound) {
			err = gatewayError(err)
		}
		return nil, fail("no_heads", err)
	}

	gatewayID := in.gatewayID(ctx, input.GatewayID)
	callbacks := CallbackURLs(in.deps.Scheme, input.ApplicationID, input.Type)

	req := models.PaymentInitRequest{
		GatewayID:  gatewayID,
		Heads:      heads,
		PSID:       psid,
		Depositor:  input.Depositor,
		SuccessURL: callbacks.Success,
		FailURL:    callbacks.Fail,
		CancelURL:  callbacks.Cancel,
	}
	req.SetApplication(input.Type, input.ApplicationID)
	if input.TotalAmount.IsPositive() {
		req.Amount = json.Number(input.TotalAmount.String())
	}

	logger.Info("Initializing payment: application=%s type=%s gateway=%d psid=%s provider=%s",
		input.ApplicationID, input.Type, gatewayID, psid, in.deps.Provider.Name())

	body, err := in.deps.Provider.Initiate(ctx, req)
	if err != nil {
		if errors.IsKind(err, errors.SessionExpired) {
			return nil, err
		}
		return nil, fail("gateway_error", gatewayError(err))
	}

	redirectURL := ExtractRedirectURL(body)
	if redirectURL == "" {
		msg := ExtractMessage(body)
		if msg == "" {
			msg = GenericInitFailure
		}
		return nil, fail("no_redirect", errors.E(errors.GatewayInit, msg))
	}

	sessionKey := extractSessionKey(body)
	attemptID := in.record(ctx, input, psid, gatewayID, redirectURL, sessionKey, nil)
	metrics.PaymentInitTotal.WithLabelValues(input.Type.String(), "ok").Inc()

	return &models.InitResult{
		RedirectURL: redirectURL,
		SessionKey:  sessionKey,
		GatewayID:   gatewayID,
		PSID:        psid,
		Heads:       heads,
		Amount:      input.TotalAmount,
		AttemptID:   attemptID,
	}, nil
}

// gatewayID returns explicit when set, otherwise the first active gateway the
// backend advertises. Discovery problems are logged and fall back to the
// configured default.
func (in *Initializer) gatewayID(ctx context.Context, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	fallback := in.deps.Settings.DefaultGatewayID()
	if in.deps.Gateways == nil {
		return fallback
	}

	gateways, err := in.deps.Gateways.Gateways(ctx)
	if err != nil {
		logger.Warn("gateway discovery failed, using gateway %d: %v", fallback, err)
		return fallback
	}
	for _, g := range gateways {
		if g.Active && g.ID > 0 {
			return g.ID
		}
	}
	logger.Warn("no active gateway advertised, using gateway %d", fallback)
	return fallback
}

func (in *Initializer) record(ctx context.Context, input InitializeInput, psid string, gatewayID int, redirectURL, sessionKey string, cause error) string {
	now := in.now().UTC()
	a := models.PaymentAttempt{
		ID:            uuid.NewString(),
		ApplicationID: input.ApplicationID,
		Type:          input.Type,
		Amount:        input.TotalAmount,
		GatewayID:     gatewayID,
		PSID:          psid,
		RedirectURL:   redirectURL,
		SessionKey:    sessionKey,
		State:         models.AttemptInitiated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if cause != nil {
		a.State = models.AttemptFailed
		a.ErrorMessage = errors.MessageOf(cause)
	}

	if in.deps.Ledger != nil {
		if err := in.deps.Ledger.Create(ctx, &a); err != nil {
			logger.Error("recording payment attempt for %s: %v", input.ApplicationID, err)
		}
	}
	if in.deps.Events != nil && cause == nil {
		in.deps.Events.PaymentInitiated(ctx, a)
	}
	return a.ID
}

// gatewayError turns a transport or backend error into a GatewayInit error
// carrying the backend's own text when it supplied one.
func gatewayError(err error) error {
	if errors.IsKind(err, errors.GatewayInit) {
		return err
	}
	var herr *portal.HTTPError
	if errors.As(err, &herr) && herr.Message != "" {
		return errors.E(errors.GatewayInit, herr.Message, err)
	}
	return errors.E(errors.GatewayInit, GenericInitFailure, err)
}
