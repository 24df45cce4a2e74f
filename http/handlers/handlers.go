package handlers

import (
	"context"
	"time"

	"student-portal/models"
	"student-portal/services/payment"
	"student-portal/session"
)

// Auth talks to the backend's login endpoints.
type Auth interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error)
	Logout(ctx context.Context) error
}

type HeadLister interface {
	PaymentHeads(ctx context.Context) ([]models.PaymentHead, error)
}

// Applications looks up what the backend knows about an application.
type Applications interface {
	Application(ctx context.Context, appType models.ApplicationType, id string) (*models.ApplicationRecord, error)
}

type Attempts interface {
	List(ctx context.Context, f models.AttemptFilter) ([]models.PaymentAttempt, error)
}

// Rearmer is satisfied by *session.Guard.
type Rearmer interface {
	Reset()
}

// Deps wires a Handler. Applications, Attempts and Rearmer may be nil.
type Deps struct {
	Auth          Auth
	Store         session.Store
	Guard         Rearmer
	Nav           *session.Navigation
	Heads         HeadLister
	Applications  Applications
	Initializer   *payment.Initializer
	Verifier      payment.StatusChecker
	Driver        *payment.Driver
	Attempts      Attempts
	Money         *payment.MoneyFormatter
	WebhookSecret string
	Health        func() map[string]interface{}
}

// Handler serves the local payment bridge.
type Handler struct {
	Deps
	now func() time.Time
}

func New(d Deps) *Handler {
	if d.Nav == nil {
		d.Nav = session.NewNavigation(session.RouteLogin)
	}
	if d.Money == nil {
		d.Money = payment.NewMoneyFormatter("")
	}
	return &Handler{Deps: d, now: time.Now}
}
