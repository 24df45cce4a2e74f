package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AttemptState string

const (
	AttemptInitiated AttemptState = "INITIATED"
	AttemptFailed    AttemptState = "INIT_FAILED"
	AttemptCancelled AttemptState = "CANCELLED"
	AttemptVerified  AttemptState = "VERIFIED"
)

// PaymentAttempt is one row of the local payment ledger.
type PaymentAttempt struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          ApplicationType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	GatewayID     int             `json:"gateway_id"`
	PSID          string          `json:"psid"`
	RedirectURL   string          `json:"redirect_url,omitempty"`
	SessionKey    string          `json:"session_key,omitempty"`
	State         AttemptState    `json:"state"`
	Status        PaymentStatus   `json:"status,omitempty"`
	TransactionID string          `json:"tran_id,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AttemptFilter narrows attempt listings.
type AttemptFilter struct {
	ApplicationID string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
}
