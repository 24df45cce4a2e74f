package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentHead struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PaymentLineItem struct {
	HeadID string `json:"head_id"`
	Count  int    `json:"count"`
}

// PaymentInitRequest is the body sent to the payment initiation endpoint.
// Transcript applications are keyed by transcript_id instead of application_id.
type PaymentInitRequest struct {
	GatewayID     int               `json:"gateway_id"`
	ApplicationID string            `json:"application_id,omitempty"`
	TranscriptID  string            `json:"transcript_id,omitempty"`
	Heads         []PaymentLineItem `json:"heads"`
	Amount        json.Number       `json:"amount,omitempty"`
	PSID          string            `json:"psid"`
	Depositor     string            `json:"depositor,omitempty"`
	SuccessURL    string            `json:"success_url"`
	FailURL       string            `json:"fail_url"`
	CancelURL     string            `json:"cancel_url"`
}

// SetApplication stores id under the key the backend expects for appType.
func (r *PaymentInitRequest) SetApplication(appType ApplicationType, id string) {
	if appType == Transcript {
		r.TranscriptID = id
		r.ApplicationID = ""
		return
	}
	r.ApplicationID = id
	r.TranscriptID = ""
}

// Reference returns whichever application key is set.
func (r *PaymentInitRequest) Reference() string {
	if r.TranscriptID != "" {
		return r.TranscriptID
	}
	return r.ApplicationID
}

type InitResult struct {
	RedirectURL string            `json:"redirect_url"`
	SessionKey  string            `json:"session_key,omitempty"`
	GatewayID   int               `json:"gateway_id"`
	PSID        string            `json:"psid"`
	Heads       []PaymentLineItem `json:"heads"`
	Amount      decimal.Decimal   `json:"amount"`
	AttemptID   string            `json:"attempt_id,omitempty"`
}

// PaymentStatus is the authoritative result of a payment attempt.
type PaymentStatus string

const (
	StatusValid   PaymentStatus = "VALID"
	StatusInvalid PaymentStatus = "INVALID"
	StatusPending PaymentStatus = "PENDING"
)

// ParsePaymentStatus maps a backend status string onto PaymentStatus.
// Anything unrecognized is PENDING.
func ParsePaymentStatus(s string) PaymentStatus {
	switch PaymentStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusValid:
		return StatusValid
	case StatusInvalid:
		return StatusInvalid
	default:
		return StatusPending
	}
}

// IsTerminal reports whether the status can no longer change.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusValid || s == StatusInvalid
}

type VerificationResult struct {
	ApplicationID     string        `json:"application_id"`
	Status            PaymentStatus `json:"status"`
	TransactionID     string        `json:"tran_id,omitempty"`
	BankTransactionID string        `json:"bank_tran_id,omitempty"`
	CardType          string        `json:"card_type,omitempty"`
	CardBrand         string        `json:"card_brand,omitempty"`
	CheckedAt         time.Time     `json:"checked_at"`
}

// Gateway is a payment gateway as advertised by the backend.
type Gateway struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// ManualInstructions tells the student how to pay when the gateway path is unavailable.
type ManualInstructions struct {
	ApplicationID   string          `json:"application_id"`
	Type            ApplicationType `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	FormattedAmount string          `json:"formatted_amount"`
	PSID            string          `json:"psid"`
	Reference       string          `json:"reference"`
	Steps           []string        `json:"steps"`
}
