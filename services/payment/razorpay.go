package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"student-portal/errors"
	"student-portal/models"

	"github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// PaymentLinks is the part of the razorpay client used here.
type PaymentLinks interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(linkID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// SessionKeys recalls the gateway session key recorded for an application.
// *services.AttemptRepository satisfies it.
type SessionKeys interface {
	SessionKey(ctx context.Context, applicationID string) (string, error)
}

// RazorpayProvider pays through razorpay payment links instead of the portal.
type RazorpayProvider struct {
	links    PaymentLinks
	keys     SessionKeys
	currency string
	now      func() time.Time

	mu    sync.RWMutex
	byApp map[string]string // application id -> payment link id
}

// NewRazorpayProvider builds the provider. keys may be nil, in which case
// links are only remembered for the life of the process.
func NewRazorpayProvider(keyID, keySecret, currency string, keys SessionKeys) (*RazorpayProvider, error) {
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("razorpay credentials not configured")
	}
	client := razorpay.NewClient(keyID, keySecret)
	return newRazorpayProvider(client.PaymentLink, currency, keys), nil
}

func newRazorpayProvider(links PaymentLinks, currency string, keys SessionKeys) *RazorpayProvider {
	if currency == "" {
		currency = "INR"
	}
	return &RazorpayProvider{links: links, keys: keys, currency: currency, now: time.Now, byApp: make(map[string]string)}
}

func (p *RazorpayProvider) Name() string { return "razorpay" }

func (p *RazorpayProvider) Initiate(_ context.Context, req models.PaymentInitRequest) (map[string]interface{}, error) {
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil || !amount.IsPositive() {
		return map[string]interface{}{"message": "A positive amount is required for card payments."}, nil
	}
	appRef := req.Reference()

	data := map[string]interface{}{
		// smallest currency unit
		"amount":          amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"currency":        p.currency,
		"reference_id":    fmt.Sprintf("%s_%d", appRef, p.now().Unix()),
		"description":     fmt.Sprintf("Payment %s for application %s", req.PSID, appRef),
		"callback_url":    req.SuccessURL,
		"callback_method": "get",
		"notes": map[string]interface{}{
			"application_id": appRef,
			"psid":           req.PSID,
			"depositor":      req.Depositor,
		},
	}

	resp, err := p.links.Create(data, nil)
	if err != nil {
		return nil, errors.E(errors.GatewayInit, err.Error(), err)
	}

	linkID := cast.ToString(resp["id"])
	p.mu.Lock()
	p.byApp[appRef] = linkID
	p.mu.Unlock()

	return map[string]interface{}{
		"payment_url": cast.ToString(resp["short_url"]),
		"session_key": linkID,
	}, nil
}

func (p *RazorpayProvider) Status(ctx context.Context, applicationID string) (map[string]interface{}, error) {
	linkID, err := p.linkOf(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	resp, err := p.links.Fetch(linkID, nil, nil)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"status":  string(linkStatus(cast.ToString(resp["status"]))),
		"tran_id": linkID,
	}
	for _, pay := range cast.ToSlice(resp["payments"]) {
		m := cast.ToStringMap(pay)
		if id := cast.ToString(m["payment_id"]); id != "" {
			out["bank_tran_id"] = id
			out["card_type"] = cast.ToString(m["method"])
		}
	}
	return out, nil
}

// linkOf finds the payment link of applicationID, falling back to the
// ledger for links created before a restart.
func (p *RazorpayProvider) linkOf(ctx context.Context, applicationID string) (string, error) {
	p.mu.RLock()
	linkID, ok := p.byApp[applicationID]
	p.mu.RUnlock()
	if ok {
		return linkID, nil
	}

	if p.keys != nil {
		key, err := p.keys.SessionKey(ctx, applicationID)
		if err != nil {
			return "", err
		}
		if key != "" {
			p.mu.Lock()
			p.byApp[applicationID] = key
			p.mu.Unlock()
			return key, nil
		}
	}
	return "", errors.NewNotFoundError("no payment link started for application " + applicationID)
}

func linkStatus(s string) models.PaymentStatus {
	switch strings.ToLower(s) {
	case "paid":
		return models.StatusValid
	case "cancelled", "expired":
		return models.StatusInvalid
	default:
		return models.StatusPending
	}
}
