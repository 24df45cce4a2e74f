package portal

import (
	"context"
	"strings"

	"student-portal/errors"
	"student-portal/models"
	"student-portal/session"
	"student-portal/utils"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Login exchanges credentials for a token. The call bypasses the session guard
// so a stale token is neither attached nor able to trigger another expiry.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	var body map[string]interface{}
	if err := c.post(session.WithoutGuard(ctx), pathLogin, req, &body); err != nil {
		return nil, err
	}

	token, _, ok := utils.FirstString(body, "token", "access_token", "accessToken")
	if !ok {
		return nil, errors.E(errors.Unauthorized, "Login response did not include a token")
	}
	return &models.LoginResult{Token: token, Profile: profileFrom(body)}, nil
}

// Logout tells the backend the token is no longer in use.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, pathLogout, nil, nil)
}

func profileFrom(body map[string]interface{}) models.Profile {
	src := body
	for _, level := range []map[string]interface{}{body, utils.Nested(body)} {
		found := false
		for _, k := range []string{"user", "student", "profile"} {
			if m, err := cast.ToStringMapE(level[k]); err == nil && len(m) > 0 {
				src, found = m, true
				break
			}
		}
		if found {
			break
		}
	}

	str := func(keys ...string) string {
		v, _, _ := utils.FirstString(src, keys...)
		return v
	}
	return models.Profile{
		Reg:   str("reg", "reg_no", "registration_no", "registration_number"),
		Name:  str("name", "full_name"),
		Hall:  str("hall", "hall_name"),
		Photo: str("photo", "photo_url", "image"),
		Email: str("email"),
	}
}

// PaymentHeads lists every billable head configured on the backend.
func (c *Client) PaymentHeads(ctx context.Context) ([]models.PaymentHead, error) {
	var payload interface{}
	if err := c.get(ctx, pathPaymentHeads, &payload); err != nil {
		return nil, err
	}

	rows := utils.ListOf(payload, "heads", "payment_heads")
	heads := make([]models.PaymentHead, 0, len(rows))
	for _, m := range rows {
		id, _, ok := utils.FirstString(m, "id", "_id", "head_id")
		if !ok {
			continue
		}
		name, _, _ := utils.FirstString(m, "name", "title")
		category, _, _ := utils.FirstString(m, "category", "type")
		price, _, _ := utils.FirstString(m, "unit_price", "price", "amount")
		heads = append(heads, models.PaymentHead{
			ID:        id,
			Name:      name,
			Category:  category,
			UnitPrice: toDecimal(price),
		})
	}
	return heads, nil
}

// Application fetches one submitted application with its itemized billing.
func (c *Client) Application(ctx context.Context, appType models.ApplicationType, id string) (*models.ApplicationRecord, error) {
	var body map[string]interface{}
	path := pathApplications + escape(id) + "?type=" + escape(appType.String())
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}

	obj := body
	if nested := utils.Nested(body); nested != nil {
		obj = nested
	}

	rec := &models.ApplicationRecord{ID: id, Type: appType}
	if v, _, ok := utils.FirstString(obj, "id", "application_id"); ok {
		rec.ID = v
	}
	if v, _, ok := utils.FirstString(obj, "amount", "total_amount"); ok {
		rec.Amount = toDecimal(v)
	}
	rec.Status, _, _ = utils.FirstString(obj, "status", "payment_status")

	for _, m := range utils.ListOf(obj, "payment_details") {
		headID, _, ok := utils.FirstString(m, "payment_head_id", "head_id")
		if !ok {
			continue
		}
		rec.PaymentDetails = append(rec.PaymentDetails, models.PaymentDetail{
			PaymentHeadID: headID,
			Quantity:      cast.ToInt(m["quantity"]),
		})
	}
	return rec, nil
}

// Gateways lists the payment gateways the backend advertises.
func (c *Client) Gateways(ctx context.Context) ([]models.Gateway, error) {
	var payload interface{}
	if err := c.get(ctx, pathGateways, &payload); err != nil {
		return nil, err
	}

	var gateways []models.Gateway
	for _, m := range utils.ListOf(payload, "gateways") {
		id := cast.ToInt(m["id"])
		if id <= 0 {
			continue
		}
		active := true
		if v, ok := m["active"]; ok {
			active = cast.ToBool(v)
		} else if v, ok := m["status"]; ok {
			active = strings.EqualFold(cast.ToString(v), "active")
		}
		name, _, _ := utils.FirstString(m, "name", "title")
		gateways = append(gateways, models.Gateway{ID: id, Name: name, Active: active})
	}
	return gateways, nil
}

// InitiatePayment posts req and returns the raw response body.
func (c *Client) InitiatePayment(ctx context.Context, req models.PaymentInitRequest) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := c.post(ctx, pathInitiate, req, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// PaymentStatus returns the raw status payload for an application.
func (c *Client) PaymentStatus(ctx context.Context, applicationID string) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := c.get(ctx, pathPaymentStatus+escape(applicationID), &body); err != nil {
		return nil, err
	}
	return body, nil
}

func toDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
