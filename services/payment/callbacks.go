package payment

import (
	"net/url"
	"strings"

	"student-portal/errors"
	"student-portal/models"
)

// Outcome is the result the gateway reports through a callback URL.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
	OutcomeCancel  Outcome = "cancel"
)

type Callbacks struct {
	Success string
	Fail    string
	Cancel  string
}

// CallbackURLs builds the deep links handed to the gateway, in the form
// <scheme>://payment/<outcome>?applicationId=<id>&type=<TYPE>.
func CallbackURLs(scheme, applicationID string, appType models.ApplicationType) Callbacks {
	build := func(o Outcome) string {
		q := url.Values{}
		q.Set("applicationId", applicationID)
		q.Set("type", appType.String())
		u := url.URL{Scheme: scheme, Host: "payment", Path: "/" + string(o), RawQuery: q.Encode()}
		return u.String()
	}
	return Callbacks{
		Success: build(OutcomeSuccess),
		Fail:    build(OutcomeFail),
		Cancel:  build(OutcomeCancel),
	}
}

// Callback is a parsed deep link.
type Callback struct {
	Outcome       Outcome
	ApplicationID string
	Type          models.ApplicationType
}

// ParseOutcome accepts success, fail or cancel in any case.
func ParseOutcome(s string) (Outcome, bool) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeSuccess, OutcomeFail, OutcomeCancel:
		return o, true
	}
	return "", false
}

// ParseCallback reads a deep link produced by CallbackURLs.
func ParseCallback(raw string) (*Callback, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.E(errors.Invalid, "Malformed callback URL", err)
	}
	if !strings.EqualFold(u.Host, "payment") {
		return nil, errors.E(errors.Invalid, "Callback URL is not a payment link")
	}
	outcome, ok := ParseOutcome(strings.Trim(u.Path, "/"))
	if !ok {
		return nil, errors.E(errors.Invalid, "Unknown payment outcome "+u.Path)
	}
	return NewCallback(outcome, u.Query())
}

// NewCallback validates the query half of a callback.
func NewCallback(outcome Outcome, q url.Values) (*Callback, error) {
	id := strings.TrimSpace(q.Get("applicationId"))
	if id == "" {
		return nil, errors.E(errors.Invalid, "Callback is missing applicationId")
	}
	return &Callback{
		Outcome:       outcome,
		ApplicationID: id,
		Type:          models.ParseApplicationType(q.Get("type")),
	}, nil
}
