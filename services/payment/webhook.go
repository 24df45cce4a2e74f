package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"student-portal/errors"

	"github.com/spf13/cast"
)

// RazorpayWebhook is the envelope razorpay posts for payment link events.
type RazorpayWebhook struct {
	ID        string                 `json:"id"`
	Event     string                 `json:"event"`
	CreatedAt int64                  `json:"created_at"`
	Contains  []string               `json:"contains"`
	Payload   map[string]interface{} `json:"payload"`
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// HMAC-SHA256 of the raw body.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseRazorpayWebhook decodes body and reports the application the event is
// about and the outcome it implies. Events that say nothing final about a
// payment link yield ok=false.
func ParseRazorpayWebhook(body []byte) (hook RazorpayWebhook, applicationID string, outcome Outcome, ok bool, err error) {
	if err = json.Unmarshal(body, &hook); err != nil {
		return hook, "", "", false, errors.E(errors.Invalid, "Invalid webhook payload.", err)
	}

	switch hook.Event {
	case "payment_link.paid":
		outcome = OutcomeSuccess
	case "payment_link.cancelled", "payment_link.expired":
		outcome = OutcomeCancel
	case "payment.failed":
		outcome = OutcomeFail
	default:
		return hook, "", "", false, nil
	}

	// payment.failed carries the payment entity; link events carry the link
	source := "payment_link"
	if hook.Event == "payment.failed" {
		source = "payment"
	}
	entity := cast.ToStringMap(cast.ToStringMap(hook.Payload[source])["entity"])
	notes := cast.ToStringMap(entity["notes"])
	applicationID = cast.ToString(notes["application_id"])
	if applicationID == "" {
		// reference_id is "<application>_<unix>"
		ref := cast.ToString(entity["reference_id"])
		if i := strings.LastIndex(ref, "_"); i > 0 {
			applicationID = ref[:i]
		}
	}
	if applicationID == "" {
		return hook, "", "", false, nil
	}
	return hook, applicationID, outcome, true, nil
}
