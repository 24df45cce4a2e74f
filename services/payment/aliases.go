package payment

import (
	"strings"

	"student-portal/utils"
)

// The backend is inconsistent about field names. Each list is checked in
// order and the first non-empty value wins.
var (
	redirectURLKeys = []string{"paymentUrl", "payment_url", "redirect_url", "GatewayPageURL"}
	sessionKeyKeys  = []string{"sessionkey", "sessionKey", "session_key"}
	messageKeys     = []string{"message", "error", "detail"}
	statusKeys      = []string{"status", "payment_status", "Status"}

	tranIDKeys     = []string{"tran_id", "transaction_id"}
	bankTranIDKeys = []string{"bank_tran_id", "bank_transaction_id"}
	cardTypeKeys   = []string{"card_type"}
	cardBrandKeys  = []string{"card_brand"}
)

// ExtractRedirectURL returns the gateway page URL from an initiation response.
func ExtractRedirectURL(body map[string]interface{}) string {
	v, _, _ := utils.FirstString(body, redirectURLKeys...)
	return v
}

func extractSessionKey(body map[string]interface{}) string {
	v, _, _ := utils.FirstString(body, sessionKeyKeys...)
	return v
}

// ExtractMessage returns backend supplied error text, if any.
func ExtractMessage(body map[string]interface{}) string {
	v, _, _ := utils.FirstString(body, messageKeys...)
	return v
}

// extractStatus only accepts string values so an envelope like
// {"status":200,"data":{"status":"VALID"}} resolves to the nested field.
func extractStatus(body map[string]interface{}) (string, bool) {
	for _, level := range []map[string]interface{}{body, utils.Nested(body)} {
		for _, k := range statusKeys {
			if s, ok := level[k].(string); ok && strings.TrimSpace(s) != "" {
				return s, true
			}
		}
	}
	return "", false
}

func extract(body map[string]interface{}, keys []string) string {
	v, _, _ := utils.FirstString(body, keys...)
	return v
}
