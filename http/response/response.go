package response

import (
	"encoding/json"
	"net/http"

	"student-portal/errors"
	"student-portal/logger"
	"student-portal/services/payment"
)

// StandardResponse represents the standard API response structure
type StandardResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse sends a success response with given status code, message, and data
func SuccessResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	response := StandardResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}
	SendJSON(w, statusCode, response)
}

// ErrorResponse sends an error response with given status code and error message
func ErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	response := StandardResponse{
		Status: "error",
		Error:  errorMsg,
	}
	SendJSON(w, statusCode, response)
}

// Error maps err onto a status code and writes it. Manual payment
// instructions attached to err are sent as data.
func Error(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	status := StatusOf(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
	}

	resp := StandardResponse{
		Status: "error",
		Error:  errors.MessageOf(err),
		Code:   codeOf(kind),
	}
	if instr, ok := payment.InstructionsOf(err); ok {
		resp.Data = map[string]interface{}{"manual_instructions": instr}
	}
	SendJSON(w, status, resp)
}

// StatusOf is the HTTP status used for an error kind.
func StatusOf(k errors.Kind) int {
	switch k {
	case errors.Invalid:
		return http.StatusBadRequest
	case errors.Unauthenticated, errors.SessionExpired, errors.Unauthorized:
		return http.StatusUnauthorized
	case errors.Forbidden:
		return http.StatusForbidden
	case errors.NotFound:
		return http.StatusNotFound
	case errors.Conflict:
		return http.StatusConflict
	case errors.NoPaymentHeadsFound:
		return http.StatusUnprocessableEntity
	case errors.DirectPaymentDisabled:
		return http.StatusServiceUnavailable
	case errors.GatewayInit, errors.Verification:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func codeOf(k errors.Kind) string {
	switch k {
	case errors.Unauthenticated:
		return "UNAUTHENTICATED"
	case errors.SessionExpired:
		return "SESSION_EXPIRED"
	case errors.NoPaymentHeadsFound:
		return "NO_PAYMENT_HEADS"
	case errors.GatewayInit:
		return "GATEWAY_INIT"
	case errors.Verification:
		return "VERIFICATION"
	case errors.DirectPaymentDisabled:
		return "DIRECT_PAYMENT_DISABLED"
	}
	return ""
}

// SendJSON encodes and sends a JSON response
func SendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
