package handlers

import (
	"bytes"
	"io"
	"net/http"

	"student-portal/config"
	"student-portal/errors"
	"student-portal/http/response"
	"student-portal/logger"
	"student-portal/services"
	"student-portal/services/payment"
	"student-portal/utils"
)

// AttemptsReport exports the attempt ledger as a workbook.
func (h *Handler) AttemptsReport(w http.ResponseWriter, r *http.Request) {
	if h.Attempts == nil {
		response.ErrorResponse(w, http.StatusNotFound, "attempt ledger is not enabled")
		return
	}
	filter, err := utils.ParseAttemptFilter(r)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	attempts, err := h.Attempts.List(r.Context(), filter)
	if err != nil {
		response.Error(w, err)
		return
	}

	var buf bytes.Buffer
	if err := services.WriteAttemptsWorkbook(&buf, attempts); err != nil {
		response.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", utils.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="payment-attempts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	response.SuccessResponse(w, http.StatusOK, "", h.Initializer.Settings().Snapshot())
}

// UpdateSettings changes the runtime payment options.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var u config.SettingsUpdate
	if err := utils.DecodeAndValidate(r, &u); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := h.Initializer.Settings().Update(u)
	logger.Info("Payment settings updated: direct_payment=%t default_gateway=%d", snap.DirectPayment, snap.DefaultGatewayID)
	response.SuccessResponse(w, http.StatusOK, "Settings updated", snap)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{"status": "ok"}
	if h.Deps.Health != nil {
		for k, v := range h.Deps.Health() {
			data[k] = v
		}
	}
	response.SuccessResponse(w, http.StatusOK, "", data)
}

// RazorpayWebhook accepts payment link events. The event only says which
// application to look at; the outcome is always re-verified.
func (h *Handler) RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	r.Body.Close()
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if !payment.VerifyWebhookSignature(h.WebhookSecret, body, r.Header.Get(utils.HeaderRazorpaySignature)) {
		logger.Warn("rejected razorpay webhook with bad signature")
		response.Error(w, errors.NewUnauthorizedError("Invalid webhook signature."))
		return
	}

	hook, applicationID, outcome, ok, err := payment.ParseRazorpayWebhook(body)
	if err != nil {
		response.Error(w, err)
		return
	}
	logger.Info("Razorpay webhook received: %s", hook.Event)
	if !ok {
		response.SuccessResponse(w, http.StatusOK, "acknowledged", map[string]string{"event": hook.Event})
		return
	}
	h.resume(w, r, applicationID, outcome)
}
