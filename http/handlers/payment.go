package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"student-portal/errors"
	"student-portal/http/response"
	"student-portal/logger"
	"student-portal/models"
	"student-portal/services"
	"student-portal/services/payment"
	"student-portal/session"
	"student-portal/utils"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
)

type initiateRequest struct {
	ApplicationID  string                 `json:"application_id" validate:"required"`
	Type           string                 `json:"type" validate:"required"`
	Amount         decimal.Decimal        `json:"amount"`
	Depositor      string                 `json:"depositor,omitempty"`
	GatewayID      int                    `json:"gateway_id,omitempty" validate:"gte=0"`
	PaymentDetails []models.PaymentDetail `json:"payment_details,omitempty"`
}

// PaymentHeads lists the backend's payment heads.
func (h *Handler) PaymentHeads(w http.ResponseWriter, r *http.Request) {
	heads, err := h.Heads.PaymentHeads(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "", heads)
}

// InitiatePayment initializes a payment and opens a gateway session for the
// returned page.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := utils.ValidateApplicationID(req.ApplicationID); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := utils.ValidateRegistration(req.Depositor); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	input := payment.InitializeInput{
		ApplicationID:   strings.TrimSpace(req.ApplicationID),
		TotalAmount:     req.Amount,
		Type:            models.ParseApplicationType(req.Type),
		Depositor:       req.Depositor,
		GatewayID:       req.GatewayID,
		ExistingDetails: req.PaymentDetails,
	}

	if input.Depositor == "" {
		if p, err := session.LoadProfile(ctx, h.Store); err == nil && p != nil {
			input.Depositor = p.Reg
		}
	}

	// Itemized billing comes from the application record unless supplied.
	if input.NeedsRecord() && h.Applications != nil {
		rec, err := h.Applications.Application(ctx, input.Type, input.ApplicationID)
		switch {
		case err != nil && errors.IsKind(err, errors.SessionExpired):
			response.Error(w, err)
			return
		case err != nil:
			logger.Warn("application lookup for %s failed, continuing without it: %v", input.ApplicationID, err)
		default:
			input.ApplyRecord(rec)
		}
	}

	res, err := h.Initializer.Initialize(ctx, input)
	if err != nil {
		response.Error(w, err)
		return
	}

	s := h.Driver.Start(ctx, res.RedirectURL, input.ApplicationID)
	h.Nav.Push(session.RoutePayment)
	response.SuccessResponse(w, http.StatusCreated, "Payment initialized", map[string]interface{}{
		"payment": res,
		"session": s.Snapshot(),
	})
}

func (h *Handler) gatewaySession(w http.ResponseWriter, r *http.Request) (*payment.GatewaySession, bool) {
	id := chi.URLParam(r, "id")
	s, ok := h.Driver.Get(id)
	if !ok {
		response.Error(w, errors.NewNotFoundError("Payment session not found."))
		return nil, false
	}
	return s, true
}

type navigateRequest struct {
	URL string `json:"url" validate:"required"`
}

// NavigateSession feeds a page change from the embedded browser.
func (h *Handler) NavigateSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.gatewaySession(w, r)
	if !ok {
		return
	}
	var req navigateRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Navigate(req.URL)
	response.SuccessResponse(w, http.StatusOK, "", s.Snapshot())
}

// CancelSession handles the back button or closing the payment view.
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.gatewaySession(w, r)
	if !ok {
		return
	}
	msg := "Payment cancelled"
	if !s.Cancel() {
		msg = "Payment session already finished"
	}
	response.SuccessResponse(w, http.StatusOK, msg, s.Snapshot())
}

// GetSession reports a session. With ?recheck=true a pending session runs a
// verification first.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.gatewaySession(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get(utils.QueryRecheck) == "true" {
		response.SuccessResponse(w, http.StatusOK, "", s.Recheck(r.Context()))
		return
	}
	response.SuccessResponse(w, http.StatusOK, "", s.Snapshot())
}

// PaymentStatus is the "Check Payment Status" action. A session waiting for
// verification is rechecked so it can finish; otherwise the backend is asked
// directly.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "applicationId")
	if err := utils.ValidateApplicationID(id); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if s, ok := h.Driver.ForApplication(id); ok && s.State() == payment.StatePendingVerification {
		snap := s.Recheck(r.Context())
		if snap.Verification != nil {
			response.SuccessResponse(w, http.StatusOK, "", map[string]interface{}{
				"verification": snap.Verification,
				"session":      snap,
			})
			return
		}
	}

	res, err := h.Verifier.Verify(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "", map[string]interface{}{"verification": res})
}

// InstructionsPDF renders the manual payment slip.
func (h *Handler) InstructionsPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "applicationId")
	if err := utils.ValidateApplicationID(id); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	appType := models.ParseApplicationType(q.Get(utils.QueryType))
	if appType == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "type is required")
		return
	}
	amount := decimal.Zero
	if s := q.Get(utils.QueryAmount); s != "" {
		var err error
		if amount, err = decimal.NewFromString(s); err != nil || amount.IsNegative() {
			response.ErrorResponse(w, http.StatusBadRequest, "invalid amount")
			return
		}
	}

	var buf bytes.Buffer
	instr := h.Money.Instructions(id, appType, amount)
	if err := services.WriteInstructionsPDF(&buf, instr, h.now()); err != nil {
		response.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", utils.ContentTypePDF)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payment-%s.pdf"`, id))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Callback receives the gateway's deep link once the OS hands it back. An
// open session for the application is resumed; otherwise the status is
// verified directly.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	outcome, ok := payment.ParseOutcome(chi.URLParam(r, "outcome"))
	if !ok {
		response.ErrorResponse(w, http.StatusNotFound, "unknown payment outcome")
		return
	}
	cb, err := payment.NewCallback(outcome, r.URL.Query())
	if err != nil {
		response.Error(w, err)
		return
	}
	h.resume(w, r, cb.ApplicationID, cb.Outcome)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request, applicationID string, outcome payment.Outcome) {
	if s, ok := h.Driver.ForApplication(applicationID); ok {
		s.Resume(outcome)
		response.SuccessResponse(w, http.StatusOK, "", map[string]interface{}{"session": s.Snapshot()})
		return
	}

	res, err := h.Verifier.Verify(r.Context(), applicationID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "", map[string]interface{}{"verification": res})
}
