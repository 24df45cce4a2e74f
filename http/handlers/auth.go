package handlers

import (
	"net/http"

	"student-portal/errors"
	"student-portal/http/response"
	"student-portal/logger"
	"student-portal/models"
	"student-portal/session"
	"student-portal/utils"
)

// Login signs the student in through the backend and stores the session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := session.SaveLogin(r.Context(), h.Store, *res); err != nil {
		response.Error(w, errors.E(errors.Internal, "Could not save the session.", err))
		return
	}
	if h.Guard != nil {
		h.Guard.Reset()
	}
	h.Nav.TakeNotice()
	h.Nav.ResetTo(session.RouteHome)

	logger.Info("Student %s logged in", res.Profile.Reg)
	response.SuccessResponse(w, http.StatusOK, "Logged in", res.Profile)
}

// Logout ends the session locally even when the backend call fails.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context()); err != nil {
		logger.Warn("backend logout failed: %v", err)
	}
	if err := session.Logout(r.Context(), h.Store); err != nil {
		response.Error(w, errors.E(errors.Internal, "Could not clear the session.", err))
		return
	}
	h.Nav.ResetTo(session.RouteLogin)
	response.SuccessResponse(w, http.StatusOK, "Logged out", nil)
}

// Profile returns the stored profile. After an expiry the notice explaining
// why the student was signed out is returned once.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := session.LoadProfile(r.Context(), h.Store)
	if err != nil {
		response.Error(w, errors.E(errors.Internal, "Could not read the session.", err))
		return
	}
	if p == nil {
		if notice := h.Nav.TakeNotice(); notice != "" {
			response.Error(w, errors.E(errors.SessionExpired, notice))
			return
		}
		response.Error(w, errors.NewUnauthenticatedError())
		return
	}
	response.SuccessResponse(w, http.StatusOK, "", map[string]interface{}{
		"profile": p,
		"route":   h.Nav.Current(),
	})
}
