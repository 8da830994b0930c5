package handler

import (
	"net/http"

	"github.com/gigmarket-api/internal/application/auth"
	"github.com/gigmarket-api/internal/domain"
	"github.com/gigmarket-api/internal/transport/http/middleware"
	"github.com/gigmarket-api/internal/transport/http/respond"
)

// AuthHandler serves the OTP login flow and token lifecycle endpoints.
type AuthHandler struct {
	svc auth.Service
	rs  *respond.Responder
}

func NewAuthHandler(svc auth.Service, rs *respond.Responder) *AuthHandler {
	return &AuthHandler{svc: svc, rs: rs}
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.SendOTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if err := h.svc.SendOTP(r.Context(), req.PhoneNumber); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, nil, "OTP sent successfully")
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, res, "OTP verified successfully")
}

func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	pair, err := h.svc.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, pair, "Access token refreshed successfully")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.rs.Fail(w, r, http.StatusUnauthorized, "Token was not provided!")
		return
	}
	var req domain.LogoutRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if err := h.svc.Logout(r.Context(), req.RefreshToken, u.UserID); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, nil, "Logged out successfully")
}
