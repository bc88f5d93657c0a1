package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/oakline/banking-service/internal/app"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
)

// CheckRoleHandler reports whether the caller is staff and which role they hold.
func (h *Handlers) CheckRoleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	result, err := h.roles.CheckRole(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "check_role", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// RequestEmailChangeHandler sends a verification code to the requested address.
func (h *Handlers) RequestEmailChangeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req domain.EmailChangeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	code, err := h.verification.RequestEmailChange(r.Context(), userID, req.NewEmail)
	if err != nil {
		log.Printf("level=warn component=api endpoint=request_email_change outcome=failed user_id=%s err=%v", userID, err)
		h.writeServiceError(w, r, "request_email_change", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Verification code sent",
		"expires_at": code.ExpiresAt,
	})
}

// ConfirmEmailChangeHandler checks a verification code and applies the new address.
func (h *Handlers) ConfirmEmailChangeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req domain.EmailChangeConfirmRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	email, err := h.verification.ConfirmEmailChange(r.Context(), userID, req.Code)
	if err != nil {
		log.Printf("level=warn component=api endpoint=confirm_email_change outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, app.ErrNoVerificationCode):
			h.writeError(w, http.StatusBadRequest, "No verification code found")
		case errors.Is(err, app.ErrVerificationCodeExpired):
			h.writeError(w, http.StatusBadRequest, "Verification code has expired")
		case errors.Is(err, app.ErrInvalidVerificationCode):
			h.writeError(w, http.StatusBadRequest, "Invalid verification code")
		default:
			h.writeServiceError(w, r, "confirm_email_change", err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Email updated",
		"email":   email,
	})
}

// SetupMFAHandler starts TOTP enrollment and returns the secret and backup codes once.
func (h *Handlers) SetupMFAHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	setup, err := h.mfa.Setup(r.Context(), userID)
	if err != nil {
		h.writeMFAError(w, r, "mfa_setup", err)
		return
	}
	h.writeJSON(w, http.StatusOK, setup)
}

// VerifyMFAHandler confirms the first TOTP code and enables MFA.
func (h *Handlers) VerifyMFAHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req domain.MFACodeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.mfa.Verify(r.Context(), userID, req.Code); err != nil {
		h.writeMFAError(w, r, "mfa_verify", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "enabled": true})
}

// DisableMFAHandler turns MFA off with a TOTP or backup code.
func (h *Handlers) DisableMFAHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req domain.MFACodeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.mfa.Disable(r.Context(), userID, req.Code); err != nil {
		h.writeMFAError(w, r, "mfa_disable", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "enabled": false})
}

// MFAStatusHandler reports the caller's MFA state.
func (h *Handlers) MFAStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	status, err := h.mfa.Status(r.Context(), userID)
	if err != nil {
		h.writeMFAError(w, r, "mfa_status", err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) writeMFAError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrMFAAlreadyEnabled):
		h.writeError(w, http.StatusConflict, "Two-factor authentication is already enabled")
	case errors.Is(err, app.ErrMFANotEnabled):
		h.writeError(w, http.StatusBadRequest, "Two-factor authentication is not enabled")
	case errors.Is(err, store.ErrMFANotConfigured):
		h.writeError(w, http.StatusBadRequest, "Two-factor authentication has not been set up")
	case errors.Is(err, app.ErrInvalidMFACode):
		h.writeError(w, http.StatusBadRequest, "Invalid authentication code")
	default:
		h.writeServiceError(w, r, endpoint, err)
	}
}
