package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/oakline/banking-service/internal/app"
	"github.com/oakline/banking-service/internal/domain"
)

// VerifyEnrollmentStepHandler validates one wizard step without persisting anything.
func (h *Handlers) VerifyEnrollmentStepHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyStepRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.enrollment.VerifyStep(r.Context(), req.Step, req.Data)
	if err != nil {
		if errors.Is(err, app.ErrUnknownEnrollmentStep) {
			h.writeError(w, http.StatusBadRequest, "Unknown enrollment step")
			return
		}
		h.writeServiceError(w, r, "verify_enrollment_step", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// SubmitEnrollmentHandler creates the caller's profile and first account.
func (h *Handlers) SubmitEnrollmentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req domain.EnrollmentApplication
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.enrollment.Submit(r.Context(), userID, req)
	if err != nil {
		var stepErr *app.EnrollmentValidationError
		if errors.As(err, &stepErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  "Enrollment is incomplete",
				"step":   stepErr.Step,
				"errors": stepErr.Errors,
			})
			return
		}
		log.Printf("level=warn component=api endpoint=submit_enrollment outcome=failed user_id=%s err=%v", userID, err)
		h.writeServiceError(w, r, "submit_enrollment", err)
		return
	}

	log.Printf("level=info component=api endpoint=submit_enrollment outcome=accepted user_id=%s account_id=%s", userID, result.Account.ID)
	h.writeJSON(w, http.StatusCreated, result)
}
