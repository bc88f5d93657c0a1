/**
 * @description
 * This file defines the HTTP handler set for the banking-service and the
 * helpers shared by every route: JSON encoding, request decoding and the
 * translation of service errors into status codes and user-facing messages.
 *
 * @notes
 * - Error bodies are always `{"error": "<message>"}`. Internal failures never
 *   leak their cause to the client; it is logged instead.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/app"
	"github.com/oakline/banking-service/internal/store"
)

const maxRequestBodyBytes = 1 << 20

// Services bundles the application services the handlers call into.
type Services struct {
	Loans         *app.LoanService
	Accounts      *app.AccountService
	Notifications *app.NotificationService
	Verification  *app.VerificationService
	Enrollment    *app.EnrollmentService
	Zelle         *app.ZelleService
	MFA           *app.MFAService
	Roles         *app.RoleService
	BankDetails   *app.BankDetailsService
}

// Handlers holds the dependencies for the banking-service HTTP handlers.
type Handlers struct {
	loans         *app.LoanService
	accounts      *app.AccountService
	notifications *app.NotificationService
	verification  *app.VerificationService
	enrollment    *app.EnrollmentService
	zelle         *app.ZelleService
	mfa           *app.MFAService
	roles         *app.RoleService
	bankDetails   *app.BankDetailsService
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(s Services) *Handlers {
	return &Handlers{
		loans:         s.Loans,
		accounts:      s.Accounts,
		notifications: s.Notifications,
		verification:  s.Verification,
		enrollment:    s.Enrollment,
		zelle:         s.Zelle,
		mfa:           s.MFA,
		roles:         s.Roles,
		bankDetails:   s.BankDetails,
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// requireUser pulls the authenticated user from context.
func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authorization required")
		return uuid.Nil, false
	}
	return userID, true
}

// pathUUID parses a chi URL parameter as a UUID. label is used in the error message.
func (h *Handlers) pathUUID(w http.ResponseWriter, r *http.Request, param string, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, param)))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s ID", label))
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalNonNegativeInt(raw string, fallback int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil || value < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return value, nil
}

// pagination reads limit/offset query parameters. Zero limit lets the service pick its default.
func (h *Handlers) pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, err := parseOptionalNonNegativeInt(r.URL.Query().Get("limit"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, 0, false
	}
	offset, err := parseOptionalNonNegativeInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return 0, 0, false
	}
	return limit, offset, true
}

// writeServiceError maps errors shared across routes. Route-specific sentinels
// are handled by the caller before falling through to here.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var validationErr *app.ValidationError
	if errors.As(err, &validationErr) {
		h.writeError(w, http.StatusBadRequest, validationErr.Message)
		return
	}
	var rateErr *app.RateLimitError
	if errors.As(err, &rateErr) {
		if rateErr.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
		}
		h.writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}

	switch {
	case errors.Is(err, store.ErrLoanNotFound):
		h.writeError(w, http.StatusNotFound, "Loan not found")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrProfileNotFound):
		h.writeError(w, http.StatusNotFound, "Profile not found")
	case errors.Is(err, store.ErrZelleContactNotFound):
		h.writeError(w, http.StatusNotFound, "Contact not found")
	case errors.Is(err, store.ErrBankDetailsNotFound):
		h.writeError(w, http.StatusNotFound, "Bank details not found")
	case errors.Is(err, app.ErrNotificationNotFound):
		h.writeError(w, http.StatusNotFound, "Notification not found")
	case errors.Is(err, store.ErrAccountNotActive):
		h.writeError(w, http.StatusBadRequest, "Account is not active")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient funds")
	case errors.Is(err, store.ErrLoanStateConflict):
		h.writeError(w, http.StatusConflict, "Loan is no longer pending.")
	case errors.Is(err, app.ErrEmailInUse):
		h.writeError(w, http.StatusConflict, "Email address is already in use")
	case errors.Is(err, store.ErrProfileExists):
		h.writeError(w, http.StatusConflict, "A profile already exists for this user")
	default:
		log.Printf("level=error component=api endpoint=%s request_id=%s outcome=failed err=%v", endpoint, middleware.GetReqID(r.Context()), err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
