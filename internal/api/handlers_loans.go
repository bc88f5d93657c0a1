package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/oakline/banking-service/internal/app"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/shopspring/decimal"
)

// ApproveLoanHandler disburses a pending loan. Staff only.
func (h *Handlers) ApproveLoanHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	loanID, ok := h.pathUUID(w, r, "id", "loan")
	if !ok {
		return
	}

	result, err := h.loans.Approve(r.Context(), loanID, actorID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=approve_loan outcome=failed loan_id=%s actor_id=%s err=%v", loanID, actorID, err)
		if errors.Is(err, app.ErrLoanNotPending) {
			h.writeError(w, http.StatusBadRequest, "Only pending loans can be approved.")
			return
		}
		h.writeServiceError(w, r, "approve_loan", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "Loan approved and funds disbursed",
		"loan":        result.Loan,
		"new_balance": result.NewBalance,
		"total_due":   result.TotalDue,
	})
}

// RejectLoanHandler declines a pending loan. Staff only.
func (h *Handlers) RejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	loanID, ok := h.pathUUID(w, r, "id", "loan")
	if !ok {
		return
	}
	var req domain.RejectLoanRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	loan, err := h.loans.Reject(r.Context(), loanID, actorID, req.Reason)
	if err != nil {
		log.Printf("level=warn component=api endpoint=reject_loan outcome=failed loan_id=%s actor_id=%s err=%v", loanID, actorID, err)
		if errors.Is(err, app.ErrLoanNotPending) {
			h.writeError(w, http.StatusBadRequest, "Only pending loans can be rejected.")
			return
		}
		h.writeServiceError(w, r, "reject_loan", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Loan rejected",
		"loan":    loan,
	})
}

// CloseLoanHandler closes a paid-off active loan. Staff only.
func (h *Handlers) CloseLoanHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	loanID, ok := h.pathUUID(w, r, "id", "loan")
	if !ok {
		return
	}

	loan, err := h.loans.Close(r.Context(), loanID, &actorID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=close_loan outcome=failed loan_id=%s actor_id=%s err=%v", loanID, actorID, err)
		switch {
		case errors.Is(err, app.ErrLoanNotActive):
			h.writeError(w, http.StatusBadRequest, "Only active loans can be closed.")
		case errors.Is(err, app.ErrLoanOutstandingBalance):
			h.writeError(w, http.StatusBadRequest, "Loan still has an outstanding balance.")
		case errors.Is(err, store.ErrLoanStateConflict):
			h.writeError(w, http.StatusConflict, "Loan is no longer active.")
		default:
			h.writeServiceError(w, r, "close_loan", err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Loan closed",
		"loan":    loan,
	})
}

// ListLoansForReviewHandler lists loans by status for staff review.
func (h *Handlers) ListLoansForReviewHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.pagination(w, r)
	if !ok {
		return
	}

	loans, err := h.loans.ListByStatus(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		if errors.Is(err, app.ErrInvalidLoanStatusFilter) {
			h.writeError(w, http.StatusBadRequest, "status must be one of pending, active, rejected, closed")
			return
		}
		h.writeServiceError(w, r, "list_loans_for_review", err)
		return
	}
	h.writeJSON(w, http.StatusOK, loans)
}

// ApproveLoanPaymentHandler is a placeholder that always reports not found.
func (h *Handlers) ApproveLoanPaymentHandler(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusNotFound, "Not found")
}

// ApplyLoanHandler records a loan application for the caller.
func (h *Handlers) ApplyLoanHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req domain.LoanApplicationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	loan, err := h.loans.Apply(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, "apply_loan", err)
		return
	}
	log.Printf("level=info component=api endpoint=apply_loan outcome=accepted user_id=%s loan_id=%s", userID, loan.ID)
	h.writeJSON(w, http.StatusCreated, loan)
}

// ListMyLoansHandler lists the caller's loans.
func (h *Handlers) ListMyLoansHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	loans, err := h.loans.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "list_loans", err)
		return
	}
	h.writeJSON(w, http.StatusOK, loans)
}

// GetMyLoanHandler returns one of the caller's loans with its repayment schedule.
func (h *Handlers) GetMyLoanHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	loanID, ok := h.pathUUID(w, r, "id", "loan")
	if !ok {
		return
	}

	loan, err := h.loans.GetForUser(r.Context(), userID, loanID)
	if err != nil {
		h.writeServiceError(w, r, "get_loan", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"loan":            loan,
		"monthly_payment": app.MonthlyPayment(loan.Principal, loan.InterestRate, loan.TermMonths),
		"schedule":        app.Schedule(loan.Principal, loan.InterestRate, loan.TermMonths),
	})
}

// PayLoanHandler applies a repayment from one of the caller's accounts.
func (h *Handlers) PayLoanHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	loanID, ok := h.pathUUID(w, r, "id", "loan")
	if !ok {
		return
	}
	var req domain.LoanPaymentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	loan, err := h.loans.Pay(r.Context(), userID, loanID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=pay_loan outcome=failed user_id=%s loan_id=%s err=%v", userID, loanID, err)
		if errors.Is(err, app.ErrLoanNotActive) {
			h.writeError(w, http.StatusBadRequest, "Only active loans can be paid.")
			return
		}
		h.writeServiceError(w, r, "pay_loan", err)
		return
	}
	h.writeJSON(w, http.StatusOK, loan)
}

// LoanCalculatorHandler quotes a loan without persisting anything.
func (h *Handlers) LoanCalculatorHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	principal, err := decimal.NewFromString(strings.TrimSpace(q.Get("principal")))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "principal must be a number")
		return
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(q.Get("rate")))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "rate must be a number")
		return
	}
	term, err := strconv.Atoi(strings.TrimSpace(q.Get("term")))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "term must be a whole number of months")
		return
	}
	withSchedule, _ := strconv.ParseBool(q.Get("schedule"))

	quote, err := app.Quote(principal, rate, term, withSchedule)
	if err != nil {
		h.writeServiceError(w, r, "loan_calculator", err)
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}
