/**
 * @description
 * Loan models and the loan lifecycle rules. A loan starts pending, is either
 * approved (active) or rejected by staff, and an active loan is closed once
 * its remaining balance has been paid down.
 *
 * @notes
 * - Money values use shopspring/decimal; the closure tolerance is one cent.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "pending"
	LoanStatusActive   LoanStatus = "active"
	LoanStatusRejected LoanStatus = "rejected"
	LoanStatusClosed   LoanStatus = "closed"
)

// LoanClosureTolerance is the largest remaining balance at which an active loan
// counts as paid off.
var LoanClosureTolerance = decimal.NewFromFloat(0.01)

var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending: {LoanStatusActive, LoanStatusRejected},
	LoanStatusActive:  {LoanStatusClosed},
}

// Valid reports whether s is one of the known loan statuses.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusPending, LoanStatusActive, LoanStatusRejected, LoanStatusClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether a loan in status s may move to next.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Loan maps to the `loans` table.
type Loan struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	AccountID        uuid.UUID       `json:"account_id"`
	Principal        decimal.Decimal `json:"principal"`
	InterestRate     decimal.Decimal `json:"interest_rate"` // annual, percent
	TermMonths       int             `json:"term_months"`
	Status           LoanStatus      `json:"status"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Purpose          string          `json:"purpose,omitempty"`
	RejectionReason  *string         `json:"rejection_reason,omitempty"`
	StartDate        *time.Time      `json:"start_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsSettled reports whether the remaining balance is within the closure tolerance.
func (l *Loan) IsSettled() bool {
	return l.RemainingBalance.LessThanOrEqual(LoanClosureTolerance)
}

// LoanApplicationRequest is the body of POST /api/loans.
type LoanApplicationRequest struct {
	AccountID    string          `json:"account_id"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	TermMonths   int             `json:"term_months"`
	Purpose      string          `json:"purpose"`
}

// LoanPaymentRequest is the body of POST /api/loans/{id}/payments.
type LoanPaymentRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// RejectLoanRequest is the optional body of the reject endpoint.
type RejectLoanRequest struct {
	Reason string `json:"reason"`
}

// LoanDisbursement carries the writes performed when a loan is approved.
type LoanDisbursement struct {
	LoanID         uuid.UUID
	AccountID      uuid.UUID
	UserID         uuid.UUID
	Principal      decimal.Decimal
	TotalDue       decimal.Decimal
	StartDate      time.Time
	TransactionRef uuid.UUID
}

// LoanPayment carries the writes performed when a borrower repays.
type LoanPayment struct {
	LoanID         uuid.UUID
	AccountID      uuid.UUID
	UserID         uuid.UUID
	Amount         decimal.Decimal
	TransactionRef uuid.UUID
}

// AmortizationRow is one month of a repayment schedule.
type AmortizationRow struct {
	Month     int             `json:"month"`
	Payment   decimal.Decimal `json:"payment"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Balance   decimal.Decimal `json:"balance"`
}

// LoanQuote is the response of the loan calculator.
type LoanQuote struct {
	Principal      decimal.Decimal   `json:"principal"`
	InterestRate   decimal.Decimal   `json:"interest_rate"`
	TermMonths     int               `json:"term_months"`
	MonthlyPayment decimal.Decimal   `json:"monthly_payment"`
	TotalDue       decimal.Decimal   `json:"total_due"`
	TotalInterest  decimal.Decimal   `json:"total_interest"`
	Schedule       []AmortizationRow `json:"schedule,omitempty"`
}
