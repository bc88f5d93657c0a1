/**
 * @description
 * This file contains the loan lifecycle: applications, staff approval with
 * disbursement, rejection, repayment and closure.
 *
 * Key features:
 * - Approval credits the principal and activates the loan in one database
 *   transaction; a concurrent approval surfaces as store.ErrLoanStateConflict.
 * - The amount owed is fixed at approval from the amortization formula.
 * - Notifications, emails and lifecycle events are best-effort and never fail
 *   the request that triggered them.
 *
 * @dependencies
 * - github.com/shopspring/decimal: money arithmetic.
 * - internal/store: persistence; pkg/rabbitmq: loan events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/oakline/banking-service/pkg/rabbitmq"
	"github.com/shopspring/decimal"
)

const (
	defaultLoanListLimit = 50
	maxLoanListLimit     = 200
	maxRejectReasonLen   = 500
)

// LoanService provides the business logic for loans.
type LoanService struct {
	repo          store.Repository
	notifications *NotificationService
	events        rabbitmq.Publisher
	now           func() time.Time
}

// NewLoanService creates a new loan service instance.
func NewLoanService(repo store.Repository, notifications *NotificationService, events rabbitmq.Publisher) *LoanService {
	return &LoanService{
		repo:          repo,
		notifications: notifications,
		events:        events,
		now:           time.Now,
	}
}

// ApprovalResult is returned after a loan is approved and disbursed.
type ApprovalResult struct {
	Loan       *domain.Loan    `json:"loan"`
	NewBalance decimal.Decimal `json:"new_balance"`
	TotalDue   decimal.Decimal `json:"total_due"`
}

// Approve disburses a pending loan into the borrower's account and activates it.
func (s *LoanService) Approve(ctx context.Context, loanID uuid.UUID, actorID uuid.UUID) (*ApprovalResult, error) {
	loan, err := s.repo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.CanTransitionTo(domain.LoanStatusActive) {
		return nil, ErrLoanNotPending
	}

	account, err := s.repo.FindAccountByID(ctx, loan.AccountID)
	if err != nil {
		return nil, err
	}

	startDate := s.now().UTC()
	totalDue := TotalDue(loan.Principal, loan.InterestRate, loan.TermMonths)
	newBalance, err := s.repo.DisburseLoan(ctx, domain.LoanDisbursement{
		LoanID:         loan.ID,
		AccountID:      account.ID,
		UserID:         loan.UserID,
		Principal:      loan.Principal,
		TotalDue:       totalDue,
		StartDate:      startDate,
		TransactionRef: uuid.New(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to disburse loan: %w", err)
	}

	loan.Status = domain.LoanStatusActive
	loan.RemainingBalance = totalDue
	loan.StartDate = &startDate
	log.Printf("level=info component=loans msg=\"loan approved\" loan_id=%s actor_id=%s principal=%s total_due=%s", loan.ID, actorID, loan.Principal, totalDue)

	s.notifications.Notify(ctx, loan.UserID, "loan_approved", "Loan approved",
		fmt.Sprintf("Your loan of $%s has been approved and deposited to account %s.", loan.Principal.StringFixed(2), maskAccountNumber(account.AccountNumber)))
	s.notifications.EmailUser(ctx, loan.UserID, "Your Oakline Bank loan has been approved",
		fmt.Sprintf("Your loan of $%s has been approved. The funds are available in your account. Total amount due over %d months: $%s.",
			loan.Principal.StringFixed(2), loan.TermMonths, totalDue.StringFixed(2)))
	s.publish(ctx, domain.RoutingKeyLoanApproved, loan, &actorID)

	return &ApprovalResult{Loan: loan, NewBalance: newBalance, TotalDue: totalDue}, nil
}

// Reject declines a pending loan.
func (s *LoanService) Reject(ctx context.Context, loanID uuid.UUID, actorID uuid.UUID, reason string) (*domain.Loan, error) {
	loan, err := s.repo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.CanTransitionTo(domain.LoanStatusRejected) {
		return nil, ErrLoanNotPending
	}

	reason = strings.TrimSpace(reason)
	if len(reason) > maxRejectReasonLen {
		return nil, &ValidationError{Field: "reason", Message: "Reason must be at most 500 characters."}
	}
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	if err := s.repo.RejectLoan(ctx, loan.ID, reasonPtr); err != nil {
		return nil, err
	}
	loan.Status = domain.LoanStatusRejected
	loan.RejectionReason = reasonPtr
	log.Printf("level=info component=loans msg=\"loan rejected\" loan_id=%s actor_id=%s", loan.ID, actorID)

	message := fmt.Sprintf("Your loan application for $%s was not approved.", loan.Principal.StringFixed(2))
	if reasonPtr != nil {
		message += " Reason: " + reason
	}
	s.notifications.Notify(ctx, loan.UserID, "loan_rejected", "Loan application update", message)
	s.notifications.EmailUser(ctx, loan.UserID, "Update on your Oakline Bank loan application", message)
	s.publish(ctx, domain.RoutingKeyLoanRejected, loan, &actorID)

	return loan, nil
}

// Close marks a paid-off active loan closed. actorID is nil for scheduled sweeps.
func (s *LoanService) Close(ctx context.Context, loanID uuid.UUID, actorID *uuid.UUID) (*domain.Loan, error) {
	loan, err := s.repo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.CanTransitionTo(domain.LoanStatusClosed) {
		return nil, ErrLoanNotActive
	}
	if !loan.IsSettled() {
		return nil, ErrLoanOutstandingBalance
	}

	if err := s.repo.CloseLoan(ctx, loan.ID); err != nil {
		return nil, err
	}
	loan.Status = domain.LoanStatusClosed
	log.Printf("level=info component=loans msg=\"loan closed\" loan_id=%s", loan.ID)

	s.notifications.Notify(ctx, loan.UserID, "loan_closed", "Loan closed",
		fmt.Sprintf("Your loan of $%s is paid in full and has been closed.", loan.Principal.StringFixed(2)))
	s.publish(ctx, domain.RoutingKeyLoanClosed, loan, actorID)

	return loan, nil
}

// Apply records a new pending loan application for an account the user owns.
func (s *LoanService) Apply(ctx context.Context, userID uuid.UUID, req domain.LoanApplicationRequest) (*domain.Loan, error) {
	if err := validateLoanTerms(req.Principal, req.InterestRate, req.TermMonths); err != nil {
		return nil, err
	}
	accountID, err := uuid.Parse(strings.TrimSpace(req.AccountID))
	if err != nil {
		return nil, &ValidationError{Field: "account_id", Message: "A valid account is required."}
	}
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, store.ErrAccountNotFound
	}

	loan := &domain.Loan{
		ID:               uuid.New(),
		UserID:           userID,
		AccountID:        account.ID,
		Principal:        req.Principal,
		InterestRate:     req.InterestRate,
		TermMonths:       req.TermMonths,
		Status:           domain.LoanStatusPending,
		RemainingBalance: decimal.Zero,
		Purpose:          strings.TrimSpace(req.Purpose),
	}
	if err := s.repo.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	s.notifications.Notify(ctx, userID, "loan_submitted", "Loan application received",
		fmt.Sprintf("We received your application for $%s. We will notify you once it is reviewed.", loan.Principal.StringFixed(2)))
	return loan, nil
}

// Pay applies a repayment from one of the borrower's accounts.
func (s *LoanService) Pay(ctx context.Context, userID uuid.UUID, loanID uuid.UUID, req domain.LoanPaymentRequest) (*domain.Loan, error) {
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, &ValidationError{Field: "amount", Message: "Payment amount must be a positive dollar amount."}
	}
	accountID, err := uuid.Parse(strings.TrimSpace(req.AccountID))
	if err != nil {
		return nil, &ValidationError{Field: "account_id", Message: "A valid account is required."}
	}

	loan, err := s.GetForUser(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != domain.LoanStatusActive {
		return nil, ErrLoanNotActive
	}
	if req.Amount.GreaterThan(loan.RemainingBalance.Add(domain.LoanClosureTolerance)) {
		return nil, &ValidationError{Field: "amount", Message: "Payment exceeds the remaining balance."}
	}

	updated, err := s.repo.ApplyLoanPayment(ctx, domain.LoanPayment{
		LoanID:         loan.ID,
		AccountID:      accountID,
		UserID:         userID,
		Amount:         req.Amount,
		TransactionRef: uuid.New(),
	})
	if err != nil {
		if errors.Is(err, store.ErrLoanStateConflict) {
			return nil, ErrLoanNotActive
		}
		return nil, err
	}

	if updated.IsSettled() {
		s.notifications.Notify(ctx, userID, "loan_paid_off", "Loan paid off",
			"Your final payment was received. Your loan will be closed shortly.")
	}
	return updated, nil
}

// GetForUser returns a loan only if it belongs to userID.
func (s *LoanService) GetForUser(ctx context.Context, userID uuid.UUID, loanID uuid.UUID) (*domain.Loan, error) {
	loan, err := s.repo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != userID {
		return nil, store.ErrLoanNotFound
	}
	return loan, nil
}

func (s *LoanService) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	return s.repo.ListLoansByUserID(ctx, userID)
}

// ListByStatus pages through loans for staff review. An empty status lists all.
func (s *LoanService) ListByStatus(ctx context.Context, status string, limit int, offset int) ([]domain.Loan, error) {
	loanStatus := domain.LoanStatus(strings.ToLower(strings.TrimSpace(status)))
	if loanStatus != "" && !loanStatus.Valid() {
		return nil, ErrInvalidLoanStatusFilter
	}
	if limit <= 0 {
		limit = defaultLoanListLimit
	}
	if limit > maxLoanListLimit {
		limit = maxLoanListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListLoansByStatus(ctx, loanStatus, limit, offset)
}

func (s *LoanService) publish(ctx context.Context, routingKey string, loan *domain.Loan, actorID *uuid.UUID) {
	if s.events == nil {
		return
	}
	event := domain.LoanEvent{
		LoanID:           loan.ID,
		UserID:           loan.UserID,
		AccountID:        loan.AccountID,
		Status:           loan.Status,
		Principal:        loan.Principal,
		RemainingBalance: loan.RemainingBalance,
		ActorID:          actorID,
		Timestamp:        s.now().UTC(),
	}
	if err := s.events.Publish(ctx, domain.BankingEventsExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=loans msg=\"loan event publish failed\" loan_id=%s routing_key=%s err=%v", loan.ID, routingKey, err)
	}
}

func maskAccountNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "****" + number[len(number)-4:]
}
