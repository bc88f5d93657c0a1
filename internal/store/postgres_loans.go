package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/shopspring/decimal"
)

const loanColumns = `id, user_id, account_id, principal, interest_rate, term_months, status,
    remaining_balance, purpose, rejection_reason, start_date, created_at, updated_at`

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var l domain.Loan
	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.AccountID,
		&l.Principal,
		&l.InterestRate,
		&l.TermMonths,
		&l.Status,
		&l.RemainingBalance,
		&l.Purpose,
		&l.RejectionReason,
		&l.StartDate,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &l, nil
}

func collectLoans(rows pgx.Rows) ([]domain.Loan, error) {
	defer rows.Close()
	loans := []domain.Loan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

// CreateLoan inserts a new pending loan application.
func (r *PostgresRepository) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	query := `
        INSERT INTO loans (id, user_id, account_id, principal, interest_rate, term_months, status, remaining_balance, purpose)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, updated_at
    `
	return r.db.QueryRow(ctx, query,
		loan.ID,
		loan.UserID,
		loan.AccountID,
		loan.Principal,
		loan.InterestRate,
		loan.TermMonths,
		loan.Status,
		loan.RemainingBalance,
		loan.Purpose,
	).Scan(&loan.CreatedAt, &loan.UpdatedAt)
}

// FindLoanByID retrieves a loan by its ID.
func (r *PostgresRepository) FindLoanByID(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return scanLoan(r.db.QueryRow(ctx, query, loanID))
}

// ListLoansByUserID returns a borrower's loans, newest first.
func (r *PostgresRepository) ListLoansByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

// ListLoansByStatus returns loans for staff review. An empty status lists all loans.
func (r *PostgresRepository) ListLoansByStatus(ctx context.Context, status domain.LoanStatus, limit int, offset int) ([]domain.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE ($1 = '' OR status = $1)
        ORDER BY created_at ASC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.db.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

// DisburseLoan credits the principal to the borrower's account, activates the
// loan and records the disbursement in one transaction. The loan update only
// applies while the loan is still pending; if another approval got there
// first the whole transaction rolls back with ErrLoanStateConflict.
func (r *PostgresRepository) DisburseLoan(ctx context.Context, d domain.LoanDisbursement) (decimal.Decimal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, d.AccountID))
	if err != nil {
		return decimal.Zero, err
	}

	newBalance, _, err := creditAccount(ctx, tx, account, d.Principal)
	if err != nil {
		if errors.Is(err, ErrAccountNotActive) {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("failed to update account balance: %w", err)
	}

	tag, err := tx.Exec(ctx, `
        UPDATE loans
        SET status = 'active', remaining_balance = $2, start_date = $3, updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `, d.LoanID, d.TotalDue, d.StartDate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to activate loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Printf("level=warn component=store msg=\"loan activation lost race; rolling back balance\" loan_id=%s", d.LoanID)
		return decimal.Zero, ErrLoanStateConflict
	}

	ref := d.LoanID
	record := &domain.Transaction{
		ID:           d.TransactionRef,
		UserID:       d.UserID,
		AccountID:    d.AccountID,
		Type:         domain.TransactionLoanDisbursement,
		Amount:       d.Principal,
		Description:  "Loan disbursement",
		Status:       "completed",
		BalanceAfter: newBalance,
		ReferenceID:  &ref,
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record disbursement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// RejectLoan moves a pending loan to rejected.
func (r *PostgresRepository) RejectLoan(ctx context.Context, loanID uuid.UUID, reason *string) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE loans SET status = 'rejected', rejection_reason = $2, updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `, loanID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLoanStateConflict
	}
	return nil
}

// CloseLoan moves an active, paid-off loan to closed.
func (r *PostgresRepository) CloseLoan(ctx context.Context, loanID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE loans SET status = 'closed', updated_at = NOW()
        WHERE id = $1 AND status = 'active' AND remaining_balance <= $2
    `, loanID, domain.LoanClosureTolerance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLoanStateConflict
	}
	return nil
}

// ApplyLoanPayment debits the payer's account and reduces the loan balance.
func (r *PostgresRepository) ApplyLoanPayment(ctx context.Context, p domain.LoanPayment) (*domain.Loan, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	loan, err := scanLoan(tx.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 AND user_id = $2 FOR UPDATE`, p.LoanID, p.UserID))
	if err != nil {
		return nil, err
	}
	if loan.Status != domain.LoanStatusActive {
		return nil, ErrLoanStateConflict
	}

	account, err := lockOwnedAccount(ctx, tx, p.AccountID, p.UserID)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(p.Amount) {
		return nil, ErrInsufficientFunds
	}

	newBalance := account.Balance.Sub(p.Amount)
	if err := setAccountBalance(ctx, tx, account.ID, newBalance); err != nil {
		return nil, err
	}

	remaining := loan.RemainingBalance.Sub(p.Amount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	if _, err := tx.Exec(ctx, `UPDATE loans SET remaining_balance = $2, updated_at = NOW() WHERE id = $1`, loan.ID, remaining); err != nil {
		return nil, err
	}
	loan.RemainingBalance = remaining

	ref := loan.ID
	record := &domain.Transaction{
		ID:           p.TransactionRef,
		UserID:       p.UserID,
		AccountID:    account.ID,
		Type:         domain.TransactionLoanPayment,
		Amount:       p.Amount.Neg(),
		Description:  "Loan payment",
		Status:       "completed",
		BalanceAfter: newBalance,
		ReferenceID:  &ref,
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return loan, nil
}

// ListSettledActiveLoans finds active loans whose balance is within the closure tolerance.
func (r *PostgresRepository) ListSettledActiveLoans(ctx context.Context, limit int) ([]domain.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE status = 'active' AND remaining_balance <= $1
        ORDER BY updated_at ASC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, domain.LoanClosureTolerance, limit)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}
