/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface: accounts, ledger rows and notifications. Loans, users and Zelle
 * live in sibling files on the same `PostgresRepository` type.
 *
 * @notes
 * - Every balance mutation locks the account row (FOR UPDATE) and writes its
 *   ledger row inside the same pgx transaction.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - github.com/shopspring/decimal: numeric columns.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/shopspring/decimal"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, user_id, account_number, account_type, status, balance, min_deposit, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.AccountType, &a.Status, &a.Balance, &a.MinDeposit, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindAccountByID retrieves a single account.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// ListAccountsByUserID returns all accounts owned by a user, oldest first.
func (r *PostgresRepository) ListAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// lockOwnedAccount loads and locks an account row, enforcing ownership and status.
func lockOwnedAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND user_id = $2 FOR UPDATE`
	account, err := scanAccount(tx.QueryRow(ctx, query, accountID, userID))
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountStatusActive {
		return nil, ErrAccountNotActive
	}
	return account, nil
}

// creditAccount adds amount to a locked account, activating a pending account
// once it is funded to its minimum deposit.
func creditAccount(ctx context.Context, tx pgx.Tx, account *domain.Account, amount decimal.Decimal) (decimal.Decimal, string, error) {
	if !account.AcceptsCredit() {
		return decimal.Zero, "", ErrAccountNotActive
	}
	newBalance := account.Balance.Add(amount)
	status := account.StatusAfterCredit(newBalance)
	_, err := tx.Exec(ctx, `UPDATE accounts SET balance = $2, status = $3, updated_at = NOW() WHERE id = $1`, account.ID, newBalance, status)
	if err != nil {
		return decimal.Zero, "", err
	}
	if status != account.Status {
		log.Printf("level=info component=store msg=\"account activated\" account_id=%s balance=%s", account.ID, newBalance)
	}
	return newBalance, status, nil
}

func setAccountBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance decimal.Decimal) error {
	_, err := tx.Exec(ctx, `UPDATE accounts SET balance = $2, updated_at = NOW() WHERE id = $1`, accountID, balance)
	return err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `
        INSERT INTO transactions (id, user_id, account_id, type, amount, description, status, balance_after, reference_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at
    `
	return tx.QueryRow(ctx, query,
		t.ID,
		t.UserID,
		t.AccountID,
		t.Type,
		t.Amount,
		t.Description,
		t.Status,
		t.BalanceAfter,
		t.ReferenceID,
	).Scan(&t.CreatedAt)
}

// DepositToAccount credits an active or pending account and records the
// deposit. A pending account funded to its minimum deposit becomes active in
// the same transaction.
func (r *PostgresRepository) DepositToAccount(ctx context.Context, accountID uuid.UUID, userID uuid.UUID, amount decimal.Decimal, description string) (*domain.Deposit, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND user_id = $2 FOR UPDATE`
	account, err := scanAccount(tx.QueryRow(ctx, query, accountID, userID))
	if err != nil {
		return nil, err
	}

	newBalance, status, err := creditAccount(ctx, tx, account, amount)
	if err != nil {
		return nil, err
	}

	record := &domain.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		AccountID:    accountID,
		Type:         domain.TransactionDeposit,
		Amount:       amount,
		Description:  description,
		Status:       "completed",
		BalanceAfter: newBalance,
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.Deposit{
		Transaction:   record,
		AccountStatus: status,
		Activated:     status != account.Status,
	}, nil
}

// ListTransactionsByAccount pages through an account's ledger, newest first.
func (r *PostgresRepository) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, userID uuid.UUID, limit int, offset int) ([]domain.Transaction, error) {
	query := `
        SELECT id, user_id, account_id, type, amount, description, status, balance_after, reference_id, created_at
        FROM transactions
        WHERE account_id = $1 AND user_id = $2
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4
    `
	rows, err := r.db.Query(ctx, query, accountID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Type, &t.Amount, &t.Description, &t.Status, &t.BalanceAfter, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// CreateNotification inserts a user-visible notification.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `
        INSERT INTO notifications (id, user_id, type, title, message, read)
        VALUES ($1, $2, $3, $4, $5, FALSE)
    `
	_, err := r.db.Exec(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Message)
	return err
}

// ListNotifications returns a user's notifications, newest first.
func (r *PostgresRepository) ListNotifications(ctx context.Context, userID uuid.UUID, opts domain.NotificationListOptions) ([]domain.Notification, error) {
	query := `
        SELECT id, user_id, type, title, message, read, created_at
        FROM notifications
        WHERE user_id = $1 AND ($2 = FALSE OR read = FALSE)
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4
    `
	rows, err := r.db.Query(ctx, query, userID, opts.UnreadOnly, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// MarkNotificationRead marks one notification read. It reports false when the
// notification does not exist or belongs to someone else.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, userID uuid.UUID, notificationID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAllNotificationsRead marks every unread notification for a user as read.
func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
