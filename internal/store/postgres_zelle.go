package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/shopspring/decimal"
)

const zelleContactColumns = `id, user_id, name, email, phone, created_at, updated_at`

func scanZelleContact(row pgx.Row) (*domain.ZelleContact, error) {
	var c domain.ZelleContact
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrZelleContactNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListZelleContacts returns the user's address book ordered by name.
func (r *PostgresRepository) ListZelleContacts(ctx context.Context, userID uuid.UUID) ([]domain.ZelleContact, error) {
	rows, err := r.db.Query(ctx, `SELECT `+zelleContactColumns+` FROM zelle_contacts WHERE user_id = $1 ORDER BY name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []domain.ZelleContact{}
	for rows.Next() {
		c, err := scanZelleContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// FindZelleContact loads one contact scoped to its owner.
func (r *PostgresRepository) FindZelleContact(ctx context.Context, contactID uuid.UUID, userID uuid.UUID) (*domain.ZelleContact, error) {
	return scanZelleContact(r.db.QueryRow(ctx, `SELECT `+zelleContactColumns+` FROM zelle_contacts WHERE id = $1 AND user_id = $2`, contactID, userID))
}

// CreateZelleContact inserts a contact.
func (r *PostgresRepository) CreateZelleContact(ctx context.Context, contact *domain.ZelleContact) error {
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
        INSERT INTO zelle_contacts (id, user_id, name, email, phone)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at
    `, contact.ID, contact.UserID, contact.Name, contact.Email, contact.Phone).Scan(&contact.CreatedAt, &contact.UpdatedAt)
}

// UpdateZelleContact rewrites a contact owned by contact.UserID.
func (r *PostgresRepository) UpdateZelleContact(ctx context.Context, contact *domain.ZelleContact) error {
	err := r.db.QueryRow(ctx, `
        UPDATE zelle_contacts
        SET name = $3, email = $4, phone = $5, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
        RETURNING created_at, updated_at
    `, contact.ID, contact.UserID, contact.Name, contact.Email, contact.Phone).Scan(&contact.CreatedAt, &contact.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrZelleContactNotFound
	}
	return err
}

// DeleteZelleContact removes a contact owned by userID.
func (r *PostgresRepository) DeleteZelleContact(ctx context.Context, contactID uuid.UUID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM zelle_contacts WHERE id = $1 AND user_id = $2`, contactID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrZelleContactNotFound
	}
	return nil
}

// SendZelle debits the sender's account and records both the Zelle transfer
// and its ledger row atomically. It returns the account balance afterwards.
func (r *PostgresRepository) SendZelle(ctx context.Context, transfer *domain.ZelleTransaction) (decimal.Decimal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := lockOwnedAccount(ctx, tx, transfer.AccountID, transfer.UserID)
	if err != nil {
		return decimal.Zero, err
	}
	if account.Balance.LessThan(transfer.Amount) {
		return decimal.Zero, ErrInsufficientFunds
	}

	newBalance := account.Balance.Sub(transfer.Amount)
	if err := setAccountBalance(ctx, tx, account.ID, newBalance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit account: %w", err)
	}

	if transfer.ID == uuid.Nil {
		transfer.ID = uuid.New()
	}
	err = tx.QueryRow(ctx, `
        INSERT INTO zelle_transactions (id, user_id, account_id, contact_id, recipient, amount, memo, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at
    `, transfer.ID, transfer.UserID, transfer.AccountID, transfer.ContactID, transfer.Recipient, transfer.Amount, transfer.Memo, transfer.Status).Scan(&transfer.CreatedAt)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to record zelle transfer: %w", err)
	}

	ref := transfer.ID
	record := &domain.Transaction{
		ID:           uuid.New(),
		UserID:       transfer.UserID,
		AccountID:    account.ID,
		Type:         domain.TransactionZelleSend,
		Amount:       transfer.Amount.Neg(),
		Description:  "Zelle to " + transfer.Recipient,
		Status:       "completed",
		BalanceAfter: newBalance,
		ReferenceID:  &ref,
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record ledger row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// ListZelleTransactions returns the user's most recent transfers.
func (r *PostgresRepository) ListZelleTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ZelleTransaction, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, account_id, contact_id, recipient, amount, memo, status, created_at
        FROM zelle_transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.ZelleTransaction{}
	for rows.Next() {
		var t domain.ZelleTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.ContactID, &t.Recipient, &t.Amount, &t.Memo, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
