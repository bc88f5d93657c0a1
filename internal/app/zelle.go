package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/shopspring/decimal"
)

const (
	maxContactNameLen      = 100
	maxZelleMemoLen        = 140
	zelleTransactionsLimit = 50
)

// ZelleTransferLimit caps a single Zelle payment.
var ZelleTransferLimit = decimal.NewFromInt(5000)

// ZelleService manages the Zelle address book and outgoing payments.
type ZelleService struct {
	repo          store.Repository
	notifications *NotificationService
}

func NewZelleService(repo store.Repository, notifications *NotificationService) *ZelleService {
	return &ZelleService{repo: repo, notifications: notifications}
}

// contactFromRequest validates req into a contact. At least one of email or
// phone is required.
func contactFromRequest(req domain.ZelleContactRequest) (*domain.ZelleContact, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "Contact name is required."}
	}
	if len(name) > maxContactNameLen {
		return nil, &ValidationError{Field: "name", Message: "Contact name must be at most 100 characters."}
	}

	contact := &domain.ZelleContact{Name: name}
	if raw := strings.TrimSpace(req.Email); raw != "" {
		email, ok := normalizeEmail(raw)
		if !ok {
			return nil, &ValidationError{Field: "email", Message: "A valid email address is required."}
		}
		contact.Email = &email
	}
	if raw := strings.TrimSpace(req.Phone); raw != "" {
		phone, ok := normalizePhone(raw)
		if !ok {
			return nil, &ValidationError{Field: "phone", Message: "Phone number must have 10 to 15 digits."}
		}
		contact.Phone = &phone
	}
	if contact.Email == nil && contact.Phone == nil {
		return nil, &ValidationError{Field: "email", Message: "An email address or phone number is required."}
	}
	return contact, nil
}

func (s *ZelleService) ListContacts(ctx context.Context, userID uuid.UUID) ([]domain.ZelleContact, error) {
	return s.repo.ListZelleContacts(ctx, userID)
}

func (s *ZelleService) CreateContact(ctx context.Context, userID uuid.UUID, req domain.ZelleContactRequest) (*domain.ZelleContact, error) {
	contact, err := contactFromRequest(req)
	if err != nil {
		return nil, err
	}
	contact.ID = uuid.New()
	contact.UserID = userID
	if err := s.repo.CreateZelleContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, nil
}

func (s *ZelleService) UpdateContact(ctx context.Context, userID uuid.UUID, contactID uuid.UUID, req domain.ZelleContactRequest) (*domain.ZelleContact, error) {
	contact, err := contactFromRequest(req)
	if err != nil {
		return nil, err
	}
	contact.ID = contactID
	contact.UserID = userID
	if err := s.repo.UpdateZelleContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *ZelleService) DeleteContact(ctx context.Context, userID uuid.UUID, contactID uuid.UUID) error {
	return s.repo.DeleteZelleContact(ctx, contactID, userID)
}

// SendResult is returned by Send.
type SendResult struct {
	Transfer   *domain.ZelleTransaction `json:"transfer"`
	NewBalance decimal.Decimal          `json:"new_balance"`
}

// Send pays a saved contact from one of the user's accounts.
func (s *ZelleService) Send(ctx context.Context, userID uuid.UUID, req domain.ZelleSendRequest) (*SendResult, error) {
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, &ValidationError{Field: "amount", Message: "Amount must be a positive dollar amount."}
	}
	if req.Amount.GreaterThan(ZelleTransferLimit) {
		return nil, &ValidationError{Field: "amount", Message: "Zelle payments are limited to $5,000.00 per transfer."}
	}
	memo := strings.TrimSpace(req.Memo)
	if len(memo) > maxZelleMemoLen {
		return nil, &ValidationError{Field: "memo", Message: "Memo must be at most 140 characters."}
	}
	accountID, err := uuid.Parse(strings.TrimSpace(req.AccountID))
	if err != nil {
		return nil, &ValidationError{Field: "account_id", Message: "A valid account is required."}
	}
	contactID, err := uuid.Parse(strings.TrimSpace(req.ContactID))
	if err != nil {
		return nil, &ValidationError{Field: "contact_id", Message: "A valid contact is required."}
	}

	contact, err := s.repo.FindZelleContact(ctx, contactID, userID)
	if err != nil {
		return nil, err
	}

	transfer := &domain.ZelleTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		AccountID: accountID,
		ContactID: contact.ID,
		Recipient: contactHandle(contact),
		Amount:    req.Amount,
		Memo:      memo,
		Status:    "completed",
	}
	newBalance, err := s.repo.SendZelle(ctx, transfer)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=zelle msg=\"zelle sent\" user_id=%s transfer_id=%s amount=%s", userID, transfer.ID, transfer.Amount)

	s.notifications.Notify(ctx, userID, "zelle_sent", "Zelle payment sent",
		fmt.Sprintf("You sent $%s to %s.", transfer.Amount.StringFixed(2), contact.Name))
	return &SendResult{Transfer: transfer, NewBalance: newBalance}, nil
}

func contactHandle(c *domain.ZelleContact) string {
	if c.Email != nil {
		return c.Name + " <" + *c.Email + ">"
	}
	if c.Phone != nil {
		return c.Name + " (" + *c.Phone + ")"
	}
	return c.Name
}

func (s *ZelleService) ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.ZelleTransaction, error) {
	return s.repo.ListZelleTransactions(ctx, userID, zelleTransactionsLimit)
}
