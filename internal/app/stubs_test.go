package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/oakline/banking-service/pkg/mailer"
	"github.com/shopspring/decimal"
)

// repoStub is an in-memory store.Repository. Methods a test does not touch
// fall through to the embedded nil interface and panic.
type repoStub struct {
	store.Repository

	loans         map[uuid.UUID]*domain.Loan
	accounts      map[uuid.UUID]*domain.Account
	profiles      map[uuid.UUID]*domain.Profile
	adminRoles    map[uuid.UUID]string
	codes         map[uuid.UUID]domain.VerificationCode
	mfa           map[uuid.UUID]domain.MFASettings
	contacts      map[uuid.UUID]*domain.ZelleContact
	emailsInUse   map[string]bool
	notifications []domain.Notification
	enrollments   []domain.NewEnrollment
	zelleSent     []*domain.ZelleTransaction
	disbursements []domain.LoanDisbursement

	disburseErr     error
	notificationErr error
	closeErrFor     map[uuid.UUID]error
	settledLoans    []domain.Loan
	purgeCalledAt   time.Time
	purgeErr        error
}

func newRepoStub() *repoStub {
	return &repoStub{
		loans:       map[uuid.UUID]*domain.Loan{},
		accounts:    map[uuid.UUID]*domain.Account{},
		profiles:    map[uuid.UUID]*domain.Profile{},
		adminRoles:  map[uuid.UUID]string{},
		codes:       map[uuid.UUID]domain.VerificationCode{},
		mfa:         map[uuid.UUID]domain.MFASettings{},
		contacts:    map[uuid.UUID]*domain.ZelleContact{},
		emailsInUse: map[string]bool{},
		closeErrFor: map[uuid.UUID]error{},
	}
}

func (r *repoStub) addAccount(userID uuid.UUID, balance string) *domain.Account {
	a := &domain.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: "7012345678",
		AccountType:   "checking",
		Status:        domain.AccountStatusActive,
		Balance:       decimal.RequireFromString(balance),
	}
	r.accounts[a.ID] = a
	return a
}

func (r *repoStub) addLoan(userID, accountID uuid.UUID, status domain.LoanStatus, principal, rate string, term int) *domain.Loan {
	l := &domain.Loan{
		ID:           uuid.New(),
		UserID:       userID,
		AccountID:    accountID,
		Principal:    decimal.RequireFromString(principal),
		InterestRate: decimal.RequireFromString(rate),
		TermMonths:   term,
		Status:       status,
	}
	r.loans[l.ID] = l
	return l
}

func (r *repoStub) FindLoanByID(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	l, ok := r.loans[loanID]
	if !ok {
		return nil, store.ErrLoanNotFound
	}
	copied := *l
	return &copied, nil
}

func (r *repoStub) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	a, ok := r.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *repoStub) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	copied := *loan
	r.loans[loan.ID] = &copied
	return nil
}

func (r *repoStub) DisburseLoan(ctx context.Context, d domain.LoanDisbursement) (decimal.Decimal, error) {
	if r.disburseErr != nil {
		return decimal.Zero, r.disburseErr
	}
	loan := r.loans[d.LoanID]
	if loan.Status != domain.LoanStatusPending {
		return decimal.Zero, store.ErrLoanStateConflict
	}
	account := r.accounts[d.AccountID]
	if !account.AcceptsCredit() {
		return decimal.Zero, store.ErrAccountNotActive
	}
	account.Balance = account.Balance.Add(d.Principal)
	account.Status = account.StatusAfterCredit(account.Balance)
	loan.Status = domain.LoanStatusActive
	loan.RemainingBalance = d.TotalDue
	start := d.StartDate
	loan.StartDate = &start
	r.disbursements = append(r.disbursements, d)
	return account.Balance, nil
}

func (r *repoStub) DepositToAccount(ctx context.Context, accountID uuid.UUID, userID uuid.UUID, amount decimal.Decimal, description string) (*domain.Deposit, error) {
	account, ok := r.accounts[accountID]
	if !ok || account.UserID != userID {
		return nil, store.ErrAccountNotFound
	}
	if !account.AcceptsCredit() {
		return nil, store.ErrAccountNotActive
	}
	previous := account.Status
	account.Balance = account.Balance.Add(amount)
	account.Status = account.StatusAfterCredit(account.Balance)
	return &domain.Deposit{
		Transaction: &domain.Transaction{
			ID:           uuid.New(),
			UserID:       userID,
			AccountID:    accountID,
			Type:         domain.TransactionDeposit,
			Amount:       amount,
			Description:  description,
			Status:       "completed",
			BalanceAfter: account.Balance,
		},
		AccountStatus: account.Status,
		Activated:     account.Status != previous,
	}, nil
}

func (r *repoStub) RejectLoan(ctx context.Context, loanID uuid.UUID, reason *string) error {
	loan := r.loans[loanID]
	if loan.Status != domain.LoanStatusPending {
		return store.ErrLoanStateConflict
	}
	loan.Status = domain.LoanStatusRejected
	loan.RejectionReason = reason
	return nil
}

func (r *repoStub) CloseLoan(ctx context.Context, loanID uuid.UUID) error {
	if err := r.closeErrFor[loanID]; err != nil {
		return err
	}
	loan := r.loans[loanID]
	if loan.Status != domain.LoanStatusActive || !loan.IsSettled() {
		return store.ErrLoanStateConflict
	}
	loan.Status = domain.LoanStatusClosed
	return nil
}

func (r *repoStub) ApplyLoanPayment(ctx context.Context, p domain.LoanPayment) (*domain.Loan, error) {
	loan := r.loans[p.LoanID]
	account, ok := r.accounts[p.AccountID]
	if !ok || account.UserID != p.UserID {
		return nil, store.ErrAccountNotFound
	}
	if account.Balance.LessThan(p.Amount) {
		return nil, store.ErrInsufficientFunds
	}
	account.Balance = account.Balance.Sub(p.Amount)
	loan.RemainingBalance = decimal.Max(decimal.Zero, loan.RemainingBalance.Sub(p.Amount))
	copied := *loan
	return &copied, nil
}

func (r *repoStub) ListSettledActiveLoans(ctx context.Context, limit int) ([]domain.Loan, error) {
	return r.settledLoans, nil
}

func (r *repoStub) CreateNotification(ctx context.Context, n domain.Notification) error {
	if r.notificationErr != nil {
		return r.notificationErr
	}
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *repoStub) FindProfileByID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *repoStub) EmailInUse(ctx context.Context, email string) (bool, error) {
	return r.emailsInUse[strings.ToLower(email)], nil
}

func (r *repoStub) UpdateProfileEmail(ctx context.Context, userID uuid.UUID, email string) error {
	p, ok := r.profiles[userID]
	if !ok {
		return store.ErrProfileNotFound
	}
	p.Email = email
	return nil
}

func (r *repoStub) FindAdminRole(ctx context.Context, userID uuid.UUID) (string, error) {
	role, ok := r.adminRoles[userID]
	if !ok {
		return "", store.ErrAdminNotFound
	}
	return role, nil
}

func (r *repoStub) CreateEnrollment(ctx context.Context, e domain.NewEnrollment) error {
	if _, exists := r.profiles[e.Profile.ID]; exists {
		return store.ErrProfileExists
	}
	r.enrollments = append(r.enrollments, e)
	profile := e.Profile
	r.profiles[profile.ID] = &profile
	return nil
}

func (r *repoStub) ReplaceVerificationCode(ctx context.Context, code domain.VerificationCode) error {
	r.codes[code.UserID] = code
	return nil
}

func (r *repoStub) FindVerificationCodeByUserID(ctx context.Context, userID uuid.UUID) (*domain.VerificationCode, error) {
	c, ok := r.codes[userID]
	if !ok {
		return nil, store.ErrVerificationCodeNotFound
	}
	return &c, nil
}

func (r *repoStub) DeleteVerificationCodes(ctx context.Context, userID uuid.UUID) error {
	delete(r.codes, userID)
	return nil
}

func (r *repoStub) PurgeExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error) {
	r.purgeCalledAt = now
	if r.purgeErr != nil {
		return 0, r.purgeErr
	}
	var n int64
	for userID, c := range r.codes {
		if c.ExpiresAt.Before(now) {
			delete(r.codes, userID)
			n++
		}
	}
	return n, nil
}

func (r *repoStub) FindMFASettings(ctx context.Context, userID uuid.UUID) (*domain.MFASettings, error) {
	s, ok := r.mfa[userID]
	if !ok {
		return nil, store.ErrMFANotConfigured
	}
	return &s, nil
}

func (r *repoStub) UpsertMFASettings(ctx context.Context, s domain.MFASettings) error {
	r.mfa[s.UserID] = s
	return nil
}

func (r *repoStub) FindZelleContact(ctx context.Context, contactID uuid.UUID, userID uuid.UUID) (*domain.ZelleContact, error) {
	c, ok := r.contacts[contactID]
	if !ok || c.UserID != userID {
		return nil, store.ErrZelleContactNotFound
	}
	return c, nil
}

func (r *repoStub) CreateZelleContact(ctx context.Context, contact *domain.ZelleContact) error {
	r.contacts[contact.ID] = contact
	return nil
}

func (r *repoStub) SendZelle(ctx context.Context, transfer *domain.ZelleTransaction) (decimal.Decimal, error) {
	account, ok := r.accounts[transfer.AccountID]
	if !ok || account.UserID != transfer.UserID {
		return decimal.Zero, store.ErrAccountNotFound
	}
	if account.Balance.LessThan(transfer.Amount) {
		return decimal.Zero, store.ErrInsufficientFunds
	}
	account.Balance = account.Balance.Sub(transfer.Amount)
	r.zelleSent = append(r.zelleSent, transfer)
	return account.Balance, nil
}

func (r *repoStub) notificationTypes() []string {
	types := make([]string, 0, len(r.notifications))
	for _, n := range r.notifications {
		types = append(types, n.Type)
	}
	return types
}

type senderStub struct {
	sent []mailer.Email
	err  error
}

func (s *senderStub) Send(ctx context.Context, email mailer.Email) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, email)
	return nil
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type publisherStub struct {
	events []publishedEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) Close() {}

type limiterStub struct {
	counts map[string]int
	retry  int
	err    error
}

func (l *limiterStub) ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (int, int, error) {
	if l.err != nil {
		return 0, 0, l.err
	}
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[scope+":"+subject]++
	return l.counts[scope+":"+subject], l.retry, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
