/**
 * @description
 * Scheduled job implementations run by the scheduler binary.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
)

const settledLoanBatchSize = 100

// JobsRepository defines database operations needed by the jobs.
type JobsRepository interface {
	PurgeExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error)
	ListSettledActiveLoans(ctx context.Context, limit int) ([]domain.Loan, error)
}

// LoanCloser closes a paid-off loan.
type LoanCloser interface {
	Close(ctx context.Context, loanID uuid.UUID, actorID *uuid.UUID) (*domain.Loan, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo   JobsRepository
	loans  LoanCloser
	logger *slog.Logger
	now    func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo JobsRepository, loans LoanCloser, logger *slog.Logger) *Jobs {
	return &Jobs{repo: repo, loans: loans, logger: logger, now: time.Now}
}

// PurgeExpiredVerificationCodes deletes email verification codes past their expiry.
func (j *Jobs) PurgeExpiredVerificationCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.repo.PurgeExpiredVerificationCodes(ctx, j.now().UTC())
	if err != nil {
		j.logger.Error("failed to purge expired verification codes", "error", err)
		return
	}
	j.logger.Info("expired verification codes purged", "deleted", deleted)
}

// CloseSettledLoans closes active loans whose remaining balance is within the
// closure tolerance. One failure does not stop the batch.
func (j *Jobs) CloseSettledLoans() {
	j.logger.Info("starting settled loan closure job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	loans, err := j.repo.ListSettledActiveLoans(ctx, settledLoanBatchSize)
	if err != nil {
		j.logger.Error("failed to list settled loans", "error", err)
		return
	}
	if len(loans) == 0 {
		j.logger.Info("no settled loans to close")
		return
	}

	closed := 0
	for _, loan := range loans {
		if _, err := j.loans.Close(ctx, loan.ID, nil); err != nil {
			j.logger.Error("failed to close settled loan", "loan_id", loan.ID, "error", err)
			continue
		}
		closed++
	}
	j.logger.Info("settled loan closure job finished", "found", len(loans), "closed", closed)
}
