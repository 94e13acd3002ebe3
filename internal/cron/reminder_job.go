package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/internal/notify"
	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
)

type overdueLoanSource interface {
	OverdueLinkedLoans(ctx context.Context, now time.Time) ([]models.Loan, error)
}

type reminderSender interface {
	SendLoanReminder(ctx context.Context, loanID uuid.UUID) (*notify.ReminderResult, error)
}

// OverdueReminderJobParams configures the reminder sweep.
type OverdueReminderJobParams struct {
	Logger *logger.Logger
	Loans  overdueLoanSource
	Sender reminderSender
}

// NewOverdueReminderJob builds the job that emails every member holding an
// overdue loan.
func NewOverdueReminderJob(params OverdueReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loan source required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("reminder sender required")
	}
	return &overdueReminderJob{
		logg:   params.Logger,
		loans:  params.Loans,
		sender: params.Sender,
		now:    time.Now,
	}, nil
}

type overdueReminderJob struct {
	logg   *logger.Logger
	loans  overdueLoanSource
	sender reminderSender
	now    func() time.Time
}

func (j *overdueReminderJob) Name() string { return "overdue-reminders" }

func (j *overdueReminderJob) Run(ctx context.Context) error {
	loans, err := j.loans.OverdueLinkedLoans(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("query overdue loans: %w", err)
	}

	var errs []error
	sent := 0
	for _, loan := range loans {
		if _, err := j.sender.SendLoanReminder(ctx, loan.ID); err != nil {
			errs = append(errs, fmt.Errorf("loan %s: %w", loan.ID, err))
			continue
		}
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue": len(loans),
		"sent":    sent,
		"failed":  len(errs),
	})
	j.logg.Info(logCtx, "overdue reminder sweep complete")
	return multierr.Combine(errs...)
}

// OverdueLoanRepo answers the job's ledger query.
type OverdueLoanRepo struct {
	db *gorm.DB
}

// NewOverdueLoanRepo binds the query to the database.
func NewOverdueLoanRepo(db *gorm.DB) *OverdueLoanRepo {
	return &OverdueLoanRepo{db: db}
}

// OverdueLinkedLoans returns active overdue loans that carry a member link.
func (r *OverdueLoanRepo) OverdueLinkedLoans(ctx context.Context, now time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ? AND member_ref IS NOT NULL", enums.LoanStatusActive, now).
		Order("due_date ASC").
		Find(&loans).Error
	return loans, err
}
