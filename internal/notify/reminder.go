package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/config"
	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
)

// Repository loads the rows a reminder needs.
type Repository interface {
	LoanByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	MemberByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notification repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) LoanByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).First(&loan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repositoryImpl) MemberByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// Service sends per-loan reminder emails.
type Service interface {
	SendLoanReminder(ctx context.Context, loanID uuid.UUID) (*ReminderResult, error)
}

// ReminderResult reports what was rendered and whether delivery happened.
type ReminderResult struct {
	Loan      *models.Loan `json:"transaction"`
	Recipient string       `json:"recipient"`
	Subject   string       `json:"subject"`
	Overdue   bool         `json:"overdue"`
	Simulated bool         `json:"simulated"`
	Delivered bool         `json:"delivered"`
}

// ServiceParams collects reminder dependencies.
type ServiceParams struct {
	Repo    Repository
	Mailer  Mailer
	Library config.LibraryConfig
	Lending config.LendingConfig
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	mailer  Mailer
	library config.LibraryConfig
	lending config.LendingConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the reminder sender.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notify repository required")
	}
	if params.Mailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mailer required")
	}
	lending := params.Lending
	if lending.FinePerDay <= 0 {
		lending.FinePerDay = 100
	}
	return &service{
		repo:    params.Repo,
		mailer:  params.Mailer,
		library: params.Library,
		lending: lending,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

func (s *service) SendLoanReminder(ctx context.Context, loanID uuid.UUID) (*ReminderResult, error) {
	loan, err := s.repo.LoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
	}
	if !loan.IsActive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "loan already returned")
	}
	if loan.MemberRef == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan has no linked member to notify")
	}

	member, err := s.repo.MemberByID(ctx, *loan.MemberRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}

	now := s.now().UTC()
	overdue := loan.IsOverdue(now)
	subject, body := s.render(loan, member, now, overdue)

	result := &ReminderResult{
		Loan:      loan,
		Recipient: member.Email,
		Subject:   subject,
		Overdue:   overdue,
		Simulated: s.mailer.Simulated(),
	}

	// Best effort: a failed delivery is logged, never propagated.
	if err := s.mailer.Send(ctx, Message{To: member.Email, Subject: subject, Body: body}); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "reminder delivery failed", err)
		}
		return result, nil
	}
	result.Delivered = true
	return result, nil
}

func (s *service) render(loan *models.Loan, member *models.Member, now time.Time, overdue bool) (string, string) {
	due := loan.DueDate.Format("Mon Jan 2 2006")
	if overdue {
		days := int(math.Ceil(now.Sub(loan.DueDate).Hours() / 24))
		fine := days * s.lending.FinePerDay
		subject := fmt.Sprintf("Overdue book reminder: %s", loan.BookTitle)
		body := fmt.Sprintf(
			"Dear %s,\n\nOur records show that \"%s\" (ISBN %s) was due on %s and is now %d day(s) overdue. "+
				"The estimated fine so far is Rs. %d at Rs. %d per day.\n\n"+
				"Please return the book at your earliest convenience.\n\n%s\n%s",
			member.Name, loan.BookTitle, loan.ISBN, due, days, fine, s.lending.FinePerDay,
			s.library.Name, s.library.Phone,
		)
		return subject, body
	}
	subject := fmt.Sprintf("Upcoming due date: %s", loan.BookTitle)
	body := fmt.Sprintf(
		"Dear %s,\n\nThis is a friendly reminder that \"%s\" (ISBN %s) is due back on %s.\n\n"+
			"Thank you for using the library.\n\n%s\n%s",
		member.Name, loan.BookTitle, loan.ISBN, due,
		s.library.Name, s.library.Phone,
	)
	return subject, body
}
