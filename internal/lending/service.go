package lending

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/config"
	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
	"github.com/citylibrary/libraryops-backend/pkg/metrics"
)

// TxRunner runs a function inside a database transaction. *db.Client
// satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the borrow and return lifecycle.
type Service interface {
	Borrow(ctx context.Context, input BorrowInput) (*models.Loan, error)
	Return(ctx context.Context, loanID uuid.UUID) (*ReturnResult, error)
}

// ServiceParams collects lending dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      TxRunner
	Config  config.LendingConfig
	Logger  *logger.Logger
	Metrics *metrics.LendingMetrics
}

type service struct {
	repo    Repository
	tx      TxRunner
	cfg     config.LendingConfig
	logg    *logger.Logger
	metrics *metrics.LendingMetrics
	now     func() time.Time
}

// NewService wires the lending engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lending repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	cfg := params.Config
	if cfg.FinePerDay <= 0 {
		cfg.FinePerDay = 100
	}
	if cfg.DefaultDueDays <= 0 {
		cfg.DefaultDueDays = 14
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		cfg:     cfg,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

// BorrowInput identifies the copy being taken and who takes it. MemberCode
// is optional: walk-in borrowers are recorded by name only.
type BorrowInput struct {
	ISBN         string
	BorrowerName string
	MemberCode   *string
	DueDays      *int
}

// ReturnResult reports the closed loan and the fine assessed on it.
type ReturnResult struct {
	Loan        *models.Loan
	Fine        decimal.Decimal
	Overdue     bool
	DaysOverdue int
}

func (s *service) Borrow(ctx context.Context, input BorrowInput) (*models.Loan, error) {
	loan, err := s.borrow(ctx, input)
	if err != nil {
		s.observeFailure("borrow", err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveBorrow(loan.MemberRef != nil)
	}
	if s.logg != nil {
		lctx := s.logg.WithISBN(ctx, loan.ISBN)
		s.logg.Info(lctx, "book borrowed")
	}
	return loan, nil
}

func (s *service) borrow(ctx context.Context, input BorrowInput) (*models.Loan, error) {
	isbn := strings.TrimSpace(input.ISBN)
	if isbn == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "isbn required")
	}

	dueDays := s.cfg.DefaultDueDays
	if input.DueDays != nil {
		if *input.DueDays <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "due days must be positive")
		}
		dueDays = *input.DueDays
	}

	var member *models.Member
	if input.MemberCode != nil && strings.TrimSpace(*input.MemberCode) != "" {
		found, err := s.repo.MemberByCode(ctx, strings.TrimSpace(*input.MemberCode))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
		}
		member = found
	}

	if member != nil && s.cfg.MaxLoansPerMember > 0 {
		open, err := s.repo.ActiveLoanCountForMember(ctx, member.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count member loans")
		}
		// Advisory check only; the copy decrement inside the transaction
		// stays the sole hard guard.
		if open >= int64(s.cfg.MaxLoansPerMember) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "member loan limit reached").
				WithDetails(map[string]any{"memberId": member.MemberCode, "activeLoans": open})
		}
	}

	borrower := strings.TrimSpace(input.BorrowerName)
	if borrower == "" {
		if member == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower name required")
		}
		borrower = member.Name
	}

	book, err := s.repo.BookByISBN(ctx, isbn)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}

	now := s.now().UTC()
	due := now.Add(time.Duration(dueDays) * 24 * time.Hour)

	loan := &models.Loan{
		ISBN:         book.ISBN,
		BookTitle:    book.Title,
		BorrowerName: borrower,
		BorrowedDate: now,
		DueDate:      due,
		FineAmount:   decimal.Zero,
	}
	if member != nil {
		loan.MemberRef = &member.ID
		loan.MemberCode = &member.MemberCode
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		taken, err := repo.TakeCopy(ctx, book.ISBN, borrower, now, due)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "take copy")
		}
		if !taken {
			return pkgerrors.New(pkgerrors.CodeUnavailable, "no copies available").
				WithDetails(map[string]any{"isbn": book.ISBN})
		}

		if err := repo.CreateLoan(ctx, loan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create loan")
		}

		if member != nil {
			if err := repo.RecordMemberBorrow(ctx, member.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record member borrow")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *service) Return(ctx context.Context, loanID uuid.UUID) (*ReturnResult, error) {
	result, err := s.doReturn(ctx, loanID)
	if err != nil {
		s.observeFailure("return", err)
		return nil, err
	}
	if s.metrics != nil {
		fine, _ := result.Fine.Float64()
		s.metrics.ObserveReturn(result.Overdue, fine)
	}
	if s.logg != nil {
		lctx := s.logg.WithISBN(ctx, result.Loan.ISBN)
		s.logg.Info(lctx, "book returned")
	}
	return result, nil
}

func (s *service) doReturn(ctx context.Context, loanID uuid.UUID) (*ReturnResult, error) {
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

	now := s.now().UTC()
	days := daysOverdue(loan.DueDate, now)
	fine := decimal.NewFromInt(int64(days) * int64(s.cfg.FinePerDay))

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		closed, err := repo.CloseLoan(ctx, loan.ID, now, fine)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close loan")
		}
		if !closed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "loan already returned")
		}

		// A failed increment means the book row is gone or already fully
		// shelved; either way the rollback keeps the loan open.
		shelved, err := repo.ReturnCopy(ctx, loan.ISBN)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return copy")
		}
		if !shelved {
			if _, lookupErr := repo.BookByISBN(ctx, loan.ISBN); lookupErr != nil {
				if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "book not found").
						WithDetails(map[string]any{"isbn": loan.ISBN})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, lookupErr, "load book")
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "all copies already shelved").
				WithDetails(map[string]any{"isbn": loan.ISBN})
		}

		if loan.MemberRef != nil {
			if err := repo.RecordMemberReturn(ctx, *loan.MemberRef, days > 0); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record member return")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	loan.Status = enums.LoanStatusReturned
	loan.ReturnedDate = &now
	loan.FineAmount = fine

	return &ReturnResult{
		Loan:        loan,
		Fine:        fine,
		Overdue:     days > 0,
		DaysOverdue: days,
	}, nil
}

func (s *service) observeFailure(op string, err error) {
	if s.metrics == nil {
		return
	}
	code := string(pkgerrors.CodeInternal)
	if typed := pkgerrors.As(err); typed != nil {
		code = string(typed.Code())
	}
	s.metrics.ObserveFailure(op, code)
}

// daysOverdue counts whole and partial 24-hour periods past the due date.
// Two hours late is one day; 25 hours late is two.
func daysOverdue(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	return int(math.Ceil(now.Sub(due).Hours() / 24))
}
