package reporting

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/pagination"
)

// Top rows kept when aggregating fined members.
const finesLeaderboardSize = 50

// Service answers dashboard and report queries. Everything is recomputed
// from the ledger on each call; the cached member counters are never read.
type Service interface {
	DashboardStats(ctx context.Context) (*DashboardStats, error)
	ActiveBorrowings(ctx context.Context) ([]models.Loan, error)
	MemberSummary(ctx context.Context, memberCode string) (*MemberSummary, error)
	MembersWithFines(ctx context.Context) ([]FineSummary, error)
	BorrowedOnDate(ctx context.Context, day time.Time) ([]models.Loan, error)
	ReturnedOnDate(ctx context.Context, day time.Time) ([]models.Loan, error)
	AvailableBooks(ctx context.Context, limit int) ([]models.Book, error)
	AllTransactions(ctx context.Context, params pagination.Params) ([]models.Loan, *pagination.Cursor, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires the reporting engine.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reporting repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// DashboardStats is the landing-page counter block.
type DashboardStats struct {
	TotalBooks        int64 `json:"totalBooks"`
	AvailableBooks    int64 `json:"availableBooks"`
	BorrowedBooks     int64 `json:"borrowedBooks"`
	TotalTransactions int64 `json:"totalTransactions"`
	ActiveBorrowings  int64 `json:"activeBorrowings"`
	OverdueBorrowings int64 `json:"overdueBorrowings"`
}

// MemberSummary is the per-member ledger rollup.
type MemberSummary struct {
	Member          *models.Member  `json:"member"`
	CurrentBorrowed int             `json:"currentBorrowed"`
	TotalBorrowed   int             `json:"totalBorrowed"`
	ReturnedBooks   int             `json:"returnedBooks"`
	OverdueBooks    int             `json:"overDueBooks"`
	TotalFinePaid   decimal.Decimal `json:"totalFinePaid"`
	History         []models.Loan   `json:"history"`
}

// FineSummary is one row of the fined-members leaderboard, grouped by
// member code when the loan carries one and by borrower name otherwise.
type FineSummary struct {
	MemberCode   *string         `json:"memberId,omitempty"`
	BorrowerName string          `json:"borrowerName"`
	TotalFines   decimal.Decimal `json:"totalFines"`
	FinedReturns int             `json:"finedReturns"`
	LatestReturn time.Time       `json:"latestReturn"`
}

func (s *service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	var err error
	if stats.TotalBooks, err = s.repo.CountBooks(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count books")
	}
	if stats.AvailableBooks, err = s.repo.CountBooksByStatus(ctx, enums.BookStatusAvailable); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count available books")
	}
	if stats.BorrowedBooks, err = s.repo.CountBooksByStatus(ctx, enums.BookStatusBorrowed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count borrowed books")
	}
	if stats.TotalTransactions, err = s.repo.CountLoans(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count loans")
	}
	if stats.ActiveBorrowings, err = s.repo.CountActiveLoans(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active loans")
	}
	if stats.OverdueBorrowings, err = s.repo.CountOverdueLoans(ctx, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count overdue loans")
	}
	return stats, nil
}

func (s *service) ActiveBorrowings(ctx context.Context) ([]models.Loan, error) {
	loans, err := s.repo.ActiveLoans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active loans")
	}
	return loans, nil
}

func (s *service) MemberSummary(ctx context.Context, memberCode string) (*MemberSummary, error) {
	memberCode = strings.TrimSpace(memberCode)
	if memberCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	member, err := s.repo.MemberByCode(ctx, memberCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}

	loans, err := s.repo.LoansForMember(ctx, member.ID, member.MemberCode, member.Name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member loans")
	}

	now := s.now().UTC()
	summary := &MemberSummary{
		Member:        member,
		TotalBorrowed: len(loans),
		TotalFinePaid: decimal.Zero,
		History:       loans,
	}
	for _, loan := range loans {
		if loan.IsActive() {
			summary.CurrentBorrowed++
			if loan.IsOverdue(now) {
				summary.OverdueBooks++
			}
			continue
		}
		summary.ReturnedBooks++
		summary.TotalFinePaid = summary.TotalFinePaid.Add(loan.FineAmount)
	}
	return summary, nil
}

func (s *service) MembersWithFines(ctx context.Context) ([]FineSummary, error) {
	fined, err := s.repo.FinedReturns(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fined returns")
	}

	grouped := map[string]*FineSummary{}
	for _, loan := range fined {
		key := loan.BorrowerName
		if loan.MemberCode != nil {
			key = *loan.MemberCode
		}
		entry, ok := grouped[key]
		if !ok {
			entry = &FineSummary{
				MemberCode:   loan.MemberCode,
				BorrowerName: loan.BorrowerName,
				TotalFines:   decimal.Zero,
			}
			grouped[key] = entry
		}
		entry.TotalFines = entry.TotalFines.Add(loan.FineAmount)
		entry.FinedReturns++
		if loan.ReturnedDate != nil && loan.ReturnedDate.After(entry.LatestReturn) {
			entry.LatestReturn = *loan.ReturnedDate
		}
	}

	summaries := make([]FineSummary, 0, len(grouped))
	for _, entry := range grouped {
		summaries = append(summaries, *entry)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].TotalFines.Equal(summaries[j].TotalFines) {
			return summaries[i].TotalFines.GreaterThan(summaries[j].TotalFines)
		}
		return summaries[i].LatestReturn.After(summaries[j].LatestReturn)
	})
	if len(summaries) > finesLeaderboardSize {
		summaries = summaries[:finesLeaderboardSize]
	}
	return summaries, nil
}

func (s *service) BorrowedOnDate(ctx context.Context, day time.Time) ([]models.Loan, error) {
	from, to := dayBounds(day)
	loans, err := s.repo.LoansBorrowedBetween(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrowed on date")
	}
	return loans, nil
}

func (s *service) ReturnedOnDate(ctx context.Context, day time.Time) ([]models.Loan, error) {
	from, to := dayBounds(day)
	loans, err := s.repo.LoansReturnedBetween(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load returned on date")
	}
	return loans, nil
}

func (s *service) AvailableBooks(ctx context.Context, limit int) ([]models.Book, error) {
	books, err := s.repo.AvailableBooks(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load available books")
	}
	return books, nil
}

func (s *service) AllTransactions(ctx context.Context, params pagination.Params) ([]models.Loan, *pagination.Cursor, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	loans, err := s.repo.ListLoans(ctx, limit+1, cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list loans")
	}

	var next *pagination.Cursor
	if len(loans) > limit {
		loans = loans[:limit]
		last := loans[len(loans)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return loans, next, nil
}

// dayBounds returns the [midnight, next midnight) window containing day,
// in day's own location.
func dayBounds(day time.Time) (time.Time, time.Time) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return from, from.Add(24 * time.Hour)
}
