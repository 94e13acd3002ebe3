package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/citylibrary/libraryops-backend/internal/reporting"
	"github.com/citylibrary/libraryops-backend/pkg/config"
	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/pagination"
)

type stubReports struct {
	summary       *reporting.MemberSummary
	summaryErr    error
	fines         []reporting.FineSummary
	available     []models.Book
	active        []models.Loan
	borrowedOn    []models.Loan
	returnedOn    []models.Loan
	borrowedOnDay time.Time
}

func (s *stubReports) DashboardStats(ctx context.Context) (*reporting.DashboardStats, error) {
	return &reporting.DashboardStats{}, nil
}
func (s *stubReports) ActiveBorrowings(ctx context.Context) ([]models.Loan, error) {
	return s.active, nil
}
func (s *stubReports) MemberSummary(ctx context.Context, code string) (*reporting.MemberSummary, error) {
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	return s.summary, nil
}
func (s *stubReports) MembersWithFines(ctx context.Context) ([]reporting.FineSummary, error) {
	return s.fines, nil
}
func (s *stubReports) BorrowedOnDate(ctx context.Context, day time.Time) ([]models.Loan, error) {
	s.borrowedOnDay = day
	return s.borrowedOn, nil
}
func (s *stubReports) ReturnedOnDate(ctx context.Context, day time.Time) ([]models.Loan, error) {
	return s.returnedOn, nil
}
func (s *stubReports) AvailableBooks(ctx context.Context, limit int) ([]models.Book, error) {
	if limit > 0 && len(s.available) > limit {
		return s.available[:limit], nil
	}
	return s.available, nil
}
func (s *stubReports) AllTransactions(ctx context.Context, params pagination.Params) ([]models.Loan, *pagination.Cursor, error) {
	return nil, nil, nil
}

func testLibrary() config.LibraryConfig {
	return config.LibraryConfig{
		Name:    "City Library - Diyathalawa",
		Address: "No.123 , Haputhale road , Diyathalawa",
		Phone:   "+94 57 234 5678",
		Email:   "citylibrary@gmail.com",
		Hours:   []string{"Mon – Fri: 9:00 AM – 7:00 PM", "Sunday & Public Holidays: Closed"},
	}
}

func newTestService(t *testing.T, reports *stubReports) *service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Reports: reports,
		Library: testLibrary(),
		Lending: config.LendingConfig{FinePerDay: 100, DefaultDueDays: 14},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.(*service)
}

func memberFixture() *reporting.MemberSummary {
	member := &models.Member{
		ID:         uuid.New(),
		MemberCode: "MEM20261234",
		Name:       "Kasun Perera",
	}
	return &reporting.MemberSummary{Member: member, TotalFinePaid: decimal.Zero}
}

func TestHandleRejectsEmptyMessage(t *testing.T) {
	svc := newTestService(t, &stubReports{})
	_, err := svc.Handle(context.Background(), "   ", "")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandleHoursUsesLibraryFacts(t *testing.T) {
	svc := newTestService(t, &stubReports{})
	resp, err := svc.Handle(context.Background(), "What time do you open?", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Intent != IntentHours {
		t.Fatalf("expected hours intent, got %s", resp.Intent)
	}
	if !strings.Contains(resp.Reply, "Mon – Fri: 9:00 AM – 7:00 PM") ||
		!strings.Contains(resp.Reply, "Haputhale road") {
		t.Fatalf("reply missing library facts: %q", resp.Reply)
	}
}

func TestHandleMemberScopedWithoutIDAsksForIt(t *testing.T) {
	svc := newTestService(t, &stubReports{})
	resp, err := svc.Handle(context.Background(), "Does this member have any overdue books?", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Reply, "please provide the member ID") {
		t.Fatalf("expected clarification reply, got %q", resp.Reply)
	}
}

func TestHandleUnknownMemberIsAReplyNotAnError(t *testing.T) {
	reports := &stubReports{
		summaryErr: pkgerrors.New(pkgerrors.CodeNotFound, "member not found"),
	}
	svc := newTestService(t, reports)
	resp, err := svc.Handle(context.Background(), "give me a summary", "MEM20269999")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Reply, "couldn't find a member with ID MEM20269999") {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
}

func TestHandleOverdueEstimatesFines(t *testing.T) {
	summary := memberFixture()
	due := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	summary.History = []models.Loan{{
		BookTitle:    "Dune",
		ISBN:         "978-1-234-567890-1",
		BorrowerName: summary.Member.Name,
		Status:       enums.LoanStatusActive,
		BorrowedDate: due.Add(-14 * 24 * time.Hour),
		DueDate:      due,
	}}
	svc := newTestService(t, &stubReports{summary: summary})
	// 2 days and 2 hours past due rounds up to 3 chargeable days.
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 3, 2, 0, 0, 0, time.UTC)
	}

	resp, err := svc.Handle(context.Background(), "any overdue books?", "MEM20261234")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Reply, "Overdue  : 3 day(s)") {
		t.Fatalf("expected 3 overdue days, got %q", resp.Reply)
	}
	if !strings.Contains(resp.Reply, "Fine est.: Rs. 300") {
		t.Fatalf("expected fine estimate 300, got %q", resp.Reply)
	}
}

func TestHandleSummaryUsesLedgerNumbers(t *testing.T) {
	summary := memberFixture()
	summary.CurrentBorrowed = 2
	summary.TotalBorrowed = 7
	summary.OverdueBooks = 1
	// The cached counters disagree on purpose; replies come from the ledger.
	summary.Member.BorrowedBooks = 99
	svc := newTestService(t, &stubReports{summary: summary})

	resp, err := svc.Handle(context.Background(), "member activity please", "MEM20261234")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Reply, "Current borrowed books: 2") ||
		!strings.Contains(resp.Reply, "Total books ever borrowed: 7") ||
		!strings.Contains(resp.Reply, "Overdue cases on record: 1") {
		t.Fatalf("unexpected summary: %q", resp.Reply)
	}
}

func TestHandleHistoryCapsAtThirty(t *testing.T) {
	summary := memberFixture()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 35; i++ {
		summary.History = append(summary.History, models.Loan{
			BookTitle:    "Volume",
			ISBN:         "978-1-234-567890-1",
			Status:       enums.LoanStatusActive,
			BorrowedDate: base.Add(time.Duration(i) * time.Hour),
			DueDate:      base.Add(14 * 24 * time.Hour),
		})
	}
	svc := newTestService(t, &stubReports{summary: summary})

	resp, err := svc.Handle(context.Background(), "what books has this member borrowed", "MEM20261234")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Reply, "latest 30 record(s)") {
		t.Fatalf("expected capped history, got %q", resp.Reply[:80])
	}
	if strings.Contains(resp.Reply, "#31") {
		t.Fatal("history exceeded cap")
	}
}

func TestHandleBorrowedOnDateParsesTheDay(t *testing.T) {
	reports := &stubReports{}
	svc := newTestService(t, reports)

	resp, err := svc.Handle(context.Background(), "What are the borrowed books on 15th Jan 2026", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reports.borrowedOnDay.Format("2006-01-02") != "2026-01-15" {
		t.Fatalf("expected day forwarded, got %v", reports.borrowedOnDay)
	}
	if !strings.Contains(resp.Reply, "No books were recorded as borrowed on Thu Jan 15 2026") {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
}

func TestHandleBorrowedOnDateWithoutDateAsksForFormat(t *testing.T) {
	svc := newTestService(t, &stubReports{})
	resp, err := svc.Handle(context.Background(), "what were the borrowed books on that day", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Reply, "specify the date more clearly") {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
}

func TestHandleGeneralFallback(t *testing.T) {
	svc := newTestService(t, &stubReports{})
	resp, err := svc.Handle(context.Background(), "tell me a joke", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Intent != IntentGeneral {
		t.Fatalf("expected general intent, got %s", resp.Intent)
	}
	if !strings.Contains(resp.Reply, "What time do you open?") {
		t.Fatalf("expected help text, got %q", resp.Reply)
	}
}
