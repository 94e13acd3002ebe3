package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reporting_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Book{}, &models.Member{}, &models.Loan{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newTestService(t *testing.T) (*service, *gorm.DB) {
	t.Helper()
	gdb := newTestDB(t)
	svc, err := NewService(NewRepository(gdb))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.(*service), gdb
}

func seedLoan(t *testing.T, gdb *gorm.DB, loan models.Loan) models.Loan {
	t.Helper()
	if loan.ISBN == "" {
		loan.ISBN = "978-1-100-100001-0"
	}
	if loan.BookTitle == "" {
		loan.BookTitle = "Some Title"
	}
	if loan.Status == "" {
		loan.Status = enums.LoanStatusActive
	}
	if err := gdb.Create(&loan).Error; err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	return loan
}

func TestDashboardStats(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	books := []models.Book{
		{ISBN: "978-1", Title: "A", Author: "X", ShelfLocation: "S", Status: enums.BookStatusAvailable, TotalCopies: 2, AvailableCopies: 2},
		{ISBN: "978-2", Title: "B", Author: "Y", ShelfLocation: "S", Status: enums.BookStatusBorrowed, TotalCopies: 1, AvailableCopies: 0},
	}
	for i := range books {
		if err := gdb.Create(&books[i]).Error; err != nil {
			t.Fatalf("seed book: %v", err)
		}
	}
	returned := now.Add(-time.Hour)
	seedLoan(t, gdb, models.Loan{BorrowerName: "P", BorrowedDate: now.Add(-48 * time.Hour), DueDate: now.Add(-time.Hour)})
	seedLoan(t, gdb, models.Loan{BorrowerName: "Q", BorrowedDate: now.Add(-24 * time.Hour), DueDate: now.Add(13 * 24 * time.Hour)})
	seedLoan(t, gdb, models.Loan{
		BorrowerName: "R", Status: enums.LoanStatusReturned,
		BorrowedDate: now.Add(-72 * time.Hour), DueDate: now.Add(-24 * time.Hour),
		ReturnedDate: &returned, FineAmount: decimal.NewFromInt(100),
	})

	stats, err := svc.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TotalBooks != 2 || stats.AvailableBooks != 1 || stats.BorrowedBooks != 1 {
		t.Fatalf("unexpected book counts: %+v", stats)
	}
	if stats.TotalTransactions != 3 || stats.ActiveBorrowings != 2 || stats.OverdueBorrowings != 1 {
		t.Fatalf("unexpected loan counts: %+v", stats)
	}
}

func TestActiveBorrowingsOrderedByDueDate(t *testing.T) {
	svc, gdb := newTestService(t)
	base := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	seedLoan(t, gdb, models.Loan{BorrowerName: "Later", BorrowedDate: base, DueDate: base.Add(14 * 24 * time.Hour)})
	seedLoan(t, gdb, models.Loan{BorrowerName: "Sooner", BorrowedDate: base, DueDate: base.Add(7 * 24 * time.Hour)})

	loans, err := svc.ActiveBorrowings(context.Background())
	if err != nil {
		t.Fatalf("active borrowings: %v", err)
	}
	if len(loans) != 2 || loans[0].BorrowerName != "Sooner" {
		t.Fatalf("unexpected order: %+v", loans)
	}
}

func TestMemberSummaryIncludesLegacyRows(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	member := models.Member{
		MemberCode: "MEM20260042", Name: "Ishara Jay", Email: "ishara@example.com",
		Phone: "077", MembershipStatus: enums.MembershipStatusActive,
		// Stale cached counters; the summary must not read them.
		BorrowedBooks: 9, TotalBorrowed: 9,
	}
	if err := gdb.Create(&member).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}

	code := member.MemberCode
	returned := now.Add(-24 * time.Hour)

	// Linked active loan, overdue.
	seedLoan(t, gdb, models.Loan{
		BorrowerName: member.Name, MemberRef: &member.ID, MemberCode: &code,
		BorrowedDate: now.Add(-20 * 24 * time.Hour), DueDate: now.Add(-6 * 24 * time.Hour),
	})
	// Legacy row: same name, no link.
	seedLoan(t, gdb, models.Loan{
		BorrowerName: member.Name, Status: enums.LoanStatusReturned,
		BorrowedDate: now.Add(-40 * 24 * time.Hour), DueDate: now.Add(-30 * 24 * time.Hour),
		ReturnedDate: &returned, FineAmount: decimal.NewFromInt(500),
	})
	// Someone else entirely.
	seedLoan(t, gdb, models.Loan{
		BorrowerName: "Another Person",
		BorrowedDate: now.Add(-24 * time.Hour), DueDate: now.Add(13 * 24 * time.Hour),
	})

	summary, err := svc.MemberSummary(ctx, "mem20260042")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalBorrowed != 2 {
		t.Fatalf("expected 2 matched loans, got %d", summary.TotalBorrowed)
	}
	if summary.CurrentBorrowed != 1 || summary.OverdueBooks != 1 || summary.ReturnedBooks != 1 {
		t.Fatalf("unexpected rollup: %+v", summary)
	}
	if !summary.TotalFinePaid.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected fine total 500, got %s", summary.TotalFinePaid)
	}
	if len(summary.History) != 2 || summary.History[0].BorrowedDate.Before(summary.History[1].BorrowedDate) {
		t.Fatalf("expected newest-first history, got %+v", summary.History)
	}
}

func TestMemberSummaryUnknownMember(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.MemberSummary(context.Background(), "MEM20269999")
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMembersWithFinesGroupsAndSorts(t *testing.T) {
	svc, gdb := newTestService(t)
	base := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	code := "MEM20260007"

	mk := func(name string, memberCode *string, fine int64, returnedAt time.Time) {
		seedLoan(t, gdb, models.Loan{
			BorrowerName: name, MemberCode: memberCode,
			Status:       enums.LoanStatusReturned,
			BorrowedDate: returnedAt.Add(-20 * 24 * time.Hour),
			DueDate:      returnedAt.Add(-2 * 24 * time.Hour),
			ReturnedDate: &returnedAt,
			FineAmount:   decimal.NewFromInt(fine),
		})
	}
	mk("Linked Member", &code, 200, base)
	mk("Linked Member", &code, 300, base.Add(24*time.Hour))
	mk("Walk In", nil, 100, base.Add(48*time.Hour))
	// Zero-fine return must not appear.
	returned := base
	seedLoan(t, gdb, models.Loan{
		BorrowerName: "Good Citizen", Status: enums.LoanStatusReturned,
		BorrowedDate: base.Add(-7 * 24 * time.Hour), DueDate: base.Add(24 * time.Hour),
		ReturnedDate: &returned,
	})

	summaries, err := svc.MembersWithFines(context.Background())
	if err != nil {
		t.Fatalf("members with fines: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(summaries))
	}
	top := summaries[0]
	if top.MemberCode == nil || *top.MemberCode != code {
		t.Fatalf("expected linked member first, got %+v", top)
	}
	if !top.TotalFines.Equal(decimal.NewFromInt(500)) || top.FinedReturns != 2 {
		t.Fatalf("unexpected aggregation: %+v", top)
	}
	if !top.LatestReturn.Equal(base.Add(24 * time.Hour)) {
		t.Fatalf("expected latest return kept, got %v", top.LatestReturn)
	}
}

func TestBorrowedOnDateUsesLocalDayWindow(t *testing.T) {
	svc, gdb := newTestService(t)
	day := time.Date(2026, time.February, 5, 15, 30, 0, 0, time.UTC)

	seedLoan(t, gdb, models.Loan{
		BorrowerName: "In Window",
		BorrowedDate: time.Date(2026, time.February, 5, 23, 59, 0, 0, time.UTC),
		DueDate:      day.Add(14 * 24 * time.Hour),
	})
	seedLoan(t, gdb, models.Loan{
		BorrowerName: "Next Day",
		BorrowedDate: time.Date(2026, time.February, 6, 0, 1, 0, 0, time.UTC),
		DueDate:      day.Add(14 * 24 * time.Hour),
	})

	loans, err := svc.BorrowedOnDate(context.Background(), day)
	if err != nil {
		t.Fatalf("borrowed on date: %v", err)
	}
	if len(loans) != 1 || loans[0].BorrowerName != "In Window" {
		t.Fatalf("unexpected results: %+v", loans)
	}
}

func TestAllTransactionsPaginates(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		loan := models.Loan{
			BorrowerName: "Reader",
			BorrowedDate: base.Add(time.Duration(i) * time.Hour),
			DueDate:      base.Add(14 * 24 * time.Hour),
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}
		seedLoan(t, gdb, loan)
	}

	page, next, err := svc.AllTransactions(ctx, pagination.Params{Limit: 3})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 3 || next == nil {
		t.Fatalf("expected 3 rows and a cursor, got %d rows next=%v", len(page), next)
	}
	if page[0].CreatedAt.Before(page[1].CreatedAt) {
		t.Fatal("expected newest first")
	}

	rest, final, err := svc.AllTransactions(ctx, pagination.Params{
		Limit:  3,
		Cursor: pagination.EncodeCursor(*next),
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest) != 2 || final != nil {
		t.Fatalf("expected final 2 rows, got %d next=%v", len(rest), final)
	}

	if _, _, err := svc.AllTransactions(ctx, pagination.Params{Cursor: "not-a-cursor"}); err == nil {
		t.Fatal("expected validation error for bad cursor")
	}
}
