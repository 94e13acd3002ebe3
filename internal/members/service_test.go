package members

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:members_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Member{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newTestService(t *testing.T) *service {
	t.Helper()
	svc, err := NewService(NewRepository(newTestDB(t)), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.(*service)
}

func TestRegisterAssignsYearPrefixedCode(t *testing.T) {
	svc := newTestService(t)
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	}

	member, err := svc.Register(context.Background(), RegisterInput{
		Name:  "Kamal Perera",
		Email: "Kamal@Example.com",
		Phone: "0771234567",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.HasPrefix(member.MemberCode, "MEM2026") {
		t.Fatalf("unexpected member code %q", member.MemberCode)
	}
	if len(member.MemberCode) != len("MEM2026")+4 {
		t.Fatalf("expected four digit suffix, got %q", member.MemberCode)
	}
	if member.Email != "kamal@example.com" {
		t.Fatalf("expected lowercased email, got %q", member.Email)
	}
	if member.MembershipStatus != enums.MembershipStatusActive {
		t.Fatalf("expected active status, got %s", member.MembershipStatus)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	input := RegisterInput{Name: "First", Email: "shared@example.com", Phone: "071"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("register: %v", err)
	}
	input.Name = "Second"
	_, err := svc.Register(ctx, input)
	if err == nil {
		t.Fatal("expected conflict for duplicate email")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegisterRetriesCodeCollision(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	codes := []string{"MEM20260001", "MEM20260001", "MEM20260002"}
	calls := 0
	svc.newCode = func(int) string {
		code := codes[calls%len(codes)]
		calls++
		return code
	}

	first, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Phone: "1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.MemberCode != "MEM20260001" {
		t.Fatalf("unexpected code %q", first.MemberCode)
	}

	second, err := svc.Register(ctx, RegisterInput{Name: "B", Email: "b@example.com", Phone: "2"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if second.MemberCode != "MEM20260002" {
		t.Fatalf("expected collision retry, got %q", second.MemberCode)
	}
}

func TestLookupsAreCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{
		Name: "Nadeesha", Email: "nadeesha@example.com", Phone: "077",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	byEmail, err := svc.GetByEmail(ctx, "NADEESHA@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != registered.ID {
		t.Fatal("email lookup returned wrong member")
	}

	byCode, err := svc.GetByCode(ctx, strings.ToLower(registered.MemberCode))
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if byCode.ID != registered.ID {
		t.Fatal("code lookup returned wrong member")
	}
}

func TestGetMissingMember(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateMembershipStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	member, err := svc.Register(ctx, RegisterInput{
		Name: "Suspend Me", Email: "suspend@example.com", Phone: "070",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	suspended := enums.MembershipStatusSuspended
	updated, err := svc.Update(ctx, member.ID, UpdateInput{MembershipStatus: &suspended})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.MembershipStatus != enums.MembershipStatusSuspended {
		t.Fatalf("expected suspended, got %s", updated.MembershipStatus)
	}

	bogus := enums.MembershipStatus("revoked")
	if _, err := svc.Update(ctx, member.ID, UpdateInput{MembershipStatus: &bogus}); err == nil {
		t.Fatal("expected validation error for unknown status")
	}
}

func TestSearchMembers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	names := []string{"Amara Silva", "Bimal Silva", "Chathura Fernando"}
	for i, name := range names {
		_, err := svc.Register(ctx, RegisterInput{
			Name:  name,
			Email: strings.ToLower(strings.Fields(name)[0]) + "@example.com",
			Phone: string(rune('0' + i)),
		})
		if err != nil {
			t.Fatalf("register %q: %v", name, err)
		}
	}

	results, err := svc.Search(ctx, "silva")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "Amara Silva" {
		t.Fatalf("expected name-ordered results, got %q first", results[0].Name)
	}
}
