package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/citylibrary/libraryops-backend/internal/members"
	"github.com/citylibrary/libraryops-backend/internal/reporting"
	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
)

type testMemberService struct {
	registerFn   func(ctx context.Context, input members.RegisterInput) (*models.Member, error)
	listFn       func(ctx context.Context) ([]models.Member, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*models.Member, error)
	getByEmailFn func(ctx context.Context, email string) (*models.Member, error)
	getByCodeFn  func(ctx context.Context, code string) (*models.Member, error)
	updateFn     func(ctx context.Context, id uuid.UUID, input members.UpdateInput) (*models.Member, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
	searchFn     func(ctx context.Context, query string) ([]models.Member, error)
}

func (s *testMemberService) Register(ctx context.Context, input members.RegisterInput) (*models.Member, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, input)
	}
	return nil, nil
}

func (s *testMemberService) List(ctx context.Context) ([]models.Member, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *testMemberService) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, nil
}

func (s *testMemberService) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	if s.getByEmailFn != nil {
		return s.getByEmailFn(ctx, email)
	}
	return nil, nil
}

func (s *testMemberService) GetByCode(ctx context.Context, code string) (*models.Member, error) {
	if s.getByCodeFn != nil {
		return s.getByCodeFn(ctx, code)
	}
	return nil, nil
}

func (s *testMemberService) Update(ctx context.Context, id uuid.UUID, input members.UpdateInput) (*models.Member, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, input)
	}
	return nil, nil
}

func (s *testMemberService) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

func (s *testMemberService) Search(ctx context.Context, query string) ([]models.Member, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, query)
	}
	return nil, nil
}

func TestRegisterMemberSuccess(t *testing.T) {
	var captured members.RegisterInput
	svc := &testMemberService{
		registerFn: func(ctx context.Context, input members.RegisterInput) (*models.Member, error) {
			captured = input
			return &models.Member{MemberCode: "MEM20260042", Name: input.Name}, nil
		},
	}

	body := `{"name":"Nimal Perera","email":"nimal@example.com","phone":"+94 77 123 4567"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/members/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	RegisterMember(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Email != "nimal@example.com" {
		t.Fatalf("unexpected email %q", captured.Email)
	}
	var envelope struct {
		Data struct {
			Message string        `json:"message"`
			Member  models.Member `json:"member"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Message != "Member registered successfully" {
		t.Fatalf("unexpected message %q", envelope.Data.Message)
	}
	if envelope.Data.Member.MemberCode != "MEM20260042" {
		t.Fatalf("unexpected member %+v", envelope.Data.Member)
	}
}

func TestRegisterMemberInvalidEmail(t *testing.T) {
	body := `{"name":"Nimal","email":"not-an-email","phone":"123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/members/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	RegisterMember(&testMemberService{}, testControllerLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUpdateMemberInvalidStatus(t *testing.T) {
	id := uuid.New()
	body := `{"membershipStatus":"frozen"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/members/"+id.String(), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = addRouteParam(req, "memberId", id.String())
	resp := httptest.NewRecorder()
	UpdateMember(&testMemberService{}, testControllerLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMemberSummaryResolvesCode(t *testing.T) {
	id := uuid.New()
	memberSvc := &testMemberService{
		getFn: func(ctx context.Context, got uuid.UUID) (*models.Member, error) {
			if got != id {
				t.Fatalf("unexpected id %s", got)
			}
			return &models.Member{ID: id, MemberCode: "MEM20260042"}, nil
		},
	}
	reportSvc := &summaryReportingService{
		summaryFn: func(ctx context.Context, code string) (*reporting.MemberSummary, error) {
			if code != "MEM20260042" {
				t.Fatalf("unexpected member code %q", code)
			}
			return &reporting.MemberSummary{CurrentBorrowed: 2}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/"+id.String()+"/summary", nil)
	req = addRouteParam(req, "memberId", id.String())
	resp := httptest.NewRecorder()
	MemberSummary(memberSvc, reportSvc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data reporting.MemberSummary `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.CurrentBorrowed != 2 {
		t.Fatalf("unexpected summary %+v", envelope.Data)
	}
}

func TestMemberSummaryUnknownMember(t *testing.T) {
	id := uuid.New()
	memberSvc := &testMemberService{
		getFn: func(ctx context.Context, got uuid.UUID) (*models.Member, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/"+id.String()+"/summary", nil)
	req = addRouteParam(req, "memberId", id.String())
	resp := httptest.NewRecorder()
	MemberSummary(memberSvc, &summaryReportingService{}, testControllerLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

// summaryReportingService overrides only the member summary lookup.
type summaryReportingService struct {
	testReportingService
	summaryFn func(ctx context.Context, memberCode string) (*reporting.MemberSummary, error)
}

func (s *summaryReportingService) MemberSummary(ctx context.Context, memberCode string) (*reporting.MemberSummary, error) {
	if s.summaryFn != nil {
		return s.summaryFn(ctx, memberCode)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
}
