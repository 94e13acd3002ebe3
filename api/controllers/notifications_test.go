package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/citylibrary/libraryops-backend/internal/notify"
	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
)

type testNotifyService struct {
	sendFn func(ctx context.Context, loanID uuid.UUID) (*notify.ReminderResult, error)
}

func (s *testNotifyService) SendLoanReminder(ctx context.Context, loanID uuid.UUID) (*notify.ReminderResult, error) {
	if s.sendFn != nil {
		return s.sendFn(ctx, loanID)
	}
	return nil, nil
}

func TestSendLoanReminderDelivered(t *testing.T) {
	loanID := uuid.New()
	svc := &testNotifyService{
		sendFn: func(ctx context.Context, id uuid.UUID) (*notify.ReminderResult, error) {
			if id != loanID {
				t.Fatalf("unexpected loan id %s", id)
			}
			return &notify.ReminderResult{
				Loan:      &models.Loan{ID: loanID},
				Recipient: "nimal@example.com",
				Delivered: true,
			}, nil
		},
	}

	body := `{"transaction_id":"` + loanID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/loan-reminder", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	SendLoanReminder(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Message  string                `json:"message"`
			Reminder notify.ReminderResult `json:"reminder"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Message != "Reminder sent" {
		t.Fatalf("unexpected message %q", envelope.Data.Message)
	}
	if envelope.Data.Reminder.Recipient != "nimal@example.com" {
		t.Fatalf("unexpected recipient %q", envelope.Data.Reminder.Recipient)
	}
}

func TestSendLoanReminderSimulated(t *testing.T) {
	svc := &testNotifyService{
		sendFn: func(ctx context.Context, id uuid.UUID) (*notify.ReminderResult, error) {
			return &notify.ReminderResult{Simulated: true, Delivered: true}, nil
		},
	}

	body := `{"transaction_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/loan-reminder", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	SendLoanReminder(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Message != "Reminder simulated (mail delivery not configured)" {
		t.Fatalf("unexpected message %q", envelope.Data.Message)
	}
}

func TestSendLoanReminderInvalidID(t *testing.T) {
	body := `{"transaction_id":"nope"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/loan-reminder", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	SendLoanReminder(&testNotifyService{}, testControllerLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSendLoanReminderUnlinkedLoan(t *testing.T) {
	svc := &testNotifyService{
		sendFn: func(ctx context.Context, id uuid.UUID) (*notify.ReminderResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan has no linked member to notify")
		},
	}

	body := `{"transaction_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/loan-reminder", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	SendLoanReminder(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
