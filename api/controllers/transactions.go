package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/citylibrary/libraryops-backend/api/responses"
	"github.com/citylibrary/libraryops-backend/api/validators"
	"github.com/citylibrary/libraryops-backend/internal/lending"
	"github.com/citylibrary/libraryops-backend/internal/reporting"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
	"github.com/citylibrary/libraryops-backend/pkg/pagination"
)

type borrowPayload struct {
	ISBN         string  `json:"isbn" validate:"required"`
	MemberID     *string `json:"member_id"`
	BorrowerName *string `json:"borrower_name"`
	DueDays      *int    `json:"due_days" validate:"omitempty,min=1,max=365"`
}

type returnPayload struct {
	TransactionID string `json:"transaction_id" validate:"required"`
}

// ListTransactions pages through the ledger, newest first.
func ListTransactions(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		loans, next, err := svc.AllTransactions(ctx, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		payload := map[string]any{"transactions": loans}
		if next != nil {
			payload["next_cursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}

// ActiveTransactions lists open loans ordered by due date.
func ActiveTransactions(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		loans, err := svc.ActiveBorrowings(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, loans)
	}
}

// DashboardStats returns the landing-page counters.
func DashboardStats(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		stats, err := svc.DashboardStats(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// BorrowBook opens a loan against an available copy.
func BorrowBook(svc lending.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload borrowPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input := lending.BorrowInput{
			ISBN:       payload.ISBN,
			MemberCode: payload.MemberID,
			DueDays:    payload.DueDays,
		}
		if payload.BorrowerName != nil {
			input.BorrowerName = *payload.BorrowerName
		}
		loan, err := svc.Borrow(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"message":     "Book borrowed successfully",
			"transaction": loan,
		})
	}
}

// ReturnBook closes a loan and reports the fine, if any.
func ReturnBook(svc lending.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload returnPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		loanID, err := uuid.Parse(strings.TrimSpace(payload.TransactionID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction id"))
			return
		}
		result, err := svc.Return(ctx, loanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message":     "Book returned successfully",
			"transaction": result.Loan,
			"fineAmount":  result.Fine,
		})
	}
}
