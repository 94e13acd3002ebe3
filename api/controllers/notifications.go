package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/citylibrary/libraryops-backend/api/responses"
	"github.com/citylibrary/libraryops-backend/api/validators"
	"github.com/citylibrary/libraryops-backend/internal/notify"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
)

type loanReminderPayload struct {
	TransactionID string `json:"transaction_id" validate:"required"`
}

// SendLoanReminder emails the member linked to an active loan.
func SendLoanReminder(svc notify.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload loanReminderPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		loanID, err := uuid.Parse(strings.TrimSpace(payload.TransactionID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction id"))
			return
		}
		result, err := svc.SendLoanReminder(ctx, loanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		message := "Reminder sent"
		if result.Simulated {
			message = "Reminder simulated (mail delivery not configured)"
		}
		responses.WriteSuccess(w, map[string]any{
			"message":  message,
			"reminder": result,
		})
	}
}
