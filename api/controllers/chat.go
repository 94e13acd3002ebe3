package controllers

import (
	"net/http"

	"github.com/citylibrary/libraryops-backend/api/responses"
	"github.com/citylibrary/libraryops-backend/api/validators"
	"github.com/citylibrary/libraryops-backend/internal/chat"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
)

type chatPayload struct {
	Message  string `json:"message" validate:"required"`
	MemberID string `json:"member_id"`
}

// Chat answers a single desk question.
func Chat(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload chatPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp, err := svc.Handle(ctx, payload.Message, payload.MemberID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
