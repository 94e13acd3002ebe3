package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citylibrary/libraryops-backend/api/responses"
	"github.com/citylibrary/libraryops-backend/api/validators"
	"github.com/citylibrary/libraryops-backend/internal/members"
	"github.com/citylibrary/libraryops-backend/internal/reporting"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
)

type registerMemberPayload struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   string  `json:"phone" validate:"required"`
	Address *string `json:"address"`
}

type updateMemberPayload struct {
	Name             *string `json:"name"`
	Email            *string `json:"email" validate:"omitempty,email"`
	Phone            *string `json:"phone"`
	Address          *string `json:"address"`
	MembershipStatus *string `json:"membershipStatus"`
}

// RegisterMember creates a membership and issues the member code.
func RegisterMember(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload registerMemberPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		member, err := svc.Register(ctx, members.RegisterInput{
			Name:    payload.Name,
			Email:   payload.Email,
			Phone:   payload.Phone,
			Address: payload.Address,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"message": "Member registered successfully",
			"member":  member,
		})
	}
}

// ListMembers returns every member, newest first.
func ListMembers(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		list, err := svc.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// SearchMembers matches the query against name, email, code and phone.
func SearchMembers(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query, err := validators.RequireQuery(r, "query")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		list, err := svc.Search(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetMemberByEmail looks a member up by email address.
func GetMemberByEmail(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		member, err := svc.GetByEmail(ctx, chi.URLParam(r, "email"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, member)
	}
}

// GetMember returns one member by row id.
func GetMember(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := parseIDParam(r, "memberId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		member, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, member)
	}
}

// UpdateMember applies a partial edit.
func UpdateMember(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := parseIDParam(r, "memberId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload updateMemberPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input := members.UpdateInput{
			Name:    payload.Name,
			Email:   payload.Email,
			Phone:   payload.Phone,
			Address: payload.Address,
		}
		if payload.MembershipStatus != nil {
			status, err := enums.ParseMembershipStatus(*payload.MembershipStatus)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid membership status"))
				return
			}
			input.MembershipStatus = &status
		}
		member, err := svc.Update(ctx, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message": "Member updated successfully",
			"member":  member,
		})
	}
}

// DeleteMember removes a membership.
func DeleteMember(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := parseIDParam(r, "memberId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Delete(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message": "Member deleted successfully",
		})
	}
}

// MemberSummary returns the ledger-derived rollup for a member. The path
// takes the row id; the reporting engine works from the member code, so
// the member is resolved first.
func MemberSummary(memberSvc members.Service, reportSvc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := parseIDParam(r, "memberId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		member, err := memberSvc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		summary, err := reportSvc.MemberSummary(ctx, member.MemberCode)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
