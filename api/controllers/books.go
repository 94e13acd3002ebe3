package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citylibrary/libraryops-backend/api/responses"
	"github.com/citylibrary/libraryops-backend/api/validators"
	"github.com/citylibrary/libraryops-backend/internal/catalog"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
)

type createBookPayload struct {
	ISBN            string  `json:"isbn"`
	Title           string  `json:"title" validate:"required"`
	Author          string  `json:"author" validate:"required"`
	Genre           *string `json:"genre"`
	ShelfLocation   string  `json:"shelfLocation" validate:"required"`
	TotalCopies     int     `json:"totalCopies" validate:"omitempty,min=1"`
	AvailableCopies *int    `json:"availableCopies"`
}

type updateBookPayload struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	Genre           *string `json:"genre"`
	ShelfLocation   *string `json:"shelfLocation"`
	TotalCopies     *int    `json:"totalCopies" validate:"omitempty,min=1"`
	AvailableCopies *int    `json:"availableCopies"`
}

// ListBooks returns the catalog, newest first.
func ListBooks(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		books, err := svc.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, books)
	}
}

// SearchBooks matches the query against title, author, ISBN and genre.
func SearchBooks(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query, err := validators.RequireQuery(r, "query")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		books, err := svc.Search(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, books)
	}
}

// GetBook returns one catalog entry.
func GetBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := parseIDParam(r, "bookId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		book, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, book)
	}
}

// CreateBook adds a catalog entry, generating an ISBN when none is sent.
func CreateBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload createBookPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		book, err := svc.Create(ctx, catalog.CreateBookInput{
			ISBN:            payload.ISBN,
			Title:           payload.Title,
			Author:          payload.Author,
			Genre:           payload.Genre,
			ShelfLocation:   payload.ShelfLocation,
			TotalCopies:     payload.TotalCopies,
			AvailableCopies: payload.AvailableCopies,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"message": "Book added successfully",
			"book":    book,
		})
	}
}

// UpdateBook applies a partial edit.
func UpdateBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := parseIDParam(r, "bookId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload updateBookPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		book, err := svc.Update(ctx, id, catalog.UpdateBookInput{
			Title:           payload.Title,
			Author:          payload.Author,
			Genre:           payload.Genre,
			ShelfLocation:   payload.ShelfLocation,
			TotalCopies:     payload.TotalCopies,
			AvailableCopies: payload.AvailableCopies,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message": "Book updated successfully",
			"book":    book,
		})
	}
}

// DeleteBook removes a catalog entry.
func DeleteBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := parseIDParam(r, "bookId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Delete(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message": "Book deleted successfully",
		})
	}
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid id").
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
