package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/db"
	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
)

// Attempts before giving up on finding an unused generated ISBN.
const maxISBNAttempts = 5

// Service defines catalog CRUD and search operations.
type Service interface {
	List(ctx context.Context) ([]models.Book, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Book, error)
	GetByISBN(ctx context.Context, isbn string) (*models.Book, error)
	Create(ctx context.Context, input CreateBookInput) (*models.Book, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string) ([]models.Book, error)
}

type service struct {
	repo    Repository
	logg    *logger.Logger
	newISBN func() string
}

// NewService wires catalog dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	return &service{repo: repo, logg: logg, newISBN: randomISBN}, nil
}

// CreateBookInput carries a new catalog entry. ISBN is optional: when empty
// a unique pseudo-ISBN is generated.
type CreateBookInput struct {
	ISBN            string
	Title           string
	Author          string
	Genre           *string
	ShelfLocation   string
	TotalCopies     int
	AvailableCopies *int
}

// UpdateBookInput applies partial edits; nil fields are left untouched.
type UpdateBookInput struct {
	Title           *string
	Author          *string
	Genre           *string
	ShelfLocation   *string
	TotalCopies     *int
	AvailableCopies *int
}

func (s *service) List(ctx context.Context) ([]models.Book, error) {
	books, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}
	return books, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return book, nil
}

func (s *service) GetByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	book, err := s.repo.GetByISBN(ctx, strings.TrimSpace(isbn))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return book, nil
}

func (s *service) Create(ctx context.Context, input CreateBookInput) (*models.Book, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if strings.TrimSpace(input.Author) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author required")
	}
	if strings.TrimSpace(input.ShelfLocation) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shelf location required")
	}

	total := input.TotalCopies
	if total <= 0 {
		total = 1
	}
	available := total
	if input.AvailableCopies != nil {
		available = *input.AvailableCopies
	}
	if available < 0 || available > total {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available copies out of range").
			WithDetails(map[string]any{"totalCopies": total})
	}

	isbn := strings.TrimSpace(input.ISBN)
	if isbn == "" {
		generated, err := s.generateISBN(ctx)
		if err != nil {
			return nil, err
		}
		isbn = generated
	}

	book := &models.Book{
		ISBN:            isbn,
		Title:           strings.TrimSpace(input.Title),
		Author:          strings.TrimSpace(input.Author),
		Genre:           input.Genre,
		ShelfLocation:   strings.TrimSpace(input.ShelfLocation),
		TotalCopies:     total,
		AvailableCopies: available,
		Status:          statusForCopies(available),
	}

	if err := s.repo.Create(ctx, book); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "isbn already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
	}
	return book, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		book.Title = strings.TrimSpace(*input.Title)
	}
	if input.Author != nil {
		book.Author = strings.TrimSpace(*input.Author)
	}
	if input.Genre != nil {
		book.Genre = input.Genre
	}
	if input.ShelfLocation != nil {
		book.ShelfLocation = strings.TrimSpace(*input.ShelfLocation)
	}
	if input.TotalCopies != nil {
		if *input.TotalCopies < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "total copies must be at least 1")
		}
		book.TotalCopies = *input.TotalCopies
	}
	if input.AvailableCopies != nil {
		book.AvailableCopies = *input.AvailableCopies
	}
	if book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available copies out of range").
			WithDetails(map[string]any{"totalCopies": book.TotalCopies})
	}
	book.Status = statusForCopies(book.AvailableCopies)

	if err := s.repo.Save(ctx, book); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
	}
	return book, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	book, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	// Deleting a title with loans still out orphans those ledger rows; the
	// original system allows it, so only a warning is raised here.
	if active, countErr := s.repo.ActiveLoanCount(ctx, book.ISBN); countErr == nil && active > 0 && s.logg != nil {
		wctx := s.logg.WithFields(ctx, map[string]any{"isbn": book.ISBN, "active_loans": active})
		s.logg.Warn(wctx, "deleting book with active loans")
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete book")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
	}
	return nil
}

func (s *service) Search(ctx context.Context, query string) ([]models.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query required")
	}
	books, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search books")
	}
	return books, nil
}

func (s *service) generateISBN(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxISBNAttempts; attempt++ {
		candidate := s.newISBN()
		exists, err := s.repo.ISBNExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check isbn uniqueness")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "failed to generate unique isbn")
}

func statusForCopies(available int) enums.BookStatus {
	if available > 0 {
		return enums.BookStatusAvailable
	}
	return enums.BookStatusBorrowed
}
