package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
)

// Repository exposes persistence helpers for the book catalog.
type Repository interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	GetByISBN(ctx context.Context, isbn string) (*models.Book, error)
	List(ctx context.Context) ([]models.Book, error)
	Search(ctx context.Context, query string) ([]models.Book, error)
	Save(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	ISBNExists(ctx context.Context, isbn string) (bool, error)
	ActiveLoanCount(ctx context.Context, isbn string) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repositoryImpl) GetByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "isbn = ?", isbn).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repositoryImpl) List(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&books).Error
	return books, err
}

func (r *repositoryImpl) Search(ctx context.Context, query string) ([]models.Book, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var books []models.Book
	err := r.db.WithContext(ctx).
		Where(
			"LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ? OR LOWER(COALESCE(genre, '')) LIKE ?",
			pattern, pattern, pattern, pattern,
		).
		Order("title ASC").
		Find(&books).Error
	return books, err
}

func (r *repositoryImpl) Save(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Book{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) ISBNExists(ctx context.Context, isbn string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Book{}).Where("isbn = ?", isbn).Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) ActiveLoanCount(ctx context.Context, isbn string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("isbn = ? AND status = ?", isbn, enums.LoanStatusActive).
		Count(&count).Error
	return count, err
}
