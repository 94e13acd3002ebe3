package reporting

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	"github.com/citylibrary/libraryops-backend/pkg/pagination"
)

// Repository exposes the read-only queries behind dashboards and reports.
type Repository interface {
	CountBooks(ctx context.Context) (int64, error)
	CountBooksByStatus(ctx context.Context, status enums.BookStatus) (int64, error)
	CountLoans(ctx context.Context) (int64, error)
	CountActiveLoans(ctx context.Context) (int64, error)
	CountOverdueLoans(ctx context.Context, now time.Time) (int64, error)

	ActiveLoans(ctx context.Context) ([]models.Loan, error)
	MemberByCode(ctx context.Context, code string) (*models.Member, error)

	// LoansForMember matches by the member link, the member code, or, for
	// rows written before member linkage existed, an exact borrower name
	// with no link at all.
	LoansForMember(ctx context.Context, memberID uuid.UUID, code, name string) ([]models.Loan, error)

	FinedReturns(ctx context.Context) ([]models.Loan, error)
	LoansBorrowedBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error)
	LoansReturnedBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error)
	AvailableBooks(ctx context.Context, limit int) ([]models.Book, error)
	ListLoans(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Loan, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a reporting repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Book{}).Count(&count).Error
	return count, err
}

func (r *repositoryImpl) CountBooksByStatus(ctx context.Context, status enums.BookStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) CountLoans(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).Count(&count).Error
	return count, err
}

func (r *repositoryImpl) CountActiveLoans(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("status = ?", enums.LoanStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) CountOverdueLoans(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("status = ? AND due_date < ?", enums.LoanStatusActive, now).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) ActiveLoans(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.LoanStatusActive).
		Order("due_date ASC").
		Find(&loans).Error
	return loans, err
}

func (r *repositoryImpl) MemberByCode(ctx context.Context, code string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("UPPER(member_code) = ?", strings.ToUpper(code)).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) LoansForMember(ctx context.Context, memberID uuid.UUID, code, name string) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where(
			"member_ref = ? OR member_code = ? OR (member_ref IS NULL AND member_code IS NULL AND borrower_name = ?)",
			memberID, code, name,
		).
		Order("borrowed_date DESC").
		Find(&loans).Error
	return loans, err
}

func (r *repositoryImpl) FinedReturns(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ? AND fine_amount > 0", enums.LoanStatusReturned).
		Order("returned_date DESC").
		Find(&loans).Error
	return loans, err
}

func (r *repositoryImpl) LoansBorrowedBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("borrowed_date >= ? AND borrowed_date < ?", from, to).
		Order("borrowed_date ASC").
		Find(&loans).Error
	return loans, err
}

func (r *repositoryImpl) LoansReturnedBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("returned_date IS NOT NULL AND returned_date >= ? AND returned_date < ?", from, to).
		Order("returned_date ASC").
		Find(&loans).Error
	return loans, err
}

func (r *repositoryImpl) AvailableBooks(ctx context.Context, limit int) ([]models.Book, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.BookStatusAvailable).
		Order("title ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var books []models.Book
	err := query.Find(&books).Error
	return books, err
}

func (r *repositoryImpl) ListLoans(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Loan, error) {
	query := r.db.WithContext(ctx).Model(&models.Loan{})
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var loans []models.Loan
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&loans).Error
	return loans, err
}
