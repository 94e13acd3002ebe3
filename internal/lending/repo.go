package lending

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
)

// Repository exposes the persistence primitives of the loan lifecycle. The
// mutating helpers are all conditional single-statement updates so that two
// racing requests can never both succeed on the same copy or the same loan.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	BookByISBN(ctx context.Context, isbn string) (*models.Book, error)
	MemberByCode(ctx context.Context, code string) (*models.Member, error)
	LoanByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	CreateLoan(ctx context.Context, loan *models.Loan) error

	// TakeCopy decrements available_copies by one, guarded by
	// available_copies > 0. Returns false when no copy was free.
	TakeCopy(ctx context.Context, isbn string, borrower string, borrowed, due time.Time) (bool, error)

	// ReturnCopy increments available_copies by one, guarded by
	// available_copies < total_copies. Returns false when the book was
	// already fully shelved.
	ReturnCopy(ctx context.Context, isbn string) (bool, error)

	// CloseLoan flips an active loan to returned, recording the return
	// date and fine. Returns false when the loan was not active.
	CloseLoan(ctx context.Context, id uuid.UUID, returnedAt time.Time, fine decimal.Decimal) (bool, error)

	RecordMemberBorrow(ctx context.Context, memberID uuid.UUID) error
	RecordMemberReturn(ctx context.Context, memberID uuid.UUID, wasOverdue bool) error

	// ActiveLoanCountForMember counts the member's open loans.
	ActiveLoanCountForMember(ctx context.Context, memberID uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a lending repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) BookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "isbn = ?", isbn).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repositoryImpl) MemberByCode(ctx context.Context, code string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("UPPER(member_code) = UPPER(?)", code).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) LoanByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).First(&loan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repositoryImpl) CreateLoan(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

func (r *repositoryImpl) TakeCopy(ctx context.Context, isbn string, borrower string, borrowed, due time.Time) (bool, error) {
	// SET expressions evaluate against the old row in both dialects, so the
	// status CASE sees the pre-decrement count.
	result := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("isbn = ? AND available_copies > 0", isbn).
		Updates(map[string]any{
			"available_copies": gorm.Expr("available_copies - 1"),
			"status": gorm.Expr(
				"CASE WHEN available_copies - 1 = 0 THEN ? ELSE ? END",
				enums.BookStatusBorrowed, enums.BookStatusAvailable,
			),
			"borrower_name": borrower,
			"borrowed_date": borrowed,
			"due_date":      due,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) ReturnCopy(ctx context.Context, isbn string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("isbn = ? AND available_copies < total_copies", isbn).
		Updates(map[string]any{
			"available_copies": gorm.Expr("available_copies + 1"),
			"status":           enums.BookStatusAvailable,
			"borrower_name":    nil,
			"borrowed_date":    nil,
			"due_date":         nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) CloseLoan(ctx context.Context, id uuid.UUID, returnedAt time.Time, fine decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ? AND status = ?", id, enums.LoanStatusActive).
		Updates(map[string]any{
			"status":        enums.LoanStatusReturned,
			"returned_date": returnedAt,
			"fine_amount":   fine,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) ActiveLoanCountForMember(ctx context.Context, memberID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("member_ref = ? AND status = ?", memberID, enums.LoanStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) RecordMemberBorrow(ctx context.Context, memberID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", memberID).
		Updates(map[string]any{
			"borrowed_books": gorm.Expr("borrowed_books + 1"),
			"total_borrowed": gorm.Expr("total_borrowed + 1"),
		}).Error
}

func (r *repositoryImpl) RecordMemberReturn(ctx context.Context, memberID uuid.UUID, wasOverdue bool) error {
	updates := map[string]any{
		"borrowed_books": gorm.Expr(
			"CASE WHEN borrowed_books > 0 THEN borrowed_books - 1 ELSE 0 END",
		),
	}
	// overdue_books is a cumulative "overdue cases on record" tally,
	// so a late return adds to it.
	if wasOverdue {
		updates["overdue_books"] = gorm.Expr("overdue_books + 1")
	}
	return r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", memberID).
		Updates(updates).Error
}
