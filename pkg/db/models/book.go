package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/enums"
)

// Book is a catalog title with its copy counts. AvailableCopies and Status
// move together on every borrow/return: status is available exactly while
// available_copies > 0. The borrower fields mirror the latest active loan
// for display only; the loans table stays authoritative.
type Book struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ISBN            string           `gorm:"column:isbn;not null;uniqueIndex" json:"isbn"`
	Title           string           `gorm:"column:title;not null" json:"title"`
	Author          string           `gorm:"column:author;not null" json:"author"`
	Genre           *string          `gorm:"column:genre" json:"genre,omitempty"`
	ShelfLocation   string           `gorm:"column:shelf_location;not null" json:"shelfLocation"`
	Status          enums.BookStatus `gorm:"column:status;not null;default:available" json:"status"`
	TotalCopies     int              `gorm:"column:total_copies;not null;default:1" json:"totalCopies"`
	AvailableCopies int              `gorm:"column:available_copies;not null" json:"availableCopies"`
	BorrowerName    *string          `gorm:"column:borrower_name" json:"borrowerName,omitempty"`
	BorrowedDate    *time.Time       `gorm:"column:borrowed_date" json:"borrowedDate,omitempty"`
	DueDate         *time.Time       `gorm:"column:due_date" json:"dueDate,omitempty"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate assigns the row id client-side so the model works against
// both the Postgres and SQLite dialects.
func (b *Book) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
