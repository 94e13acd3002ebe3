package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/enums"
)

// Member is a registered borrower. MemberCode is the human-facing id
// (MEM<year><4 digits>) used on cards and in chat lookups. The three
// counters are a cache maintained inside lending transactions; reporting
// recomputes the real values from the loans table and never trusts them.
type Member struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MemberCode       string                 `gorm:"column:member_code;not null;uniqueIndex" json:"memberId"`
	Name             string                 `gorm:"column:name;not null" json:"name"`
	Email            string                 `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Phone            string                 `gorm:"column:phone;not null" json:"phone"`
	Address          *string                `gorm:"column:address" json:"address,omitempty"`
	MembershipDate   time.Time              `gorm:"column:membership_date;autoCreateTime" json:"membershipDate"`
	MembershipStatus enums.MembershipStatus `gorm:"column:membership_status;not null;default:active" json:"membershipStatus"`
	BorrowedBooks    int                    `gorm:"column:borrowed_books;not null;default:0" json:"borrowedBooks"`
	OverdueBooks     int                    `gorm:"column:overdue_books;not null;default:0" json:"overDueBooks"`
	TotalBorrowed    int                    `gorm:"column:total_borrowed;not null;default:0" json:"totalBorrowed"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (m *Member) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
