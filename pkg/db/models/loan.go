package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/enums"
)

// Loan is one borrow-to-return lifecycle of a single copy, keyed by a
// stable id. Earlier revisions of the system flipped a transactionType
// field in place on return; here the row keeps its identity and only the
// status moves from active to returned, with ReturnedDate and FineAmount
// frozen at that moment.
//
// MemberRef/MemberCode are nullable: legacy loans predate member linkage
// and carry only a borrower name. Title and borrower name are snapshots
// taken at borrow time so history survives catalog edits.
type Loan struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ISBN         string           `gorm:"column:isbn;not null;index" json:"isbn"`
	BookTitle    string           `gorm:"column:book_title;not null" json:"bookTitle"`
	BorrowerName string           `gorm:"column:borrower_name;not null" json:"borrowerName"`
	MemberRef    *uuid.UUID       `gorm:"column:member_ref;type:uuid;index" json:"member,omitempty"`
	MemberCode   *string          `gorm:"column:member_code;index" json:"memberId,omitempty"`
	Status       enums.LoanStatus `gorm:"column:status;not null;default:active;index" json:"status"`
	BorrowedDate time.Time        `gorm:"column:borrowed_date;not null;index" json:"borrowedDate"`
	DueDate      time.Time        `gorm:"column:due_date;not null;index" json:"dueDate"`
	ReturnedDate *time.Time       `gorm:"column:returned_date;index" json:"returnedDate,omitempty"`
	FineAmount   decimal.Decimal  `gorm:"column:fine_amount;type:numeric(10,2);not null;default:0" json:"fineAmount"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (l *Loan) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the loan is still out.
func (l Loan) IsActive() bool {
	return l.Status == enums.LoanStatusActive && l.ReturnedDate == nil
}

// IsOverdue reports whether an active loan has passed its due date.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.IsActive() && now.After(l.DueDate)
}

// TransactionType maps the lifecycle state onto the historical borrow/return
// vocabulary older API clients expect.
func (l Loan) TransactionType() string {
	if l.Status == enums.LoanStatusReturned {
		return "return"
	}
	return "borrow"
}

// MarshalJSON augments the row with the derived transactionType field.
func (l Loan) MarshalJSON() ([]byte, error) {
	type alias Loan
	return json.Marshal(struct {
		alias
		TransactionType string `json:"transactionType"`
	}{
		alias:           alias(l),
		TransactionType: l.TransactionType(),
	})
}
