package models

import (
	"time"

	"github.com/google/uuid"
)

// ExpenseStatus is the lifecycle state of an expense claim.
type ExpenseStatus string

const (
	ExpenseDraft    ExpenseStatus = "DRAFT"
	ExpensePending  ExpenseStatus = "PENDING"
	ExpenseApproved ExpenseStatus = "APPROVED"
	ExpenseRejected ExpenseStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s ExpenseStatus) Terminal() bool {
	return s == ExpenseApproved || s == ExpenseRejected
}

// StepStatus is the state of a single approval step.
type StepStatus string

const (
	StepPending  StepStatus = "PENDING"
	StepApproved StepStatus = "APPROVED"
	StepRejected StepStatus = "REJECTED"
	StepSkipped  StepStatus = "SKIPPED"
)

// Expense is one claim routed through the approval workflow. Amounts are
// stored as integer cents to keep the fixed 2-decimal precision exact.
type Expense struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmitterID uuid.UUID `gorm:"type:uuid;index"`
	CompanyID   uuid.UUID `gorm:"type:uuid;index"`

	AmountCents  int64
	CurrencyCode string `gorm:"size:8"`
	// ConvertedCents is the amount in company currency; when conversion is
	// unavailable it carries the original amount unconverted.
	ConvertedCents *int64

	Category     string `gorm:"size:64"`
	Description  string
	MerchantName string `gorm:"size:255"`
	OCRText      string
	ExpenseDate  time.Time

	Status    ExpenseStatus  `gorm:"size:16;default:'DRAFT'"`
	Steps     []ApprovalStep `gorm:"foreignKey:ExpenseID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApprovalStep is the per-expense instantiation of a stage. Sequence is
// contiguous 1..N within its expense; status transitions away from PENDING
// exactly once, stamping ActedAt.
type ApprovalStep struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ExpenseID  uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_expense_seq"`
	Sequence   int        `gorm:"uniqueIndex:idx_expense_seq"`
	ApproverID uuid.UUID  `gorm:"type:uuid;index"`
	Status     StepStatus `gorm:"size:16;default:'PENDING'"`
	Comment    string
	ActedAt    *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
