// Package models defines the persisted records for companies, their approval
// configuration, and the users acting inside them.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the position a user holds inside their company.
type Role string

const (
	// RoleAdmin can override any expense decision.
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// Approver role names usable in stage configuration. ApproverManager is
// resolved per submitter, the others through the company role table.
const (
	ApproverManager  = "MANAGER"
	ApproverFinance  = "FINANCE"
	ApproverDirector = "DIRECTOR"
	ApproverCFO      = "CFO"
)

// PolicyMode selects how an approval policy finalizes an expense early.
type PolicyMode string

const (
	// ModePercentage finalizes once the approved share of steps reaches
	// the configured threshold.
	ModePercentage PolicyMode = "PERCENTAGE"
	// ModeSpecific finalizes once a designated approver has approved.
	ModeSpecific PolicyMode = "SPECIFIC"
	// ModePercentageOrSpecific finalizes when either condition holds.
	ModePercentageOrSpecific PolicyMode = "PERCENTAGE_OR_SPECIFIC"
)

// Company is the tenant owning approval configuration.
type Company struct {
	// ID is the unique identifier for the company.
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`
	// Name is the company’s name.
	Name string `gorm:"size:255"`
	// CountryCode is the ISO country code given at signup.
	CountryCode string `gorm:"size:4"`
	// CurrencyCode is the company base currency, resolved from the country.
	CurrencyCode string `gorm:"size:8"`
	// ManagerFirstApprover prepends the submitter's manager to every chain.
	ManagerFirstApprover bool

	// Stages is the configured approval chain template, ordered by Sequence.
	Stages []ApproverStage `gorm:"foreignKey:CompanyID"`
	// RoleAssignments maps approver role names to concrete users.
	RoleAssignments []RoleAssignment `gorm:"foreignKey:CompanyID"`
	// Policy is the optional conditional finalization rule.
	Policy *ApprovalPolicy `gorm:"foreignKey:CompanyID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is an account belonging to a company.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Username  string     `gorm:"size:150;uniqueIndex"`
	Email     string     `gorm:"size:255"`
	CompanyID *uuid.UUID `gorm:"type:uuid;index"`
	Role      Role       `gorm:"size:16"`
	// ManagerID points at the user's manager; it drives the dynamic
	// MANAGER stage resolution.
	ManagerID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleAssignment maps (company, role name) to exactly one user.
type RoleAssignment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_company_role"`
	RoleName  string    `gorm:"size:32;uniqueIndex:idx_company_role"`
	UserID    uuid.UUID `gorm:"type:uuid"`
}

// ApproverStage is one configured position in a company's approval chain.
// Either RoleName or SpecificUserID selects the approver; with both absent
// the stage is unassigned and dropped at chain build time.
type ApproverStage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;index"`
	// Sequence orders stages within a company; values need not be
	// contiguous or unique, ordering is by ascending value.
	Sequence       int
	Name           string     `gorm:"size:64;default:'Stage'"`
	RoleName       *string    `gorm:"size:32"`
	SpecificUserID *uuid.UUID `gorm:"type:uuid"`
}

// ApprovalPolicy is the company-wide early-finalization rule (one per company).
type ApprovalPolicy struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID  `gorm:"type:uuid;uniqueIndex"`
	Mode      PolicyMode `gorm:"size:32;default:'PERCENTAGE'"`
	// PercentageRequired is in [0,100]; zero can never satisfy the
	// percentage condition.
	PercentageRequired int `gorm:"check:percentage_required >= 0 AND percentage_required <= 100"`
	SpecificApproverID *uuid.UUID `gorm:"type:uuid"`
}
