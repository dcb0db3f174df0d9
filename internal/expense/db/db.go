// Package db implements the persistence layer for the approval workflow on
// top of GORM. Workflow mutations run inside repository transactions: the
// expense row is the unit of mutual exclusion, and step transitions are
// guarded by their expected status so concurrent actors cannot consume the
// same step twice.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	e "github.com/gartstein/expenseflow/internal/expense/errors"
	"github.com/gartstein/expenseflow/internal/expense/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewRepository(cfg *Config) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newRepository(db)
}

// NewMemoryRepository opens an in-memory SQLite database. Used by tests and
// local development; production runs on Postgres via NewRepository.
func NewMemoryRepository() (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// An in-memory sqlite database lives per connection; keep the pool at one.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return newRepository(db)
}

func newRepository(db *gorm.DB) (*Repository, error) {
	err := db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.RoleAssignment{},
		&models.ApproverStage{},
		&models.ApprovalPolicy{},
		&models.Expense{},
		&models.ApprovalStep{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	return translate(r.db.WithContext(ctx).Create(company).Error)
}

// GetCompany returns the company with its full approval configuration:
// stages ordered by sequence, role assignments, and the optional policy.
func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	result := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("RoleAssignments").
		Preload("Policy").
		First(&company, "id = ?", id)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &company, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *Repository) CreateRoleAssignment(ctx context.Context, ra *models.RoleAssignment) error {
	return translate(r.db.WithContext(ctx).Create(ra).Error)
}

func (r *Repository) CreateStage(ctx context.Context, stage *models.ApproverStage) error {
	return translate(r.db.WithContext(ctx).Create(stage).Error)
}

func (r *Repository) CreatePolicy(ctx context.Context, policy *models.ApprovalPolicy) error {
	return translate(r.db.WithContext(ctx).Create(policy).Error)
}

func (r *Repository) CreateExpense(ctx context.Context, expense *models.Expense) error {
	return translate(r.db.WithContext(ctx).Create(expense).Error)
}

// GetExpense returns the expense with its steps ordered by sequence.
func (r *Repository) GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	return r.getExpense(ctx, id, false)
}

// GetExpenseForUpdate is GetExpense with the expense row locked for the
// duration of the surrounding transaction. Two workflow operations on the
// same expense serialize here; operations on different expenses never
// contend.
func (r *Repository) GetExpenseForUpdate(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	return r.getExpense(ctx, id, true)
}

func (r *Repository) getExpense(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Expense, error) {
	tx := r.db.WithContext(ctx)
	// SQLite has no FOR UPDATE; its single-writer lock already serializes
	// concurrent transactions.
	if forUpdate && r.db.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var expense models.Expense
	result := tx.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		First(&expense, "id = ?", id)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &expense, nil
}

func (r *Repository) CreateSteps(ctx context.Context, steps []models.ApprovalStep) error {
	if len(steps) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Create(&steps).Error)
}

// UpdateExpenseStatus transitions an expense from an expected status. The
// expected-status guard keeps terminal states immutable even if two
// transactions race past the row lock.
func (r *Repository) UpdateExpenseStatus(ctx context.Context, id uuid.UUID, from, to models.ExpenseStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Expense{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrConflict
	}
	return nil
}

// ResolveStep moves a step out of PENDING exactly once, stamping comment and
// acted-at. A step already resolved by a concurrent actor surfaces as
// ErrConflict.
func (r *Repository) ResolveStep(ctx context.Context, stepID uuid.UUID, to models.StepStatus, comment string, actedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.ApprovalStep{}).
		Where("id = ? AND status = ?", stepID, models.StepPending).
		Updates(map[string]interface{}{
			"status":   to,
			"comment":  comment,
			"acted_at": actedAt,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrConflict
	}
	return nil
}

// PendingStepsForApprover lists the PENDING steps assigned to a user across
// all expenses, earliest first.
func (r *Repository) PendingStepsForApprover(ctx context.Context, approverID uuid.UUID) ([]models.ApprovalStep, error) {
	var steps []models.ApprovalStep
	result := r.db.WithContext(ctx).
		Where("approver_id = ? AND status = ?", approverID, models.StepPending).
		Order("created_at ASC, sequence ASC").
		Find(&steps)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return steps, nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return e.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return e.ErrConflict
	default:
		return err
	}
}
