// Package controller implements the approval workflow engine: expense
// submission with step-chain construction, sequential step progression,
// conditional policy evaluation, and terminal transitions (approve, reject,
// admin override).
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/expenseflow/internal/expense/db"
	e "github.com/gartstein/expenseflow/internal/expense/errors"
	"github.com/gartstein/expenseflow/internal/expense/events"
	"github.com/gartstein/expenseflow/internal/expense/external"
	"github.com/gartstein/expenseflow/internal/expense/models"
	"github.com/gartstein/expenseflow/internal/expense/receipt"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultCurrency is used when the country lookup collaborator cannot
// resolve a currency at company creation.
const defaultCurrency = "USD"

// overrideTag prefixes the comment fragment appended to steps closed on
// behalf of another actor (peer rejection or admin override).
const overrideTag = "[Admin override]"

type EventProducer interface {
	Produce(eventType events.EventType, expense *models.Expense)
	ProduceCompany(eventType events.EventType, company *models.Company)
}

// Repository defines the storage interface for the workflow records.
// Workflow operations run their reads and writes inside WithTransaction;
// GetExpenseForUpdate scopes mutual exclusion to one expense.
type Repository interface {
	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error)
	PendingStepsForApprover(ctx context.Context, approverID uuid.UUID) ([]models.ApprovalStep, error)
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
	Close() error
}

// ExpenseService drives expense claims through their approval chain.
type ExpenseService struct {
	repo     Repository
	producer EventProducer
	ext      external.Services
	logger   *zap.Logger
}

// NewExpenseService constructs an ExpenseService with a repository, an event
// producer, collaborator services, and a logger.
func NewExpenseService(repo Repository, producer EventProducer, ext external.Services, logger *zap.Logger) *ExpenseService {
	return &ExpenseService{
		repo:     repo,
		producer: producer,
		ext:      ext.WithDefaults(),
		logger:   logger.Named("expense_service"),
	}
}

// CreateCompany registers a company, resolving its base currency from the
// country code via the currency collaborator. Manager-first approval is on
// by default.
func (s *ExpenseService) CreateCompany(ctx context.Context, name, countryCode string) (*models.Company, error) {
	if name == "" || len(name) > 255 {
		return nil, fmt.Errorf("%w: invalid name", e.ErrInvalidInput)
	}
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		return nil, fmt.Errorf("%w: missing country code", e.ErrInvalidInput)
	}

	currency, ok := s.ext.Currency.CurrencyForCountry(ctx, code)
	if !ok {
		s.logger.Warn("currency lookup unavailable, using default",
			zap.String("country_code", code),
			zap.String("currency", defaultCurrency),
		)
		currency = defaultCurrency
	}

	company := &models.Company{
		ID:                   uuid.New(),
		Name:                 name,
		CountryCode:          code,
		CurrencyCode:         currency,
		ManagerFirstApprover: true,
	}
	if err := s.repo.CreateCompany(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	s.producer.ProduceCompany(events.CompanyCreated, company)
	return company, nil
}

// SubmitExpense converts the amount to company currency (falling back to the
// original amount when no rate is available), builds the approval chain, and
// commits the expense with its steps and resulting status in one
// transaction. A chain with zero resolvable approvers auto-approves.
func (s *ExpenseService) SubmitExpense(ctx context.Context, expense *models.Expense) (*models.Expense, error) {
	if expense.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", e.ErrInvalidInput)
	}
	if expense.CurrencyCode == "" {
		return nil, fmt.Errorf("%w: missing currency code", e.ErrInvalidInput)
	}

	company, err := s.repo.GetCompany(ctx, expense.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	submitter, err := s.repo.GetUser(ctx, expense.SubmitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submitter: %w", err)
	}

	converted := expense.AmountCents
	if expense.CurrencyCode != company.CurrencyCode {
		if v, ok := s.ext.Rates.Convert(ctx, expense.AmountCents, expense.CurrencyCode, company.CurrencyCode); ok {
			converted = v
		} else {
			s.logger.Warn("currency conversion unavailable, storing original amount",
				zap.String("from", expense.CurrencyCode),
				zap.String("to", company.CurrencyCode),
			)
		}
	}
	expense.ConvertedCents = &converted

	expense.ID = uuid.New()
	expense.Status = models.ExpenseDraft
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = time.Now().UTC()
	}

	steps := buildChain(company, submitter, expense.ID)
	final := models.ExpensePending
	if len(steps) == 0 {
		final = models.ExpenseApproved
	}

	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		if err := repo.CreateExpense(ctx, expense); err != nil {
			return err
		}
		if err := repo.CreateSteps(ctx, steps); err != nil {
			return err
		}
		return repo.UpdateExpenseStatus(ctx, expense.ID, models.ExpenseDraft, final)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit expense: %w", err)
	}
	expense.Status = final
	expense.Steps = steps

	if final == models.ExpenseApproved {
		s.producer.Produce(events.ExpenseApproved, expense)
	} else {
		s.producer.Produce(events.ExpenseSubmitted, expense)
	}
	return expense, nil
}

// ApproveStep approves the acting user's earliest pending step. The company
// policy is evaluated afterwards and may finalize the expense early; without
// a policy the expense completes once no pending steps remain. Returns false
// when the expense is not pending or the user holds no pending step.
func (s *ExpenseService) ApproveStep(ctx context.Context, expenseID, actorID uuid.UUID, comment string) (bool, error) {
	var (
		ok      bool
		outcome events.EventType
		acted   *models.Expense
	)
	err := s.runWorkflowTx(ctx, func(repo *db.Repository) error {
		ok, outcome, acted = false, "", nil

		expense, err := repo.GetExpenseForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		if expense.Status != models.ExpensePending {
			return nil
		}
		step := firstPendingStepFor(expense.Steps, actorID)
		if step == nil {
			return nil
		}

		now := time.Now().UTC()
		if err := repo.ResolveStep(ctx, step.ID, models.StepApproved, comment, now); err != nil {
			return err
		}
		step.Status = models.StepApproved
		step.Comment = comment
		step.ActedAt = &now
		ok = true
		acted = expense

		company, err := repo.GetCompany(ctx, expense.CompanyID)
		if err != nil {
			return err
		}
		if policySatisfied(company.Policy, expense.Steps) {
			if err := finalize(ctx, repo, expense, now); err != nil {
				return err
			}
			outcome = events.ExpenseApproved
			return nil
		}
		if !anyPending(expense.Steps) {
			if err := repo.UpdateExpenseStatus(ctx, expense.ID, models.ExpensePending, models.ExpenseApproved); err != nil {
				return err
			}
			expense.Status = models.ExpenseApproved
			outcome = events.ExpenseApproved
		}
		return nil
	})
	if err != nil {
		return false, s.workflowResult("approve", expenseID, err)
	}
	if outcome != "" {
		s.producer.Produce(outcome, acted)
	}
	return ok, nil
}

// RejectStep rejects the acting user's earliest pending step and closes the
// whole expense: every sibling step still pending is marked rejected and the
// expense becomes REJECTED. Rejection is unconditional and final; the policy
// evaluator is not consulted.
func (s *ExpenseService) RejectStep(ctx context.Context, expenseID, actorID uuid.UUID, comment string) (bool, error) {
	var (
		ok    bool
		acted *models.Expense
	)
	err := s.runWorkflowTx(ctx, func(repo *db.Repository) error {
		ok, acted = false, nil

		expense, err := repo.GetExpenseForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		// No status precondition: a terminal expense has no pending steps,
		// so the lookup below is self-limiting.
		step := firstPendingStepFor(expense.Steps, actorID)
		if step == nil {
			return nil
		}

		now := time.Now().UTC()
		if err := repo.ResolveStep(ctx, step.ID, models.StepRejected, comment, now); err != nil {
			return err
		}
		step.Status = models.StepRejected
		step.Comment = comment
		step.ActedAt = &now

		if err := repo.UpdateExpenseStatus(ctx, expense.ID, expense.Status, models.ExpenseRejected); err != nil {
			return err
		}
		expense.Status = models.ExpenseRejected

		if err := closePending(ctx, repo, expense, models.StepRejected, comment, now); err != nil {
			return err
		}
		ok = true
		acted = expense
		return nil
	})
	if err != nil {
		return false, s.workflowResult("reject", expenseID, err)
	}
	if ok {
		s.producer.Produce(events.ExpenseRejected, acted)
	}
	return ok, nil
}

// AdminOverride forces the expense into a terminal status, bypassing chain
// progression and policy evaluation. Pending steps close as SKIPPED when
// approving and REJECTED when rejecting. Non-terminal targets fail.
func (s *ExpenseService) AdminOverride(ctx context.Context, expenseID uuid.UUID, target models.ExpenseStatus, comment string) (bool, error) {
	if !target.Terminal() {
		return false, nil
	}
	closeTo := models.StepSkipped
	if target == models.ExpenseRejected {
		closeTo = models.StepRejected
	}

	var acted *models.Expense
	err := s.runWorkflowTx(ctx, func(repo *db.Repository) error {
		acted = nil

		expense, err := repo.GetExpenseForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := closePending(ctx, repo, expense, closeTo, comment, now); err != nil {
			return err
		}
		if err := repo.UpdateExpenseStatus(ctx, expense.ID, expense.Status, target); err != nil {
			return err
		}
		expense.Status = target
		acted = expense
		return nil
	})
	if err != nil {
		return false, s.workflowResult("override", expenseID, err)
	}
	s.producer.Produce(events.ExpenseOverridden, acted)
	return true, nil
}

// EvaluatePolicy re-runs the policy check for a pending expense and
// finalizes it when satisfied. Safe to call any number of times: without a
// policy, without steps, or on an already-terminal expense it changes
// nothing.
func (s *ExpenseService) EvaluatePolicy(ctx context.Context, expenseID uuid.UUID) error {
	var (
		finalized bool
		acted     *models.Expense
	)
	err := s.runWorkflowTx(ctx, func(repo *db.Repository) error {
		finalized, acted = false, nil

		expense, err := repo.GetExpenseForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		if expense.Status != models.ExpensePending || len(expense.Steps) == 0 {
			return nil
		}
		company, err := repo.GetCompany(ctx, expense.CompanyID)
		if err != nil {
			return err
		}
		if !policySatisfied(company.Policy, expense.Steps) {
			return nil
		}
		if err := finalize(ctx, repo, expense, time.Now().UTC()); err != nil {
			return err
		}
		finalized = true
		acted = expense
		return nil
	})
	if err != nil {
		return s.workflowResult("evaluate", expenseID, err)
	}
	if finalized {
		s.producer.Produce(events.ExpenseApproved, acted)
	}
	return nil
}

// PendingSteps lists the pending approval steps assigned to a user.
func (s *ExpenseService) PendingSteps(ctx context.Context, approverID uuid.UUID) ([]models.ApprovalStep, error) {
	steps, err := s.repo.PendingStepsForApprover(ctx, approverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending steps: %w", err)
	}
	return steps, nil
}

// GetExpense returns an expense with its ordered steps.
func (s *ExpenseService) GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	expense, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// PrefillFromReceipt extracts pre-fill fields from a receipt image. Any
// collaborator failure degrades to empty fields; workflow state is never
// touched.
func (s *ExpenseService) PrefillFromReceipt(ctx context.Context, image []byte) receipt.Fields {
	text, err := s.ext.Receipts.ExtractText(ctx, image)
	if err != nil {
		s.logger.Warn("receipt text extraction unavailable", zap.Error(err))
		return receipt.Fields{}
	}
	return receipt.Parse(text)
}

// HandleAction applies an approval command received from the action stream.
func (s *ExpenseService) HandleAction(ctx context.Context, action events.Action) error {
	switch action.Type {
	case events.ActionApprove:
		_, err := s.ApproveStep(ctx, action.ExpenseID, action.ActorID, action.Comment)
		return err
	case events.ActionReject:
		_, err := s.RejectStep(ctx, action.ExpenseID, action.ActorID, action.Comment)
		return err
	case events.ActionOverride:
		_, err := s.AdminOverride(ctx, action.ExpenseID, action.Target, action.Comment)
		return err
	default:
		return fmt.Errorf("%w: unknown action type %q", e.ErrInvalidInput, action.Type)
	}
}

// runWorkflowTx executes fn in one repository transaction, retrying when a
// concurrent actor won a step race (ErrConflict) so the loser re-reads
// consistent state and resolves to a clean negative result.
func (s *ExpenseService) runWorkflowTx(ctx context.Context, fn func(repo *db.Repository) error) error {
	operation := func() error {
		err := s.repo.WithTransaction(ctx, fn)
		if err == nil || errors.Is(err, e.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx))
}

// workflowResult maps expected negative conditions to nil so operations stay
// boolean-result functions; anything else is surfaced.
func (s *ExpenseService) workflowResult(op string, expenseID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return nil
	case errors.Is(err, e.ErrConflict):
		s.logger.Info("workflow operation lost a concurrent race",
			zap.String("operation", op),
			zap.String("expense_id", expenseID.String()),
		)
		return nil
	default:
		return fmt.Errorf("failed to %s expense: %w", op, err)
	}
}

// firstPendingStepFor returns the actor's earliest pending step. Steps are
// already ordered by sequence.
func firstPendingStepFor(steps []models.ApprovalStep, actorID uuid.UUID) *models.ApprovalStep {
	for i := range steps {
		if steps[i].ApproverID == actorID && steps[i].Status == models.StepPending {
			return &steps[i]
		}
	}
	return nil
}

func anyPending(steps []models.ApprovalStep) bool {
	for i := range steps {
		if steps[i].Status == models.StepPending {
			return true
		}
	}
	return false
}

// finalize closes every pending step as SKIPPED and approves the expense.
// The skipped steps keep their comments and remain visible in the chain.
func finalize(ctx context.Context, repo *db.Repository, expense *models.Expense, now time.Time) error {
	for i := range expense.Steps {
		st := &expense.Steps[i]
		if st.Status != models.StepPending {
			continue
		}
		if err := repo.ResolveStep(ctx, st.ID, models.StepSkipped, st.Comment, now); err != nil {
			return err
		}
		st.Status = models.StepSkipped
		st.ActedAt = &now
	}
	if err := repo.UpdateExpenseStatus(ctx, expense.ID, models.ExpensePending, models.ExpenseApproved); err != nil {
		return err
	}
	expense.Status = models.ExpenseApproved
	return nil
}

// closePending resolves every remaining pending step to the given status,
// appending the tagged comment fragment when a comment was supplied.
func closePending(ctx context.Context, repo *db.Repository, expense *models.Expense, to models.StepStatus, comment string, now time.Time) error {
	for i := range expense.Steps {
		st := &expense.Steps[i]
		if st.Status != models.StepPending {
			continue
		}
		closed := st.Comment
		if comment != "" {
			closed += "\n" + overrideTag + " " + comment
		}
		if err := repo.ResolveStep(ctx, st.ID, to, closed, now); err != nil {
			return err
		}
		st.Status = to
		st.Comment = closed
		st.ActedAt = &now
	}
	return nil
}
