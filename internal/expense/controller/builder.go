package controller

import (
	"sort"

	"github.com/gartstein/expenseflow/internal/expense/models"
	"github.com/google/uuid"
)

// buildChain materializes the approval steps for an expense from the company
// configuration. The chain is computed as a plain value before any write:
// the caller persists it and sets the expense status in one transaction.
//
// Sequence numbers are assigned from the resolved-assignee list, so the
// persisted chain is always contiguous 1..N; unresolvable stages simply
// never consume a number. The same user resolved by several stages yields
// several distinct steps.
func buildChain(company *models.Company, submitter *models.User, expenseID uuid.UUID) []models.ApprovalStep {
	var assignees []uuid.UUID

	if company.ManagerFirstApprover && submitter.ManagerID != nil {
		assignees = append(assignees, *submitter.ManagerID)
	}

	stages := make([]models.ApproverStage, len(company.Stages))
	copy(stages, company.Stages)
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Sequence < stages[j].Sequence
	})

	for i := range stages {
		if assignee := resolveStageAssignee(company, &stages[i], submitter); assignee != nil {
			assignees = append(assignees, *assignee)
		}
	}

	steps := make([]models.ApprovalStep, 0, len(assignees))
	for i, approverID := range assignees {
		steps = append(steps, models.ApprovalStep{
			ID:         uuid.New(),
			ExpenseID:  expenseID,
			Sequence:   i + 1,
			ApproverID: approverID,
			Status:     models.StepPending,
		})
	}
	return steps
}
