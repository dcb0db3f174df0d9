package controller

import (
	"github.com/gartstein/expenseflow/internal/expense/models"
	"github.com/google/uuid"
)

// resolveStageAssignee determines which user should approve a configured
// stage. Precedence: explicit user on the stage, then the submitter's own
// manager for the MANAGER role, then the company role table. A nil result
// means the stage has no approver and is dropped from the chain; that is
// never an error.
func resolveStageAssignee(company *models.Company, stage *models.ApproverStage, submitter *models.User) *uuid.UUID {
	if stage.SpecificUserID != nil {
		return stage.SpecificUserID
	}
	if stage.RoleName == nil {
		return nil
	}
	// MANAGER is dynamic per submitter, not a company-wide assignment.
	if *stage.RoleName == models.ApproverManager {
		return submitter.ManagerID
	}
	for i := range company.RoleAssignments {
		if company.RoleAssignments[i].RoleName == *stage.RoleName {
			id := company.RoleAssignments[i].UserID
			return &id
		}
	}
	return nil
}
