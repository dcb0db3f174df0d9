package controller

import (
	"testing"

	"github.com/gartstein/expenseflow/internal/expense/models"
	"github.com/gartstein/expenseflow/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResolveStageAssignee(t *testing.T) {
	managerID := uuid.New()
	financeID := uuid.New()
	specificID := uuid.New()

	company := &models.Company{
		ID: uuid.New(),
		RoleAssignments: []models.RoleAssignment{
			{RoleName: models.ApproverFinance, UserID: financeID},
		},
	}
	submitter := &models.User{ID: uuid.New(), ManagerID: &managerID}
	orphan := &models.User{ID: uuid.New()}

	tests := []struct {
		name      string
		stage     models.ApproverStage
		submitter *models.User
		want      *uuid.UUID
	}{
		{
			name:      "specific user wins over role",
			stage:     models.ApproverStage{SpecificUserID: &specificID, RoleName: utils.Ptr(models.ApproverFinance)},
			submitter: submitter,
			want:      &specificID,
		},
		{
			name:      "manager role resolves per submitter",
			stage:     models.ApproverStage{RoleName: utils.Ptr(models.ApproverManager)},
			submitter: submitter,
			want:      &managerID,
		},
		{
			name:      "manager role without manager",
			stage:     models.ApproverStage{RoleName: utils.Ptr(models.ApproverManager)},
			submitter: orphan,
			want:      nil,
		},
		{
			name:      "role assignment lookup",
			stage:     models.ApproverStage{RoleName: utils.Ptr(models.ApproverFinance)},
			submitter: submitter,
			want:      &financeID,
		},
		{
			name:      "unassigned role",
			stage:     models.ApproverStage{RoleName: utils.Ptr(models.ApproverCFO)},
			submitter: submitter,
			want:      nil,
		},
		{
			name:      "empty stage",
			stage:     models.ApproverStage{},
			submitter: submitter,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStageAssignee(company, &tt.stage, tt.submitter)
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				if assert.NotNil(t, got) {
					assert.Equal(t, *tt.want, *got)
				}
			}
		})
	}
}
