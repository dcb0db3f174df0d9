package controller

import (
	"testing"

	"github.com/gartstein/expenseflow/internal/expense/models"
	"github.com/gartstein/expenseflow/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChain_ManagerFirstThenStages(t *testing.T) {
	managerID := uuid.New()
	financeID := uuid.New()
	expenseID := uuid.New()

	company := &models.Company{
		ID:                   uuid.New(),
		ManagerFirstApprover: true,
		Stages: []models.ApproverStage{
			{Sequence: 10, RoleName: utils.Ptr(models.ApproverFinance)},
		},
		RoleAssignments: []models.RoleAssignment{
			{RoleName: models.ApproverFinance, UserID: financeID},
		},
	}
	submitter := &models.User{ID: uuid.New(), ManagerID: &managerID}

	steps := buildChain(company, submitter, expenseID)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Sequence)
	assert.Equal(t, managerID, steps[0].ApproverID)
	assert.Equal(t, 2, steps[1].Sequence)
	assert.Equal(t, financeID, steps[1].ApproverID)
	for _, st := range steps {
		assert.Equal(t, expenseID, st.ExpenseID)
		assert.Equal(t, models.StepPending, st.Status)
	}
}

// Unresolvable stages never consume a sequence number: the persisted chain
// is contiguous 1..N.
func TestBuildChain_SkipsUnresolvedStages(t *testing.T) {
	financeID := uuid.New()

	company := &models.Company{
		ID: uuid.New(),
		Stages: []models.ApproverStage{
			{Sequence: 1, RoleName: utils.Ptr(models.ApproverCFO)}, // no assignment
			{Sequence: 2},                                          // unassigned stage
			{Sequence: 3, RoleName: utils.Ptr(models.ApproverFinance)},
		},
		RoleAssignments: []models.RoleAssignment{
			{RoleName: models.ApproverFinance, UserID: financeID},
		},
	}
	submitter := &models.User{ID: uuid.New()}

	steps := buildChain(company, submitter, uuid.New())
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].Sequence)
	assert.Equal(t, financeID, steps[0].ApproverID)
}

func TestBuildChain_OrdersStagesBySequence(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	company := &models.Company{
		ID: uuid.New(),
		Stages: []models.ApproverStage{
			{Sequence: 20, SpecificUserID: &second},
			{Sequence: 5, SpecificUserID: &first},
		},
	}

	steps := buildChain(company, &models.User{ID: uuid.New()}, uuid.New())
	require.Len(t, steps, 2)
	assert.Equal(t, first, steps[0].ApproverID)
	assert.Equal(t, second, steps[1].ApproverID)
}

// The manager-first slot and a configured MANAGER stage both resolve to the
// submitter's manager, producing two distinct steps for the same user.
func TestBuildChain_ManagerTwice(t *testing.T) {
	managerID := uuid.New()

	company := &models.Company{
		ID:                   uuid.New(),
		ManagerFirstApprover: true,
		Stages: []models.ApproverStage{
			{Sequence: 1, RoleName: utils.Ptr(models.ApproverManager)},
		},
	}
	submitter := &models.User{ID: uuid.New(), ManagerID: &managerID}

	steps := buildChain(company, submitter, uuid.New())
	require.Len(t, steps, 2)
	assert.Equal(t, managerID, steps[0].ApproverID)
	assert.Equal(t, managerID, steps[1].ApproverID)
	assert.NotEqual(t, steps[0].ID, steps[1].ID)
}

func TestBuildChain_Empty(t *testing.T) {
	company := &models.Company{ID: uuid.New(), ManagerFirstApprover: true}
	submitter := &models.User{ID: uuid.New()} // no manager

	steps := buildChain(company, submitter, uuid.New())
	assert.Empty(t, steps)
}
