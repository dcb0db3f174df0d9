package controller

import (
	"github.com/gartstein/expenseflow/internal/expense/models"
)

// policySatisfied reports whether the policy finalizes the expense given the
// current step set. Nil policy or an empty chain never satisfies. The
// combined mode is the OR of the two single-mode predicates; the specific
// condition is checked first but either one suffices.
func policySatisfied(policy *models.ApprovalPolicy, steps []models.ApprovalStep) bool {
	if policy == nil || len(steps) == 0 {
		return false
	}
	switch policy.Mode {
	case models.ModeSpecific:
		return specificSatisfied(policy, steps)
	case models.ModePercentage:
		return percentageSatisfied(policy, steps)
	case models.ModePercentageOrSpecific:
		return specificSatisfied(policy, steps) || percentageSatisfied(policy, steps)
	default:
		return false
	}
}

// specificSatisfied holds when the designated approver has approved any step.
func specificSatisfied(policy *models.ApprovalPolicy, steps []models.ApprovalStep) bool {
	if policy.SpecificApproverID == nil {
		return false
	}
	for i := range steps {
		if steps[i].ApproverID == *policy.SpecificApproverID && steps[i].Status == models.StepApproved {
			return true
		}
	}
	return false
}

// percentageSatisfied holds when the approved share of all steps reaches the
// threshold. Integer truncating arithmetic: 1 of 3 approved is 33%, never
// rounded up. A zero threshold can never satisfy.
func percentageSatisfied(policy *models.ApprovalPolicy, steps []models.ApprovalStep) bool {
	if policy.PercentageRequired <= 0 {
		return false
	}
	approved := 0
	for i := range steps {
		if steps[i].Status == models.StepApproved {
			approved++
		}
	}
	return approved*100/len(steps) >= policy.PercentageRequired
}
