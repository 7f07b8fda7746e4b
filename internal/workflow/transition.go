package workflow

// Transition is the target state a review decision moves a request to.
// Step is nil for terminal states, set for intermediate approvals.
type Transition struct {
	Status         Status
	Step           *Step
	FeedbackColumn string
}

// Next computes the transition for a decision taken at the given step:
//
//	REJECT  at any step      -> REJECTED, no step
//	APPROVE with a next step -> PENDING, next step
//	APPROVE at the last step -> APPROVED, no step
//
// The caller must have verified that the persisted state actually is
// (PENDING, step); Next only validates its own arguments.
func Next(step Step, decision Decision) (Transition, error) {
	if !IsValidStep(step) {
		return Transition{}, ErrInvalidStep
	}

	switch decision {
	case DecisionReject:
		return Transition{Status: StatusRejected, FeedbackColumn: FeedbackColumn(step)}, nil
	case DecisionApprove:
		if next := nextStep(step); next != nil {
			return Transition{Status: StatusPending, Step: next, FeedbackColumn: FeedbackColumn(step)}, nil
		}
		return Transition{Status: StatusApproved, FeedbackColumn: FeedbackColumn(step)}, nil
	default:
		return Transition{}, ErrInvalidDecision
	}
}
