package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_ApproveAdvancesThroughSequence(t *testing.T) {
	tr, err := Next(StepFinancialManager, DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tr.Status)
	require.NotNil(t, tr.Step)
	assert.Equal(t, StepAdministrationManager, *tr.Step)
	assert.Equal(t, "financial_manager_feedback", tr.FeedbackColumn)

	tr, err = Next(StepAdministrationManager, DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tr.Status)
	require.NotNil(t, tr.Step)
	assert.Equal(t, StepCustomerMeeting, *tr.Step)
	assert.Equal(t, "administration_manager_feedback", tr.FeedbackColumn)
}

func TestNext_ApproveAtLastStepApproves(t *testing.T) {
	tr, err := Next(StepCustomerMeeting, DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, tr.Status)
	assert.Nil(t, tr.Step)
	assert.Equal(t, "customer_meeting_feedback", tr.FeedbackColumn)
}

func TestNext_RejectTerminatesAtAnyStep(t *testing.T) {
	for _, step := range StepSequence {
		tr, err := Next(step, DecisionReject)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, tr.Status)
		assert.Nil(t, tr.Step)
		assert.Equal(t, FeedbackColumn(step), tr.FeedbackColumn)
	}
}

func TestNext_RejectsUnknownStep(t *testing.T) {
	_, err := Next(Step("PRODUCTION_MANAGER"), DecisionApprove)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestNext_RejectsUnknownDecision(t *testing.T) {
	_, err := Next(StepFinancialManager, Decision("DEFER"))
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestStepRoles_CoverEveryStep(t *testing.T) {
	for _, step := range StepSequence {
		role, ok := StepRoles[step]
		assert.True(t, ok, "step %s has no role", step)
		assert.NotEmpty(t, role)
	}
	assert.Equal(t, "senior_customer_service", StepRoles[StepCustomerMeeting])
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusPending, StatusRejected, StatusApproved, StatusOpen} {
		assert.True(t, IsValidStatus(s))
	}
	assert.False(t, IsValidStatus(Status("ARCHIVED")))
}

func TestFirstStep(t *testing.T) {
	assert.Equal(t, StepFinancialManager, FirstStep())
}
