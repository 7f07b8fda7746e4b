// Package workflow holds the event-request review state machine: the
// status/step vocabulary, the fixed step sequence, the step-to-role
// authorization table and the transition function. It performs no I/O;
// callers persist the resulting transition atomically.
package workflow

import "errors"

// Status is the lifecycle state of an event request.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusRejected Status = "REJECTED"
	StatusApproved Status = "APPROVED"
	StatusOpen     Status = "OPEN"
)

// Step is one stage of the review sequence a PENDING request sits at.
type Step string

const (
	StepFinancialManager      Step = "FINANCIAL_MANAGER"
	StepAdministrationManager Step = "ADMINISTRATION_MANAGER"
	StepCustomerMeeting       Step = "CUSTOMER_MEETING"
)

// Decision is the outcome a reviewer applies at the current step.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// StepSequence is the fixed review order. A request visits each step at
// most once and never moves backwards.
var StepSequence = []Step{
	StepFinancialManager,
	StepAdministrationManager,
	StepCustomerMeeting,
}

// StepRoles maps each review step to the staff role allowed to act on it.
// The final customer meeting is held by the senior customer service
// officer who also owns the DRAFT stage.
var StepRoles = map[Step]string{
	StepFinancialManager:      "financial_manager",
	StepAdministrationManager: "administration_manager",
	StepCustomerMeeting:       "senior_customer_service",
}

// feedbackColumns maps each step to the event_requests column its
// feedback is written to.
var feedbackColumns = map[Step]string{
	StepFinancialManager:      "financial_manager_feedback",
	StepAdministrationManager: "administration_manager_feedback",
	StepCustomerMeeting:       "customer_meeting_feedback",
}

// SubmitterFeedbackColumn receives the senior customer service officer's
// note when a draft is submitted or rejected.
const SubmitterFeedbackColumn = "scso_feedback"

var (
	ErrNotPending      = errors.New("event request is not pending review")
	ErrNotDraft        = errors.New("event request is not a draft")
	ErrNotApproved     = errors.New("event request is not approved")
	ErrStepMismatch    = errors.New("event request is at a different review step")
	ErrInvalidStep     = errors.New("unknown review step")
	ErrInvalidDecision = errors.New("decision must be APPROVE or REJECT")
)

// IsValidStep reports whether s is a member of the review sequence.
func IsValidStep(s Step) bool {
	_, ok := feedbackColumns[s]
	return ok
}

// IsValidStatus reports whether s is a recognized lifecycle status.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusPending, StatusRejected, StatusApproved, StatusOpen:
		return true
	}
	return false
}

// FirstStep returns the step a freshly submitted request enters.
func FirstStep() Step {
	return StepSequence[0]
}

// FeedbackColumn returns the column the given step writes its feedback to.
// The step must be valid.
func FeedbackColumn(s Step) string {
	return feedbackColumns[s]
}

// nextStep returns the step after s, or nil when s is the last one.
func nextStep(s Step) *Step {
	for i, candidate := range StepSequence {
		if candidate == s && i+1 < len(StepSequence) {
			next := StepSequence[i+1]
			return &next
		}
	}
	return nil
}
