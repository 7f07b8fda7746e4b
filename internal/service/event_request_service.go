package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/websocket"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Actor identifies the authenticated staff member performing an operation.
// Authentication itself happens in the middleware; services only authorize
// by role name.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// --- DTOs ---

type CreateEventRequestDTO struct {
	ClientID       string   `json:"client_id" binding:"required"`
	EventType      string   `json:"event_type" binding:"required"`
	StartTime      string   `json:"start_time" binding:"required"` // RFC3339
	FinishTime     string   `json:"finish_time" binding:"required"`
	Location       string   `json:"location"`
	Preferences    []string `json:"preferences"`
	ExpectedBudget string   `json:"expected_budget"`
	Note           string   `json:"note"`
}

type UpdateEventRequestDTO struct {
	EventType      *string   `json:"event_type"`
	StartTime      *string   `json:"start_time"`
	FinishTime     *string   `json:"finish_time"`
	Location       *string   `json:"location"`
	Preferences    *[]string `json:"preferences"`
	ExpectedBudget *string   `json:"expected_budget"`
	Note           *string   `json:"note"`
}

type EventRequestFilter struct {
	Status string // DRAFT, PENDING, REJECTED, APPROVED, OPEN or empty for all
	Page   int
	Limit  int
}

type ClientSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
}

type SubmitterSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type EventRequestResponse struct {
	ID             string            `json:"id"`
	Client         *ClientSummary    `json:"client"`
	Submitter      *SubmitterSummary `json:"submitter"`
	EventType      string            `json:"event_type"`
	StartTime      string            `json:"start_time"`
	FinishTime     string            `json:"finish_time"`
	Location       string            `json:"location"`
	Preferences    []string          `json:"preferences"`
	ExpectedBudget string            `json:"expected_budget"`
	Note           string            `json:"note"`
	Status         string            `json:"status"`
	ReviewStep     *string           `json:"review_step"`

	ScsoFeedback                  *string `json:"scso_feedback"`
	FinancialManagerFeedback      *string `json:"financial_manager_feedback"`
	AdministrationManagerFeedback *string `json:"administration_manager_feedback"`
	CustomerMeetingFeedback       *string `json:"customer_meeting_feedback"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// --- Interface ---

type EventRequestService interface {
	Create(ctx context.Context, actor Actor, req CreateEventRequestDTO) (EventRequestResponse, error)
	List(ctx context.Context, filter EventRequestFilter) ([]EventRequestResponse, int64, error)
	GetByID(ctx context.Context, id string) (EventRequestResponse, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateEventRequestDTO) (EventRequestResponse, error)
	Delete(ctx context.Context, actor Actor, id string) error

	// Workflow transitions. All of them apply a single conditional update
	// keyed on the expected prior state; a stale caller fails without side
	// effects and should refresh its view.
	SubmitForReview(ctx context.Context, actor Actor, id string, feedback string) error
	RejectDraft(ctx context.Context, actor Actor, id string, feedback string) error
	Review(ctx context.Context, actor Actor, id string, step, decision, feedback string) error
	Open(ctx context.Context, actor Actor, id string) error
}

type eventRequestService struct {
	requestRepo repository.EventRequestRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	hub         *websocket.Hub // optional, nil in tests
}

func NewEventRequestService(
	requestRepo repository.EventRequestRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *websocket.Hub,
) EventRequestService {
	return &eventRequestService{
		requestRepo: requestRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		hub:         hub,
	}
}

// --- Helpers ---

func validatePreferences(prefs []string) error {
	for _, p := range prefs {
		if !model.ValidPreferences[p] {
			return fmt.Errorf("%w: unknown preference tag %q", ErrValidation, p)
		}
	}
	return nil
}

func parseEventTimes(start, finish string) (time.Time, time.Time, error) {
	startTime, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_time must be RFC3339", ErrValidation)
	}
	finishTime, err := time.Parse(time.RFC3339, finish)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: finish_time must be RFC3339", ErrValidation)
	}
	if !finishTime.After(startTime) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: finish_time must be after start_time", ErrValidation)
	}
	return startTime, finishTime, nil
}

// normalizeFeedback trims the text and maps empty input to NULL so the
// feedback columns never hold empty strings.
func normalizeFeedback(text string) *string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseRequestID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid event request id", ErrValidation)
	}
	return uid, nil
}

// --- CRUD ---

func (s *eventRequestService) Create(ctx context.Context, actor Actor, req CreateEventRequestDTO) (EventRequestResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return EventRequestResponse{}, fmt.Errorf("%w: invalid client_id", ErrValidation)
	}

	startTime, finishTime, err := parseEventTimes(req.StartTime, req.FinishTime)
	if err != nil {
		return EventRequestResponse{}, err
	}

	if err := validatePreferences(req.Preferences); err != nil {
		return EventRequestResponse{}, err
	}

	budget := decimal.Zero
	if req.ExpectedBudget != "" {
		budget, err = decimal.NewFromString(req.ExpectedBudget)
		if err != nil || budget.IsNegative() {
			return EventRequestResponse{}, fmt.Errorf("%w: expected_budget must be a non-negative amount", ErrValidation)
		}
	}

	request := &model.EventRequest{
		ClientID:       clientID,
		SubmitterID:    actor.ID,
		EventType:      req.EventType,
		StartTime:      startTime,
		FinishTime:     finishTime,
		Location:       req.Location,
		Preferences:    req.Preferences,
		ExpectedBudget: budget,
		Note:           req.Note,
		Status:         string(workflow.StatusDraft),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.requestRepo.Create(txCtx, request); createErr != nil {
			return fmt.Errorf("failed to create event request: %w", createErr)
		}
		return s.writeAudit(txCtx, actor, model.ActionCreateEventRequest, request.ID, request.EventType, map[string]interface{}{
			"client_id": clientID.String(),
			"status":    request.Status,
		})
	})
	if err != nil {
		return EventRequestResponse{}, err
	}

	reloaded, err := s.requestRepo.FindByIDWithRelations(ctx, request.ID)
	if err != nil {
		return EventRequestResponse{}, fmt.Errorf("failed to reload event request: %w", err)
	}

	return toEventRequestResponse(*reloaded), nil
}

func (s *eventRequestService) List(ctx context.Context, filter EventRequestFilter) ([]EventRequestResponse, int64, error) {
	if filter.Status != "" && !workflow.IsValidStatus(workflow.Status(filter.Status)) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	requests, total, err := s.requestRepo.List(ctx, filter.Status, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch event requests: %w", err)
	}

	result := make([]EventRequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toEventRequestResponse(r))
	}
	return result, total, nil
}

func (s *eventRequestService) GetByID(ctx context.Context, id string) (EventRequestResponse, error) {
	uid, err := parseRequestID(id)
	if err != nil {
		return EventRequestResponse{}, err
	}

	request, err := s.requestRepo.FindByIDWithRelations(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EventRequestResponse{}, fmt.Errorf("%w: event request", ErrNotFound)
		}
		return EventRequestResponse{}, fmt.Errorf("failed to fetch event request: %w", err)
	}
	return toEventRequestResponse(*request), nil
}

// Update edits the descriptive payload. Only drafts are editable; once a
// request enters review the payload the reviewers saw must not shift.
func (s *eventRequestService) Update(ctx context.Context, actor Actor, id string, req UpdateEventRequestDTO) (EventRequestResponse, error) {
	uid, err := parseRequestID(id)
	if err != nil {
		return EventRequestResponse{}, err
	}

	request, err := s.requestRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EventRequestResponse{}, fmt.Errorf("%w: event request", ErrNotFound)
		}
		return EventRequestResponse{}, fmt.Errorf("failed to fetch event request: %w", err)
	}

	if request.Status != string(workflow.StatusDraft) {
		return EventRequestResponse{}, workflow.ErrNotDraft
	}

	if req.EventType != nil {
		if *req.EventType == "" {
			return EventRequestResponse{}, fmt.Errorf("%w: event_type cannot be empty", ErrValidation)
		}
		request.EventType = *req.EventType
	}
	if req.StartTime != nil || req.FinishTime != nil {
		start := request.StartTime.Format(time.RFC3339)
		finish := request.FinishTime.Format(time.RFC3339)
		if req.StartTime != nil {
			start = *req.StartTime
		}
		if req.FinishTime != nil {
			finish = *req.FinishTime
		}
		startTime, finishTime, timeErr := parseEventTimes(start, finish)
		if timeErr != nil {
			return EventRequestResponse{}, timeErr
		}
		request.StartTime = startTime
		request.FinishTime = finishTime
	}
	if req.Location != nil {
		request.Location = *req.Location
	}
	if req.Preferences != nil {
		if prefErr := validatePreferences(*req.Preferences); prefErr != nil {
			return EventRequestResponse{}, prefErr
		}
		request.Preferences = *req.Preferences
	}
	if req.ExpectedBudget != nil {
		budget, budgetErr := decimal.NewFromString(*req.ExpectedBudget)
		if budgetErr != nil || budget.IsNegative() {
			return EventRequestResponse{}, fmt.Errorf("%w: expected_budget must be a non-negative amount", ErrValidation)
		}
		request.ExpectedBudget = budget
	}
	if req.Note != nil {
		request.Note = *req.Note
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.requestRepo.Update(txCtx, request); updateErr != nil {
			return fmt.Errorf("failed to update event request: %w", updateErr)
		}
		return s.writeAudit(txCtx, actor, model.ActionUpdateEventRequest, request.ID, request.EventType, nil)
	})
	if err != nil {
		return EventRequestResponse{}, err
	}

	reloaded, err := s.requestRepo.FindByIDWithRelations(ctx, request.ID)
	if err != nil {
		return EventRequestResponse{}, fmt.Errorf("failed to reload event request: %w", err)
	}
	return toEventRequestResponse(*reloaded), nil
}

// Delete is an administrative side operation, not part of the workflow.
func (s *eventRequestService) Delete(ctx context.Context, actor Actor, id string) error {
	uid, err := parseRequestID(id)
	if err != nil {
		return err
	}

	if _, err := s.requestRepo.FindByID(ctx, uid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: event request", ErrNotFound)
		}
		return fmt.Errorf("failed to fetch event request: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if deleteErr := s.requestRepo.Delete(txCtx, uid); deleteErr != nil {
			return fmt.Errorf("failed to delete event request: %w", deleteErr)
		}
		return s.writeAudit(txCtx, actor, model.ActionDeleteEventRequest, uid, "", nil)
	})
}

// --- Workflow transitions ---

func (s *eventRequestService) SubmitForReview(ctx context.Context, actor Actor, id string, feedback string) error {
	if actor.Role != model.RoleSeniorCustomerService {
		return fmt.Errorf("%w: only senior customer service may submit drafts", ErrForbidden)
	}

	uid, err := parseRequestID(id)
	if err != nil {
		return err
	}

	firstStep := workflow.FirstStep()
	updates := map[string]interface{}{
		"status":                         string(workflow.StatusPending),
		"review_step":                    string(firstStep),
		workflow.SubmitterFeedbackColumn: normalizeFeedback(feedback),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rows, updateErr := s.requestRepo.UpdateWhereState(txCtx, uid, workflow.StatusDraft, nil, updates)
		if updateErr != nil {
			return fmt.Errorf("failed to submit event request: %w", updateErr)
		}
		if rows == 0 {
			return s.classifyDraftFailure(txCtx, uid)
		}
		return s.writeAudit(txCtx, actor, model.ActionSubmitForReview, uid, "", map[string]interface{}{
			"review_step": string(firstStep),
		})
	})
	if err != nil {
		return err
	}

	s.notify(uid, workflow.StatusPending, &firstStep)
	return nil
}

func (s *eventRequestService) RejectDraft(ctx context.Context, actor Actor, id string, feedback string) error {
	if actor.Role != model.RoleSeniorCustomerService {
		return fmt.Errorf("%w: only senior customer service may reject drafts", ErrForbidden)
	}

	uid, err := parseRequestID(id)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"status":                         string(workflow.StatusRejected),
		"review_step":                    nil,
		workflow.SubmitterFeedbackColumn: normalizeFeedback(feedback),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rows, updateErr := s.requestRepo.UpdateWhereState(txCtx, uid, workflow.StatusDraft, nil, updates)
		if updateErr != nil {
			return fmt.Errorf("failed to reject draft: %w", updateErr)
		}
		if rows == 0 {
			return s.classifyDraftFailure(txCtx, uid)
		}
		return s.writeAudit(txCtx, actor, model.ActionRejectDraft, uid, "", nil)
	})
	if err != nil {
		return err
	}

	s.notify(uid, workflow.StatusRejected, nil)
	return nil
}

// Review applies a decision at a review step. The precondition read is
// advisory (it produces precise errors for stale callers); correctness
// rests on the conditional update keyed on (PENDING, step).
func (s *eventRequestService) Review(ctx context.Context, actor Actor, id string, step, decision, feedback string) error {
	uid, err := parseRequestID(id)
	if err != nil {
		return err
	}

	wfStep := workflow.Step(step)
	if !workflow.IsValidStep(wfStep) {
		return workflow.ErrInvalidStep
	}

	wfDecision := workflow.Decision(decision)
	transition, err := workflow.Next(wfStep, wfDecision)
	if err != nil {
		return err
	}

	if workflow.StepRoles[wfStep] != actor.Role {
		return fmt.Errorf("%w: step %s requires role %s", ErrForbidden, wfStep, workflow.StepRoles[wfStep])
	}

	state, err := s.requestRepo.FetchState(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: event request", ErrNotFound)
		}
		return fmt.Errorf("failed to fetch event request state: %w", err)
	}
	if state.Status != string(workflow.StatusPending) {
		return workflow.ErrNotPending
	}
	if state.ReviewStep == nil || *state.ReviewStep != string(wfStep) {
		return workflow.ErrStepMismatch
	}

	var nextStepValue interface{}
	if transition.Step != nil {
		nextStepValue = string(*transition.Step)
	}
	updates := map[string]interface{}{
		"status":                   string(transition.Status),
		"review_step":              nextStepValue,
		transition.FeedbackColumn: normalizeFeedback(feedback),
	}

	action := model.ActionApproveStep
	if wfDecision == workflow.DecisionReject {
		action = model.ActionRejectStep
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rows, updateErr := s.requestRepo.UpdateWhereState(txCtx, uid, workflow.StatusPending, &wfStep, updates)
		if updateErr != nil {
			return fmt.Errorf("failed to apply review decision: %w", updateErr)
		}
		if rows == 0 {
			// Lost the race: someone else moved the request between our
			// read and this update. Re-read once to say what happened.
			return s.classifyReviewFailure(txCtx, uid, wfStep)
		}
		return s.writeAudit(txCtx, actor, action, uid, "", map[string]interface{}{
			"step":        string(wfStep),
			"decision":    string(wfDecision),
			"next_status": string(transition.Status),
		})
	})
	if err != nil {
		return err
	}

	s.notify(uid, transition.Status, transition.Step)
	return nil
}

// Open releases an approved request for execution (APPROVED -> OPEN).
func (s *eventRequestService) Open(ctx context.Context, actor Actor, id string) error {
	if actor.Role != model.RoleSeniorCustomerService && actor.Role != model.RoleAdmin {
		return fmt.Errorf("%w: only senior customer service or admin may open requests", ErrForbidden)
	}

	uid, err := parseRequestID(id)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"status":      string(workflow.StatusOpen),
		"review_step": nil,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rows, updateErr := s.requestRepo.UpdateWhereState(txCtx, uid, workflow.StatusApproved, nil, updates)
		if updateErr != nil {
			return fmt.Errorf("failed to open event request: %w", updateErr)
		}
		if rows == 0 {
			if _, stateErr := s.requestRepo.FetchState(txCtx, uid); stateErr != nil {
				if errors.Is(stateErr, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: event request", ErrNotFound)
				}
				return fmt.Errorf("failed to fetch event request state: %w", stateErr)
			}
			return workflow.ErrNotApproved
		}
		return s.writeAudit(txCtx, actor, model.ActionOpenEventRequest, uid, "", nil)
	})
	if err != nil {
		return err
	}

	s.notify(uid, workflow.StatusOpen, nil)
	return nil
}

// --- Failure classification ---

func (s *eventRequestService) classifyDraftFailure(ctx context.Context, id uuid.UUID) error {
	state, err := s.requestRepo.FetchState(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: event request", ErrNotFound)
		}
		return fmt.Errorf("failed to fetch event request state: %w", err)
	}
	if state.Status != string(workflow.StatusDraft) {
		return workflow.ErrNotDraft
	}
	return workflow.ErrStepMismatch
}

func (s *eventRequestService) classifyReviewFailure(ctx context.Context, id uuid.UUID, step workflow.Step) error {
	state, err := s.requestRepo.FetchState(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: event request", ErrNotFound)
		}
		return fmt.Errorf("failed to fetch event request state: %w", err)
	}
	if state.Status != string(workflow.StatusPending) {
		return workflow.ErrNotPending
	}
	if state.ReviewStep == nil || *state.ReviewStep != string(step) {
		return workflow.ErrStepMismatch
	}
	// State still matches but the update touched nothing; surface as stale.
	return workflow.ErrStepMismatch
}

// --- Audit / notification ---

func (s *eventRequestService) writeAudit(ctx context.Context, actor Actor, action string, entityID uuid.UUID, entityName string, details map[string]interface{}) error {
	// Details is a jsonb column; it must always hold valid JSON
	payload := "{}"
	if details != nil {
		raw, _ := json.Marshal(details)
		payload = string(raw)
	}

	var userID *uuid.UUID
	if actor.ID != uuid.Nil {
		actorID := actor.ID
		userID = &actorID
	}

	entry := &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID.String(),
		EntityName: entityName,
		Details:    payload,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *eventRequestService) notify(id uuid.UUID, status workflow.Status, step *workflow.Step) {
	if s.hub == nil {
		return
	}

	payload := map[string]interface{}{
		"type":        "event_request.status_changed",
		"id":          id.String(),
		"status":      string(status),
		"review_step": nil,
	}
	if step != nil {
		payload["review_step"] = string(*step)
	}

	message, err := json.Marshal(payload)
	if err != nil {
		return
	}

	// Non-blocking: a saturated hub must never stall the request path.
	select {
	case s.hub.Broadcast <- message:
	default:
	}
}

// --- Response mappers ---

func toEventRequestResponse(r model.EventRequest) EventRequestResponse {
	resp := EventRequestResponse{
		ID:             r.ID.String(),
		EventType:      r.EventType,
		StartTime:      r.StartTime.Format(time.RFC3339),
		FinishTime:     r.FinishTime.Format(time.RFC3339),
		Location:       r.Location,
		Preferences:    r.Preferences,
		ExpectedBudget: r.ExpectedBudget.StringFixed(2),
		Note:           r.Note,
		Status:         r.Status,
		ReviewStep:     r.ReviewStep,

		ScsoFeedback:                  r.ScsoFeedback,
		FinancialManagerFeedback:      r.FinancialManagerFeedback,
		AdministrationManagerFeedback: r.AdministrationManagerFeedback,
		CustomerMeetingFeedback:       r.CustomerMeetingFeedback,

		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}

	if r.Preferences == nil {
		resp.Preferences = []string{}
	}
	if r.Client != nil {
		resp.Client = &ClientSummary{
			ID:          r.Client.ID.String(),
			Name:        r.Client.Name,
			CompanyName: r.Client.CompanyName,
		}
	}
	if r.Submitter != nil {
		resp.Submitter = &SubmitterSummary{
			ID:       r.Submitter.ID.String(),
			Username: r.Submitter.Username,
			Role:     r.Submitter.Role,
		}
	}

	return resp
}
