package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One in-memory database per test; a second pooled connection would
	// see an empty schema, so cap the pool at one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Client{},
		&model.EventRequest{},
		&model.AuditLog{},
		&model.Role{},
		&model.Permission{},
	))

	return db
}

type requestTestEnv struct {
	db      *gorm.DB
	service EventRequestService

	scso  Actor
	fm    Actor
	am    Actor
	admin Actor

	clientID uuid.UUID
}

func newRequestTestEnv(t *testing.T) *requestTestEnv {
	t.Helper()

	db := newTestDB(t)
	requestRepo := repository.NewEventRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)
	svc := NewEventRequestService(requestRepo, auditRepo, txManager, nil)

	env := &requestTestEnv{db: db, service: svc}
	env.scso = env.createStaff(t, "alice", model.RoleSeniorCustomerService)
	env.fm = env.createStaff(t, "bob", model.RoleFinancialManager)
	env.am = env.createStaff(t, "carol", model.RoleAdministrationManager)
	env.admin = env.createStaff(t, "dave", model.RoleAdmin)

	client := &model.Client{Name: "Acme Corp", CompanyName: "Acme"}
	require.NoError(t, db.Create(client).Error)
	env.clientID = client.ID

	return env
}

func (e *requestTestEnv) createStaff(t *testing.T, username, role string) Actor {
	t.Helper()
	user := &model.User{
		Username: username,
		Email:    username + "@example.com",
		Phone:    "0000",
		Password: "x",
		Role:     role,
	}
	require.NoError(t, e.db.Create(user).Error)
	return Actor{ID: user.ID, Role: role}
}

func (e *requestTestEnv) createDraft(t *testing.T) EventRequestResponse {
	t.Helper()
	created, err := e.service.Create(context.Background(), e.scso, CreateEventRequestDTO{
		ClientID:       e.clientID.String(),
		EventType:      "conference",
		StartTime:      "2026-10-01T09:00:00Z",
		FinishTime:     "2026-10-01T18:00:00Z",
		Location:       "Main hall",
		Preferences:    []string{model.PrefDecorations, model.PrefFoodDrinks},
		ExpectedBudget: "15000.00",
	})
	require.NoError(t, err)
	return created
}

func (e *requestTestEnv) loadRequest(t *testing.T, id string) model.EventRequest {
	t.Helper()
	var req model.EventRequest
	require.NoError(t, e.db.First(&req, "id = ?", id).Error)
	return req
}

func (e *requestTestEnv) countAudit(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.AuditLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}

func TestCreateEventRequest(t *testing.T) {
	env := newRequestTestEnv(t)

	created := env.createDraft(t)

	assert.Equal(t, string(workflow.StatusDraft), created.Status)
	assert.Nil(t, created.ReviewStep)
	assert.Equal(t, "15000.00", created.ExpectedBudget)
	assert.Equal(t, []string{model.PrefDecorations, model.PrefFoodDrinks}, created.Preferences)
	require.NotNil(t, created.Client)
	assert.Equal(t, "Acme Corp", created.Client.Name)
	require.NotNil(t, created.Submitter)
	assert.Equal(t, "alice", created.Submitter.Username)
	assert.EqualValues(t, 1, env.countAudit(t, model.ActionCreateEventRequest))
}

func TestCreateEventRequest_Validation(t *testing.T) {
	env := newRequestTestEnv(t)

	_, err := env.service.Create(context.Background(), env.scso, CreateEventRequestDTO{
		ClientID:    env.clientID.String(),
		EventType:   "conference",
		StartTime:   "2026-10-01T09:00:00Z",
		FinishTime:  "2026-10-01T18:00:00Z",
		Preferences: []string{"fireworks"},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.service.Create(context.Background(), env.scso, CreateEventRequestDTO{
		ClientID:   env.clientID.String(),
		EventType:  "conference",
		StartTime:  "2026-10-01T18:00:00Z",
		FinishTime: "2026-10-01T09:00:00Z",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.service.Create(context.Background(), env.scso, CreateEventRequestDTO{
		ClientID:       env.clientID.String(),
		EventType:      "conference",
		StartTime:      "2026-10-01T09:00:00Z",
		FinishTime:     "2026-10-01T18:00:00Z",
		ExpectedBudget: "-5",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubmitForReview(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, created.ID, "ready for review"))

	req := env.loadRequest(t, created.ID)
	assert.Equal(t, string(workflow.StatusPending), req.Status)
	require.NotNil(t, req.ReviewStep)
	assert.Equal(t, string(workflow.StepFinancialManager), *req.ReviewStep)
	require.NotNil(t, req.ScsoFeedback)
	assert.Equal(t, "ready for review", *req.ScsoFeedback)
	assert.EqualValues(t, 1, env.countAudit(t, model.ActionSubmitForReview))

	// Submitting again must fail: the request is no longer a draft
	err := env.service.SubmitForReview(ctx, env.scso, created.ID, "")
	assert.ErrorIs(t, err, workflow.ErrNotDraft)
}

func TestSubmitForReview_RoleGate(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)

	err := env.service.SubmitForReview(context.Background(), env.fm, created.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)

	req := env.loadRequest(t, created.ID)
	assert.Equal(t, string(workflow.StatusDraft), req.Status)
}

func TestRejectDraft(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	require.NoError(t, env.service.RejectDraft(ctx, env.scso, created.ID, "incomplete details"))

	req := env.loadRequest(t, created.ID)
	assert.Equal(t, string(workflow.StatusRejected), req.Status)
	assert.Nil(t, req.ReviewStep)
	require.NotNil(t, req.ScsoFeedback)
	assert.Equal(t, "incomplete details", *req.ScsoFeedback)

	// A rejected request never enters review
	err := env.service.Review(ctx, env.fm, created.ID, string(workflow.StepFinancialManager), string(workflow.DecisionApprove), "")
	assert.ErrorIs(t, err, workflow.ErrNotPending)
}

func TestReview_FullApprovalChain(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, created.ID, "please review"))

	require.NoError(t, env.service.Review(ctx, env.fm, created.ID,
		string(workflow.StepFinancialManager), string(workflow.DecisionApprove), "budget fits"))

	req := env.loadRequest(t, created.ID)
	assert.Equal(t, string(workflow.StatusPending), req.Status)
	require.NotNil(t, req.ReviewStep)
	assert.Equal(t, string(workflow.StepAdministrationManager), *req.ReviewStep)

	require.NoError(t, env.service.Review(ctx, env.am, created.ID,
		string(workflow.StepAdministrationManager), string(workflow.DecisionApprove), "venue available"))

	req = env.loadRequest(t, created.ID)
	assert.Equal(t, string(workflow.StatusPending), req.Status)
	require.NotNil(t, req.ReviewStep)
	assert.Equal(t, string(workflow.StepCustomerMeeting), *req.ReviewStep)

	require.NoError(t, env.service.Review(ctx, env.scso, created.ID,
		string(workflow.StepCustomerMeeting), string(workflow.DecisionApprove), "client agreed"))

	req = env.loadRequest(t, created.ID)
	assert.Equal(t, string(workflow.StatusApproved), req.Status)
	assert.Nil(t, req.ReviewStep)

	// Every step left its feedback behind
	require.NotNil(t, req.ScsoFeedback)
	require.NotNil(t, req.FinancialManagerFeedback)
	require.NotNil(t, req.AdministrationManagerFeedback)
	require.NotNil(t, req.CustomerMeetingFeedback)
	assert.Equal(t, "budget fits", *req.FinancialManagerFeedback)
	assert.Equal(t, "venue available", *req.AdministrationManagerFeedback)
	assert.Equal(t, "client agreed", *req.CustomerMeetingFeedback)

	assert.EqualValues(t, 3, env.countAudit(t, model.ActionApproveStep))

	// Approved requests can be opened for execution
	require.NoError(t, env.service.Open(ctx, env.scso, created.ID))
	req = env.loadRequest(t, created.ID)
	assert.Equal(t, string(workflow.StatusOpen), req.Status)
	assert.Nil(t, req.ReviewStep)
}

func TestReview_RejectAtMiddleStep(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, created.ID, ""))
	require.NoError(t, env.service.Review(ctx, env.fm, created.ID,
		string(workflow.StepFinancialManager), string(workflow.DecisionApprove), "budget fits"))
	require.NoError(t, env.service.Review(ctx, env.am, created.ID,
		string(workflow.StepAdministrationManager), string(workflow.DecisionReject), "no staff that week"))

	req := env.loadRequest(t, created.ID)
	assert.Equal(t, string(workflow.StatusRejected), req.Status)
	assert.Nil(t, req.ReviewStep)
	require.NotNil(t, req.AdministrationManagerFeedback)
	assert.Equal(t, "no staff that week", *req.AdministrationManagerFeedback)

	// Earlier feedback survives the rejection
	require.NotNil(t, req.FinancialManagerFeedback)
	assert.Equal(t, "budget fits", *req.FinancialManagerFeedback)

	// The workflow is over; no step accepts further decisions
	err := env.service.Review(ctx, env.scso, created.ID,
		string(workflow.StepCustomerMeeting), string(workflow.DecisionApprove), "")
	assert.ErrorIs(t, err, workflow.ErrNotPending)
}

func TestReview_StepMismatch(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, created.ID, ""))

	// The request sits at the financial manager step; acting on a later
	// step must fail and leave the row untouched.
	err := env.service.Review(ctx, env.am, created.ID,
		string(workflow.StepAdministrationManager), string(workflow.DecisionApprove), "premature")
	assert.ErrorIs(t, err, workflow.ErrStepMismatch)

	req := env.loadRequest(t, created.ID)
	assert.Equal(t, string(workflow.StatusPending), req.Status)
	require.NotNil(t, req.ReviewStep)
	assert.Equal(t, string(workflow.StepFinancialManager), *req.ReviewStep)
	assert.Nil(t, req.AdministrationManagerFeedback)
}

func TestReview_StaleReviewerConflict(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, created.ID, ""))
	require.NoError(t, env.service.Review(ctx, env.fm, created.ID,
		string(workflow.StepFinancialManager), string(workflow.DecisionApprove), "first decision"))

	// A reviewer working from a stale page replays the same step; the
	// request has already advanced, so the replay must not apply.
	err := env.service.Review(ctx, env.fm, created.ID,
		string(workflow.StepFinancialManager), string(workflow.DecisionReject), "changed my mind")
	assert.ErrorIs(t, err, workflow.ErrStepMismatch)

	req := env.loadRequest(t, created.ID)
	require.NotNil(t, req.FinancialManagerFeedback)
	assert.Equal(t, "first decision", *req.FinancialManagerFeedback)
	require.NotNil(t, req.ReviewStep)
	assert.Equal(t, string(workflow.StepAdministrationManager), *req.ReviewStep)
}

func TestReview_RoleMismatch(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, created.ID, ""))

	err := env.service.Review(ctx, env.am, created.ID,
		string(workflow.StepFinancialManager), string(workflow.DecisionApprove), "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestReview_InvalidInputs(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, created.ID, ""))

	err := env.service.Review(ctx, env.fm, created.ID, "BUDGET_CHECK", string(workflow.DecisionApprove), "")
	assert.ErrorIs(t, err, workflow.ErrInvalidStep)

	err = env.service.Review(ctx, env.fm, created.ID, string(workflow.StepFinancialManager), "MAYBE", "")
	assert.ErrorIs(t, err, workflow.ErrInvalidDecision)
}

func TestReview_WhitespaceFeedbackStoredAsNull(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, created.ID, "   "))
	require.NoError(t, env.service.Review(ctx, env.fm, created.ID,
		string(workflow.StepFinancialManager), string(workflow.DecisionApprove), "  \t "))

	req := env.loadRequest(t, created.ID)
	assert.Nil(t, req.ScsoFeedback)
	assert.Nil(t, req.FinancialManagerFeedback)
}

func TestUpdate_OnlyDraftsEditable(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	newLocation := "Garden pavilion"
	updated, err := env.service.Update(ctx, env.scso, created.ID, UpdateEventRequestDTO{Location: &newLocation})
	require.NoError(t, err)
	assert.Equal(t, "Garden pavilion", updated.Location)

	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, created.ID, ""))

	_, err = env.service.Update(ctx, env.scso, created.ID, UpdateEventRequestDTO{Location: &newLocation})
	assert.ErrorIs(t, err, workflow.ErrNotDraft)
}

func TestOpen_RequiresApproved(t *testing.T) {
	env := newRequestTestEnv(t)
	created := env.createDraft(t)
	ctx := context.Background()

	err := env.service.Open(ctx, env.scso, created.ID)
	assert.ErrorIs(t, err, workflow.ErrNotApproved)

	err = env.service.Open(ctx, env.fm, created.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestReview_NotFound(t *testing.T) {
	env := newRequestTestEnv(t)

	err := env.service.Review(context.Background(), env.fm, uuid.NewString(),
		string(workflow.StepFinancialManager), string(workflow.DecisionApprove), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEventRequests_StatusFilter(t *testing.T) {
	env := newRequestTestEnv(t)
	ctx := context.Background()

	first := env.createDraft(t)
	env.createDraft(t)
	require.NoError(t, env.service.SubmitForReview(ctx, env.scso, first.ID, ""))

	drafts, total, err := env.service.List(ctx, EventRequestFilter{Status: string(workflow.StatusDraft)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, drafts, 1)
	assert.Equal(t, string(workflow.StatusDraft), drafts[0].Status)

	_, _, err = env.service.List(ctx, EventRequestFilter{Status: "ARCHIVED"})
	assert.ErrorIs(t, err, ErrValidation)
}
