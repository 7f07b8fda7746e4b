package repository

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/workflow"

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

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Client{},
		&model.EventRequest{},
	))

	return db
}

func seedRequest(t *testing.T, db *gorm.DB, status string, step *string) *model.EventRequest {
	t.Helper()

	user := &model.User{Username: "tester", Email: "tester@example.com", Phone: "0", Password: "x", Role: model.RoleSeniorCustomerService}
	require.NoError(t, db.Create(user).Error)

	client := &model.Client{Name: "Client"}
	require.NoError(t, db.Create(client).Error)

	req := &model.EventRequest{
		ClientID:    client.ID,
		SubmitterID: user.ID,
		EventType:   "wedding",
		StartTime:   time.Now().Add(24 * time.Hour),
		FinishTime:  time.Now().Add(30 * time.Hour),
		Status:      status,
		ReviewStep:  step,
	}
	require.NoError(t, db.Create(req).Error)
	return req
}

func TestUpdateWhereState_MatchingState(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRequestRepository(db)
	ctx := context.Background()

	step := string(workflow.StepFinancialManager)
	req := seedRequest(t, db, string(workflow.StatusPending), &step)

	wfStep := workflow.StepFinancialManager
	rows, err := repo.UpdateWhereState(ctx, req.ID, workflow.StatusPending, &wfStep, map[string]interface{}{
		"status":      string(workflow.StatusPending),
		"review_step": string(workflow.StepAdministrationManager),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	state, err := repo.FetchState(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, state.ReviewStep)
	assert.Equal(t, string(workflow.StepAdministrationManager), *state.ReviewStep)
}

func TestUpdateWhereState_StatusMismatchTouchesNothing(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRequestRepository(db)
	ctx := context.Background()

	req := seedRequest(t, db, string(workflow.StatusDraft), nil)

	wfStep := workflow.StepFinancialManager
	rows, err := repo.UpdateWhereState(ctx, req.ID, workflow.StatusPending, &wfStep, map[string]interface{}{
		"status": string(workflow.StatusApproved),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)

	state, err := repo.FetchState(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusDraft), state.Status)
}

func TestUpdateWhereState_StepMismatchTouchesNothing(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRequestRepository(db)
	ctx := context.Background()

	step := string(workflow.StepAdministrationManager)
	req := seedRequest(t, db, string(workflow.StatusPending), &step)

	wfStep := workflow.StepFinancialManager
	rows, err := repo.UpdateWhereState(ctx, req.ID, workflow.StatusPending, &wfStep, map[string]interface{}{
		"status": string(workflow.StatusRejected),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)
}

func TestUpdateWhereState_NilStepMeansNoStep(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRequestRepository(db)
	ctx := context.Background()

	req := seedRequest(t, db, string(workflow.StatusDraft), nil)

	rows, err := repo.UpdateWhereState(ctx, req.ID, workflow.StatusDraft, nil, map[string]interface{}{
		"status":      string(workflow.StatusPending),
		"review_step": string(workflow.StepFinancialManager),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	// A second identical transition finds the row already moved
	rows, err = repo.UpdateWhereState(ctx, req.ID, workflow.StatusDraft, nil, map[string]interface{}{
		"status": string(workflow.StatusPending),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)
}
