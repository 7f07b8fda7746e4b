package repository

import (
	"context"

	"backend/internal/model"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestState is the minimal pair the review flow needs to classify a
// failed transition. Reads of it are advisory only; the authoritative
// check is the conditional update.
type RequestState struct {
	Status     string
	ReviewStep *string
}

type EventRequestRepository interface {
	Create(ctx context.Context, req *model.EventRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.EventRequest, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.EventRequest, error)
	List(ctx context.Context, status string, page, limit int) ([]model.EventRequest, int64, error)
	FetchState(ctx context.Context, id uuid.UUID) (*RequestState, error)
	Update(ctx context.Context, req *model.EventRequest) error
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdateWhereState applies updates to the request only if its persisted
	// (status, review_step) still equals the expected pair, and reports the
	// number of rows touched. Zero rows means a concurrent actor got there
	// first (or the id does not exist); the caller re-reads to tell which.
	UpdateWhereState(ctx context.Context, id uuid.UUID, expectedStatus workflow.Status, expectedStep *workflow.Step, updates map[string]interface{}) (int64, error)
}

type eventRequestRepository struct {
	db *gorm.DB
}

func NewEventRequestRepository(db *gorm.DB) EventRequestRepository {
	return &eventRequestRepository{db: db}
}

func (r *eventRequestRepository) Create(ctx context.Context, req *model.EventRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *eventRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.EventRequest, error) {
	var req model.EventRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *eventRequestRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.EventRequest, error) {
	var req model.EventRequest
	if err := GetDB(ctx, r.db).Preload("Client").Preload("Submitter").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *eventRequestRepository) List(ctx context.Context, status string, page, limit int) ([]model.EventRequest, int64, error) {
	var requests []model.EventRequest
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.EventRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("Client").Preload("Submitter")
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if err := fetchQuery.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *eventRequestRepository) FetchState(ctx context.Context, id uuid.UUID) (*RequestState, error) {
	var state RequestState
	err := GetDB(ctx, r.db).Model(&model.EventRequest{}).
		Select("status", "review_step").
		Where("id = ?", id).
		Take(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *eventRequestRepository) Update(ctx context.Context, req *model.EventRequest) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *eventRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.EventRequest{}).Error
}

func (r *eventRequestRepository) UpdateWhereState(ctx context.Context, id uuid.UUID, expectedStatus workflow.Status, expectedStep *workflow.Step, updates map[string]interface{}) (int64, error) {
	query := GetDB(ctx, r.db).Model(&model.EventRequest{}).
		Where("id = ? AND status = ?", id, string(expectedStatus))
	if expectedStep == nil {
		query = query.Where("review_step IS NULL")
	} else {
		query = query.Where("review_step = ?", string(*expectedStep))
	}

	result := query.Updates(updates)
	return result.RowsAffected, result.Error
}
