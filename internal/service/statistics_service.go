package service

import (
	"context"

	"backend/internal/model"
	"backend/internal/workflow"

	"gorm.io/gorm"
)

// StepQueue is the number of pending requests waiting at one review step
type StepQueue struct {
	Step    string `json:"step"`
	Pending int64  `json:"pending"`
}

// DashboardResponse aggregates the portal's front-page numbers
type DashboardResponse struct {
	RequestsByStatus map[string]int64 `json:"requests_by_status"`
	PendingBySteps   []StepQueue      `json:"pending_by_step"`
	TotalClients     int64            `json:"total_clients"`
	ActiveClients    int64            `json:"active_clients"`
	TotalStaff       int64            `json:"total_staff"`
}

type StatisticsService interface {
	GetDashboard(ctx context.Context) (DashboardResponse, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetDashboard computes request counts per status, the queue depth at each
// review step, and client/staff totals
func (s *statisticsService) GetDashboard(ctx context.Context) (DashboardResponse, error) {
	response := DashboardResponse{
		RequestsByStatus: make(map[string]int64),
	}

	var statusCounts []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&model.EventRequest{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return DashboardResponse{}, err
	}
	for _, sc := range statusCounts {
		response.RequestsByStatus[sc.Status] = sc.Count
	}

	var stepCounts []struct {
		ReviewStep string
		Count      int64
	}
	if err := s.db.WithContext(ctx).Model(&model.EventRequest{}).
		Select("review_step, COUNT(*) as count").
		Where("status = ?", string(workflow.StatusPending)).
		Group("review_step").
		Scan(&stepCounts).Error; err != nil {
		return DashboardResponse{}, err
	}

	// Report every step, including empty queues, in sequence order
	byStep := make(map[string]int64, len(stepCounts))
	for _, sc := range stepCounts {
		byStep[sc.ReviewStep] = sc.Count
	}
	for _, step := range workflow.StepSequence {
		response.PendingBySteps = append(response.PendingBySteps, StepQueue{
			Step:    string(step),
			Pending: byStep[string(step)],
		})
	}

	if err := s.db.WithContext(ctx).Model(&model.Client{}).Count(&response.TotalClients).Error; err != nil {
		return DashboardResponse{}, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Client{}).Where("is_active = ?", true).Count(&response.ActiveClients).Error; err != nil {
		return DashboardResponse{}, err
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&response.TotalStaff).Error; err != nil {
		return DashboardResponse{}, err
	}

	return response, nil
}
