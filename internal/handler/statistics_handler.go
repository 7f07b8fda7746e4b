package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statsService service.StatisticsService
}

// NewStatisticsHandler sets up the routing dependencies for dashboard endpoints
func NewStatisticsHandler(statsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statsService: statsService}
}

// RegisterRoutes binds the dashboard endpoints to the router group
func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard", middleware.RequirePermission("dashboard.read"), h.GetDashboard)
}

// GetDashboard handles GET /dashboard
// @Summary      Dashboard statistics
// @Description  Returns request counts per status, pending queue depth per review step, and client/staff totals
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.DashboardResponse}
// @Failure      500  {object}  response.Response
// @Router       /dashboard [get]
func (h *StatisticsHandler) GetDashboard(c *gin.Context) {
	dashboard, err := h.statsService.GetDashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to compute dashboard"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, dashboard))
}
