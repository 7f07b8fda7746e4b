package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type EventRequestHandler struct {
	requestService service.EventRequestService
}

// NewEventRequestHandler sets up the routing dependencies for event request endpoints
func NewEventRequestHandler(requestService service.EventRequestService) *EventRequestHandler {
	return &EventRequestHandler{requestService: requestService}
}

// ReviewActionRequest carries a reviewer's decision at one review step
type ReviewActionRequest struct {
	Step     string `json:"step" binding:"required"`
	Decision string `json:"decision" binding:"required"`
	Feedback string `json:"feedback"`
}

// FeedbackRequest carries optional feedback text for draft-stage actions
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// RegisterRoutes binds the event request endpoints to the router group
func (h *EventRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/event-requests")
	{
		requests.GET("", middleware.RequirePermission("event_requests.read"), h.ListEventRequests)
		requests.GET("/:id", middleware.RequirePermission("event_requests.read"), h.GetEventRequestByID)
		requests.POST("", middleware.RequirePermission("event_requests.write"), h.CreateEventRequest)
		requests.PUT("/:id", middleware.RequirePermission("event_requests.write"), h.UpdateEventRequest)
		requests.DELETE("/:id", middleware.RequirePermission("event_requests.delete"), h.DeleteEventRequest)

		// Workflow transitions. The services also enforce role ownership of
		// each step, so the permission gate here is the coarse filter only.
		requests.POST("/:id/submit", middleware.RequirePermission("event_requests.review"), h.SubmitForReview)
		requests.POST("/:id/reject-draft", middleware.RequirePermission("event_requests.review"), h.RejectDraft)
		requests.POST("/:id/review", middleware.RequirePermission("event_requests.review"), h.Review)
		requests.POST("/:id/open", middleware.RequirePermission("event_requests.review"), h.Open)
	}
}

// CreateEventRequest handles POST /event-requests
// @Summary      Create event request
// @Description  Records a new client event request as a draft
// @Tags         event-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateEventRequestDTO  true  "Create Event Request Payload"
// @Success      201      {object}  response.Response{data=service.EventRequestResponse}
// @Failure      400      {object}  response.Response
// @Router       /event-requests [post]
func (h *EventRequestHandler) CreateEventRequest(c *gin.Context) {
	var req service.CreateEventRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	request, err := h.requestService.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, request))
}

// ListEventRequests handles GET /event-requests with status filter
// @Summary      List event requests
// @Description  Retrieves a paginated list of event requests, optionally filtered by status
// @Tags         event-requests
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Filter by status (DRAFT, PENDING, REJECTED, APPROVED, OPEN)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      400     {object}  response.Response
// @Router       /event-requests [get]
func (h *EventRequestHandler) ListEventRequests(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.EventRequestFilter{
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	}

	requests, total, err := h.requestService.List(c.Request.Context(), filter)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, requests, total, params.Page, params.Limit))
}

// GetEventRequestByID handles GET /event-requests/:id
// @Summary      Get event request by ID
// @Description  Fetch a single event request with client, submitter and all review feedback
// @Tags         event-requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Event Request ID"
// @Success      200  {object}  response.Response{data=service.EventRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /event-requests/{id} [get]
func (h *EventRequestHandler) GetEventRequestByID(c *gin.Context) {
	request, err := h.requestService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}

// UpdateEventRequest handles PUT /event-requests/:id
// @Summary      Update event request
// @Description  Edits a draft event request; requests already in review cannot change
// @Tags         event-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                         true  "Event Request ID"
// @Param        payload  body      service.UpdateEventRequestDTO  true  "Update Event Request Payload"
// @Success      200      {object}  response.Response{data=service.EventRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /event-requests/{id} [put]
func (h *EventRequestHandler) UpdateEventRequest(c *gin.Context) {
	var req service.UpdateEventRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	request, err := h.requestService.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}

// DeleteEventRequest handles DELETE /event-requests/:id
// @Summary      Delete event request
// @Description  Soft deletes an event request by ID
// @Tags         event-requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Event Request ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /event-requests/{id} [delete]
func (h *EventRequestHandler) DeleteEventRequest(c *gin.Context) {
	if err := h.requestService.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Event request deleted successfully"))
}

// SubmitForReview handles POST /event-requests/:id/submit
// @Summary      Submit draft for review
// @Description  Moves a draft into review at the first step (financial manager)
// @Tags         event-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true   "Event Request ID"
// @Param        payload  body      handler.FeedbackRequest  false  "Optional feedback"
// @Success      200      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /event-requests/{id}/submit [post]
func (h *EventRequestHandler) SubmitForReview(c *gin.Context) {
	var req FeedbackRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	if err := h.requestService.SubmitForReview(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Feedback); err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Event request submitted for review"))
}

// RejectDraft handles POST /event-requests/:id/reject-draft
// @Summary      Reject draft
// @Description  Rejects a draft before it enters review
// @Tags         event-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true   "Event Request ID"
// @Param        payload  body      handler.FeedbackRequest  false  "Optional feedback"
// @Success      200      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /event-requests/{id}/reject-draft [post]
func (h *EventRequestHandler) RejectDraft(c *gin.Context) {
	var req FeedbackRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	if err := h.requestService.RejectDraft(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Feedback); err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Draft rejected"))
}

// Review handles POST /event-requests/:id/review
// @Summary      Apply a review decision
// @Description  Approves or rejects the request at the named review step. Fails with 409 if the request has moved since the reviewer loaded it.
// @Tags         event-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Event Request ID"
// @Param        payload  body      handler.ReviewActionRequest  true  "Review Decision"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /event-requests/{id}/review [post]
func (h *EventRequestHandler) Review(c *gin.Context) {
	var req ReviewActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	err := h.requestService.Review(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Step, req.Decision, req.Feedback)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Review decision applied"))
}

// Open handles POST /event-requests/:id/open
// @Summary      Open an approved request
// @Description  Releases a fully approved request for execution
// @Tags         event-requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Event Request ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /event-requests/{id}/open [post]
func (h *EventRequestHandler) Open(c *gin.Context) {
	if err := h.requestService.Open(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Event request opened"))
}
