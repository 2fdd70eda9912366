package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approvals/internal/application/service"
	"github.com/garyjia/approvals/internal/application/visibility"
	"github.com/garyjia/approvals/internal/domain/approval"
	"github.com/garyjia/approvals/pkg/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// RegisterSubjectRequest is the body of POST /api/subjects
type RegisterSubjectRequest struct {
	Type      string     `json:"type" binding:"required"`
	ID        string     `json:"id" binding:"required"`
	OwnerID   *string    `json:"owner_id"`
	CreatedAt *time.Time `json:"created_at"`
}

// RegisterSubjectResponse carries the stored subject and, when the type
// sets new subjects pending, the record written for it
type RegisterSubjectResponse struct {
	Subject  *approval.Subject `json:"subject"`
	Approval *approval.Record  `json:"approval,omitempty"`
}

// ListSubjectsRequest represents query parameters for listing subjects
type ListSubjectsRequest struct {
	Type   string `form:"type" binding:"required"`
	Scope  string `form:"scope"`
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// TransitionRequest is the body of approve, reject and pending calls
type TransitionRequest struct {
	ActorID  *string                `json:"actor_id"`
	Comment  *string                `json:"comment"`
	Reason   *string                `json:"reason"`
	Context  map[string]interface{} `json:"context"`
	Metadata map[string]interface{} `json:"metadata"`
}

// StatusResponse describes where a subject stands
type StatusResponse struct {
	Subject    approval.SubjectRef `json:"subject"`
	Status     *approval.Status    `json:"status"`
	IsApproved bool                `json:"is_approved"`
	IsPending  bool                `json:"is_pending"`
	IsRejected bool                `json:"is_rejected"`
	Latest     *approval.Record    `json:"latest_approval"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	code := http.StatusOK
	if h.services.Health != nil {
		ok, details := h.services.Health(c.Request.Context())
		response.Components = details
		if !ok {
			response.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data:    response,
	})
}

// ListTypes handles GET /api/types
func (h *Handlers) ListTypes(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.services.Statistics.SubjectTypes(),
	})
}

// RegisterSubject handles POST /api/subjects
func (h *Handlers) RegisterSubject(c *gin.Context) {
	var req RegisterSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid subject payload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "type and id are required",
		})
		return
	}

	subject := &approval.Subject{
		Type:    strings.TrimSpace(req.Type),
		ID:      strings.TrimSpace(req.ID),
		OwnerID: utils.SanitizePtr(req.OwnerID),
	}
	if req.CreatedAt != nil {
		subject.CreatedAt = req.CreatedAt.UTC()
	}

	record, err := h.services.Subjects.Register(c.Request.Context(), subject)
	if err != nil {
		h.writeError(c, "Failed to register subject", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    RegisterSubjectResponse{Subject: subject, Approval: record},
	})
}

// ListSubjects handles GET /api/subjects
func (h *Handlers) ListSubjects(c *gin.Context) {
	var req ListSubjectsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "type is required",
		})
		return
	}

	mode, err := visibility.ParseMode(req.Scope)
	if err != nil {
		h.writeError(c, "Invalid visibility mode", err)
		return
	}

	q := service.ListQuery{Type: req.Type, Mode: mode, Limit: req.Limit, Offset: req.Offset}
	if q.Limit <= 0 || q.Limit > maxPageSize {
		q.Limit = defaultPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if req.Status != "" {
		status, err := approval.ParseStatus(req.Status)
		if err != nil {
			h.writeError(c, "Invalid status filter", err)
			return
		}
		q.Status = &status
	}

	subjects, err := h.services.Subjects.List(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, "Failed to list subjects", err)
		return
	}
	if subjects == nil {
		subjects = []*approval.Subject{}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    subjects,
	})
}

// GetSubject handles GET /api/subjects/:type/:id
func (h *Handlers) GetSubject(c *gin.Context) {
	subject, ok := h.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    subject,
	})
}

// DeleteSubject handles DELETE /api/subjects/:type/:id
func (h *Handlers) DeleteSubject(c *gin.Context) {
	if err := h.services.Subjects.Delete(c.Request.Context(), refParam(c)); err != nil {
		h.writeError(c, "Failed to delete subject", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStatus handles GET /api/subjects/:type/:id/status
func (h *Handlers) GetStatus(c *gin.Context) {
	subject, ok := h.lookup(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	status, err := h.services.Approvals.Status(ctx, subject)
	if err != nil {
		h.writeError(c, "Failed to resolve status", err)
		return
	}
	latest, err := h.services.Approvals.Latest(ctx, subject)
	if err != nil {
		h.writeError(c, "Failed to load latest approval", err)
		return
	}

	resp := StatusResponse{Subject: subject.SubjectRef(), Status: status, Latest: latest}
	if status != nil {
		resp.IsApproved = *status == approval.StatusApproved
		resp.IsPending = *status == approval.StatusPending
		resp.IsRejected = *status == approval.StatusRejected
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// GetHistory handles GET /api/subjects/:type/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	subject, ok := h.lookup(c)
	if !ok {
		return
	}

	history, err := h.services.Approvals.History(c.Request.Context(), subject)
	if err != nil {
		h.writeError(c, "Failed to load approval history", err)
		return
	}
	if history == nil {
		history = []*approval.Record{}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    history,
	})
}

// Approve handles POST /api/subjects/:type/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	h.transition(c, approval.ActionApprove)
}

// Reject handles POST /api/subjects/:type/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	h.transition(c, approval.ActionReject)
}

// SetPending handles POST /api/subjects/:type/:id/pending
func (h *Handlers) SetPending(c *gin.Context) {
	h.transition(c, approval.ActionSetPending)
}

func (h *Handlers) transition(c *gin.Context, action approval.Action) {
	var req TransitionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("Invalid transition payload", "action", action.String(), "error", err)
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "invalid request body",
			})
			return
		}
	}

	subject, ok := h.lookup(c)
	if !ok {
		return
	}

	in := service.TransitionInput{
		ActorID:  utils.SanitizePtr(req.ActorID),
		Comment:  utils.StripControlPtr(req.Comment),
		Context:  req.Context,
		Metadata: req.Metadata,
	}

	var (
		record *approval.Record
		err    error
	)
	ctx := c.Request.Context()
	switch action {
	case approval.ActionApprove:
		record, err = h.services.Approvals.Approve(ctx, subject, in)
	case approval.ActionReject:
		record, err = h.services.Approvals.Reject(ctx, subject, service.RejectInput{TransitionInput: in, Reason: utils.StripControlPtr(req.Reason)})
	default:
		record, err = h.services.Approvals.SetPending(ctx, subject, in)
	}
	if err != nil {
		h.writeError(c, "Approval transition failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    record,
	})
}

// GetStatistics handles GET /api/statistics. Without a type it summarizes
// every configured type; start and end restrict the population by creation
// date.
func (h *Handlers) GetStatistics(c *gin.Context) {
	ctx := c.Request.Context()
	subjectType := c.Query("type")
	start, end := c.Query("start"), c.Query("end")

	var (
		data interface{}
		err  error
	)
	switch {
	case subjectType == "":
		data, err = h.services.Statistics.GetAllStatistics(ctx)
	case start != "" || end != "":
		data, err = h.services.Statistics.GetStatisticsForDateRange(ctx, subjectType, start, end)
	default:
		data, err = h.services.Statistics.GetStatistics(ctx, subjectType)
	}
	if err != nil {
		h.writeError(c, "Failed to compute statistics", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// DetailedStatisticsRequest represents query parameters for detailed statistics
type DetailedStatisticsRequest struct {
	Limit int `form:"limit"`
}

// GetDetailedStatistics handles GET /api/statistics/:type/detailed. A type
// without audit records yields 200 with no data.
func (h *Handlers) GetDetailedStatistics(c *gin.Context) {
	var req DetailedStatisticsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	stats, err := h.services.Statistics.GetDetailedStatistics(c.Request.Context(), c.Param("type"), req.Limit)
	if err != nil {
		h.writeError(c, "Failed to compute detailed statistics", err)
		return
	}

	resp := Response{Success: true}
	if stats != nil {
		resp.Data = stats
	}
	c.JSON(http.StatusOK, resp)
}

// lookup loads the subject named by the path, writing the error response
// itself when that fails
func (h *Handlers) lookup(c *gin.Context) (*approval.Subject, bool) {
	subject, err := h.services.Subjects.Get(c.Request.Context(), refParam(c))
	if err != nil {
		h.writeError(c, "Failed to load subject", err)
		return nil, false
	}
	return subject, true
}

func refParam(c *gin.Context) approval.SubjectRef {
	return approval.Ref(c.Param("type"), c.Param("id"))
}

// writeError maps domain errors to HTTP status codes
func (h *Handlers) writeError(c *gin.Context, msg string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	} else {
		h.logger.Warn(msg, "path", c.Request.URL.Path, "error", err)
	}

	c.JSON(code, Response{
		Success: false,
		Error:   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, approval.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, approval.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, approval.ErrSubjectExists):
		return http.StatusConflict
	case errors.Is(err, approval.ErrConfig):
		return http.StatusInternalServerError
	case errors.Is(err, approval.ErrInvalidStatus),
		errors.Is(err, approval.ErrInvalidInput),
		errors.Is(err, approval.ErrMissingField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
