package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/internal/app"
	"github.com/yourusername/relaxr-go/internal/domain"
)

// JobHandler handles conversion and job-related HTTP requests
type JobHandler struct {
	dispatcher *app.Dispatcher
	service    *app.ConversionService
	logger     *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(dispatcher *app.Dispatcher, service *app.ConversionService, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		dispatcher: dispatcher,
		service:    service,
		logger:     logger,
	}
}

// ConvertRequest represents a request to convert a URL
type ConvertRequest struct {
	URL      string `json:"url" binding:"required"`
	SavePath string `json:"save_path,omitempty"`
}

// Convert handles POST /api/v1/convert. It blocks until the job finishes.
func (h *JobHandler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := h.dispatcher.Dispatch(c.Request.Context(), app.ConvertToMP3{URL: req.URL, SavePath: req.SavePath})
	c.JSON(StatusFor(resp), resp)
}

// Submit handles POST /api/v1/jobs. The job runs in the background.
func (h *JobHandler) Submit(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.dispatcher.Submit(req.URL, req.SavePath)
	if err != nil {
		h.logger.Error("Failed to submit job", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.service.GetJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		if !domain.ValidateStatus(domain.JobStatus(status)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		filters["status"] = status
	}

	jobs, err := h.service.ListJobs(filters)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}

	c.JSON(http.StatusOK, jobs)
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// StatusFor maps a command response to an HTTP status
func StatusFor(resp app.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.Kind {
	case domain.KindInvalidURL:
		return http.StatusBadRequest
	case domain.KindMetadataUnavailable, domain.KindDownloadFailed:
		return http.StatusBadGateway
	case domain.KindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}
