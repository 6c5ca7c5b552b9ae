package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/relaxr-go/internal/domain"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// ServiceStatus is the part of the conversion service health reports on
type ServiceStatus interface {
	IsRunning() bool
	GetStats() (*domain.JobStats, error)
}

// SubscriberCounter reports connected event stream clients
type SubscriberCounter interface {
	Subscribers() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	service ServiceStatus
	events  SubscriberCounter
	started time.Time
}

// NewHealthHandler creates a new health handler. events may be nil.
func NewHealthHandler(service ServiceStatus, events SubscriberCounter) *HealthHandler {
	return &HealthHandler{
		service: service,
		events:  events,
		started: time.Now(),
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status      string           `json:"status"`
	Version     string           `json:"version"`
	Uptime      string           `json:"uptime"`
	Running     bool             `json:"running"`
	Jobs        *domain.JobStats `json:"jobs,omitempty"`
	Subscribers int              `json:"subscribers"`
}

// Health handles GET /health. It answers 200 while the process is up,
// even during shutdown.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Running: h.service.IsRunning(),
	}
	if stats, err := h.service.GetStats(); err == nil {
		resp.Jobs = stats
	}
	if h.events != nil {
		resp.Subscribers = h.events.Subscribers()
	}

	c.JSON(http.StatusOK, resp)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.service.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "conversion service is shutting down",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
