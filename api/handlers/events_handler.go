package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/internal/app"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local clients only; the server binds to localhost
	},
}

// EventsHandler streams job events over WebSocket
type EventsHandler struct {
	hub    *app.EventHub
	logger *zap.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *app.EventHub, log *zap.Logger) *EventsHandler {
	return &EventsHandler{
		hub:    hub,
		logger: log,
	}
}

// HandleWebSocket handles GET /api/v1/events. The optional job_id query
// parameter limits the stream to one job.
func (h *EventsHandler) HandleWebSocket(c *gin.Context) {
	jobID := c.Query("job_id")

	// Subscribed before the handshake completes, so a client that submits
	// right after connecting cannot miss its job's events.
	events, cancel := h.hub.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("WebSocket client connected",
		zap.String("job_id", jobID),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Read messages from client so close frames and pongs are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if jobID != "" && evt.JobID != jobID {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				h.logger.Debug("Failed to send event", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			h.logger.Debug("WebSocket client disconnected", zap.String("remote_addr", c.Request.RemoteAddr))
			return
		}
	}
}
