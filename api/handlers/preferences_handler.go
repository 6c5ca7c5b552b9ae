package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/relaxr-go/internal/app"
)

// PreferencesHandler handles the save-location preference and folder opening
type PreferencesHandler struct {
	dispatcher *app.Dispatcher
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(dispatcher *app.Dispatcher) *PreferencesHandler {
	return &PreferencesHandler{dispatcher: dispatcher}
}

// PathRequest carries a filesystem path
type PathRequest struct {
	Path string `json:"path"`
}

// GetDefaultDirectory handles GET /api/v1/preferences/default-directory
func (h *PreferencesHandler) GetDefaultDirectory(c *gin.Context) {
	c.JSON(http.StatusOK, h.dispatcher.DefaultDirectory())
}

// SetDefaultDirectory handles PUT /api/v1/preferences/default-directory.
// An empty path asks the user to pick one.
func (h *PreferencesHandler) SetDefaultDirectory(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := h.dispatcher.Dispatch(c.Request.Context(), app.SetDefaultDirectory{Path: req.Path})
	c.JSON(StatusFor(resp), resp)
}

// OpenFileLocation handles POST /api/v1/files/open
func (h *PreferencesHandler) OpenFileLocation(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	resp := h.dispatcher.Dispatch(c.Request.Context(), app.OpenFileLocation{Path: req.Path})
	if !resp.Success {
		c.JSON(http.StatusNotFound, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
