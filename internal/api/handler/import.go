package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashwanth-3000/find.ai/internal/importer"
	"github.com/yashwanth-3000/find.ai/internal/repository"
)

// ImportHandler exposes the import pipeline boundary: start, status, retry,
// and cancel. The pipeline itself runs asynchronously; these endpoints only
// enqueue work and report observable state.
type ImportHandler struct {
	svc    *importer.Service
	events *importer.RingReporter
}

// NewImportHandler creates a new import handler. events may be nil when no
// ring reporter is wired; the status endpoint then omits the log.
func NewImportHandler(svc *importer.Service, events *importer.RingReporter) *ImportHandler {
	return &ImportHandler{svc: svc, events: events}
}

type startImportRequest struct {
	URL string `json:"url"`
}

// StartImport handles POST /api/v1/profiles/:id/import.
func (h *ImportHandler) StartImport(c *gin.Context) {
	userID := c.Param("id")

	var req startImportRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.StartImport(c.Request.Context(), userID, req.URL); err != nil {
		h.writeImportError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
}

// GetStatus handles GET /api/v1/profiles/:id/import.
func (h *ImportHandler) GetStatus(c *gin.Context) {
	userID := c.Param("id")

	status, err := h.svc.Status(c.Request.Context(), userID)
	if err != nil {
		h.writeImportError(c, err)
		return
	}

	resp := gin.H{"import": status}
	if h.events != nil {
		resp["events"] = h.events.Events(userID)
	}
	c.JSON(http.StatusOK, resp)
}

// Retry handles POST /api/v1/profiles/:id/import/retry.
func (h *ImportHandler) Retry(c *gin.Context) {
	userID := c.Param("id")

	if err := h.svc.Retry(c.Request.Context(), userID); err != nil {
		h.writeImportError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
}

// Cancel handles DELETE /api/v1/profiles/:id/import.
func (h *ImportHandler) Cancel(c *gin.Context) {
	userID := c.Param("id")

	if err := h.svc.Cancel(c.Request.Context(), userID); err != nil {
		h.writeImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "idle"})
}

// Bootstrap handles POST /api/v1/profiles/:id/import/bootstrap. The web app
// calls this on page load so an interrupted import resumes automatically.
func (h *ImportHandler) Bootstrap(c *gin.Context) {
	userID := c.Param("id")

	action, err := h.svc.Bootstrap(c.Request.Context(), userID)
	if err != nil {
		h.writeImportError(c, err)
		return
	}
	status, err := h.svc.Status(c.Request.Context(), userID)
	if err != nil {
		h.writeImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"action": action, "import": status})
}

func (h *ImportHandler) writeImportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
	case errors.Is(err, importer.ErrImportInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "an import is already in progress"})
	case errors.Is(err, importer.ErrNotFailed):
		c.JSON(http.StatusConflict, gin.H{"error": "import is not in a failed state"})
	case errors.Is(err, importer.ErrInvalidURL), errors.Is(err, importer.ErrNoSourceURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
