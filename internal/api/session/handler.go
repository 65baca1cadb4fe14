package session

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/pdfqa/internal/domain"
	"github.com/liliang-cn/pdfqa/internal/service"
)

// Handler turns HTTP requests into session events
type Handler struct {
	manager *service.Manager
}

// NewHandler creates a new session handler
func NewHandler(manager *service.Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes registers session routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Create)
	r.GET("/:id", h.Get)
	r.DELETE("/:id", h.Delete)
	r.POST("/:id/document", h.SelectFile)
	r.POST("/:id/process", h.Process)
	r.POST("/:id/questions", h.Ask)
	r.DELETE("/:id/messages", h.ClearHistory)
	r.GET("/:id/config", h.GetConfig)
	r.PUT("/:id/config", h.UpdateConfig)
}

// Create starts a new session
func (h *Handler) Create(c *gin.Context) {
	ctrl, err := h.manager.Create()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ctrl.Snapshot())
}

// Get returns the session snapshot
func (h *Handler) Get(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// Delete ends a session
func (h *Handler) Delete(c *gin.Context) {
	if err := h.manager.Delete(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

// multipartOverhead is allowed on top of the file limit for form framing.
const multipartOverhead = 1 << 20

// SelectFile handles a PDF upload in multipart field "file"
func (h *Handler) SelectFile(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	limit := h.manager.MaxUploadBytes()
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, fmt.Errorf("%w: request exceeds limit of %d bytes", domain.ErrFileTooLarge, limit))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if limit > 0 && header.Size > limit {
		writeError(c, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrFileTooLarge, header.Size, limit))
		return
	}

	src, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}

	handle, err := domain.NewDocumentHandle(header.Filename, data)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := ctrl.SelectFile(handle); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// Process submits the current document to the backend
func (h *Handler) Process(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	if err := ctrl.Process(c.Request.Context()); err != nil {
		if errors.Is(err, domain.ErrGateway) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   service.ProcessFailureMessage(err),
				"session": ctrl.Snapshot(),
			})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// Ask asks a question about the processed document. Backend failures are
// reported in the answer, not as an HTTP error.
func (h *Handler) Ask(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var req domain.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := ctrl.Ask(c.Request.Context(), req.Question)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.QuestionResponse{
		Answer:   res.Answer.Content,
		Failed:   res.Err != nil,
		Messages: ctrl.Snapshot().Messages,
	})
}

// ClearHistory empties the transcript
func (h *Handler) ClearHistory(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.ClearHistory()
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// GetConfig returns the session's backend configuration
func (h *Handler) GetConfig(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Config())
}

// UpdateConfig changes the session's backend configuration
func (h *Handler) UpdateConfig(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var update domain.ConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := ctrl.UpdateConfig(update)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) controller(c *gin.Context) (*service.Controller, bool) {
	ctrl, err := h.manager.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return ctrl, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedFile):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrGateway):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
