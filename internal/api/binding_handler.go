package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/logger"
)

// defaultRunHistoryLimit bounds the run listing per binding.
const defaultRunHistoryLimit = 20

// BindingHandler serves event-source binding endpoints.
type BindingHandler struct {
	bindings database.BindingRepositoryInterface
	sources  database.SourceRepositoryInterface
	runs     database.RunRepositoryInterface
	logger   logger.Interface
}

// NewBindingHandler creates a binding handler.
func NewBindingHandler(
	bindings database.BindingRepositoryInterface,
	sources database.SourceRepositoryInterface,
	runs database.RunRepositoryInterface,
	log logger.Interface,
) *BindingHandler {
	return &BindingHandler{bindings: bindings, sources: sources, runs: runs, logger: log}
}

// bindingRequest is the operator payload for binding an event to a source.
type bindingRequest struct {
	EventID   string `json:"event_id"`
	SourceID  string `json:"source_id"`
	URL       string `json:"url"`
	IsPrimary bool   `json:"is_primary"`
}

// Create binds an (event, source, URL) triple.
func (h *BindingHandler) Create(c *gin.Context) {
	var req bindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.EventID == "" || req.SourceID == "" || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id, source_id and url are required"})
		return
	}

	// The source must exist; bindings reference it for priority and tuning.
	if _, err := h.sources.GetByID(c.Request.Context(), req.SourceID); err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown source"})
			return
		}
		h.logger.Error("Failed to check source", "source_id", req.SourceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create binding"})
		return
	}

	binding := &domain.Binding{
		EventID:   req.EventID,
		SourceID:  req.SourceID,
		URL:       req.URL,
		IsPrimary: req.IsPrimary,
	}

	if err := h.bindings.Create(c.Request.Context(), binding); err != nil {
		h.logger.Error("Failed to create binding", "event_id", req.EventID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create binding"})
		return
	}

	h.logger.Info("Binding created",
		"binding_id", binding.ID,
		"event_id", binding.EventID,
		"source_id", binding.SourceID,
	)

	c.JSON(http.StatusCreated, binding)
}

// List returns all bindings.
func (h *BindingHandler) List(c *gin.Context) {
	bindings, err := h.bindings.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list bindings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list bindings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bindings": bindings, "count": len(bindings)})
}

// ListRuns returns recent sync runs for one binding.
func (h *BindingHandler) ListRuns(c *gin.Context) {
	id := c.Param("id")

	limit := defaultRunHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.runs.ListByBinding(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("Failed to list runs", "binding_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
