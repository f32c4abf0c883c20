package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/logger"
)

// SourceHandler serves source configuration endpoints.
type SourceHandler struct {
	repo   database.SourceRepositoryInterface
	logger logger.Interface
}

// NewSourceHandler creates a source handler.
func NewSourceHandler(repo database.SourceRepositoryInterface, log logger.Interface) *SourceHandler {
	return &SourceHandler{repo: repo, logger: log}
}

// sourceRequest is the operator payload for creating or updating a source.
type sourceRequest struct {
	Name               string         `json:"name"`
	Active             *bool          `json:"active"`
	Priority           int            `json:"priority"`
	Strategy           string         `json:"strategy"`
	RetryMax           int            `json:"retry_max"`
	BackoffBaseSeconds int            `json:"backoff_base_seconds"`
	RequestTimeoutMs   int            `json:"request_timeout_ms"`
	MinIntervalSeconds int            `json:"min_interval_seconds"`
	StrategyConfig     map[string]any `json:"strategy_config"`
}

// toSource validates the payload into a domain source.
func (r *sourceRequest) toSource() (*domain.Source, error) {
	cfg, err := domain.DecodeStrategyConfig(r.StrategyConfig)
	if err != nil {
		return nil, err
	}

	source := &domain.Source{
		Name:               r.Name,
		Active:             r.Active == nil || *r.Active,
		Priority:           r.Priority,
		Strategy:           r.Strategy,
		RetryMax:           r.RetryMax,
		BackoffBaseSeconds: r.BackoffBaseSeconds,
		RequestTimeoutMs:   r.RequestTimeoutMs,
		MinIntervalSeconds: r.MinIntervalSeconds,
		StrategyConfig:     cfg,
	}
	source.SetDefaults()

	if err := source.Validate(); err != nil {
		return nil, err
	}

	return source, nil
}

// Create registers a new source.
func (h *SourceHandler) Create(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	source, err := req.toSource()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid source", "details": err.Error()})
		return
	}

	if err := h.repo.Create(c.Request.Context(), source); err != nil {
		h.logger.Error("Failed to create source", "source_name", source.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create source"})
		return
	}

	h.logger.Info("Source created", "source_id", source.ID, "source_name", source.Name)

	c.JSON(http.StatusCreated, source)
}

// List returns all sources.
func (h *SourceHandler) List(c *gin.Context) {
	sources, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources, "count": len(sources)})
}

// GetByID returns one source.
func (h *SourceHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	source, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
			return
		}
		h.logger.Error("Failed to get source", "source_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get source"})
		return
	}

	c.JSON(http.StatusOK, source)
}

// Update modifies a source's operator-editable settings.
func (h *SourceHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	source, err := req.toSource()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid source", "details": err.Error()})
		return
	}
	source.ID = id

	if err := h.repo.Update(c.Request.Context(), source); err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
			return
		}
		h.logger.Error("Failed to update source", "source_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update source"})
		return
	}

	h.logger.Info("Source updated", "source_id", id, "source_name", source.Name)

	c.JSON(http.StatusOK, source)
}
