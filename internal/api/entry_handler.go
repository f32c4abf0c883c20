package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/logger"
	"github.com/jonesrussell/racesync/internal/review"
)

// Entry listing bounds.
const (
	defaultEntryListLimit = 50
	maxEntryListLimit     = 500
)

// EntryHandler serves the raw crawl entry review endpoints.
type EntryHandler struct {
	service *review.Service
	logger  logger.Interface
}

// NewEntryHandler creates an entry handler.
func NewEntryHandler(service *review.Service, log logger.Interface) *EntryHandler {
	return &EntryHandler{service: service, logger: log}
}

// List returns entries filtered by lifecycle status.
func (h *EntryHandler) List(c *gin.Context) {
	status := c.DefaultQuery("status", domain.EntryStatusNeedsReview)

	limit := defaultEntryListLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxEntryListLimit {
			limit = parsed
		}
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	entries, err := h.service.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list entries", "status", status, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list entries"})
		return
	}

	// Strip content from listings; the detail endpoint carries it.
	summaries := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, gin.H{
			"id":           e.ID,
			"binding_id":   e.BindingID,
			"source_id":    e.SourceID,
			"url":          e.URL,
			"content_hash": e.ContentHash,
			"http_status":  e.HTTPStatus,
			"status":       e.Status,
			"extraction":   e.Extraction,
			"fetched_at":   e.FetchedAt,
			"processed_at": e.ProcessedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"entries": summaries, "count": len(summaries)})
}

// GetByID returns one entry with full content and extraction metadata.
func (h *EntryHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	entry, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		h.logger.Error("Failed to get entry", "entry_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get entry"})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Resolve applies an operator's manual field values to an entry.
func (h *EntryHandler) Resolve(c *gin.Context) {
	id := c.Param("id")

	var res review.Resolution
	if err := c.ShouldBindJSON(&res); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.service.Resolve(c.Request.Context(), id, res); err != nil {
		switch {
		case errors.Is(err, database.ErrEntryNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
		case errors.Is(err, review.ErrNoTemporalAnchor),
			errors.Is(err, review.ErrUnknownField),
			errors.Is(err, review.ErrNoValues):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to resolve entry", "entry_id", id, "error", err)
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": domain.EntryStatusProcessed})
}

// Ignore dismisses an entry as not actionable.
func (h *EntryHandler) Ignore(c *gin.Context) {
	id := c.Param("id")

	if err := h.service.Ignore(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": domain.EntryStatusIgnored})
}
