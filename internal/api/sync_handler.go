package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/logger"
	"github.com/jonesrussell/racesync/internal/scheduler"
)

// SyncHandler serves manual sync triggers. Both the sync-all and the
// per-binding trigger go through the scheduler's dispatch path, so a
// binding with a running sync is skipped, never raced.
type SyncHandler struct {
	scheduler *scheduler.Scheduler
	bindings  database.BindingRepositoryInterface
	logger    logger.Interface
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(
	sched *scheduler.Scheduler,
	bindings database.BindingRepositoryInterface,
	log logger.Interface,
) *SyncHandler {
	return &SyncHandler{scheduler: sched, bindings: bindings, logger: log}
}

// SyncAll dispatches every active binding, bypassing the due check.
func (h *SyncHandler) SyncAll(c *gin.Context) {
	dispatched, err := h.scheduler.SyncAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to dispatch sync-all", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dispatch sync"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"dispatched": dispatched})
}

// SyncOne dispatches a single binding's sync.
func (h *SyncHandler) SyncOne(c *gin.Context) {
	id := c.Param("id")

	binding, err := h.bindings.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrBindingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Binding not found"})
			return
		}
		h.logger.Error("Failed to get binding", "binding_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get binding"})
		return
	}

	dispatched, err := h.scheduler.SyncBinding(c.Request.Context(), binding)
	if err != nil {
		h.logger.Error("Failed to dispatch sync", "binding_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dispatch sync"})
		return
	}
	if !dispatched {
		c.JSON(http.StatusConflict, gin.H{"error": "Sync already in flight for binding"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"binding_id": id, "dispatched": 1})
}
