// Package api exposes the operator-facing HTTP interface.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/racesync/internal/logger"
)

const corsMaxAge = 12 * time.Hour

// Deps bundles the collaborators the API serves.
type Deps struct {
	Sources   *SourceHandler
	Bindings  *BindingHandler
	Entries   *EntryHandler
	Sync      *SyncHandler
	CORSAllow []string
}

// NewRouter builds the gin engine with all operator endpoints.
func NewRouter(deps Deps, log logger.Interface) *gin.Engine {
	router := gin.New()

	if len(deps.CORSAllow) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSAllow,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           corsMaxAge,
		}))
	}

	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	sources := v1.Group("/sources")
	sources.GET("", deps.Sources.List)
	sources.POST("", deps.Sources.Create)
	sources.GET("/:id", deps.Sources.GetByID)
	sources.PUT("/:id", deps.Sources.Update)

	bindings := v1.Group("/bindings")
	bindings.GET("", deps.Bindings.List)
	bindings.POST("", deps.Bindings.Create)
	bindings.GET("/:id/runs", deps.Bindings.ListRuns)
	bindings.POST("/:id/sync", deps.Sync.SyncOne)

	entries := v1.Group("/entries")
	entries.GET("", deps.Entries.List)
	entries.GET("/:id", deps.Entries.GetByID)
	entries.POST("/:id/resolve", deps.Entries.Resolve)
	entries.POST("/:id/ignore", deps.Entries.Ignore)

	v1.POST("/sync", deps.Sync.SyncAll)

	return router
}

// ginLogger logs each request with method, path, status and latency.
func ginLogger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
