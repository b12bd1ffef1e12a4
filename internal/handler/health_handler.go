package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duelperf/duel-logger/internal/schema"
	"github.com/duelperf/duel-logger/internal/storage"
)

// HealthHandler answers liveness checks from the browser UI.
type HealthHandler struct {
	store *storage.Store
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store *storage.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Healthz reports service status along with the schema version currently
// on disk, so the UI can warn when the database is older than it expects.
func (h *HealthHandler) Healthz(c *gin.Context) {
	version := h.store.SchemaVersion(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        "duel-logger",
		"schema_version": version.String(),
		"schema_latest":  schema.Target().String(),
	})
}
