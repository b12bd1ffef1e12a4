package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
	"github.com/duelperf/duel-logger/internal/state"
	"github.com/duelperf/duel-logger/internal/storage"
)

// StateHandler serves the immutable application snapshot the UI renders
// from. The UI never mutates the snapshot; it issues the entity
// endpoints and refetches.
type StateHandler struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(store *storage.Store, logger *zap.Logger) *StateHandler {
	return &StateHandler{store: store, logger: logger}
}

// GetState builds and returns a fresh snapshot of everything the UI
// needs in one round trip: entities, matches, win/loss records and any
// pending migration message.
// Route: GET /api/v1/state
func (h *StateHandler) GetState(c *gin.Context) {
	snap, err := state.Build(c.Request.Context(), h.store)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// AckMigrationMessage clears the stored migration message once the UI
// has shown it, so it is surfaced exactly once per migration.
// Route: POST /api/v1/state/ack-migration-message
func (h *StateHandler) AckMigrationMessage(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.store.SetMetadata(ctx, model.MetaLastMigrationMessage, ""); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if err := h.store.SetMetadata(ctx, model.MetaLastMigrationMessageAt, ""); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
