package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
	"github.com/duelperf/duel-logger/internal/storage"
)

// SeasonHandler handles requests for seasons.
type SeasonHandler struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewSeasonHandler creates a new SeasonHandler.
func NewSeasonHandler(store *storage.Store, logger *zap.Logger) *SeasonHandler {
	return &SeasonHandler{store: store, logger: logger}
}

// ListSeasons returns every season ordered by start date.
// Route: GET /api/v1/seasons
func (h *SeasonHandler) ListSeasons(c *gin.Context) {
	seasons, err := h.store.ListSeasons(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seasons": seasons})
}

// CreateSeason registers a new season. Dates and times are taken as the
// plain strings the UI submits; the store only requires a non-empty name.
// Route: POST /api/v1/seasons
func (h *SeasonHandler) CreateSeason(c *gin.Context) {
	var req model.Season
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	season, err := h.store.AddSeason(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, season)
}

// DeleteSeason removes a season by name. Matches keep their rows; the
// season reference is set to NULL by the schema.
// Route: DELETE /api/v1/seasons/:name
func (h *SeasonHandler) DeleteSeason(c *gin.Context) {
	if err := h.store.DeleteSeason(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
