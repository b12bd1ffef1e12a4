package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
	"github.com/duelperf/duel-logger/internal/storage"
)

// MatchHandler handles requests for match records, the core entity of
// the logger.
type MatchHandler struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(store *storage.Store, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{store: store, logger: logger}
}

// ListMatches returns matches in chronological order, optionally
// filtered to a single deck.
// Route: GET /api/v1/matches?deck=Blue-Eyes
func (h *MatchHandler) ListMatches(c *gin.Context) {
	matches, err := h.store.FetchMatches(c.Request.Context(), c.Query("deck"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// GetMatch returns a single match with joined names and resolved
// keywords.
// Route: GET /api/v1/matches/:id
func (h *MatchHandler) GetMatch(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}

	detail, err := h.store.GetMatch(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CreateMatch records a new match. Turn and result accept booleans,
// canonical ints and the word forms; unknown keyword tokens are dropped
// silently by the store.
// Route: POST /api/v1/matches
func (h *MatchHandler) CreateMatch(c *gin.Context) {
	var rec model.MatchRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := h.store.RecordMatch(c.Request.Context(), rec)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	detail, err := h.store.GetMatch(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// UpdateMatch partially updates a match. Absent fields are left
// unchanged; an explicit empty keyword list clears the tags.
// Route: PATCH /api/v1/matches/:id
func (h *MatchHandler) UpdateMatch(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}

	var upd model.MatchUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	detail, err := h.store.UpdateMatch(c.Request.Context(), id, upd)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DeleteMatch removes a match and rolls its usage counts back.
// Route: DELETE /api/v1/matches/:id
func (h *MatchHandler) DeleteMatch(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteMatch(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// NextMatchNumber suggests the next match_no for a deck so the UI can
// prefill the form.
// Route: GET /api/v1/matches/next-number?deck=Blue-Eyes
func (h *MatchHandler) NextMatchNumber(c *gin.Context) {
	next, err := h.store.NextMatchNumber(c.Request.Context(), c.Query("deck"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_match_no": next})
}

// matchID parses the :id path parameter, writing the 400 itself so
// callers can just bail on !ok.
func matchID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return 0, false
	}
	return id, true
}
