package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/storage"
)

// DeckHandler handles requests for the player's own decks and the
// opponent deck archetypes. Both live here because the UI edits them on
// the same settings page and the operations mirror each other.
type DeckHandler struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(store *storage.Store, logger *zap.Logger) *DeckHandler {
	return &DeckHandler{store: store, logger: logger}
}

type deckRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListDecks returns every registered deck ordered by name.
// Route: GET /api/v1/decks
func (h *DeckHandler) ListDecks(c *gin.Context) {
	decks, err := h.store.ListDecks(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decks": decks})
}

// CreateDeck registers a new deck.
// Route: POST /api/v1/decks
func (h *DeckHandler) CreateDeck(c *gin.Context) {
	var req deckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	deck, err := h.store.AddDeck(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, deck)
}

// DeleteDeck removes a deck by name. Decks referenced by matches are
// protected and the request fails with 409.
// Route: DELETE /api/v1/decks/:name
func (h *DeckHandler) DeleteDeck(c *gin.Context) {
	if err := h.store.DeleteDeck(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListOpponentDecks returns every opponent archetype ordered by name.
// Route: GET /api/v1/opponent-decks
func (h *DeckHandler) ListOpponentDecks(c *gin.Context) {
	decks, err := h.store.ListOpponentDecks(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"opponent_decks": decks})
}

// CreateOpponentDeck registers a new opponent archetype.
// Route: POST /api/v1/opponent-decks
func (h *DeckHandler) CreateOpponentDeck(c *gin.Context) {
	var req deckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	deck, err := h.store.AddOpponentDeck(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, deck)
}

// DeleteOpponentDeck removes an opponent archetype by name.
// Route: DELETE /api/v1/opponent-decks/:name
func (h *DeckHandler) DeleteOpponentDeck(c *gin.Context) {
	if err := h.store.DeleteOpponentDeck(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
