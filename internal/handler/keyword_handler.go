package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/storage"
)

// KeywordHandler handles requests for user-defined keywords.
type KeywordHandler struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewKeywordHandler creates a new KeywordHandler.
func NewKeywordHandler(store *storage.Store, logger *zap.Logger) *KeywordHandler {
	return &KeywordHandler{store: store, logger: logger}
}

// ListKeywords returns every keyword in creation order, hidden ones
// included; the UI decides whether to show them.
// Route: GET /api/v1/keywords
func (h *KeywordHandler) ListKeywords(c *gin.Context) {
	keywords, err := h.store.ListKeywords(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keywords": keywords})
}

// CreateKeyword registers a new keyword and returns it with its
// generated identifier.
// Route: POST /api/v1/keywords
func (h *KeywordHandler) CreateKeyword(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	kw, err := h.store.AddKeyword(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, kw)
}

// UpdateKeyword partially updates a keyword by identifier. Only the
// fields present in the body change; hiding a keyword removes it from
// pickers without touching the matches that reference it.
// Route: PATCH /api/v1/keywords/:identifier
func (h *KeywordHandler) UpdateKeyword(c *gin.Context) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Hidden      *bool   `json:"is_hidden"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	kw, err := h.store.UpdateKeyword(c.Request.Context(), c.Param("identifier"), storage.KeywordUpdate{
		Name:        req.Name,
		Description: req.Description,
		Hidden:      req.Hidden,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, kw)
}

// DeleteKeyword removes a keyword by identifier. Keywords still
// referenced by matches are protected and the request fails with 409.
// Route: DELETE /api/v1/keywords/:identifier
func (h *KeywordHandler) DeleteKeyword(c *gin.Context) {
	if err := h.store.DeleteKeyword(c.Request.Context(), c.Param("identifier")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
