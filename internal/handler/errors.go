// Package handler contains the HTTP request handlers of the browser
// bridge. Handlers validate/normalize input, call the store, and map the
// domain error taxonomy to HTTP statuses.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/storage"
)

// writeError maps a storage error to the HTTP response. Validation,
// duplicate, not-found and in-use errors surface their specific message;
// anything else was already logged with full context by the storage layer
// and surfaces only as a generic failure.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case storage.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case storage.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case storage.IsDuplicate(err), storage.IsInUse(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
	}
}
