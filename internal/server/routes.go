// Package server configures the HTTP server and routes of the browser
// bridge.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/config"
	"github.com/duelperf/duel-logger/internal/handler"
	"github.com/duelperf/duel-logger/internal/middleware"
	"github.com/duelperf/duel-logger/internal/storage"
)

// RegisterRoutes sets up all HTTP routes on the Gin engine. Dependencies
// are passed explicitly; each handler gets exactly what it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, store *storage.Store, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(store)
	deckHandler := handler.NewDeckHandler(store, logger)
	seasonHandler := handler.NewSeasonHandler(store, logger)
	keywordHandler := handler.NewKeywordHandler(store, logger)
	matchHandler := handler.NewMatchHandler(store, logger)
	stateHandler := handler.NewStateHandler(store, logger)
	backupHandler := handler.NewBackupHandler(store, logger)

	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.Origins()))
	api.Use(middleware.RequestLog(logger))
	{
		api.GET("/state", stateHandler.GetState)
		api.POST("/state/ack-migration-message", stateHandler.AckMigrationMessage)

		api.GET("/decks", deckHandler.ListDecks)
		api.POST("/decks", deckHandler.CreateDeck)
		api.DELETE("/decks/:name", deckHandler.DeleteDeck)

		api.GET("/opponent-decks", deckHandler.ListOpponentDecks)
		api.POST("/opponent-decks", deckHandler.CreateOpponentDeck)
		api.DELETE("/opponent-decks/:name", deckHandler.DeleteOpponentDeck)

		api.GET("/seasons", seasonHandler.ListSeasons)
		api.POST("/seasons", seasonHandler.CreateSeason)
		api.DELETE("/seasons/:name", seasonHandler.DeleteSeason)

		api.GET("/keywords", keywordHandler.ListKeywords)
		api.POST("/keywords", keywordHandler.CreateKeyword)
		api.PATCH("/keywords/:identifier", keywordHandler.UpdateKeyword)
		api.DELETE("/keywords/:identifier", keywordHandler.DeleteKeyword)

		api.GET("/matches", matchHandler.ListMatches)
		api.POST("/matches", matchHandler.CreateMatch)
		api.GET("/matches/next-number", matchHandler.NextMatchNumber)
		api.GET("/matches/:id", matchHandler.GetMatch)
		api.PATCH("/matches/:id", matchHandler.UpdateMatch)
		api.DELETE("/matches/:id", matchHandler.DeleteMatch)
	}

	// Backup endpoints walk the whole database, so they carry their own
	// rate limit on top of the API group middleware.
	backup := api.Group("/backup")
	backup.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		backup.POST("/export", backupHandler.Export)
		backup.GET("/archive", backupHandler.ExportArchive)
		backup.POST("/import", backupHandler.Import)
	}
}
