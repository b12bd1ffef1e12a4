// Package main is the entry point for the duel-logger bridge server: it
// opens (and, if needed, creates or migrates) the SQLite database, then
// serves the HTTP API the browser UI talks to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/config"
	"github.com/duelperf/duel-logger/internal/logging"
	"github.com/duelperf/duel-logger/internal/paths"
	"github.com/duelperf/duel-logger/internal/schema"
	"github.com/duelperf/duel-logger/internal/server"
	"github.com/duelperf/duel-logger/internal/storage"
)

func main() {
	// run() keeps main() trivial so deferred cleanup executes before the
	// process exits (os.Exit skips deferred functions).
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root, err := paths.DataRoot()
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}
	layout, err := paths.Resolve(root)
	if err != nil {
		return fmt.Errorf("resolving app layout: %w", err)
	}
	if err := layout.EnsureDirs(); err != nil {
		return fmt.Errorf("creating app directories: %w", err)
	}

	cfg, err := config.Load(layout.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(layout.LogDir, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := storage.OpenDatabase(layout.DBFile)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	store := storage.NewStore(db, layout.BackupDir, logger)
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	// A database written by a newer release is refused outright rather
	// than migrated downward or patched in place.
	onDisk := schema.ReadFromDB(ctx, db, schema.Version{})
	if schema.Target().Less(onDisk) {
		return fmt.Errorf("database schema %s is newer than this build supports (%s); upgrade the application",
			onDisk, schema.Target())
	}

	if err := store.EnsureDatabase(ctx); err != nil {
		logger.Error("schema migration failed, attempting recovery", zap.Error(err))
		if rerr := store.RecoverFromMigrationFailure(ctx, err); rerr != nil {
			return fmt.Errorf("database recovery failed: %w", rerr)
		}
	}

	// Optional pin: a packaged build can insist on the exact schema it
	// was tested against.
	if want := cfg.Database.ExpectedVersion; want != "" {
		expected, err := schema.Parse(want)
		if err != nil {
			return fmt.Errorf("invalid database.expected_version %q: %w", want, err)
		}
		if got := store.SchemaVersion(ctx); got.Compare(expected) != 0 {
			return fmt.Errorf("schema version is %s, config expects %s", got, expected)
		}
	}

	srv := server.New(cfg, store, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Give in-flight requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
