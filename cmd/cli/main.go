// Package main provides the duel-logger command line tools: restoring a
// CSV backup archive into the database, exporting a backup, and
// re-initializing the database from scratch.
//
// Exit codes for restore: 0 on success, 1 when the restore itself fails,
// 2 when the input archive cannot be read at all.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/config"
	"github.com/duelperf/duel-logger/internal/logging"
	"github.com/duelperf/duel-logger/internal/paths"
	"github.com/duelperf/duel-logger/internal/restore"
	"github.com/duelperf/duel-logger/internal/storage"
)

const (
	exitRestoreFailed   = 1
	exitUnreadableInput = 2
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dpl",
		Short:         "Duel Performance Logger maintenance tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(restoreCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(initCmd())
	return root
}

// env bundles everything a subcommand needs: resolved directories, an
// open store, and a logger writing to the app's log directory.
type env struct {
	layout paths.Layout
	store  *storage.Store
	logger *zap.Logger
}

func setup() (*env, func(), error) {
	root, err := paths.DataRoot()
	if err != nil {
		return nil, nil, fmt.Errorf("resolving data directory: %w", err)
	}
	layout, err := paths.Resolve(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving app layout: %w", err)
	}
	if err := layout.EnsureDirs(); err != nil {
		return nil, nil, fmt.Errorf("creating app directories: %w", err)
	}

	cfg, err := config.Load(layout.ConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(layout.LogDir, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := storage.OpenDatabase(layout.DBFile)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	store := storage.NewStore(db, layout.BackupDir, logger)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			_ = store.Close()
			_ = logger.Sync()
		})
	}
	return &env{layout: layout, store: store, logger: logger}, cleanup, nil
}

func restoreCmd() *cobra.Command {
	var (
		input  string
		mode   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a CSV backup archive into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(input, mode, dryRun)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Path to the backup zip archive (required)")
	cmd.Flags().StringVar(&mode, "mode", string(restore.ModeFull), "Restore mode: full or upsert")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and report without committing")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runRestore(input, mode string, dryRun bool) error {
	var restoreMode restore.Mode
	switch mode {
	case string(restore.ModeFull):
		restoreMode = restore.ModeFull
	case string(restore.ModeUpsert):
		restoreMode = restore.ModeUpsert
	default:
		return fmt.Errorf("invalid --mode %q: must be full or upsert", mode)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		color.Red("cannot read input archive: %v", err)
		os.Exit(exitUnreadableInput)
	}

	e, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := e.store.EnsureDatabase(ctx); err != nil {
		return fmt.Errorf("preparing database: %w", err)
	}

	engine := restore.New(e.store.DB(), e.layout.LogDir, e.logger)
	report := engine.RestoreArchive(ctx, data, restore.Options{
		Mode:   restoreMode,
		DryRun: dryRun,
	})
	printReport(report)

	if !report.Ok() {
		cleanup()
		os.Exit(exitRestoreFailed)
	}
	return nil
}

func printReport(r *restore.Report) {
	for _, tc := range r.Counts {
		fmt.Printf("  %-16s %d rows\n", tc.Table, tc.Rows)
	}
	if r.Integrity != "" {
		fmt.Printf("  integrity check: %s\n", r.Integrity)
	}
	if r.LogPath != "" {
		fmt.Printf("  report: %s\n", r.LogPath)
	}

	switch {
	case r.Ok() && r.DryRun:
		color.Yellow("dry run ok; nothing was written")
	case r.Ok():
		color.Green("restore complete")
	default:
		if r.Err != "" {
			color.Red("restore failed: %s", r.Err)
		}
		for _, f := range r.Failures {
			color.Red("  %s row %d, column %s: %s (value %q)", f.Table, f.Row, f.Column, f.Reason, f.Value)
		}
		if r.Err == "" {
			color.Red("restore failed: %d row(s) rejected", len(r.Failures))
		}
	}
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Export a timestamped CSV backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			if err := e.store.EnsureDatabase(ctx); err != nil {
				return fmt.Errorf("preparing database: %w", err)
			}

			dir, err := e.store.ExportBackup(ctx, "")
			if err != nil {
				return err
			}
			color.Green("backup written to %s", dir)
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Drop and recreate the database schema (destroys all data)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe the database without --yes")
			}

			e, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := e.store.InitializeDatabase(context.Background()); err != nil {
				return err
			}
			color.Green("database initialized at %s", e.layout.DBFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm wiping all data")
	return cmd
}
