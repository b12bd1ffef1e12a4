package restore

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/storage"
)

// newTestEngine creates a migrated database and an engine over it.
func newTestEngine(t *testing.T) (*Engine, *storage.Store, string) {
	t.Helper()

	dir := t.TempDir()
	db, err := storage.OpenDatabase(filepath.Join(dir, "test.sqlite3"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	store := storage.NewStore(db, filepath.Join(dir, "backups"), zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })
	if err := store.EnsureDatabase(context.Background()); err != nil {
		t.Fatalf("ensuring test database: %v", err)
	}

	logDir := filepath.Join(dir, "logs")
	return New(db, logDir, zap.NewNop()), store, logDir
}

func writeCSV(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// validFixture writes a minimal consistent backup: two decks, one season,
// two matches. The optional tables are deliberately absent.
func validFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeCSV(t, dir, "decks.csv",
		"id,name,description,usage_count\n"+
			"1,Blue-Eyes,dragons,1\n"+
			"2,Exodia,,1\n")
	writeCSV(t, dir, "seasons.csv",
		"id,name,description,start_date,start_time,end_date,end_time\n"+
			"1,2026 Spring,,2026-04-01,,2026-06-30,\n")
	writeCSV(t, dir, "matches.csv",
		"id,match_no,deck_id,season_id,turn,opponent_deck,keywords,result,youtube_url,favorite,created_at\n"+
			"1,1,1,1,first,Dark Magician,[],win,,0,1700000000\n"+
			"2,1,2,,second,,[],lose,,1,1700000100\n")
	return dir
}

func countRows(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	if err := db.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

func TestRestoreFullReplacesEverything(t *testing.T) {
	engine, store, logDir := newTestEngine(t)
	ctx := context.Background()

	// Pre-existing data that a full restore must wipe.
	if _, err := store.AddDeck(ctx, "Leftover", ""); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	report := engine.RestoreDir(ctx, validFixture(t), Options{Mode: ModeFull})
	if !report.Ok() {
		t.Fatalf("restore failed: %+v", report)
	}
	if report.Integrity != "ok" {
		t.Errorf("integrity = %q", report.Integrity)
	}

	if n := countRows(t, store.DB(), "decks"); n != 2 {
		t.Errorf("decks = %d, want 2 (leftover not cleared?)", n)
	}
	if n := countRows(t, store.DB(), "matches"); n != 2 {
		t.Errorf("matches = %d, want 2", n)
	}

	// Words in the turn/result columns were coerced to canonical ints.
	var turn, result int
	if err := store.DB().Get(&turn, "SELECT turn FROM matches WHERE id = 1"); err != nil {
		t.Fatalf("reading turn: %v", err)
	}
	if err := store.DB().Get(&result, "SELECT result FROM matches WHERE id = 2"); err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if turn != 1 || result != -1 {
		t.Errorf("turn=%d result=%d, want 1/-1", turn, result)
	}

	// Every attempt leaves a report file.
	if report.LogPath == "" {
		t.Fatal("no report log path")
	}
	if _, err := os.Stat(report.LogPath); err != nil {
		t.Errorf("report file missing: %v", err)
	}
	if filepath.Dir(report.LogPath) != logDir {
		t.Errorf("report written to %s, want %s", report.LogPath, logDir)
	}
}

func TestRestoreUpsertKeepsUnrelatedRows(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.AddDeck(ctx, "Survivor", ""); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	dir := t.TempDir()
	writeCSV(t, dir, "decks.csv", "id,name,description,usage_count\n5,Blue-Eyes,,0\n")
	writeCSV(t, dir, "seasons.csv", "id,name,description,start_date,start_time,end_date,end_time\n")
	writeCSV(t, dir, "matches.csv",
		"id,match_no,deck_id,season_id,turn,opponent_deck,keywords,result,youtube_url,favorite,created_at\n")

	report := engine.RestoreDir(ctx, dir, Options{Mode: ModeUpsert})
	if !report.Ok() {
		t.Fatalf("restore failed: %+v", report)
	}

	if n := countRows(t, store.DB(), "decks"); n != 2 {
		t.Errorf("decks = %d, want survivor plus restored", n)
	}
	if _, err := store.GetDeck(ctx, "Survivor"); err != nil {
		t.Errorf("pre-existing row lost in upsert mode: %v", err)
	}
}

func TestRestoreMissingRequiredColumns(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	dir := validFixture(t)
	// Strip the turn and result columns out of the matches header.
	writeCSV(t, dir, "matches.csv", "id,match_no,deck_id\n1,1,1\n")

	report := engine.RestoreDir(ctx, dir, Options{Mode: ModeFull})
	if report.Ok() {
		t.Fatal("restore should have failed")
	}
	found := false
	for _, f := range report.Failures {
		if f.Table == "matches" && strings.Contains(f.Reason, "missing columns") &&
			strings.Contains(f.Reason, "turn") && strings.Contains(f.Reason, "result") {
			found = true
		}
	}
	if !found {
		t.Errorf("no missing-columns failure naming turn/result: %+v", report.Failures)
	}

	// The earlier tables inserted cleanly inside the transaction but the
	// rollback must leave nothing behind.
	if n := countRows(t, store.DB(), "decks"); n != 0 {
		t.Errorf("decks = %d after failed restore, want 0", n)
	}
}

func TestRestoreBadRowsCollectedAndRolledBack(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	dir := validFixture(t)
	writeCSV(t, dir, "matches.csv",
		"id,match_no,deck_id,season_id,turn,opponent_deck,keywords,result,youtube_url,favorite,created_at\n"+
			"1,1,1,,sideways,,[],win,,0,100\n"+ // bad turn
			"2,1,2,,first,,not-json,lose,,0,100\n"+ // bad keywords
			"3,2,1,,first,,[],win,,0,100\n") // fine, but not inserted

	report := engine.RestoreDir(ctx, dir, Options{Mode: ModeFull})
	if report.Ok() {
		t.Fatal("restore should have failed")
	}
	// Both bad rows are reported, not just the first.
	if len(report.Failures) != 2 {
		t.Errorf("got %d failures, want 2: %+v", len(report.Failures), report.Failures)
	}
	for _, f := range report.Failures {
		if f.Table != "matches" {
			t.Errorf("unexpected failure table %s", f.Table)
		}
	}

	if n := countRows(t, store.DB(), "decks"); n != 0 {
		t.Errorf("decks = %d after failed restore, want 0", n)
	}
	if n := countRows(t, store.DB(), "matches"); n != 0 {
		t.Errorf("matches = %d after failed restore, want 0", n)
	}
}

func TestRestoreMissingRequiredFile(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	dir := validFixture(t)
	if err := os.Remove(filepath.Join(dir, "seasons.csv")); err != nil {
		t.Fatalf("removing fixture file: %v", err)
	}

	report := engine.RestoreDir(ctx, dir, Options{Mode: ModeFull})
	if report.Ok() {
		t.Fatal("restore should have failed")
	}
	found := false
	for _, f := range report.Failures {
		if f.Table == "seasons" && strings.Contains(f.Reason, "missing") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing seasons.csv not reported: %+v", report.Failures)
	}
}

func TestRestoreDryRunLeavesDatabaseUntouched(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.AddDeck(ctx, "Keep Me", ""); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	report := engine.RestoreDir(ctx, validFixture(t), Options{Mode: ModeFull, DryRun: true})
	if !report.Ok() {
		t.Fatalf("dry run failed: %+v", report)
	}
	if !report.DryRun {
		t.Error("report does not record dry run")
	}

	// The dry run validated and rolled back; the old row is still there
	// and nothing from the fixture landed.
	if _, err := store.GetDeck(ctx, "Keep Me"); err != nil {
		t.Errorf("dry run mutated the database: %v", err)
	}
	if _, err := store.GetDeck(ctx, "Blue-Eyes"); err == nil {
		t.Error("dry run committed fixture rows")
	}
}

func TestRestoreArchive(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	// Zip the valid fixture.
	dir := validFixture(t)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"decks.csv", "seasons.csv", "matches.csv"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading fixture: %v", err)
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("building archive: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("building archive: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("building archive: %v", err)
	}

	report := engine.RestoreArchive(ctx, buf.Bytes(), Options{Mode: ModeFull})
	if !report.Ok() {
		t.Fatalf("archive restore failed: %+v", report)
	}
	if n := countRows(t, store.DB(), "matches"); n != 2 {
		t.Errorf("matches = %d, want 2", n)
	}

	// Garbage bytes are an immediate, reported failure.
	bad := engine.RestoreArchive(ctx, []byte("not a zip"), Options{})
	if bad.Ok() || bad.Err == "" {
		t.Errorf("garbage archive not rejected: %+v", bad)
	}
}
