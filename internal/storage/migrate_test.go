package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
	"github.com/duelperf/duel-logger/internal/schema"
)

// openRaw opens a database without running EnsureDatabase, for building
// old-schema fixtures by hand.
func openRaw(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenDatabase(filepath.Join(dir, "test.sqlite3"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	store := NewStore(db, filepath.Join(dir, "backups"), zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustExec(t *testing.T, store *Store, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if _, err := store.DB().Exec(stmt); err != nil {
			t.Fatalf("fixture statement failed: %v\n%s", err, stmt)
		}
	}
}

// The oldest databases stored the deck name directly in the matches table
// and turn/result as words. Migration rebuilds the table, registers the
// deck names it finds, and coerces the values.
func TestMigrateLegacyMatchesTable(t *testing.T) {
	store := openRaw(t)
	ctx := context.Background()

	mustExec(t, store,
		`CREATE TABLE db_metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL DEFAULT '')`,
		`INSERT INTO db_metadata (key, value) VALUES ('schema_version', '1.0.0')`,
		`CREATE TABLE matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_no INTEGER NOT NULL,
			deck TEXT NOT NULL,
			turn TEXT NOT NULL,
			opponent_deck TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL,
			youtube_url TEXT,
			created_at INTEGER
		)`,
		`INSERT INTO matches (match_no, deck, turn, opponent_deck, result, created_at)
			VALUES (1, 'Blue-Eyes', '先攻', 'Dark Magician', '勝ち', 1700000000)`,
		`INSERT INTO matches (match_no, deck, turn, opponent_deck, result, created_at)
			VALUES (2, 'Blue-Eyes', 'second', '', 'lose', 1700000100)`,
		`PRAGMA user_version = 1`,
	)

	if err := store.EnsureDatabase(ctx); err != nil {
		t.Fatalf("migrating legacy database: %v", err)
	}

	if got := store.SchemaVersion(ctx); got != schema.Target() {
		t.Errorf("schema version = %v, want %v", got, schema.Target())
	}

	// The deck name found in legacy rows was registered automatically.
	deck, err := store.GetDeck(ctx, "Blue-Eyes")
	if err != nil {
		t.Fatalf("legacy deck not registered: %v", err)
	}
	if deck.UsageCount != 2 {
		t.Errorf("deck usage_count = %d, want 2", deck.UsageCount)
	}

	matches, err := store.FetchMatches(ctx, "Blue-Eyes")
	if err != nil {
		t.Fatalf("fetching migrated matches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if !matches[0].Turn || matches[0].Result != 1 {
		t.Errorf("first match: turn=%v result=%d, want true/1", matches[0].Turn, matches[0].Result)
	}
	if matches[1].Turn || matches[1].Result != -1 {
		t.Errorf("second match: turn=%v result=%d, want false/-1", matches[1].Turn, matches[1].Result)
	}

	// The legacy table must be gone, not renamed-and-forgotten.
	var n int
	if err := store.DB().Get(&n,
		"SELECT COUNT(*) FROM sqlite_master WHERE name = 'matches_legacy'"); err != nil {
		t.Fatalf("inspecting schema: %v", err)
	}
	if n != 0 {
		t.Error("matches_legacy left behind")
	}

	// Running migration again is a no-op.
	if err := store.EnsureDatabase(ctx); err != nil {
		t.Fatalf("re-running migration: %v", err)
	}
}

// The very first releases wrote no db_metadata table at all, so such a
// database looks fresh to the metadata check while still holding a legacy
// matches table. One EnsureDatabase run must rebuild it, not stamp the
// target version over it and leave reads broken.
func TestEnsureDatabaseLegacyWithoutMetadata(t *testing.T) {
	store := openRaw(t)
	ctx := context.Background()

	mustExec(t, store,
		`CREATE TABLE matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_no INTEGER NOT NULL,
			deck TEXT NOT NULL,
			turn TEXT NOT NULL,
			opponent_deck TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL,
			youtube_url TEXT,
			created_at INTEGER
		)`,
		`INSERT INTO matches (match_no, deck, turn, opponent_deck, result, created_at)
			VALUES (1, 'Sky Striker', 'first', 'Salamangreat', 'win', 1700000000)`,
		`INSERT INTO matches (match_no, deck, turn, opponent_deck, result, created_at)
			VALUES (2, 'Sky Striker', '後攻', '', '負け', 1700000100)`,
	)

	if err := store.EnsureDatabase(ctx); err != nil {
		t.Fatalf("migrating metadata-less legacy database: %v", err)
	}

	if got := store.SchemaVersion(ctx); got != schema.Target() {
		t.Errorf("schema version = %v, want %v", got, schema.Target())
	}

	deck, err := store.GetDeck(ctx, "Sky Striker")
	if err != nil {
		t.Fatalf("legacy deck not registered: %v", err)
	}
	if deck.UsageCount != 2 {
		t.Errorf("deck usage_count = %d, want 2", deck.UsageCount)
	}

	matches, err := store.FetchMatches(ctx, "Sky Striker")
	if err != nil {
		t.Fatalf("fetching migrated matches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if !matches[0].Turn || matches[0].Result != 1 {
		t.Errorf("first match: turn=%v result=%d, want true/1", matches[0].Turn, matches[0].Result)
	}
	if matches[1].Turn || matches[1].Result != -1 {
		t.Errorf("second match: turn=%v result=%d, want false/-1", matches[1].Turn, matches[1].Result)
	}

	var n int
	if err := store.DB().Get(&n,
		"SELECT COUNT(*) FROM sqlite_master WHERE name = 'matches_legacy'"); err != nil {
		t.Fatalf("inspecting schema: %v", err)
	}
	if n != 0 {
		t.Error("matches_legacy left behind")
	}

	if err := store.EnsureDatabase(ctx); err != nil {
		t.Fatalf("re-running migration: %v", err)
	}
}

// A 1.2.0-era database lacks the favorite and is_hidden columns; the
// ensure pass adds them without touching existing data.
func TestMigrateAddsMissingColumns(t *testing.T) {
	store := openRaw(t)
	ctx := context.Background()

	mustExec(t, store,
		`CREATE TABLE db_metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL DEFAULT '')`,
		`INSERT INTO db_metadata (key, value) VALUES ('schema_version', '1.2.0')`,
		`CREATE TABLE decks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			description TEXT NOT NULL DEFAULT '',
			usage_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE keywords (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identifier TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			usage_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_no INTEGER NOT NULL,
			deck_id INTEGER NOT NULL REFERENCES decks(id),
			season_id INTEGER,
			turn INTEGER NOT NULL,
			opponent_deck TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '[]',
			result INTEGER NOT NULL,
			youtube_url TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT 0
		)`,
		`INSERT INTO decks (name) VALUES ('Blue-Eyes')`,
		`INSERT INTO matches (match_no, deck_id, turn, result, created_at)
			VALUES (1, 1, 1, 1, 1700000000)`,
		`PRAGMA user_version = 10200`,
	)

	if err := store.EnsureDatabase(ctx); err != nil {
		t.Fatalf("migrating 1.2.0 database: %v", err)
	}

	// Old data survives, new columns are usable.
	matches, err := store.FetchMatches(ctx, "Blue-Eyes")
	if err != nil {
		t.Fatalf("fetching matches: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Favorite {
		t.Error("added favorite column should default to false")
	}

	kw, err := store.AddKeyword(ctx, "OTK", "")
	if err != nil {
		t.Fatalf("adding keyword: %v", err)
	}
	hidden := true
	updated, err := store.UpdateKeyword(ctx, kw.Identifier, KeywordUpdate{Hidden: &hidden})
	if err != nil {
		t.Fatalf("hiding keyword: %v", err)
	}
	if !updated.Hidden {
		t.Error("is_hidden column not usable after migration")
	}

	if got := store.SchemaVersion(ctx); got != schema.Target() {
		t.Errorf("schema version = %v, want %v", got, schema.Target())
	}
}

func TestInitializeDatabaseWipes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustAddDeck(t, store, "Blue-Eyes")
	mustRecord(t, store, model.MatchRecord{
		MatchNo: 1, DeckName: "Blue-Eyes", Turn: true, Result: 1,
	})

	if err := store.InitializeDatabase(ctx); err != nil {
		t.Fatalf("initializing: %v", err)
	}

	decks, err := store.ListDecks(ctx)
	if err != nil {
		t.Fatalf("listing decks: %v", err)
	}
	if len(decks) != 0 {
		t.Errorf("decks survived initialize: %d", len(decks))
	}
	if got := store.SchemaVersion(ctx); got != schema.Target() {
		t.Errorf("schema version = %v, want %v", got, schema.Target())
	}
}

// After a failed migration the recovery path exports, wipes and
// re-imports; user data survives and the outcome is recorded as a
// migration message for the UI.
func TestRecoverFromMigrationFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustAddDeck(t, store, "Blue-Eyes")
	kw, err := store.AddKeyword(ctx, "OTK", "")
	if err != nil {
		t.Fatalf("adding keyword: %v", err)
	}
	mustRecord(t, store, model.MatchRecord{
		MatchNo: 1, DeckName: "Blue-Eyes", Turn: true, Result: 1,
		Keywords: []string{"OTK"},
	})

	if err := store.RecoverFromMigrationFailure(ctx, errors.New("simulated failure")); err != nil {
		t.Fatalf("recovery: %v", err)
	}

	deck, err := store.GetDeck(ctx, "Blue-Eyes")
	if err != nil {
		t.Fatalf("deck lost in recovery: %v", err)
	}
	if deck.UsageCount != 1 {
		t.Errorf("deck usage_count = %d, want 1", deck.UsageCount)
	}
	if _, err := store.GetKeyword(ctx, kw.Identifier); err != nil {
		t.Errorf("keyword lost in recovery: %v", err)
	}
	matches, err := store.FetchMatches(ctx, "Blue-Eyes")
	if err != nil || len(matches) != 1 {
		t.Fatalf("matches lost in recovery: %v (%d)", err, len(matches))
	}

	msg, err := store.GetMetadata(ctx, model.MetaLastMigrationMessage)
	if err != nil {
		t.Fatalf("reading migration message: %v", err)
	}
	if !strings.Contains(msg, "simulated failure") {
		t.Errorf("migration message %q does not mention the cause", msg)
	}
}
