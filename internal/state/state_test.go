package state

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
	"github.com/duelperf/duel-logger/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
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
	return store
}

func record(t *testing.T, store *storage.Store, deck, season string, result any) {
	t.Helper()
	_, err := store.RecordMatch(context.Background(), model.MatchRecord{
		MatchNo: 1, DeckName: deck, SeasonName: season, Turn: true, Result: result,
	})
	if err != nil {
		t.Fatalf("recording match: %v", err)
	}
}

func TestBuildSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.AddDeck(ctx, "Blue-Eyes", ""); err != nil {
		t.Fatalf("adding deck: %v", err)
	}
	if _, err := store.AddDeck(ctx, "Unplayed", ""); err != nil {
		t.Fatalf("adding deck: %v", err)
	}
	if _, err := store.AddSeason(ctx, model.Season{Name: "2026 Spring"}); err != nil {
		t.Fatalf("adding season: %v", err)
	}

	// 2 wins, 1 loss, 1 draw for Blue-Eyes; only the draw is in-season.
	record(t, store, "Blue-Eyes", "", "win")
	record(t, store, "Blue-Eyes", "", "win")
	record(t, store, "Blue-Eyes", "", "lose")
	record(t, store, "Blue-Eyes", "2026 Spring", "draw")

	snap, err := Build(ctx, store)
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}

	if len(snap.Decks) != 2 || len(snap.Matches) != 4 || len(snap.Seasons) != 1 {
		t.Fatalf("snapshot shape wrong: %d decks, %d matches, %d seasons",
			len(snap.Decks), len(snap.Matches), len(snap.Seasons))
	}
	if snap.SchemaVersion == "" {
		t.Error("schema version missing from snapshot")
	}

	// Decks with no matches get no record row.
	if len(snap.DeckRecords) != 1 {
		t.Fatalf("got %d deck records, want 1: %+v", len(snap.DeckRecords), snap.DeckRecords)
	}
	rec := snap.DeckRecords[0]
	if rec.Name != "Blue-Eyes" || rec.Wins != 2 || rec.Losses != 1 || rec.Draws != 1 || rec.Total != 4 {
		t.Errorf("deck record = %+v", rec)
	}
	// Draws stay in the denominator: 2 wins of 4 games.
	if math.Abs(rec.WinRate-0.5) > 1e-9 {
		t.Errorf("win rate = %f, want 0.5", rec.WinRate)
	}

	if len(snap.SeasonRecords) != 1 {
		t.Fatalf("got %d season records, want 1", len(snap.SeasonRecords))
	}
	if sr := snap.SeasonRecords[0]; sr.Name != "2026 Spring" || sr.Total != 1 || sr.Draws != 1 {
		t.Errorf("season record = %+v", sr)
	}
}

func TestSnapshotCarriesMigrationMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap, err := Build(ctx, store)
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	if snap.MigrationMessage != "" {
		t.Errorf("unexpected migration message %q", snap.MigrationMessage)
	}

	if err := store.SetMetadata(ctx, model.MetaLastMigrationMessage, "database was rebuilt"); err != nil {
		t.Fatalf("setting metadata: %v", err)
	}
	snap, err = Build(ctx, store)
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	if snap.MigrationMessage != "database was rebuilt" {
		t.Errorf("migration message = %q", snap.MigrationMessage)
	}
}
