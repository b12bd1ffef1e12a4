// Package state assembles read-only snapshots for presentation. A
// Snapshot is built fresh from the store on demand and never mutated;
// the UI layers hold a value, not shared state.
package state

import (
	"context"
	"time"

	"github.com/duelperf/duel-logger/internal/model"
	"github.com/duelperf/duel-logger/internal/storage"
)

// Record is a win/loss/draw tally for one grouping key.
type Record struct {
	Name    string  `json:"name"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Draws   int     `json:"draws"`
	Total   int     `json:"total"`
	WinRate float64 `json:"win_rate"`
}

// Snapshot is everything the presentation layer needs in one read.
type Snapshot struct {
	GeneratedAt      time.Time            `json:"generated_at"`
	SchemaVersion    string               `json:"schema_version"`
	MigrationMessage string               `json:"migration_message,omitempty"`
	Decks            []model.Deck         `json:"decks"`
	OpponentDecks    []model.OpponentDeck `json:"opponent_decks"`
	Seasons          []model.Season       `json:"seasons"`
	Keywords         []model.Keyword      `json:"keywords"`
	Matches          []model.MatchDetail  `json:"matches"`
	DeckRecords      []Record             `json:"deck_records"`
	SeasonRecords    []Record             `json:"season_records"`
}

// Build reads the store and computes the aggregate win/loss records.
func Build(ctx context.Context, store *storage.Store) (*Snapshot, error) {
	decks, err := store.ListDecks(ctx)
	if err != nil {
		return nil, err
	}
	opponents, err := store.ListOpponentDecks(ctx)
	if err != nil {
		return nil, err
	}
	seasons, err := store.ListSeasons(ctx)
	if err != nil {
		return nil, err
	}
	keywords, err := store.ListKeywords(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := store.FetchMatches(ctx, "")
	if err != nil {
		return nil, err
	}
	migrationMsg, err := store.GetMetadata(ctx, model.MetaLastMigrationMessage)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		GeneratedAt:      time.Now(),
		SchemaVersion:    store.SchemaVersion(ctx).String(),
		MigrationMessage: migrationMsg,
		Decks:            decks,
		OpponentDecks:    opponents,
		Seasons:          seasons,
		Keywords:         keywords,
		Matches:          matches,
	}

	deckTally := newTally()
	seasonTally := newTally()
	for _, m := range matches {
		deckTally.add(m.DeckName, m.Result)
		if m.SeasonName != "" {
			seasonTally.add(m.SeasonName, m.Result)
		}
	}
	for _, d := range decks {
		if rec, ok := deckTally.record(d.Name); ok {
			snap.DeckRecords = append(snap.DeckRecords, rec)
		}
	}
	for _, se := range seasons {
		if rec, ok := seasonTally.record(se.Name); ok {
			snap.SeasonRecords = append(snap.SeasonRecords, rec)
		}
	}
	return snap, nil
}

type tally struct {
	byName map[string]*Record
}

func newTally() *tally {
	return &tally{byName: make(map[string]*Record)}
}

func (t *tally) add(name string, result int) {
	rec, ok := t.byName[name]
	if !ok {
		rec = &Record{Name: name}
		t.byName[name] = rec
	}
	rec.Total++
	switch result {
	case 1:
		rec.Wins++
	case -1:
		rec.Losses++
	default:
		rec.Draws++
	}
}

// record returns the finished tally for name. Win rate counts draws in the
// denominator.
func (t *tally) record(name string) (Record, bool) {
	rec, ok := t.byName[name]
	if !ok {
		return Record{}, false
	}
	out := *rec
	if out.Total > 0 {
		out.WinRate = float64(out.Wins) / float64(out.Total)
	}
	return out, true
}
