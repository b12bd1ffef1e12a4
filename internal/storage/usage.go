package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Usage counters are maintained write-side as deltas (RecordMatch,
// UpdateMatch, DeleteMatch). The functions here recompute everything from
// scratch (zero every counter, then aggregate from matches) and are run
// after structural migrations and bulk imports as a safety net. A correct
// database is a fixed point: recalculation must not change any value.

// RecalculateUsageCounts recomputes deck, opponent-deck and keyword
// counters from the matches table.
func (s *Store) RecalculateUsageCounts(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := recalcUsageTx(ctx, tx); err != nil {
			return s.dbErr("recalculate usage counts", err)
		}
		return nil
	})
}

// RecalculateKeywordUsage recomputes only the keyword counters.
func (s *Store) RecalculateKeywordUsage(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := recalcKeywordUsageTx(ctx, tx); err != nil {
			return s.dbErr("recalculate keyword usage", err)
		}
		return nil
	})
}

func recalcUsageTx(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE decks SET usage_count = (
			SELECT COUNT(*) FROM matches WHERE matches.deck_id = decks.id
		)
	`); err != nil {
		return err
	}

	// Opponent decks count against the trimmed free-text opponent_deck
	// column of matches.
	if _, err := tx.ExecContext(ctx, `
		UPDATE opponent_decks SET usage_count = (
			SELECT COUNT(*) FROM matches
			WHERE TRIM(matches.opponent_deck) = opponent_decks.name
		)
	`); err != nil {
		return err
	}

	return recalcKeywordUsageTx(ctx, tx)
}

func recalcKeywordUsageTx(ctx context.Context, tx *sqlx.Tx) error {
	// The keywords column is a JSON array of identifiers; count rows whose
	// array contains each keyword's identifier. Matching the quoted
	// identifier inside the serialized array is exact because identifiers
	// are machine-generated hex and never contain JSON metacharacters.
	_, err := tx.ExecContext(ctx, `
		UPDATE keywords SET usage_count = (
			SELECT COUNT(*) FROM matches
			WHERE instr(matches.keywords, '"' || keywords.identifier || '"') > 0
		)
	`)
	return err
}
