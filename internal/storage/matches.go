package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
)

// RecordMatch validates and persists one match record, incrementing the
// usage counters of the deck, the opponent deck (when an opponent name was
// given and is registered) and every referenced keyword, all in one
// transaction. Returns the new match id.
func (s *Store) RecordMatch(ctx context.Context, rec model.MatchRecord) (int64, error) {
	deckName := strings.TrimSpace(rec.DeckName)
	if deckName == "" {
		return 0, validationf("deck_name is required")
	}
	if rec.MatchNo <= 0 {
		return 0, validationf("match_no is required")
	}
	if rec.Turn == nil {
		return 0, validationf("turn is required")
	}
	if rec.Result == nil {
		return 0, validationf("result is required")
	}

	turn, err := model.EncodeTurn(rec.Turn)
	if err != nil {
		return 0, validationf("%v", err)
	}
	result, err := model.EncodeResult(rec.Result)
	if err != nil {
		return 0, validationf("%v", err)
	}
	opponent := strings.TrimSpace(rec.OpponentDeck)

	var matchID int64
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		deckID, err := resolveDeckID(ctx, tx, deckName)
		if err != nil {
			return err
		}

		var seasonID *int64
		if name := strings.TrimSpace(rec.SeasonName); name != "" {
			id, err := resolveSeasonID(ctx, tx, name)
			if err != nil {
				return err
			}
			seasonID = &id
		}

		identifiers, err := sanitizeKeywords(ctx, tx, rec.Keywords)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO matches (match_no, deck_id, season_id, turn, opponent_deck,
				keywords, result, youtube_url, favorite)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.MatchNo, deckID, seasonID, turn, opponent,
			model.EncodeKeywordList(identifiers), result, rec.YoutubeURL, rec.Favorite)
		if err != nil {
			return s.dbErr("record match", err, zap.String("deck", deckName))
		}
		matchID, err = res.LastInsertId()
		if err != nil {
			return s.dbErr("record match", err, zap.String("deck", deckName))
		}

		if err := bumpUsage(ctx, tx, deckID, opponent, identifiers, +1); err != nil {
			return s.dbErr("record match usage", err, zap.String("deck", deckName))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return matchID, nil
}

// UpdateMatch applies a partial update to a match and adjusts usage
// counters by the delta: the deck (if changed), the opponent deck (if
// changed) and the symmetric difference of old and new keyword sets.
// Counters never double-count and never go below zero.
func (s *Store) UpdateMatch(ctx context.Context, id int64, upd model.MatchUpdate) (*model.MatchDetail, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var m model.Match
		err := tx.GetContext(ctx, &m, "SELECT * FROM matches WHERE id = ?", id)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "match", Name: matchRef(id)}
		}
		if err != nil {
			return s.dbErr("update match", err, zap.Int64("match_id", id))
		}

		oldDeckID := m.DeckID
		oldOpponent := strings.TrimSpace(m.OpponentDeck)
		oldKeywords := model.DecodeKeywordList(m.Keywords)

		if upd.MatchNo != nil {
			if *upd.MatchNo <= 0 {
				return validationf("match_no must be positive")
			}
			m.MatchNo = *upd.MatchNo
		}
		if upd.DeckName != nil {
			deckID, err := resolveDeckID(ctx, tx, strings.TrimSpace(*upd.DeckName))
			if err != nil {
				return err
			}
			m.DeckID = deckID
		}
		if upd.SeasonName != nil {
			if name := strings.TrimSpace(*upd.SeasonName); name == "" {
				m.SeasonID = nil
			} else {
				seasonID, err := resolveSeasonID(ctx, tx, name)
				if err != nil {
					return err
				}
				m.SeasonID = &seasonID
			}
		}
		if upd.Turn != nil {
			turn, err := model.EncodeTurn(upd.Turn)
			if err != nil {
				return validationf("%v", err)
			}
			m.Turn = turn
		}
		if upd.Result != nil {
			result, err := model.EncodeResult(upd.Result)
			if err != nil {
				return validationf("%v", err)
			}
			m.Result = result
		}
		if upd.OpponentDeck != nil {
			m.OpponentDeck = strings.TrimSpace(*upd.OpponentDeck)
		}
		newKeywords := oldKeywords
		if upd.Keywords != nil {
			newKeywords, err = sanitizeKeywords(ctx, tx, *upd.Keywords)
			if err != nil {
				return err
			}
			m.Keywords = model.EncodeKeywordList(newKeywords)
		}
		if upd.YoutubeURL != nil {
			m.YoutubeURL = *upd.YoutubeURL
		}
		if upd.Favorite != nil {
			m.Favorite = *upd.Favorite
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE matches SET match_no = ?, deck_id = ?, season_id = ?, turn = ?,
				opponent_deck = ?, keywords = ?, result = ?, youtube_url = ?, favorite = ?
			WHERE id = ?
		`, m.MatchNo, m.DeckID, m.SeasonID, m.Turn, m.OpponentDeck, m.Keywords,
			m.Result, m.YoutubeURL, m.Favorite, id); err != nil {
			return s.dbErr("update match", err, zap.Int64("match_id", id))
		}

		// Counter deltas, including the keyword symmetric difference.
		if m.DeckID != oldDeckID {
			if err := bumpDeck(ctx, tx, oldDeckID, -1); err != nil {
				return s.dbErr("update match usage", err, zap.Int64("match_id", id))
			}
			if err := bumpDeck(ctx, tx, m.DeckID, +1); err != nil {
				return s.dbErr("update match usage", err, zap.Int64("match_id", id))
			}
		}
		newOpponent := strings.TrimSpace(m.OpponentDeck)
		if newOpponent != oldOpponent {
			if err := bumpOpponent(ctx, tx, oldOpponent, -1); err != nil {
				return s.dbErr("update match usage", err, zap.Int64("match_id", id))
			}
			if err := bumpOpponent(ctx, tx, newOpponent, +1); err != nil {
				return s.dbErr("update match usage", err, zap.Int64("match_id", id))
			}
		}
		removed, added := keywordDiff(oldKeywords, newKeywords)
		if err := bumpKeywords(ctx, tx, removed, -1); err != nil {
			return s.dbErr("update match usage", err, zap.Int64("match_id", id))
		}
		if err := bumpKeywords(ctx, tx, added, +1); err != nil {
			return s.dbErr("update match usage", err, zap.Int64("match_id", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, id)
}

// DeleteMatch removes a match and symmetrically decrements the counters it
// contributed to, clamped at zero.
func (s *Store) DeleteMatch(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var m model.Match
		err := tx.GetContext(ctx, &m, "SELECT * FROM matches WHERE id = ?", id)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "match", Name: matchRef(id)}
		}
		if err != nil {
			return s.dbErr("delete match", err, zap.Int64("match_id", id))
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE id = ?", id); err != nil {
			return s.dbErr("delete match", err, zap.Int64("match_id", id))
		}
		if err := bumpUsage(ctx, tx, m.DeckID, strings.TrimSpace(m.OpponentDeck),
			model.DecodeKeywordList(m.Keywords), -1); err != nil {
			return s.dbErr("delete match usage", err, zap.Int64("match_id", id))
		}
		return nil
	})
}

// GetMatch fetches one match as a detail record.
func (s *Store) GetMatch(ctx context.Context, id int64) (*model.MatchDetail, error) {
	details, err := s.fetchMatchDetails(ctx, "m.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, &NotFoundError{Entity: "match", Name: matchRef(id)}
	}
	return &details[0], nil
}

// FetchMatches returns all matches (optionally restricted to one deck by
// name), ordered by created_at then id, with deck and season names joined
// in, stored keyword identifiers resolved to full keyword records, and
// turn/result decoded to their semantic forms.
func (s *Store) FetchMatches(ctx context.Context, deckName string) ([]model.MatchDetail, error) {
	if name := strings.TrimSpace(deckName); name != "" {
		deck, err := s.GetDeck(ctx, name)
		if err != nil {
			return nil, err
		}
		return s.fetchMatchDetails(ctx, "m.deck_id = ?", deck.ID)
	}
	return s.fetchMatchDetails(ctx, "1 = 1")
}

func (s *Store) fetchMatchDetails(ctx context.Context, where string, args ...any) ([]model.MatchDetail, error) {
	type row struct {
		model.Match
		DeckName   string  `db:"deck_name"`
		SeasonName *string `db:"season_name"`
	}
	var rows []row
	query := `
		SELECT m.*, d.name AS deck_name, se.name AS season_name
		FROM matches m
		JOIN decks d ON d.id = m.deck_id
		LEFT JOIN seasons se ON se.id = m.season_id
		WHERE ` + where + `
		ORDER BY m.created_at ASC, m.id ASC`
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, s.dbErr("fetch matches", err)
	}

	keywords, err := s.ListKeywords(ctx)
	if err != nil {
		return nil, err
	}
	byIdentifier := make(map[string]model.Keyword, len(keywords))
	for _, kw := range keywords {
		byIdentifier[kw.Identifier] = kw
	}

	details := make([]model.MatchDetail, 0, len(rows))
	for _, r := range rows {
		d := model.MatchDetail{
			ID:           r.ID,
			MatchNo:      r.MatchNo,
			DeckID:       r.DeckID,
			DeckName:     r.DeckName,
			SeasonID:     r.SeasonID,
			Turn:         model.DecodeTurn(r.Turn),
			OpponentDeck: r.OpponentDeck,
			Keywords:     []model.Keyword{},
			Result:       model.DecodeResult(r.Result),
			YoutubeURL:   r.YoutubeURL,
			Favorite:     r.Favorite,
			CreatedAt:    r.CreatedAt,
		}
		if r.SeasonName != nil {
			d.SeasonName = *r.SeasonName
		}
		for _, identifier := range model.DecodeKeywordList(r.Match.Keywords) {
			if kw, ok := byIdentifier[identifier]; ok {
				d.Keywords = append(d.Keywords, kw)
			}
		}
		details = append(details, d)
	}
	return details, nil
}

// NextMatchNumber returns the last recorded match_no for the deck plus one,
// or 1 when the deck has no matches yet. Nothing enforces uniqueness: a
// caller may still supply an arbitrary match_no to RecordMatch.
func (s *Store) NextMatchNumber(ctx context.Context, deckName string) (int64, error) {
	deck, err := s.GetDeck(ctx, deckName)
	if err != nil {
		return 0, err
	}
	var last int64
	err = s.db.GetContext(ctx, &last, `
		SELECT match_no FROM matches WHERE deck_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, deck.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, s.dbErr("next match number", err, zap.String("deck", deckName))
	}
	if last < 0 {
		last = 0
	}
	return last + 1, nil
}

func matchRef(id int64) string {
	return fmt.Sprintf("#%d", id)
}

// resolveDeckID resolves a deck name inside a transaction, mapping a miss
// to NotFoundError.
func resolveDeckID(ctx context.Context, tx *sqlx.Tx, name string) (int64, error) {
	if name == "" {
		return 0, validationf("deck_name is required")
	}
	var id int64
	err := tx.GetContext(ctx, &id,
		"SELECT id FROM decks WHERE name = ? COLLATE NOCASE", name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &NotFoundError{Entity: "deck", Name: name}
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func resolveSeasonID(ctx context.Context, tx *sqlx.Tx, name string) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, "SELECT id FROM seasons WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &NotFoundError{Entity: "season", Name: name}
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// sanitizeKeywords maps caller-supplied keyword tokens (identifiers or
// display names, names matched case-insensitively) to known identifiers,
// de-duplicated and order-preserving. Unknown tokens are silently dropped;
// but a non-empty input that sanitizes to nothing is a validation error,
// never an empty-list success. That asymmetry is deliberate: it separates
// "the user tagged nothing" from "every tag the user supplied is bogus".
func sanitizeKeywords(ctx context.Context, tx *sqlx.Tx, input []string) ([]string, error) {
	tokens := make([]string, 0, len(input))
	for _, t := range input {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return []string{}, nil
	}

	var known []model.Keyword
	if err := tx.SelectContext(ctx, &known,
		"SELECT * FROM keywords"); err != nil {
		return nil, err
	}
	byIdentifier := make(map[string]string, len(known))
	byName := make(map[string]string, len(known))
	for _, kw := range known {
		byIdentifier[kw.Identifier] = kw.Identifier
		byName[strings.ToLower(kw.Name)] = kw.Identifier
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		identifier, ok := byIdentifier[t]
		if !ok {
			identifier, ok = byName[strings.ToLower(t)]
		}
		if !ok {
			continue
		}
		if _, dup := seen[identifier]; dup {
			continue
		}
		seen[identifier] = struct{}{}
		out = append(out, identifier)
	}

	if len(out) == 0 {
		return nil, validationf("no valid keywords in %v", tokens)
	}
	return out, nil
}

// keywordDiff returns identifiers only in prev (removed) and only in next
// (added).
func keywordDiff(prev, next []string) (removed, added []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, id := range next {
		nextSet[id] = struct{}{}
	}
	for _, id := range prev {
		if _, ok := nextSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	for _, id := range next {
		if _, ok := prevSet[id]; !ok {
			added = append(added, id)
		}
	}
	return removed, added
}

// bumpUsage adjusts every counter a match contributes to by delta.
func bumpUsage(ctx context.Context, tx *sqlx.Tx, deckID int64, opponent string, keywordIDs []string, delta int) error {
	if err := bumpDeck(ctx, tx, deckID, delta); err != nil {
		return err
	}
	if err := bumpOpponent(ctx, tx, opponent, delta); err != nil {
		return err
	}
	return bumpKeywords(ctx, tx, keywordIDs, delta)
}

// bumpDeck adjusts a deck counter, clamped at zero on the way down.
func bumpDeck(ctx context.Context, tx *sqlx.Tx, deckID int64, delta int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE decks SET usage_count = MAX(usage_count + ?, 0) WHERE id = ?", delta, deckID)
	return err
}

// bumpOpponent adjusts a registered opponent deck's counter. An opponent
// name with no registered row is fine; the field is free text.
func bumpOpponent(ctx context.Context, tx *sqlx.Tx, name string, delta int) error {
	if name == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE opponent_decks SET usage_count = MAX(usage_count + ?, 0) WHERE name = ?", delta, name)
	return err
}

func bumpKeywords(ctx context.Context, tx *sqlx.Tx, identifiers []string, delta int) error {
	for _, identifier := range identifiers {
		if _, err := tx.ExecContext(ctx,
			"UPDATE keywords SET usage_count = MAX(usage_count + ?, 0) WHERE identifier = ?",
			delta, identifier); err != nil {
			return err
		}
	}
	return nil
}
