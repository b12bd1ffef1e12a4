package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
)

// AddOpponentDeck registers an opponent archetype by name.
func (s *Store) AddOpponentDeck(ctx context.Context, name string) (*model.OpponentDeck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("opponent deck name must not be empty")
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO opponent_decks (name) VALUES (?)", name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateError{Entity: "opponent deck", Name: name}
		}
		return nil, s.dbErr("add opponent deck", err, zap.String("opponent_deck", name))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, s.dbErr("add opponent deck", err, zap.String("opponent_deck", name))
	}
	return &model.OpponentDeck{ID: id, Name: name}, nil
}

// ListOpponentDecks returns all opponent decks sorted by name.
func (s *Store) ListOpponentDecks(ctx context.Context) ([]model.OpponentDeck, error) {
	var decks []model.OpponentDeck
	if err := s.db.SelectContext(ctx, &decks,
		"SELECT * FROM opponent_decks ORDER BY name ASC"); err != nil {
		return nil, s.dbErr("list opponent decks", err)
	}
	return decks, nil
}

// DeleteOpponentDeck removes an opponent deck, guarded by its usage count.
func (s *Store) DeleteOpponentDeck(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var od model.OpponentDeck
		err := tx.GetContext(ctx, &od,
			"SELECT * FROM opponent_decks WHERE name = ? COLLATE NOCASE", name)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "opponent deck", Name: name}
		}
		if err != nil {
			return s.dbErr("delete opponent deck", err, zap.String("opponent_deck", name))
		}
		if od.UsageCount > 0 {
			return &InUseError{Entity: "opponent deck", Name: od.Name, UsageCount: od.UsageCount}
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM opponent_decks WHERE id = ?", od.ID); err != nil {
			return s.dbErr("delete opponent deck", err, zap.String("opponent_deck", name))
		}
		return nil
	})
}
