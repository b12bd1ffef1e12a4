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

// AddDeck registers a deck. The name is trimmed and must be non-empty;
// a name collision (case-insensitive) is a DuplicateError.
func (s *Store) AddDeck(ctx context.Context, name, description string) (*model.Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("deck name must not be empty")
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO decks (name, description) VALUES (?, ?)", name, description)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateError{Entity: "deck", Name: name}
		}
		return nil, s.dbErr("add deck", err, zap.String("deck", name))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, s.dbErr("add deck", err, zap.String("deck", name))
	}
	return &model.Deck{ID: id, Name: name, Description: description}, nil
}

// GetDeck fetches a deck by name (case-insensitive).
func (s *Store) GetDeck(ctx context.Context, name string) (*model.Deck, error) {
	var deck model.Deck
	err := s.db.GetContext(ctx, &deck,
		"SELECT * FROM decks WHERE name = ? COLLATE NOCASE", strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "deck", Name: name}
	}
	if err != nil {
		return nil, s.dbErr("get deck", err, zap.String("deck", name))
	}
	return &deck, nil
}

// ListDecks returns all decks sorted by name.
func (s *Store) ListDecks(ctx context.Context) ([]model.Deck, error) {
	var decks []model.Deck
	if err := s.db.SelectContext(ctx, &decks,
		"SELECT * FROM decks ORDER BY name ASC"); err != nil {
		return nil, s.dbErr("list decks", err)
	}
	return decks, nil
}

// DeleteDeck removes a deck by name. A deck still referenced by matches
// (usage_count > 0) is an InUseError; the check and the delete share one
// transaction so the guard cannot race the counter.
func (s *Store) DeleteDeck(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var deck model.Deck
		err := tx.GetContext(ctx, &deck,
			"SELECT * FROM decks WHERE name = ? COLLATE NOCASE", name)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "deck", Name: name}
		}
		if err != nil {
			return s.dbErr("delete deck", err, zap.String("deck", name))
		}
		if deck.UsageCount > 0 {
			return &InUseError{Entity: "deck", Name: deck.Name, UsageCount: deck.UsageCount}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM decks WHERE id = ?", deck.ID); err != nil {
			return s.dbErr("delete deck", err, zap.String("deck", name))
		}
		return nil
	})
}
