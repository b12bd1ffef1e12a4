package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
)

// AddKeyword registers a keyword and returns it with its generated
// identifier. The identifier, not the display name, is what match records
// store, so later renames never rewrite history.
func (s *Store) AddKeyword(ctx context.Context, name, description string) (*model.Keyword, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("keyword name must not be empty")
	}

	now := time.Now().Unix()
	// Identifier collisions are vanishingly rare (5 random bytes) but the
	// column is UNIQUE, so retry a few times before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		identifier := model.NewKeywordIdentifier()
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO keywords (identifier, name, description, created_at)
			VALUES (?, ?, ?, ?)
		`, identifier, name, description, now)
		if err != nil {
			if isUniqueViolation(err) {
				if keywordNameTaken(ctx, s.db, name) {
					return nil, &DuplicateError{Entity: "keyword", Name: name}
				}
				continue // identifier collision, regenerate
			}
			return nil, s.dbErr("add keyword", err, zap.String("keyword", name))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, s.dbErr("add keyword", err, zap.String("keyword", name))
		}
		return &model.Keyword{
			ID: id, Identifier: identifier, Name: name,
			Description: description, CreatedAt: now,
		}, nil
	}
	return nil, &DuplicateError{Entity: "keyword", Name: name}
}

func keywordNameTaken(ctx context.Context, db *sqlx.DB, name string) bool {
	var n int
	if err := db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM keywords WHERE name = ?", name); err != nil {
		return false
	}
	return n > 0
}

// GetKeyword fetches a keyword by its identifier.
func (s *Store) GetKeyword(ctx context.Context, identifier string) (*model.Keyword, error) {
	var kw model.Keyword
	err := s.db.GetContext(ctx, &kw,
		"SELECT * FROM keywords WHERE identifier = ?", strings.TrimSpace(identifier))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "keyword", Name: identifier}
	}
	if err != nil {
		return nil, s.dbErr("get keyword", err, zap.String("identifier", identifier))
	}
	return &kw, nil
}

// ListKeywords returns all keywords, oldest first.
func (s *Store) ListKeywords(ctx context.Context) ([]model.Keyword, error) {
	var kws []model.Keyword
	if err := s.db.SelectContext(ctx, &kws,
		"SELECT * FROM keywords ORDER BY created_at ASC, id ASC"); err != nil {
		return nil, s.dbErr("list keywords", err)
	}
	return kws, nil
}

// KeywordUpdate is a partial update of a keyword's mutable fields. The
// identifier itself is immutable.
type KeywordUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Hidden      *bool   `json:"is_hidden,omitempty"`
}

// UpdateKeyword applies a partial update to the keyword with the given
// identifier.
func (s *Store) UpdateKeyword(ctx context.Context, identifier string, upd KeywordUpdate) (*model.Keyword, error) {
	identifier = strings.TrimSpace(identifier)
	var out *model.Keyword
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var kw model.Keyword
		err := tx.GetContext(ctx, &kw,
			"SELECT * FROM keywords WHERE identifier = ?", identifier)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "keyword", Name: identifier}
		}
		if err != nil {
			return s.dbErr("update keyword", err, zap.String("identifier", identifier))
		}

		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return validationf("keyword name must not be empty")
			}
			kw.Name = name
		}
		if upd.Description != nil {
			kw.Description = *upd.Description
		}
		if upd.Hidden != nil {
			kw.Hidden = *upd.Hidden
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE keywords SET name = ?, description = ?, is_hidden = ? WHERE id = ?
		`, kw.Name, kw.Description, kw.Hidden, kw.ID); err != nil {
			if isUniqueViolation(err) {
				return &DuplicateError{Entity: "keyword", Name: kw.Name}
			}
			return s.dbErr("update keyword", err, zap.String("identifier", identifier))
		}
		out = &kw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteKeyword removes a keyword by identifier, guarded by its usage count.
func (s *Store) DeleteKeyword(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var kw model.Keyword
		err := tx.GetContext(ctx, &kw,
			"SELECT * FROM keywords WHERE identifier = ?", identifier)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "keyword", Name: identifier}
		}
		if err != nil {
			return s.dbErr("delete keyword", err, zap.String("identifier", identifier))
		}
		if kw.UsageCount > 0 {
			return &InUseError{Entity: "keyword", Name: kw.Name, UsageCount: kw.UsageCount}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM keywords WHERE id = ?", kw.ID); err != nil {
			return s.dbErr("delete keyword", err, zap.String("identifier", identifier))
		}
		return nil
	})
}
