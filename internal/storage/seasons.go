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

// AddSeason registers a season. Dates and times are informational strings;
// the data core does not validate or enforce the scheduling window.
func (s *Store) AddSeason(ctx context.Context, season model.Season) (*model.Season, error) {
	season.Name = strings.TrimSpace(season.Name)
	if season.Name == "" {
		return nil, validationf("season name must not be empty")
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO seasons (name, description, start_date, start_time, end_date, end_time)
		VALUES (:name, :description, :start_date, :start_time, :end_date, :end_time)
	`, season)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateError{Entity: "season", Name: season.Name}
		}
		return nil, s.dbErr("add season", err, zap.String("season", season.Name))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, s.dbErr("add season", err, zap.String("season", season.Name))
	}
	season.ID = id
	return &season, nil
}

// GetSeason fetches a season by name.
func (s *Store) GetSeason(ctx context.Context, name string) (*model.Season, error) {
	var season model.Season
	err := s.db.GetContext(ctx, &season,
		"SELECT * FROM seasons WHERE name = ?", strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "season", Name: name}
	}
	if err != nil {
		return nil, s.dbErr("get season", err, zap.String("season", name))
	}
	return &season, nil
}

// ListSeasons returns all seasons sorted by name.
func (s *Store) ListSeasons(ctx context.Context) ([]model.Season, error) {
	var seasons []model.Season
	if err := s.db.SelectContext(ctx, &seasons,
		"SELECT * FROM seasons ORDER BY name ASC"); err != nil {
		return nil, s.dbErr("list seasons", err)
	}
	return seasons, nil
}

// DeleteSeason removes a season by name. Matches that referenced it keep
// existing with season_id set to NULL (ON DELETE SET NULL).
func (s *Store) DeleteSeason(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.GetContext(ctx, &id, "SELECT id FROM seasons WHERE name = ?", name)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "season", Name: name}
		}
		if err != nil {
			return s.dbErr("delete season", err, zap.String("season", name))
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM seasons WHERE id = ?", id); err != nil {
			return s.dbErr("delete season", err, zap.String("season", name))
		}
		return nil
	})
}
