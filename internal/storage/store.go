package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/schema"
)

// Store owns the SQLite file. All mutation goes through its methods; the
// UI/bridge layer never sees raw rows or SQL.
type Store struct {
	db        *sqlx.DB
	logger    *zap.Logger
	backupDir string
}

// NewStore wires a Store over an opened database. backupDir is where CSV
// backup directories and ZIP archives land.
func NewStore(db *sqlx.DB, backupDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, backupDir: backupDir}
}

// DB exposes the underlying handle for the restore engine and tests.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// withTx runs fn inside one transaction: commit on success, rollback on
// any error. Every multi-statement mutation in this package goes through
// here; the transaction is the unit of atomicity.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.dbErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.dbErr("commit transaction", err)
	}
	return nil
}

// dbErr logs a low-level database failure with context and wraps it as a
// DatabaseError. Domain errors (validation, duplicate, ...) pass through
// untouched elsewhere; only raw sqlite failures come here.
func (s *Store) dbErr(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.Error(err))
	s.logger.Error(op, fields...)
	return &DatabaseError{Op: op, Err: err}
}

// GetMetadata returns the value for a db_metadata key, or "" if unset.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM db_metadata WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", s.dbErr("get metadata", err, zap.String("key", key))
	}
	return value, nil
}

// SetMetadata upserts a db_metadata key.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO db_metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return s.dbErr("set metadata", err, zap.String("key", key))
	}
	return nil
}

// SchemaVersion reads the stored schema version, preferring the legacy
// user_version pragma when nonzero, else the metadata key, else the
// bundled migration target.
func (s *Store) SchemaVersion(ctx context.Context) schema.Version {
	return schema.ReadFromDB(ctx, s.db, schema.Target())
}

func setUserVersion(tx *sqlx.Tx, v schema.Version) error {
	// PRAGMA does not accept bound parameters.
	_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v.LegacyInt()))
	return err
}
