package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
	"github.com/duelperf/duel-logger/internal/schema"
)

// EnsureDatabase brings the database to the current schema. Idempotent and
// safe to call on every process start: a missing file (or one without the
// metadata table) gets the full schema; an existing one gets its metadata
// defaults backfilled and MigrateSchema run. The schema check happens here,
// once, up front; read paths never self-heal reactively.
func (s *Store) EnsureDatabase(ctx context.Context) error {
	fresh, err := s.isFresh(ctx)
	if err != nil {
		return err
	}
	if fresh {
		// The very first releases had no db_metadata table, so a database
		// from that era looks fresh here while still holding a matches
		// table in the old deck-name layout. Rebuild it before the create
		// pass so the target version is never stamped over legacy data.
		if err := s.rebuildLegacyMatches(ctx); err != nil {
			return err
		}
		return s.createSchema(ctx)
	}
	if err := s.backfillMetadataDefaults(ctx); err != nil {
		return err
	}
	return s.MigrateSchema(ctx)
}

// isFresh reports whether the database lacks the metadata table, i.e. was
// never initialized by this application.
func (s *Store) isFresh(ctx context.Context) (bool, error) {
	exists, err := s.tableExists(ctx, "db_metadata")
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err != nil {
		return false, s.dbErr("inspect schema", err, zap.String("table", name))
	}
	return n > 0, nil
}

// createSchema builds a fresh database at the target version from the
// canonical DDL and seeds the metadata defaults.
func (s *Store) createSchema(ctx context.Context) error {
	target := schema.Target()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, td := range tableDefs {
			if _, err := tx.ExecContext(ctx, td.createSQL); err != nil {
				return s.dbErr("create table", err, zap.String("table", td.name))
			}
		}
		// Counters start correct even when a legacy rebuild just imported
		// matches ahead of this pass.
		if err := recalcUsageTx(ctx, tx); err != nil {
			return s.dbErr("recalculate usage", err)
		}
		if err := seedMetadata(ctx, tx, target); err != nil {
			return err
		}
		return setUserVersion(tx, target)
	})
	if err != nil {
		return err
	}
	s.logger.Info("database created", zap.String("schema_version", target.String()))
	return nil
}

func seedMetadata(ctx context.Context, tx *sqlx.Tx, v schema.Version) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO db_metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, model.MetaSchemaVersion, v.String()); err != nil {
		return fmt.Errorf("seeding schema version: %w", err)
	}
	for key, value := range model.MetadataDefaults {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO db_metadata (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO NOTHING
		`, key, value); err != nil {
			return fmt.Errorf("seeding metadata default %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) backfillMetadataDefaults(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for key, value := range model.MetadataDefaults {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO db_metadata (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO NOTHING
			`, key, value); err != nil {
				return s.dbErr("backfill metadata", err, zap.String("key", key))
			}
		}
		return nil
	})
}

// MigrateSchema applies additive migrations: the embedded V<semver>__*.sql
// definitions newer than the stored version, a structural rebuild for
// databases whose matches table still stores deck names directly, and an
// ensure pass that adds any table or column from the canonical catalog
// still missing. Never drops or renames. Usage counters are recomputed
// after structural changes; the stored version advances only on success.
func (s *Store) MigrateSchema(ctx context.Context) error {
	current := s.SchemaVersion(ctx)
	target := schema.Target()

	if err := s.rebuildLegacyMatches(ctx); err != nil {
		return err
	}

	migrations, err := schema.Migrations()
	if err != nil {
		return s.dbErr("load migrations", err)
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, m := range migrations {
			if !current.Less(m.Version) {
				continue
			}
			for _, stmt := range m.Statements() {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					// Additive statements may target structures that
					// already exist (a database restored from backup keeps
					// its data but loses its version history). That is not
					// a failure.
					if isAlreadyApplied(err) {
						continue
					}
					return s.dbErr("apply migration", err,
						zap.String("migration", m.Name),
						zap.String("version", m.Version.String()))
				}
			}
			s.logger.Info("migration applied",
				zap.String("migration", m.Name),
				zap.String("version", m.Version.String()))
		}

		// Ensure pass: any table/column still missing gets created with its
		// canonical definition and a safe default.
		for _, td := range tableDefs {
			if _, err := tx.ExecContext(ctx, td.createSQL); err != nil {
				return s.dbErr("ensure table", err, zap.String("table", td.name))
			}
			existing, err := tableColumnSet(ctx, tx, td.name)
			if err != nil {
				return s.dbErr("inspect table", err, zap.String("table", td.name))
			}
			for _, col := range td.columns {
				if _, ok := existing[col.name]; ok {
					continue
				}
				alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", td.name, col.decl)
				if _, err := tx.ExecContext(ctx, alter); err != nil {
					return s.dbErr("add column", err,
						zap.String("table", td.name),
						zap.String("column", col.name))
				}
			}
		}

		if err := recalcUsageTx(ctx, tx); err != nil {
			return s.dbErr("recalculate usage", err)
		}

		if err := seedMetadata(ctx, tx, target); err != nil {
			return s.dbErr("record schema version", err)
		}
		return setUserVersion(tx, target)
	})
	if err != nil {
		return err
	}

	if current.Less(target) {
		s.logger.Info("schema migrated",
			zap.String("from", current.String()),
			zap.String("to", target.String()))
	}
	return nil
}

func isAlreadyApplied(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate column name") ||
		strings.Contains(msg, "already exists")
}

// tableColumnSet returns the column names of a table via PRAGMA table_info.
func tableColumnSet(ctx context.Context, tx *sqlx.Tx, table string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		out[name] = struct{}{}
	}
	return out, rows.Err()
}

// rebuildLegacyMatches migrates the oldest schema variant, where matches
// stored the deck name directly in a `deck` (or `deck_name`) text column,
// to the current deck_id form. Unknown deck names are registered as decks
// so no match row is lost; textual turn/result values are coerced with the
// total decoders. Foreign keys are off for the duration of the rebuild.
func (s *Store) rebuildLegacyMatches(ctx context.Context) error {
	exists, err := s.tableExists(ctx, "matches")
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return s.dbErr("acquire connection", err)
	}
	defer conn.Close()

	cols, err := connColumnSet(ctx, conn, "matches")
	if err != nil {
		return s.dbErr("inspect matches", err)
	}
	if _, ok := cols["deck_id"]; ok {
		return nil
	}
	deckCol := ""
	for _, candidate := range []string{"deck", "deck_name"} {
		if _, ok := cols[candidate]; ok {
			deckCol = candidate
			break
		}
	}
	if deckCol == "" {
		return nil
	}

	s.logger.Info("rebuilding legacy matches table", zap.String("deck_column", deckCol))

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return s.dbErr("disable foreign keys", err)
	}
	// Re-enable on every exit path; the connection goes back to the pool.
	defer func() { _, _ = conn.ExecContext(ctx, "PRAGMA foreign_keys = ON") }()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return s.dbErr("begin rebuild", err)
	}
	defer func() { _ = tx.Rollback() }()

	matchesDef, _ := tableByName("matches")
	decksDef, _ := tableByName("decks")
	if _, err := tx.ExecContext(ctx, decksDef.createSQL); err != nil {
		return s.dbErr("ensure decks", err)
	}

	type legacyRow struct {
		matchNo      int64
		deckName     string
		turn         any
		opponentDeck string
		result       any
		youtubeURL   string
		createdAt    int64
	}
	var legacy []legacyRow

	query := fmt.Sprintf(`SELECT match_no, %s, turn, opponent_deck, result,
		COALESCE(youtube_url, ''), COALESCE(created_at, %d) FROM matches`,
		deckCol, time.Now().Unix())
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return s.dbErr("read legacy matches", err)
	}
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.matchNo, &r.deckName, &r.turn, &r.opponentDeck,
			&r.result, &r.youtubeURL, &r.createdAt); err != nil {
			rows.Close()
			return s.dbErr("scan legacy match", err)
		}
		legacy = append(legacy, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s.dbErr("read legacy matches", err)
	}

	if _, err := tx.ExecContext(ctx, "ALTER TABLE matches RENAME TO matches_legacy"); err != nil {
		return s.dbErr("rename legacy matches", err)
	}
	if _, err := tx.ExecContext(ctx, matchesDef.createSQL); err != nil {
		return s.dbErr("create matches", err)
	}

	for _, r := range legacy {
		name := strings.TrimSpace(r.deckName)
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO decks (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name); err != nil {
			return s.dbErr("register legacy deck", err, zap.String("deck", name))
		}
		var deckID int64
		if err := tx.GetContext(ctx, &deckID,
			"SELECT id FROM decks WHERE name = ? COLLATE NOCASE", name); err != nil {
			return s.dbErr("resolve legacy deck", err, zap.String("deck", name))
		}
		turn := 0
		if model.DecodeTurn(coerceScan(r.turn)) {
			turn = 1
		}
		result := model.DecodeResult(coerceScan(r.result))
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO matches (match_no, deck_id, turn, opponent_deck, keywords,
				result, youtube_url, favorite, created_at)
			VALUES (?, ?, ?, ?, '[]', ?, ?, 0, ?)
		`, r.matchNo, deckID, turn, strings.TrimSpace(r.opponentDeck),
			result, r.youtubeURL, r.createdAt); err != nil {
			return s.dbErr("copy legacy match", err, zap.Int64("match_no", r.matchNo))
		}
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE matches_legacy"); err != nil {
		return s.dbErr("drop legacy matches", err)
	}
	if err := tx.Commit(); err != nil {
		return s.dbErr("commit rebuild", err)
	}

	s.logger.Info("legacy matches rebuilt", zap.Int("rows", len(legacy)))
	return nil
}

// coerceScan normalizes driver scan results ([]byte, int64) for the total
// turn/result decoders.
func coerceScan(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}

func connColumnSet(ctx context.Context, conn *sqlx.Conn, table string) (map[string]struct{}, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		out[name] = struct{}{}
	}
	return out, rows.Err()
}

// InitializeDatabase is destructive: it drops and recreates every table
// from the canonical DDL. Used for schema resets and the
// backup → wipe → restore recovery path. Foreign keys are off for the
// drop/create window and back on afterward.
func (s *Store) InitializeDatabase(ctx context.Context) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return s.dbErr("acquire connection", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return s.dbErr("disable foreign keys", err)
	}
	defer func() { _, _ = conn.ExecContext(ctx, "PRAGMA foreign_keys = ON") }()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return s.dbErr("begin initialize", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := len(tableDefs) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+tableDefs[i].name); err != nil {
			return s.dbErr("drop table", err, zap.String("table", tableDefs[i].name))
		}
	}
	target := schema.Target()
	for _, td := range tableDefs {
		if _, err := tx.ExecContext(ctx, td.createSQL); err != nil {
			return s.dbErr("create table", err, zap.String("table", td.name))
		}
	}
	if err := seedMetadata(ctx, tx, target); err != nil {
		return s.dbErr("seed metadata", err)
	}
	if err := setUserVersion(tx, target); err != nil {
		return s.dbErr("set user_version", err)
	}
	if err := tx.Commit(); err != nil {
		return s.dbErr("commit initialize", err)
	}

	s.logger.Info("database initialized", zap.String("schema_version", target.String()))
	return nil
}

// RecoverFromMigrationFailure runs the startup recovery sequence after a
// failed migration: export what can be exported, wipe to a fresh schema,
// re-import the export. The outcome is persisted as the migration message
// shown once on next UI load.
func (s *Store) RecoverFromMigrationFailure(ctx context.Context, cause error) error {
	s.logger.Error("migration failed, attempting recovery", zap.Error(cause))

	backupDir, exportErr := s.ExportBackup(ctx, "")
	if exportErr != nil {
		s.logger.Error("recovery backup failed", zap.Error(exportErr))
	}

	if err := s.InitializeDatabase(ctx); err != nil {
		s.setMigrationMessage(ctx, fmt.Sprintf("Migration failed (%v); automatic reset also failed: %v", cause, err))
		return fmt.Errorf("recovery reset: %w", err)
	}

	if exportErr == nil {
		if _, err := s.ImportBackup(ctx, backupDir); err != nil {
			s.setMigrationMessage(ctx, fmt.Sprintf("Migration failed (%v); database was reset but restoring the automatic backup failed: %v. Backup kept at %s.", cause, err, backupDir))
			return fmt.Errorf("recovery restore: %w", err)
		}
		s.setMigrationMessage(ctx, fmt.Sprintf("Migration failed (%v); the database was rebuilt from an automatic backup at %s.", cause, backupDir))
	} else {
		s.setMigrationMessage(ctx, fmt.Sprintf("Migration failed (%v); the database was reset. No backup could be taken: %v.", cause, exportErr))
	}
	return nil
}

func (s *Store) setMigrationMessage(ctx context.Context, msg string) {
	if err := s.SetMetadata(ctx, model.MetaLastMigrationMessage, msg); err != nil {
		return
	}
	_ = s.SetMetadata(ctx, model.MetaLastMigrationMessageAt,
		strconv.FormatInt(time.Now().Unix(), 10))
}
