package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/model"
)

// CSV backups: one file per table (header row + all canonical columns)
// under a timestamped directory, optionally packaged as a ZIP archive.
// Import is deliberately lenient: it accepts files written by older
// releases (string turn/result words, matches keyed by deck name instead
// of deck_id) and recomputes every usage counter afterward. The strict,
// typed restore path lives in the restore package.

const backupTimeFormat = "20060102-150405"

// ExportBackup dumps every backup table to CSV under destination (default:
// a new timestamped directory below the configured backups dir) and
// records the backup in db_metadata. Returns the directory written.
func (s *Store) ExportBackup(ctx context.Context, destination string) (string, error) {
	if destination == "" {
		destination = filepath.Join(s.backupDir, time.Now().Format(backupTimeFormat))
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	for _, table := range BackupTables {
		path := filepath.Join(destination, table+".csv")
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("creating %s: %w", path, err)
		}
		err = s.exportTableCSV(ctx, table, f)
		closeErr := f.Close()
		if err != nil {
			return "", err
		}
		if closeErr != nil {
			return "", fmt.Errorf("closing %s: %w", path, closeErr)
		}
	}

	_ = s.SetMetadata(ctx, model.MetaLastBackup, destination)
	_ = s.SetMetadata(ctx, model.MetaLastBackupAt, strconv.FormatInt(time.Now().Unix(), 10))

	s.logger.Info("backup exported", zap.String("dir", destination))
	return destination, nil
}

// ExportBackupZip builds the same backup as a ZIP archive held in memory,
// also writing it to the backups directory. Returns the backup directory,
// the archive file name and its bytes.
func (s *Store) ExportBackupZip(ctx context.Context, destination string) (string, string, []byte, error) {
	dir, err := s.ExportBackup(ctx, destination)
	if err != nil {
		return "", "", nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, table := range BackupTables {
		data, err := os.ReadFile(filepath.Join(dir, table+".csv"))
		if err != nil {
			return "", "", nil, fmt.Errorf("reading %s.csv: %w", table, err)
		}
		w, err := zw.Create(table + ".csv")
		if err != nil {
			return "", "", nil, fmt.Errorf("adding %s.csv to archive: %w", table, err)
		}
		if _, err := w.Write(data); err != nil {
			return "", "", nil, fmt.Errorf("writing %s.csv to archive: %w", table, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", "", nil, fmt.Errorf("finalizing archive: %w", err)
	}

	filename := "dpl-backup-" + filepath.Base(dir) + ".zip"
	if err := os.WriteFile(filepath.Join(s.backupDir, filename), buf.Bytes(), 0o644); err != nil {
		s.logger.Warn("could not persist backup archive", zap.Error(err))
	}
	return dir, filename, buf.Bytes(), nil
}

func (s *Store) exportTableCSV(ctx context.Context, table string, w io.Writer) error {
	cols := columnNames(table)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("writing %s header: %w", table, err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id ASC", strings.Join(cols, ", "), table)
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return s.dbErr("export table", err, zap.String("table", table))
	}
	defer rows.Close()

	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return s.dbErr("export table", err, zap.String("table", table))
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = csvValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing %s row: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return s.dbErr("export table", err, zap.String("table", table))
	}
	cw.Flush()
	return cw.Error()
}

func csvValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(t)
	}
}

// ImportBackup reads each backup table's CSV from sourceDir (missing files
// are skipped, not errors), maps legacy value encodings to canonical
// columns, inserts everything inside one transaction and recomputes the
// usage counters. Returns per-table inserted row counts.
func (s *Store) ImportBackup(ctx context.Context, sourceDir string) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range BackupTables {
			path := filepath.Join(sourceDir, table+".csv")
			f, err := os.Open(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return fmt.Errorf("opening %s: %w", path, err)
			}
			n, err := s.importTableCSV(ctx, tx, table, f)
			f.Close()
			if err != nil {
				return err
			}
			counts[table] = n
		}
		if err := recalcUsageTx(ctx, tx); err != nil {
			return s.dbErr("recalculate usage after import", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("backup imported", zap.String("dir", sourceDir), zap.Any("rows", counts))
	return counts, nil
}

func (s *Store) importTableCSV(ctx context.Context, tx *sqlx.Tx, table string, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s header: %w", table, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	known := make(map[string]struct{})
	for _, c := range columnNames(table) {
		known[c] = struct{}{}
	}

	count := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading %s row: %w", table, err)
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}

		cols, args, err := s.legacyMapRow(ctx, tx, table, row, known)
		if err != nil {
			return 0, err
		}
		if len(cols) == 0 {
			continue
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, s.dbErr("import row", err, zap.String("table", table))
		}
		count++
	}
	return count, nil
}

// legacyMapRow converts one CSV row to canonical insert columns, applying
// the legacy-format mappings: string turn/result words and matches keyed
// by a deck name column instead of deck_id.
func (s *Store) legacyMapRow(ctx context.Context, tx *sqlx.Tx, table string, row map[string]string, known map[string]struct{}) ([]string, []any, error) {
	if table == "matches" {
		if _, ok := row["deck_id"]; !ok {
			deckName := strings.TrimSpace(row["deck_name"])
			if deckName == "" {
				deckName = strings.TrimSpace(row["deck"])
			}
			if deckName != "" {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO decks (name) VALUES (?) ON CONFLICT(name) DO NOTHING",
					deckName); err != nil {
					return nil, nil, s.dbErr("import resolve deck", err, zap.String("deck", deckName))
				}
				var id int64
				if err := tx.GetContext(ctx, &id,
					"SELECT id FROM decks WHERE name = ? COLLATE NOCASE", deckName); err != nil {
					return nil, nil, s.dbErr("import resolve deck", err, zap.String("deck", deckName))
				}
				row["deck_id"] = strconv.FormatInt(id, 10)
			}
		}
	}

	var cols []string
	var args []any
	for col, raw := range row {
		if _, ok := known[col]; !ok {
			continue
		}
		cols = append(cols, col)
		args = append(args, importValue(table, col, raw))
	}
	return cols, args, nil
}

// importValue coerces a CSV cell to its canonical stored form. Lenient by
// design: the total decoders absorb legacy string encodings and anything
// unparsable falls back to a safe default.
func importValue(table, col, raw string) any {
	raw = strings.TrimSpace(raw)
	switch col {
	case "turn":
		if model.DecodeTurn(raw) {
			return 1
		}
		return 0
	case "result":
		return model.DecodeResult(raw)
	case "keywords":
		if table == "matches" {
			if raw == "" {
				return "[]"
			}
			return model.EncodeKeywordList(model.DecodeKeywordList(raw))
		}
	case "favorite", "is_hidden":
		if model.DecodeTurn(raw) {
			return 1
		}
		return 0
	case "id", "match_no", "deck_id", "usage_count", "created_at":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		return 0
	case "season_id":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			return n
		}
		return nil
	}
	return raw
}

// ImportBackupArchive unzips a backup archive to a temp directory, checks
// the essential CSVs are present (reporting exactly which are missing) and
// delegates to ImportBackup.
func (s *Store) ImportBackupArchive(ctx context.Context, data []byte) (map[string]int, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, validationf("not a valid backup archive: %v", err)
	}

	tmp, err := os.MkdirTemp("", "dpl-restore-")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s in archive: %w", f.Name, err)
		}
		out, err := os.Create(filepath.Join(tmp, name))
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("extracting %s: %w", name, err)
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		closeErr := out.Close()
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", name, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("extracting %s: %w", name, closeErr)
		}
	}

	var missing []string
	for _, required := range []string{"decks.csv", "seasons.csv", "matches.csv"} {
		if _, err := os.Stat(filepath.Join(tmp, required)); err != nil {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, validationf("backup archive is missing required files: %s",
			strings.Join(missing, ", "))
	}

	return s.ImportBackup(ctx, tmp)
}
