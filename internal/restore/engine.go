package restore

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
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

// Engine runs validated CSV restores against an opened database.
type Engine struct {
	db     *sqlx.DB
	logDir string
	logger *zap.Logger
}

// New creates a restore engine. Reports are written to logDir.
func New(db *sqlx.DB, logDir string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, logDir: logDir, logger: logger}
}

// Options configure one restore attempt.
type Options struct {
	Mode   Mode
	DryRun bool
}

// RestoreArchive extracts a ZIP backup to a temp directory and restores
// it. The returned report is never nil.
func (e *Engine) RestoreArchive(ctx context.Context, data []byte, opts Options) *Report {
	report := e.newReport(opts)
	defer report.write(e.logDir)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		report.Err = fmt.Sprintf("not a valid backup archive: %v", err)
		return report
	}

	tmp, err := os.MkdirTemp("", "dpl-restore-")
	if err != nil {
		report.Err = fmt.Sprintf("creating temp directory: %v", err)
		return report
	}
	defer os.RemoveAll(tmp)

	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		if err := extractFile(f, filepath.Join(tmp, name)); err != nil {
			report.Err = fmt.Sprintf("extracting %s: %v", name, err)
			return report
		}
	}

	e.run(ctx, tmp, report)
	return report
}

// RestoreDir restores from a directory of per-table CSV files.
func (e *Engine) RestoreDir(ctx context.Context, dir string, opts Options) *Report {
	report := e.newReport(opts)
	defer report.write(e.logDir)
	e.run(ctx, dir, report)
	return report
}

func (e *Engine) newReport(opts Options) *Report {
	mode := opts.Mode
	if mode == "" {
		mode = ModeFull
	}
	return &Report{Mode: mode, DryRun: opts.DryRun, StartedAt: time.Now()}
}

// run executes the whole multi-table restore in one transaction. Any
// failure (validation, insert, or the final integrity check) rolls the
// entire attempt back; there is no partial restore.
func (e *Engine) run(ctx context.Context, dir string, report *Report) {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		report.Err = fmt.Sprintf("begin transaction: %v", err)
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if report.Mode == ModeFull {
		if err := clearTables(ctx, tx); err != nil {
			report.Err = fmt.Sprintf("clearing tables: %v", err)
			return
		}
	}

	for _, table := range Tables {
		count, ok := e.restoreTable(ctx, tx, dir, table, report)
		report.Counts = append(report.Counts, TableCount{Table: table.Name, Rows: count})
		if !ok {
			e.logger.Warn("restore aborted",
				zap.String("table", table.Name),
				zap.Int("failures", len(report.Failures)))
			return
		}
	}

	var integrity string
	if err := tx.GetContext(ctx, &integrity, "PRAGMA integrity_check"); err != nil {
		report.Err = fmt.Sprintf("integrity check: %v", err)
		return
	}
	report.Integrity = integrity
	if integrity != "ok" {
		// Rows inserted cleanly but the file is damaged; refuse to commit.
		report.Err = "integrity check failed"
		return
	}

	if report.DryRun {
		// Everything validated and inserted; roll back on purpose.
		return
	}

	if err := tx.Commit(); err != nil {
		report.Err = fmt.Sprintf("commit: %v", err)
		return
	}
	committed = true
	e.logger.Info("restore committed", zap.String("mode", string(report.Mode)))
}

// clearTables deletes all rows in reverse dependency order and resets the
// auto-increment sequences.
func clearTables(ctx context.Context, tx *sqlx.Tx) error {
	for i := len(Tables) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+Tables[i].Name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM sqlite_sequence WHERE name = ?", Tables[i].Name); err != nil {
			// sqlite_sequence only exists once an AUTOINCREMENT table has
			// allocated a rowid.
			if !strings.Contains(err.Error(), "no such table") {
				return err
			}
		}
	}
	return nil
}

// restoreTable validates and inserts one table's CSV. Returns the inserted
// row count and whether the restore may continue. Conversion failures are
// collected (not short-circuited) so a report covers everything wrong with
// the file, then abort the attempt.
func (e *Engine) restoreTable(ctx context.Context, tx *sqlx.Tx, dir string, table Table, report *Report) (int, bool) {
	f, err := os.Open(filepath.Join(dir, table.Name+".csv"))
	if os.IsNotExist(err) {
		if table.Optional {
			return 0, true
		}
		report.Failures = append(report.Failures, Failure{
			Table: table.Name, Reason: "csv file missing",
		})
		return 0, false
	}
	if err != nil {
		report.Failures = append(report.Failures, Failure{
			Table: table.Name, Reason: err.Error(),
		})
		return 0, false
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		report.Failures = append(report.Failures, Failure{
			Table: table.Name, Reason: "missing header row",
		})
		return 0, false
	}

	// Intersect the header with the declared schema. Unknown CSV columns
	// are ignored; position tracks where each known column lives.
	position := make(map[string]int, len(header))
	for i, col := range header {
		position[strings.TrimSpace(col)] = i
	}
	var missing []string
	for _, col := range table.Columns {
		if _, ok := position[col.Name]; ok {
			continue
		}
		if !col.Nullable && col.Default == nil {
			missing = append(missing, col.Name)
		}
	}
	if len(missing) > 0 {
		report.Failures = append(report.Failures, Failure{
			Table:  table.Name,
			Reason: "missing columns: " + strings.Join(missing, ", "),
		})
		return 0, false
	}

	colNames := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		colNames[i] = col.Name
	}
	verb := "INSERT"
	if report.Mode == ModeUpsert {
		verb = "INSERT OR REPLACE"
	}
	query := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		verb, table.Name, strings.Join(colNames, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(colNames)), ", "))

	count := 0
	failed := len(report.Failures) > 0
	for rowNum := 2; ; rowNum++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Failures = append(report.Failures, Failure{
				Table: table.Name, Row: rowNum, Reason: err.Error(),
			})
			failed = true
			continue
		}

		args := make([]any, len(table.Columns))
		rowOK := true
		for i, col := range table.Columns {
			raw := ""
			if pos, ok := position[col.Name]; ok && pos < len(record) {
				raw = strings.TrimSpace(record[pos])
			}
			value, convErr := convertCell(col, raw)
			if convErr != nil {
				report.Failures = append(report.Failures, Failure{
					Table: table.Name, Row: rowNum, Column: col.Name,
					Value: raw, Reason: convErr.Error(),
				})
				rowOK = false
				continue
			}
			args[i] = value
		}
		if !rowOK {
			failed = true
			continue
		}
		if failed {
			continue // keep scanning for more failures, stop inserting
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			report.Failures = append(report.Failures, Failure{
				Table: table.Name, Row: rowNum, Reason: err.Error(),
			})
			failed = true
			continue
		}
		count++
	}

	return count, !failed
}

// convertCell coerces one CSV cell to its typed insert value. A blank cell
// takes the column default if declared, NULL if nullable, and is otherwise
// an error.
func convertCell(col Column, raw string) (any, error) {
	if raw == "" {
		if col.Default != nil {
			raw = *col.Default
		} else if col.Nullable {
			return nil, nil
		} else {
			return nil, fmt.Errorf("blank value for required column")
		}
	}

	switch col.Type {
	case TypeText:
		return raw, nil
	case TypeInteger, TypeEpoch:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer")
		}
		return n, nil
	case TypeBoolean:
		switch strings.ToLower(raw) {
		case "1", "true":
			return 1, nil
		case "0", "false":
			return 0, nil
		}
		return nil, fmt.Errorf("not a boolean")
	case TypeJSON:
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("not valid JSON")
		}
		return raw, nil
	case TypeTurn:
		n, err := model.EncodeTurn(raw)
		if err != nil {
			return nil, fmt.Errorf("not a recognized turn value")
		}
		return n, nil
	case TypeResult:
		n, err := model.EncodeResult(raw)
		if err != nil {
			return nil, fmt.Errorf("not a recognized result value")
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown column type %s", col.Type)
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
