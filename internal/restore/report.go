package restore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Mode selects how restored rows meet existing ones.
type Mode string

const (
	// ModeFull deletes all rows (reverse table order) and resets the
	// auto-increment sequences before inserting.
	ModeFull Mode = "full"
	// ModeUpsert inserts with INSERT OR REPLACE, keeping unrelated rows.
	ModeUpsert Mode = "upsert"
)

// Failure is one row/column-level restore failure.
type Failure struct {
	Table  string `json:"table"`
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// TableCount is the restored row count for one table, in processing order.
type TableCount struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// Report is the structured outcome of one restore attempt.
type Report struct {
	Mode      Mode         `json:"mode"`
	DryRun    bool         `json:"dry_run"`
	StartedAt time.Time    `json:"started_at"`
	Integrity string       `json:"integrity"`
	Counts    []TableCount `json:"counts"`
	Failures  []Failure    `json:"failures"`
	Err       string       `json:"error,omitempty"`
	LogPath   string       `json:"log_path,omitempty"`
}

// Ok reports overall success: no error, no failures, integrity check
// passed.
func (r *Report) Ok() bool {
	return r.Err == "" && len(r.Failures) == 0 && r.Integrity == "ok"
}

// write renders the human-readable report file into logDir. Called on
// every attempt, success or failure.
func (r *Report) write(logDir string) {
	if logDir == "" {
		return
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return
	}
	name := "restore-" + r.StartedAt.Format("20060102-150405") + ".log"
	path := filepath.Join(logDir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "Restore report %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Mode: %s\n", r.Mode)
	fmt.Fprintf(&b, "Dry run: %t\n", r.DryRun)
	fmt.Fprintf(&b, "Integrity check: %s\n", valueOr(r.Integrity, "not run"))
	b.WriteString("Rows restored:\n")
	for _, c := range r.Counts {
		fmt.Fprintf(&b, "  %-16s %d\n", c.Table, c.Rows)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "Failures (%d):\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  table=%s row=%d column=%s value=%q reason=%s\n",
				f.Table, f.Row, f.Column, f.Value, f.Reason)
		}
	}
	if r.Err != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Err)
	}
	fmt.Fprintf(&b, "Result: %s\n", okString(r.Ok()))

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err == nil {
		r.LogPath = path
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func okString(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAILED"
}
