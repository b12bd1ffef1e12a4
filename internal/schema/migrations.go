package schema

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Migration-definition files are embedded so the binary carries its own
// schema history. File names follow the V<semver>__<description>.sql
// convention; the largest embedded version is the migration target.

//go:embed migrations/*.sql
var migrationFS embed.FS

// LatestKnown is the fallback target when no migration files are bundled.
// Keep in step with the highest V* file under migrations/.
var LatestKnown = Version{1, 3, 0}

var migrationFileRe = regexp.MustCompile(`^V(\d+\.\d+\.\d+)__(.+)\.sql$`)

// Migration is one embedded migration-definition file.
type Migration struct {
	Version Version
	Name    string
	SQL     string
}

// Migrations returns every embedded migration sorted by version ascending.
func Migrations() ([]Migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		m := migrationFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := Parse(m[1])
		if err != nil {
			continue
		}
		body, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: v, Name: m[2], SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version.Less(out[j].Version) })
	return out, nil
}

// Target returns the migration target: the maximum version among the
// embedded migration files, or LatestKnown if none are bundled.
func Target() Version {
	ms, err := Migrations()
	if err != nil || len(ms) == 0 {
		return LatestKnown
	}
	return ms[len(ms)-1].Version
}

// Statements splits a migration body into individual SQL statements,
// dropping comment-only lines and empty fragments.
func (m Migration) Statements() []string {
	var out []string
	for _, raw := range strings.Split(m.SQL, ";") {
		var kept []string
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			kept = append(kept, line)
		}
		stmt := strings.TrimSpace(strings.Join(kept, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
