package storage

// Canonical DDL: the single source of truth for the current schema. Fresh
// databases are created from these definitions; migration only ever adds
// tables and columns from this catalog, never drops or renames (additive
// migration), so applying it repeatedly is safe.

type columnDef struct {
	name string
	decl string // full declaration used for ALTER TABLE ... ADD COLUMN
}

type tableDef struct {
	name      string
	createSQL string
	columns   []columnDef
}

// tableDefs is ordered parents-before-children so creation satisfies
// foreign keys. Backup export and loose import follow the same order;
// destructive resets walk it in reverse.
var tableDefs = []tableDef{
	{
		name: "db_metadata",
		createSQL: `CREATE TABLE IF NOT EXISTS db_metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT ''
		)`,
		columns: []columnDef{
			{"key", "key TEXT PRIMARY KEY"},
			{"value", "value TEXT NOT NULL DEFAULT ''"},
		},
	},
	{
		name: "decks",
		createSQL: `CREATE TABLE IF NOT EXISTS decks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
			description TEXT NOT NULL DEFAULT '',
			usage_count INTEGER NOT NULL DEFAULT 0
		)`,
		columns: []columnDef{
			{"id", "id INTEGER PRIMARY KEY AUTOINCREMENT"},
			{"name", "name TEXT NOT NULL UNIQUE COLLATE NOCASE"},
			{"description", "description TEXT NOT NULL DEFAULT ''"},
			{"usage_count", "usage_count INTEGER NOT NULL DEFAULT 0"},
		},
	},
	{
		name: "opponent_decks",
		createSQL: `CREATE TABLE IF NOT EXISTS opponent_decks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
			usage_count INTEGER NOT NULL DEFAULT 0
		)`,
		columns: []columnDef{
			{"id", "id INTEGER PRIMARY KEY AUTOINCREMENT"},
			{"name", "name TEXT NOT NULL UNIQUE COLLATE NOCASE"},
			{"usage_count", "usage_count INTEGER NOT NULL DEFAULT 0"},
		},
	},
	{
		name: "seasons",
		createSQL: `CREATE TABLE IF NOT EXISTS seasons (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			start_date  TEXT NOT NULL DEFAULT '',
			start_time  TEXT NOT NULL DEFAULT '',
			end_date    TEXT NOT NULL DEFAULT '',
			end_time    TEXT NOT NULL DEFAULT ''
		)`,
		columns: []columnDef{
			{"id", "id INTEGER PRIMARY KEY AUTOINCREMENT"},
			{"name", "name TEXT NOT NULL UNIQUE"},
			{"description", "description TEXT NOT NULL DEFAULT ''"},
			{"start_date", "start_date TEXT NOT NULL DEFAULT ''"},
			{"start_time", "start_time TEXT NOT NULL DEFAULT ''"},
			{"end_date", "end_date TEXT NOT NULL DEFAULT ''"},
			{"end_time", "end_time TEXT NOT NULL DEFAULT ''"},
		},
	},
	{
		name: "keywords",
		createSQL: `CREATE TABLE IF NOT EXISTS keywords (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			identifier  TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			usage_count INTEGER NOT NULL DEFAULT 0,
			is_hidden   INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
		columns: []columnDef{
			{"id", "id INTEGER PRIMARY KEY AUTOINCREMENT"},
			{"identifier", "identifier TEXT NOT NULL UNIQUE"},
			{"name", "name TEXT NOT NULL UNIQUE"},
			{"description", "description TEXT NOT NULL DEFAULT ''"},
			{"usage_count", "usage_count INTEGER NOT NULL DEFAULT 0"},
			{"is_hidden", "is_hidden INTEGER NOT NULL DEFAULT 0"},
			{"created_at", "created_at INTEGER NOT NULL DEFAULT 0"},
		},
	},
	{
		name: "matches",
		createSQL: `CREATE TABLE IF NOT EXISTS matches (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			match_no      INTEGER NOT NULL,
			deck_id       INTEGER NOT NULL REFERENCES decks(id) ON DELETE RESTRICT,
			season_id     INTEGER REFERENCES seasons(id) ON DELETE SET NULL,
			turn          INTEGER NOT NULL CHECK (turn IN (0, 1)),
			opponent_deck TEXT NOT NULL DEFAULT '',
			keywords      TEXT NOT NULL DEFAULT '[]',
			result        INTEGER NOT NULL CHECK (result IN (-1, 0, 1)),
			youtube_url   TEXT NOT NULL DEFAULT '',
			favorite      INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
		columns: []columnDef{
			{"id", "id INTEGER PRIMARY KEY AUTOINCREMENT"},
			{"match_no", "match_no INTEGER NOT NULL DEFAULT 0"},
			{"deck_id", "deck_id INTEGER NOT NULL DEFAULT 0 REFERENCES decks(id) ON DELETE RESTRICT"},
			{"season_id", "season_id INTEGER REFERENCES seasons(id) ON DELETE SET NULL"},
			{"turn", "turn INTEGER NOT NULL DEFAULT 0"},
			{"opponent_deck", "opponent_deck TEXT NOT NULL DEFAULT ''"},
			{"keywords", "keywords TEXT NOT NULL DEFAULT '[]'"},
			{"result", "result INTEGER NOT NULL DEFAULT 0"},
			{"youtube_url", "youtube_url TEXT NOT NULL DEFAULT ''"},
			{"favorite", "favorite INTEGER NOT NULL DEFAULT 0"},
			{"created_at", "created_at INTEGER NOT NULL DEFAULT 0"},
		},
	},
}

// BackupTables is the export/import order for CSV backups (db_metadata is
// operational bookkeeping and is not part of a backup).
var BackupTables = []string{"decks", "opponent_decks", "seasons", "keywords", "matches"}

func tableByName(name string) (tableDef, bool) {
	for _, td := range tableDefs {
		if td.name == name {
			return td, true
		}
	}
	return tableDef{}, false
}

// columnNames returns the canonical column order for a table.
func columnNames(name string) []string {
	td, ok := tableByName(name)
	if !ok {
		return nil
	}
	out := make([]string, len(td.columns))
	for i, c := range td.columns {
		out[i] = c.name
	}
	return out
}
