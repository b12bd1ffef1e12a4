// Package restore is the strict, typed CSV restore path used by the admin
// CLI. Unlike the storage package's lenient ImportBackup, every cell is
// validated and coerced against a declared per-table column schema, the
// whole multi-table restore runs in one transaction gated by an integrity
// check, and every attempt produces a structured report.
package restore

// ColumnType tags how a CSV cell is validated and coerced before insert.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeBoolean ColumnType = "BOOLEAN"
	TypeJSON    ColumnType = "JSON"
	TypeEpoch   ColumnType = "EPOCH"
	TypeTurn    ColumnType = "TURN"
	TypeResult  ColumnType = "RESULT"
)

// Column declares one CSV column: its type, whether NULL is acceptable,
// and an optional default applied when the cell is blank or absent.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Default  *string
}

// Table is an ordered set of columns for one restorable table.
type Table struct {
	Name     string
	Columns  []Column
	Optional bool // a missing CSV file is skipped, not an error
}

func text(s string) *string { return &s }

// Tables is the fixed processing order, parents before children, so
// foreign keys resolve. Full (non-merge) restores clear rows in the
// reverse order.
var Tables = []Table{
	{
		Name: "decks",
		Columns: []Column{
			{Name: "id", Type: TypeInteger},
			{Name: "name", Type: TypeText},
			{Name: "description", Type: TypeText, Default: text("")},
			{Name: "usage_count", Type: TypeInteger, Default: text("0")},
		},
	},
	{
		Name:     "opponent_decks",
		Optional: true,
		Columns: []Column{
			{Name: "id", Type: TypeInteger},
			{Name: "name", Type: TypeText},
			{Name: "usage_count", Type: TypeInteger, Default: text("0")},
		},
	},
	{
		Name: "seasons",
		Columns: []Column{
			{Name: "id", Type: TypeInteger},
			{Name: "name", Type: TypeText},
			{Name: "description", Type: TypeText, Default: text("")},
			{Name: "start_date", Type: TypeText, Default: text("")},
			{Name: "start_time", Type: TypeText, Default: text("")},
			{Name: "end_date", Type: TypeText, Default: text("")},
			{Name: "end_time", Type: TypeText, Default: text("")},
		},
	},
	{
		Name:     "keywords",
		Optional: true,
		Columns: []Column{
			{Name: "id", Type: TypeInteger},
			{Name: "identifier", Type: TypeText},
			{Name: "name", Type: TypeText},
			{Name: "description", Type: TypeText, Default: text("")},
			{Name: "usage_count", Type: TypeInteger, Default: text("0")},
			{Name: "is_hidden", Type: TypeBoolean, Default: text("0")},
			{Name: "created_at", Type: TypeEpoch, Default: text("0")},
		},
	},
	{
		Name: "matches",
		Columns: []Column{
			{Name: "id", Type: TypeInteger},
			{Name: "match_no", Type: TypeInteger},
			{Name: "deck_id", Type: TypeInteger},
			{Name: "season_id", Type: TypeInteger, Nullable: true},
			{Name: "turn", Type: TypeTurn},
			{Name: "opponent_deck", Type: TypeText, Default: text("")},
			{Name: "keywords", Type: TypeJSON, Default: text("[]")},
			{Name: "result", Type: TypeResult},
			{Name: "youtube_url", Type: TypeText, Default: text("")},
			{Name: "favorite", Type: TypeBoolean, Default: text("0")},
			{Name: "created_at", Type: TypeEpoch, Default: text("0")},
		},
	},
}
