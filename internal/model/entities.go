// Package model defines the core data types for the match logger.
// Entities cross layer boundaries as these structs, never as loose
// key/value maps; the storage layer scans rows into them with sqlx
// (`db:` tags) and the bridge serializes them with `json:` tags.
package model

// Deck is a registered player deck. UsageCount caches how many match rows
// reference the deck and must always equal that count.
type Deck struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	UsageCount  int64  `db:"usage_count" json:"usage_count"`
}

// OpponentDeck is a free-text opponent archetype promoted to a first-class
// row so its usage can be counted. Matching against match rows is by the
// trimmed opponent_deck text.
type OpponentDeck struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	UsageCount int64  `db:"usage_count" json:"usage_count"`
}

// Season is an optional scheduling window. Dates and times are stored as
// plain strings ("2026-04-01", "10:00"); nothing enforces expiry, the UI
// computes "days remaining" for display only.
type Season struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	StartDate   string `db:"start_date" json:"start_date"`
	StartTime   string `db:"start_time" json:"start_time"`
	EndDate     string `db:"end_date" json:"end_date"`
	EndTime     string `db:"end_time" json:"end_time"`
}

// Keyword is a user-defined tag. Identifier is the immutable generated key
// ("kw-" + 10 hex chars) stored inside match records, so renaming the
// display name never rewrites history.
type Keyword struct {
	ID          int64  `db:"id" json:"id"`
	Identifier  string `db:"identifier" json:"identifier"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	UsageCount  int64  `db:"usage_count" json:"usage_count"`
	Hidden      bool   `db:"is_hidden" json:"is_hidden"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}

// Match is a stored match row. Keywords holds a JSON array of keyword
// identifiers as TEXT; Turn and Result are the canonical small integers
// (turn 0/1, result -1/0/1).
type Match struct {
	ID           int64  `db:"id" json:"id"`
	MatchNo      int64  `db:"match_no" json:"match_no"`
	DeckID       int64  `db:"deck_id" json:"deck_id"`
	SeasonID     *int64 `db:"season_id" json:"season_id,omitempty"`
	Turn         int    `db:"turn" json:"turn"`
	OpponentDeck string `db:"opponent_deck" json:"opponent_deck"`
	Keywords     string `db:"keywords" json:"keywords"`
	Result       int    `db:"result" json:"result"`
	YoutubeURL   string `db:"youtube_url" json:"youtube_url"`
	Favorite     bool   `db:"favorite" json:"favorite"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
}

// MatchDetail is the read-side shape of a match: joined names, resolved
// keyword details, and turn/result decoded to their semantic forms.
type MatchDetail struct {
	ID           int64     `json:"id"`
	MatchNo      int64     `json:"match_no"`
	DeckID       int64     `json:"deck_id"`
	DeckName     string    `json:"deck_name"`
	SeasonID     *int64    `json:"season_id,omitempty"`
	SeasonName   string    `json:"season_name,omitempty"`
	Turn         bool      `json:"turn"`
	OpponentDeck string    `json:"opponent_deck"`
	Keywords     []Keyword `json:"keywords"`
	Result       int       `json:"result"`
	YoutubeURL   string    `json:"youtube_url"`
	Favorite     bool      `json:"favorite"`
	CreatedAt    int64     `json:"created_at"`
}

// MatchRecord is the write-boundary input for recording a match. Turn and
// Result are `any` on purpose: the boundary accepts booleans, canonical
// ints, numeric strings, English words and the Japanese tokens used by
// older releases (see coerce.go).
type MatchRecord struct {
	MatchNo      int64    `json:"match_no"`
	DeckName     string   `json:"deck_name"`
	SeasonName   string   `json:"season_name,omitempty"`
	Turn         any      `json:"turn"`
	Result       any      `json:"result"`
	OpponentDeck string   `json:"opponent_deck,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	YoutubeURL   string   `json:"youtube_url,omitempty"`
	Favorite     bool     `json:"favorite,omitempty"`
}

// MatchUpdate is a partial update: nil fields are left unchanged. Keywords
// distinguishes nil (unchanged) from an empty slice (clear the list) via
// the pointer.
type MatchUpdate struct {
	MatchNo      *int64    `json:"match_no,omitempty"`
	DeckName     *string   `json:"deck_name,omitempty"`
	SeasonName   *string   `json:"season_name,omitempty"`
	Turn         any       `json:"turn,omitempty"`
	Result       any       `json:"result,omitempty"`
	OpponentDeck *string   `json:"opponent_deck,omitempty"`
	Keywords     *[]string `json:"keywords,omitempty"`
	YoutubeURL   *string   `json:"youtube_url,omitempty"`
	Favorite     *bool     `json:"favorite,omitempty"`
}

// Metadata keys stored in the db_metadata key/value table.
const (
	MetaSchemaVersion          = "schema_version"
	MetaUIMode                 = "ui_mode"
	MetaLastBackup             = "last_backup"
	MetaLastBackupAt           = "last_backup_at"
	MetaLastMigrationMessage   = "last_migration_message"
	MetaLastMigrationMessageAt = "last_migration_message_at"
)

// MetadataDefaults are seeded on database creation and backfilled if
// missing on every EnsureDatabase call.
var MetadataDefaults = map[string]string{
	MetaUIMode:                 "desktop",
	MetaLastBackup:             "",
	MetaLastBackupAt:           "",
	MetaLastMigrationMessage:   "",
	MetaLastMigrationMessageAt: "",
}
