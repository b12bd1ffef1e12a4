package schema

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ReadFromDB determines the schema version of an opened database. Order of
// preference: a nonzero PRAGMA user_version (legacy integer form), then the
// db_metadata schema_version key, then fallback. Never fails: an
// unreadable or unversioned database is treated as fallback.
func ReadFromDB(ctx context.Context, db *sqlx.DB, fallback Version) Version {
	var legacy int
	if err := db.GetContext(ctx, &legacy, "PRAGMA user_version"); err == nil && legacy != 0 {
		return FromLegacyInt(legacy)
	}

	var stored string
	err := db.GetContext(ctx, &stored,
		"SELECT value FROM db_metadata WHERE key = 'schema_version'")
	if err != nil {
		// db_metadata may simply not exist yet on a legacy database.
		return fallback
	}
	return Coerce(stored, fallback)
}
