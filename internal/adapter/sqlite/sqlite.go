// Package sqlite provides a SQLite-backed catalog source. It exists for
// single-binary deployments where running PostgreSQL is not worth the
// trouble; the schema mirrors the postgres adapter's migration.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO required
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    seq             INTEGER PRIMARY KEY AUTOINCREMENT,
    event_index     INTEGER NOT NULL UNIQUE,
    time            TEXT NOT NULL,
    longitude       REAL NOT NULL,
    latitude        REAL NOT NULL,
    depth_km        REAL NOT NULL,
    magnitude       REAL,
    num_picks       INTEGER NOT NULL DEFAULT 0,
    num_p_picks     INTEGER NOT NULL DEFAULT 0,
    num_s_picks     INTEGER NOT NULL DEFAULT 0,
    h3dd_longitude  REAL,
    h3dd_latitude   REAL,
    h3dd_depth_km   REAL,
    strike          REAL,
    strike_err      REAL,
    dip             REAL,
    dip_err         REAL,
    rake            REAL,
    rake_err        REAL,
    quality_index   REAL,
    num_of_polarity REAL
);

CREATE TABLE IF NOT EXISTS picks (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    event_index   INTEGER NOT NULL,
    station_id    TEXT NOT NULL,
    phase_type    TEXT NOT NULL DEFAULT '',
    phase_time    TEXT NOT NULL DEFAULT '',
    phase_score   REAL,
    polarity      TEXT NOT NULL DEFAULT '',
    dist          REAL,
    azimuth       REAL,
    takeoff_angle REAL,
    magnitude     REAL
);

CREATE INDEX IF NOT EXISTS idx_picks_event_index ON picks(event_index);
`

// Open opens (or creates) the catalog database at path and ensures the
// schema exists. Pass ":memory:" for an in-memory database.
func Open(path string) (*sql.DB, error) {
	connStr := path
	if path == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
