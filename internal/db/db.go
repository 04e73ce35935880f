// Package db stores per-frame feature results in SQLite so a drive can be
// inspected after the fact.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/lanefeatures/internal/monitoring"
)

type DB struct {
	*sql.DB
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// Most pragmas below are per connection, so the pool holds exactly one.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	version, _, err := db.MigrateVersion()
	if err == nil {
		monitoring.Logf("feature log %s at schema version %d", path, version)
	}
	return db, nil
}

// RecordSession stores where a processing session read its frames from and
// the configuration it ran with.
func (db *DB) RecordSession(sessionID, source, configJSON string) error {
	_, err := db.Exec(
		`INSERT OR REPLACE INTO sessions (session_id, source, config_json) VALUES (?, ?, ?)`,
		sessionID, source, configJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record session %s: %w", sessionID, err)
	}
	return nil
}

// Session is one row of the sessions table.
type Session struct {
	SessionID  string `json:"session_id"`
	Source     string `json:"source"`
	ConfigJSON string `json:"config_json,omitempty"`
	StartedAt  string `json:"started_at"`
}

// Sessions lists recorded sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT session_id, source, COALESCE(config_json, ''), started_at
		FROM sessions ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.SessionID, &s.Source, &s.ConfigJSON, &s.StartedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
