// Package migrate brings a sidequest workspace database up to the current
// schema revision.
package migrate

import (
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed sql/001_init.sql
var initSQL string

// revisions lists schema changes in apply order. Append new revisions with
// the next version number; anything at or below the recorded version is
// skipped.
var revisions = []struct {
	version int
	name    string
	up      string
}{
	{1, "init", initSQL},
}

// Migrate applies pending revisions inside a single transaction. The current
// version lives in the single-row schema_version table.
func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	err = tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&current)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, r := range revisions {
		if r.version <= current {
			continue
		}
		if _, err := tx.Exec(r.up); err != nil {
			return fmt.Errorf("apply revision %s: %w", r.name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, r.version); err != nil {
			return fmt.Errorf("record revision %s: %w", r.name, err)
		}
		current = r.version
	}
	return tx.Commit()
}
