package client

import (
	"cmp"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var stateMigrations embed.FS

// stateMigration is one numbered file under migrations/, e.g. 001_initial.sql
type stateMigration struct {
	version int
	name    string
	sql     string
}

// pendingMigrations returns the migrations newer than version, oldest first
func pendingMigrations(version int) ([]stateMigration, error) {
	files, err := fs.Glob(stateMigrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	var pending []stateMigration
	for _, file := range files {
		num, name, ok := strings.Cut(strings.TrimSuffix(path.Base(file), ".sql"), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: want NNN_name.sql", file)
		}
		v, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", file, err)
		}
		if v <= version {
			continue
		}

		body, err := stateMigrations.ReadFile(file)
		if err != nil {
			return nil, err
		}
		pending = append(pending, stateMigration{version: v, name: name, sql: string(body)})
	}

	slices.SortFunc(pending, func(a, b stateMigration) int { return cmp.Compare(a.version, b.version) })
	return pending, nil
}

// migrateState brings the state schema up to date
func migrateState(db *sql.DB, logger zerolog.Logger) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	pending, err := pendingMigrations(current)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Debug().Int("version", current).Msg("state schema up to date")
		return nil
	}

	for _, m := range pending {
		if err := applyMigration(db, m); err != nil {
			return err
		}
		logger.Info().Int("version", m.version).Str("name", m.name).Msg("state migration applied")
	}
	return nil
}

// applyMigration runs m and records it in one transaction
func applyMigration(db *sql.DB, m stateMigration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, time.Now().Unix()); err != nil {
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	return tx.Commit()
}
