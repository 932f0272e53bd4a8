package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"ParaLedger/internal/observability"
)

// migrationLockKey serializes migrators across processes: the service applies
// migrations on startup and cmd/migrate may run concurrently against the
// same database.
const migrationLockKey = 0x70617261 // "para"

// Migrator applies SQL migration files in version order. File naming follows
// the golang-migrate convention: {version}_{name}.up.sql / .down.sql.
type Migrator struct {
	db  *sql.DB
	dir string
	log zerolog.Logger
}

func NewMigrator(db *sql.DB, dir string) *Migrator {
	return &Migrator{
		db:  db,
		dir: dir,
		log: observability.NewLogger("migrator"),
	}
}

// Up applies every pending up-migration inside the advisory lock.
func (m *Migrator) Up(ctx context.Context) error {
	return m.withLock(ctx, func(conn *sql.Conn) error {
		applied, err := m.appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		files, err := m.migrationFiles(".up.sql")
		if err != nil {
			return err
		}

		for _, f := range files {
			version := migrationVersion(f)
			if applied[version] {
				continue
			}
			if err := m.applyUp(ctx, conn, version, f); err != nil {
				return err
			}
			m.log.Info().Str("file", f).Msg("migration applied")
		}
		return nil
	})
}

// Down rolls back the most recent applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	return m.withLock(ctx, func(conn *sql.Conn) error {
		var version, filename string
		err := conn.QueryRowContext(ctx, `
			SELECT version, filename FROM event_log.schema_migrations
			ORDER BY version DESC LIMIT 1
		`).Scan(&version, &filename)
		if err == sql.ErrNoRows {
			m.log.Info().Msg("no migrations to roll back")
			return nil
		}
		if err != nil {
			return fmt.Errorf("latest migration: %w", err)
		}

		downFile := strings.Replace(filename, ".up.sql", ".down.sql", 1)
		sqlText, err := os.ReadFile(filepath.Join(m.dir, downFile))
		if err != nil {
			return fmt.Errorf("read %s: %w", downFile, err)
		}

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(sqlText)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec %s: %w", downFile, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM event_log.schema_migrations WHERE version = $1`, version,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("unrecord %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		m.log.Info().Str("file", downFile).Msg("migration rolled back")
		return nil
	})
}

// withLock runs fn on a single connection holding the advisory lock, with the
// bookkeeping table guaranteed to exist.
func (m *Migrator) withLock(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	defer conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockKey)

	if _, err := conn.ExecContext(ctx, `
		CREATE SCHEMA IF NOT EXISTS event_log;
		CREATE TABLE IF NOT EXISTS event_log.schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	return fn(conn)
}

func (m *Migrator) applyUp(ctx context.Context, conn *sql.Conn, version, file string) error {
	sqlText, err := os.ReadFile(filepath.Join(m.dir, file))
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx, string(sqlText)); err != nil {
		tx.Rollback()
		return fmt.Errorf("exec %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO event_log.schema_migrations (version, filename) VALUES ($1, $2)`,
		version, file,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("record %s: %w", file, err)
	}
	return tx.Commit()
}

func (m *Migrator) appliedVersions(ctx context.Context, conn *sql.Conn) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM event_log.schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) migrationFiles(suffix string) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", m.dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// migrationVersion returns the numeric prefix of a migration filename,
// e.g. "000001" from "000001_event_log.up.sql".
func migrationVersion(filename string) string {
	version, _, _ := strings.Cut(filename, "_")
	return version
}
