package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed *.sql
var migrationFiles embed.FS

// Migration represents an applied database migration.
type Migration struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	AppliedAt time.Time `db:"applied_at"`
	Checksum  string    `db:"checksum"`
}

// MigrationStatus reports whether one embedded migration has been applied.
type MigrationStatus struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator handles database migrations.
type Migrator struct {
	db    *sqlx.DB
	files fs.FS
}

// NewMigrator creates a migrator for the embedded schema.
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db, files: migrationFiles}
}

// ensureMigrationsTable creates the migrations tracking table if it doesn't exist.
func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW(),
			checksum VARCHAR(64) NOT NULL
		)`

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return sanitizeDBError("create migrations table", err)
	}
	return nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]Migration, error) {
	var migrations []Migration
	query := `SELECT id, name, applied_at, checksum FROM schema_migrations ORDER BY id`

	if err := m.db.SelectContext(ctx, &migrations, query); err != nil {
		return nil, sanitizeDBError("list migrations", err)
	}

	applied := make(map[string]Migration, len(migrations))
	for _, migration := range migrations {
		applied[migration.Name] = migration
	}
	return applied, nil
}

func (m *Migrator) migrationFiles() ([]string, error) {
	files, err := fs.Glob(m.files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func migrationName(file string) string {
	return strings.TrimSuffix(filepath.Base(file), ".sql")
}

func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// apply executes one migration file and records it, in one transaction.
func (m *Migrator) apply(ctx context.Context, file string) error {
	content, err := fs.ReadFile(m.files, file)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", file, err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin migration", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return sanitizeDBError("execute migration "+migrationName(file), err)
	}

	insertQuery := `INSERT INTO schema_migrations (name, checksum) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, insertQuery, migrationName(file), checksum(content)); err != nil {
		return sanitizeDBError("record migration "+migrationName(file), err)
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit migration "+migrationName(file), err)
	}
	return nil
}

// Up runs all pending migrations and returns the names of those applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	files, err := m.migrationFiles()
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, file := range files {
		name := migrationName(file)
		if _, ok := applied[name]; ok {
			continue
		}
		if err := m.apply(ctx, file); err != nil {
			return ran, err
		}
		ran = append(ran, name)
	}
	return ran, nil
}

// Status lists every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	files, err := m.migrationFiles()
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(files))
	for _, file := range files {
		name := migrationName(file)
		migration, ok := applied[name]
		statuses = append(statuses, MigrationStatus{
			Name:      name,
			Applied:   ok,
			AppliedAt: migration.AppliedAt,
		})
	}
	return statuses, nil
}
