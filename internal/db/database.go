// Package db stores exported scan rows in PostgreSQL. It provides the
// connection setup, the embedded schema migrations and RowStore, a batch
// sink that writes every row of one batch inside a single transaction.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/logging"
)

const (
	// Default database configuration values.
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultConnMaxIdleTime = 5

	driverName = "postgres"
)

// DB wraps sqlx.DB with additional functionality.
type DB struct {
	*sqlx.DB
}

// Config holds database configuration.
type Config struct {
	Host            string        `yaml:"host" json:"host" validate:"required"`
	Port            int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"-"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultConfig returns the default database configuration.
// Database name, username, and password must be explicitly configured.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime * time.Minute,
		ConnMaxIdleTime: defaultConnMaxIdleTime * time.Minute,
	}
}

// DSN returns the lib/pq key=value connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
	)
}

// Configured reports whether enough settings are present to connect.
func (c *Config) Configured() bool {
	return c.Database != "" && c.Username != ""
}

// Connect establishes a connection to PostgreSQL.
// Returns sanitized errors that don't leak credentials or DSN details.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	if !config.Configured() {
		return nil, errors.ErrConfigMissing("database.database")
	}

	db, err := sqlx.ConnectContext(ctx, driverName, config.DSN())
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	logging.Default().InfoDatabase("Connected to database",
		"host", config.Host, "port", config.Port, "database", config.Database)
	return &DB{DB: db}, nil
}

// New wraps an already opened handle.
func New(db *sql.DB) *DB {
	return &DB{DB: sqlx.NewDb(db, driverName)}
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return sanitizeDBError("ping", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// sanitizeDBError converts raw database errors into errors that don't expose
// SQL details or credentials. The original error is kept as the Cause.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	code := errors.CodeDatabaseQuery
	message := fmt.Sprintf("Database operation failed: %s", operation)

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			code, message = errors.CodeConflict, "Row already exists"
		case "23502", "23514": // not_null_violation, check_violation
			code, message = errors.CodeValidation, "Row violates table constraints"
		case "57014": // query_canceled
			code, message = errors.CodeCanceled, "Database operation was canceled"
		case "08000", "08003", "08006", "57P01":
			code, message = errors.CodeDatabaseConnection, "Database connection lost"
		}
	}

	dbErr := errors.WrapDatabaseError(code, message, err)
	dbErr.Operation = operation
	return dbErr
}
