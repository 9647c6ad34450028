package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/scanexport/internal/errors"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return New(conn), mock
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Empty(t, cfg.Database)
	assert.Empty(t, cfg.Username)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxIdleTime)
	assert.False(t, cfg.Configured())
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database = "scans"
	cfg.Username = "export"
	cfg.Password = "secret"

	assert.Equal(t,
		"host=localhost port=5432 dbname=scans user=export password=secret sslmode=disable",
		cfg.DSN())
	assert.True(t, cfg.Configured())
}

func TestConnect_NotConfigured(t *testing.T) {
	cfg := DefaultConfig()

	_, err := Connect(context.Background(), &cfg)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfiguration, errors.GetCode(err))
}

func TestPing(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer conn.Close()
	db := New(conn)

	mock.ExpectPing()
	require.NoError(t, db.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(&pq.Error{Code: "08006"})
	err = db.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseConnection, errors.GetCode(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"unique violation", &pq.Error{Code: "23505"}, errors.CodeConflict},
		{"not null violation", &pq.Error{Code: "23502"}, errors.CodeValidation},
		{"canceled", &pq.Error{Code: "57014"}, errors.CodeCanceled},
		{"connection lost", &pq.Error{Code: "08006"}, errors.CodeDatabaseConnection},
		{"other postgres error", &pq.Error{Code: "42P01"}, errors.CodeDatabaseQuery},
		{"plain error", fmt.Errorf("boom"), errors.CodeDatabaseQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sanitizeDBError("insert row", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.Contains(t, err.Error(), "insert row")
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, sanitizeDBError("noop", nil))
}
