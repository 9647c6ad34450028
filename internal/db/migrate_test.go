package db

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var migrationColumns = []string{"id", "name", "applied_at", "checksum"}

func TestMigrator_Up(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, applied_at, checksum FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows(migrationColumns))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS scan_port_rows")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs("001_scan_port_rows", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ran, err := NewMigrator(db.DB).Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_scan_port_rows"}, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_UpAlreadyApplied(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, applied_at, checksum FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows(migrationColumns).
			AddRow(1, "001_scan_port_rows", time.Now(), "abc"))

	ran, err := NewMigrator(db.DB).Up(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_UpFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, applied_at, checksum FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows(migrationColumns))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS scan_port_rows")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	ran, err := NewMigrator(db.DB).Up(context.Background())
	require.Error(t, err)
	assert.Empty(t, ran)
	assert.Contains(t, err.Error(), "001_scan_port_rows")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_Status(t *testing.T) {
	db, mock := newMockDB(t)
	appliedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, applied_at, checksum FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows(migrationColumns).
			AddRow(1, "001_scan_port_rows", appliedAt, "abc"))

	statuses, err := NewMigrator(db.DB).Status(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, MigrationStatus{Name: "001_scan_port_rows", Applied: true, AppliedAt: appliedAt}, statuses[0])
}
