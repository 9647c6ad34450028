package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/export"
)

const insertRowQuery = `
	INSERT INTO scan_port_rows (
		batch_id, row_index, addr, addrtype, protocol, portid, state,
		reason, reason_ttl, name, product, tunnel, method, conf
	) VALUES (
		:batch_id, :row_index, :addr, :addrtype, :protocol, :portid, :state,
		:reason, :reason_ttl, :name, :product, :tunnel, :method, :conf
	)`

var errUnflushed = fmt.Errorf("rows were never flushed")

// storedRow is the insert shape of one exported row.
type storedRow struct {
	BatchID  uuid.UUID `db:"batch_id"`
	RowIndex int       `db:"row_index"`
	export.Row
}

// RowRecorder counts stored rows, typically for metrics.
type RowRecorder interface {
	RecordStoredRows(count int, err error)
}

// BatchInfo summarizes one stored batch.
type BatchInfo struct {
	BatchID  uuid.UUID `db:"batch_id" json:"batch_id"`
	Rows     int       `db:"row_count" json:"rows"`
	StoredAt time.Time `db:"stored_at" json:"stored_at"`
}

// RowStore writes the rows of one batch into scan_port_rows. The transaction
// is opened by the first row and committed by Flush, so a failed batch
// leaves nothing behind. A RowStore serves a single batch.
type RowStore struct {
	db       *DB
	ctx      context.Context
	batchID  uuid.UUID
	name     string
	recorder RowRecorder

	tx   *sqlx.Tx
	rows int
}

// RowStoreOption configures a RowStore.
type RowStoreOption func(*RowStore)

// WithRowRecorder sets the stored rows recorder.
func WithRowRecorder(r RowRecorder) RowStoreOption {
	return func(s *RowStore) {
		s.recorder = r
	}
}

// NewRowStore creates a sink for the batch batchID. ctx bounds every
// statement the store runs.
func NewRowStore(ctx context.Context, db *DB, batchID uuid.UUID, opts ...RowStoreOption) *RowStore {
	s := &RowStore{
		db:      db,
		ctx:     ctx,
		batchID: batchID,
		name:    "database",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BatchID returns the ID the rows are stored under.
func (s *RowStore) BatchID() uuid.UUID {
	return s.batchID
}

// WriteRow inserts one row.
func (s *RowStore) WriteRow(row export.Row) error {
	if s.tx == nil {
		tx, err := s.db.BeginTxx(s.ctx, nil)
		if err != nil {
			return errors.ErrSinkWrite(s.name, sanitizeDBError("begin transaction", err))
		}
		s.tx = tx
	}

	_, err := s.tx.NamedExecContext(s.ctx, insertRowQuery, storedRow{
		BatchID:  s.batchID,
		RowIndex: s.rows,
		Row:      row,
	})
	if err != nil {
		err = sanitizeDBError("insert row", err)
		s.rollback(err)
		return errors.ErrSinkWrite(s.name, err)
	}

	s.rows++
	return nil
}

// Flush commits the rows written so far. A batch without rows opens no
// transaction and stores nothing.
func (s *RowStore) Flush() error {
	if s.tx == nil {
		return nil
	}

	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		err = sanitizeDBError("commit rows", err)
		s.record(err)
		return errors.ErrSinkFlush(s.name, err)
	}

	s.record(nil)
	s.rows = 0
	return nil
}

// Close rolls back rows that were written but never flushed.
func (s *RowStore) Close() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	s.record(errUnflushed)
	return err
}

func (s *RowStore) rollback(cause error) {
	_ = s.tx.Rollback()
	s.tx = nil
	s.record(cause)
}

func (s *RowStore) record(err error) {
	if s.recorder != nil && s.rows > 0 {
		s.recorder.RecordStoredRows(s.rows, err)
	}
}

// ListBatches returns the stored batches, newest first.
func (db *DB) ListBatches(ctx context.Context, limit int) ([]BatchInfo, error) {
	query := `
		SELECT batch_id, COUNT(*) AS row_count, MAX(stored_at) AS stored_at
		FROM scan_port_rows
		GROUP BY batch_id
		ORDER BY stored_at DESC
		LIMIT $1`

	var batches []BatchInfo
	if err := db.SelectContext(ctx, &batches, query, limit); err != nil {
		return nil, sanitizeDBError("list batches", err)
	}
	return batches, nil
}

// BatchRows returns the rows of one batch in the order they were written.
func (db *DB) BatchRows(ctx context.Context, batchID uuid.UUID) ([]export.Row, error) {
	query := `
		SELECT addr, addrtype, protocol, portid, state, reason, reason_ttl,
		       name, product, tunnel, method, conf
		FROM scan_port_rows
		WHERE batch_id = $1
		ORDER BY row_index`

	var rows []export.Row
	if err := db.SelectContext(ctx, &rows, query, batchID); err != nil {
		return nil, sanitizeDBError("select batch rows", err)
	}
	return rows, nil
}
