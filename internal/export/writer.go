package export

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/scanning"
)

// CSVWriter writes rows as CRLF-terminated CSV. The header is always written,
// even when no row follows. Failures are returned as *errors.SinkError.
type CSVWriter struct {
	w      *csv.Writer
	name   string
	header bool
	rows   int
}

// NewCSVWriter creates a CSV writer on w. Name identifies the destination in
// errors.
func NewCSVWriter(w io.Writer, name string) *CSVWriter {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	return &CSVWriter{w: cw, name: name}
}

// WriteHeader writes the header line if it has not been written yet.
func (c *CSVWriter) WriteHeader() error {
	if c.header {
		return nil
	}
	c.header = true
	if err := c.w.Write(Columns); err != nil {
		return errors.ErrSinkWrite(c.name, err)
	}
	return nil
}

// WriteRow appends one row.
func (c *CSVWriter) WriteRow(row Row) error {
	if err := c.WriteHeader(); err != nil {
		return err
	}
	if err := c.w.Write(row.Record()); err != nil {
		return errors.ErrSinkWrite(c.name, err)
	}
	c.rows++
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (c *CSVWriter) Flush() error {
	if err := c.WriteHeader(); err != nil {
		return err
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return errors.ErrSinkFlush(c.name, err)
	}
	return nil
}

// Rows returns the number of rows written so far.
func (c *CSVWriter) Rows() int {
	return c.rows
}

// JSONWriter writes host records as a single JSON array.
type JSONWriter struct {
	w      io.Writer
	name   string
	pretty bool
}

// NewJSONWriter creates a JSON writer on w. When pretty is set the array is
// indented by two spaces.
func NewJSONWriter(w io.Writer, name string, pretty bool) *JSONWriter {
	return &JSONWriter{w: w, name: name, pretty: pretty}
}

// WriteHosts encodes hosts as one array. A nil slice is written as [].
func (j *JSONWriter) WriteHosts(hosts []scanning.Host) error {
	if hosts == nil {
		hosts = []scanning.Host{}
	}

	encoder := json.NewEncoder(j.w)
	if j.pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(hosts); err != nil {
		return errors.ErrSinkWrite(j.name, err)
	}
	return nil
}
