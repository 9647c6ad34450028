// Package batch converts many scan reports into one export. Each source is
// decoded on its own: a source that cannot be read or decoded is reported to
// Diagnostics and skipped, while a failing output sink aborts the batch.
package batch

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/export"
	"github.com/anstrom/scanexport/internal/scanning"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"

	// FormatRows labels batches written to a caller supplied RowSink.
	FormatRows = "rows"
)

// Source outcome labels reported to a Recorder.
const (
	StatusDecoded = "decoded"
	StatusSkipped = "skipped"
)

// RowSink receives flattened rows. Flush is called once after the last row.
// Errors returned by a sink abort the batch.
type RowSink interface {
	WriteRow(row export.Row) error
	Flush() error
}

// Recorder observes batch outcomes, typically for metrics.
type Recorder interface {
	RecordSource(format, status string)
	RecordBatch(format string, hosts, rows int, duration time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordSource(string, string) {}

func (nopRecorder) RecordBatch(string, int, int, time.Duration, error) {}

// SkippedSource names a source left out of a batch and why.
type SkippedSource struct {
	Name string           `json:"name"`
	Code errors.ErrorCode `json:"code"`
	Err  error            `json:"-"`
}

// Summary describes a finished or aborted batch.
type Summary struct {
	BatchID        string          `json:"batch_id"`
	Format         string          `json:"format"`
	Sources        int             `json:"sources"`
	Decoded        int             `json:"decoded"`
	Skipped        int             `json:"skipped"`
	Hosts          int             `json:"hosts"`
	Rows           int             `json:"rows"`
	EmptyGroups    int             `json:"empty_groups"`
	SkippedSources []SkippedSource `json:"skipped_sources,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	Duration       time.Duration   `json:"duration"`
}

// SkippedNames returns the names of the skipped sources, in order.
func (s *Summary) SkippedNames() []string {
	names := make([]string, len(s.SkippedSources))
	for i, skipped := range s.SkippedSources {
		names[i] = skipped.Name
	}
	return names
}

// Option configures a Collector.
type Option func(*Collector)

// WithWorkers sets how many sources may be decoded ahead of the one being
// emitted. Values below 2 decode one source at a time.
func WithWorkers(n int) Option {
	return func(c *Collector) {
		c.workers = n
	}
}

// WithDiagnostics sets the receiver of per-source events.
func WithDiagnostics(d Diagnostics) Option {
	return func(c *Collector) {
		if d != nil {
			c.diag = d
		}
	}
}

// WithRecorder sets the batch metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Collector) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithPrettyJSON indents the JSON array.
func WithPrettyJSON(pretty bool) Option {
	return func(c *Collector) {
		c.pretty = pretty
	}
}

// WithSinkName sets the destination name used in sink errors.
func WithSinkName(name string) Option {
	return func(c *Collector) {
		c.sinkName = name
	}
}

// WithBatchID fixes the batch ID reported in the Summary, so that it can be
// shared with a sink that stores it. Without it every batch gets a new UUID.
func WithBatchID(id string) Option {
	return func(c *Collector) {
		c.batchID = id
	}
}

// Collector runs batches. A Collector holds no per-batch state and may be
// used for several batches, also concurrently.
type Collector struct {
	workers  int
	pretty   bool
	sinkName string
	batchID  string
	diag     Diagnostics
	recorder Recorder
}

// New creates a Collector.
func New(opts ...Option) *Collector {
	c := &Collector{
		workers:  1,
		sinkName: "output",
		diag:     NopDiagnostics{},
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect dispatches to CollectJSON or CollectCSV.
func (c *Collector) Collect(ctx context.Context, format string, sources []Source, w io.Writer) (*Summary, error) {
	switch format {
	case FormatJSON:
		return c.CollectJSON(ctx, sources, w)
	case FormatCSV:
		return c.CollectCSV(ctx, sources, w)
	default:
		return nil, errors.ErrConfigInvalid("export.format", format)
	}
}

// CollectJSON decodes every source and writes all hosts, in source order, as
// one JSON array. Nothing is written until every source has been processed.
func (c *Collector) CollectJSON(ctx context.Context, sources []Source, w io.Writer) (summary *Summary, err error) {
	summary = c.begin(FormatJSON, sources)
	defer func() { c.finish(summary, err) }()

	var hosts []scanning.Host
	err = c.decodeAll(ctx, sources, func(res result) error {
		ok, err := c.accept(summary, res)
		if !ok || err != nil {
			return err
		}
		hosts = append(hosts, res.scan.Hosts...)
		return nil
	})
	if err != nil {
		return summary, err
	}

	return summary, export.NewJSONWriter(w, c.sinkName, c.pretty).WriteHosts(hosts)
}

// CollectCSV writes the CSV header followed by the rows of every source, in
// source order, flushing once at the end.
func (c *Collector) CollectCSV(ctx context.Context, sources []Source, w io.Writer) (*Summary, error) {
	sink := export.NewCSVWriter(w, c.sinkName)
	if err := sink.WriteHeader(); err != nil {
		return c.begin(FormatCSV, sources), err
	}
	return c.collectRows(ctx, FormatCSV, sources, sink)
}

// CollectRows streams the rows of every source into sink, in source order.
func (c *Collector) CollectRows(ctx context.Context, sources []Source, sink RowSink) (*Summary, error) {
	return c.collectRows(ctx, FormatRows, sources, sink)
}

func (c *Collector) collectRows(ctx context.Context, format string, sources []Source, sink RowSink) (summary *Summary, err error) {
	summary = c.begin(format, sources)
	defer func() { c.finish(summary, err) }()

	err = c.decodeAll(ctx, sources, func(res result) error {
		ok, err := c.accept(summary, res)
		if !ok || err != nil {
			return err
		}

		name := res.source.Name()
		return export.Walk(res.scan, func(row export.Row) error {
			if err := sink.WriteRow(row); err != nil {
				return c.sinkError(err, false)
			}
			summary.Rows++
			return nil
		}, func(group export.EmptyGroup) {
			summary.EmptyGroups++
			c.diag.EmptyPortsGroup(name, group)
		})
	})
	if err != nil {
		return summary, err
	}

	if err := sink.Flush(); err != nil {
		return summary, c.sinkError(err, true)
	}
	return summary, nil
}

// accept records the outcome of one source. It returns false for a skipped
// source and an error only when the batch must stop.
func (c *Collector) accept(summary *Summary, res result) (bool, error) {
	name := res.source.Name()

	if res.err != nil {
		if !errors.IsSkippable(res.err) {
			return false, res.err
		}
		summary.Skipped++
		summary.SkippedSources = append(summary.SkippedSources, SkippedSource{
			Name: name,
			Code: errors.GetCode(res.err),
			Err:  res.err,
		})
		c.diag.SourceSkipped(name, res.err)
		c.recorder.RecordSource(summary.Format, StatusSkipped)
		return false, nil
	}

	summary.Decoded++
	summary.Hosts += len(res.scan.Hosts)
	c.diag.SourceDecoded(name, len(res.scan.Hosts))
	c.recorder.RecordSource(summary.Format, StatusDecoded)
	return true, nil
}

func (c *Collector) sinkError(err error, flush bool) error {
	if errors.IsSinkError(err) {
		return err
	}
	if flush {
		return errors.ErrSinkFlush(c.sinkName, err)
	}
	return errors.ErrSinkWrite(c.sinkName, err)
}

func (c *Collector) begin(format string, sources []Source) *Summary {
	id := c.batchID
	if id == "" {
		id = uuid.NewString()
	}
	return &Summary{
		BatchID:   id,
		Format:    format,
		Sources:   len(sources),
		StartedAt: time.Now(),
	}
}

func (c *Collector) finish(summary *Summary, err error) {
	summary.Duration = time.Since(summary.StartedAt)
	c.recorder.RecordBatch(summary.Format, summary.Hosts, summary.Rows, summary.Duration, err)
}
