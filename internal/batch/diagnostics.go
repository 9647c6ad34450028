package batch

//go:generate mockgen -source=diagnostics.go -destination=mocks/mock_diagnostics.go -package=mocks

import (
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/export"
	"github.com/anstrom/scanexport/internal/logging"
)

// Diagnostics receives the per-source events of a batch. Calls are made from
// the goroutine running the batch, in source order.
type Diagnostics interface {
	// SourceDecoded is called once for each source that decoded.
	SourceDecoded(source string, hosts int)

	// SourceSkipped is called once for each source that could not be read
	// or decoded. err is a *errors.SourceError or *errors.SchemaError.
	SourceSkipped(source string, err error)

	// EmptyPortsGroup is called for every <ports> group that produced no row.
	EmptyPortsGroup(source string, group export.EmptyGroup)
}

// NopDiagnostics discards every event.
type NopDiagnostics struct{}

// SourceDecoded implements Diagnostics.
func (NopDiagnostics) SourceDecoded(string, int) {}

// SourceSkipped implements Diagnostics.
func (NopDiagnostics) SourceSkipped(string, error) {}

// EmptyPortsGroup implements Diagnostics.
func (NopDiagnostics) EmptyPortsGroup(string, export.EmptyGroup) {}

// LogDiagnostics writes batch events to a structured logger.
type LogDiagnostics struct {
	logger *logging.Logger
}

// NewLogDiagnostics creates diagnostics that log through logger.
func NewLogDiagnostics(logger *logging.Logger) *LogDiagnostics {
	return &LogDiagnostics{logger: logger.WithComponent("batch")}
}

// SourceDecoded implements Diagnostics.
func (d *LogDiagnostics) SourceDecoded(source string, hosts int) {
	d.logger.Debug("Decoded source", "source", source, "hosts", hosts)
}

// SourceSkipped implements Diagnostics.
func (d *LogDiagnostics) SourceSkipped(source string, err error) {
	d.logger.WarnSource("Skipping source", source, err, "code", errors.GetCode(err))
}

// EmptyPortsGroup implements Diagnostics.
func (d *LogDiagnostics) EmptyPortsGroup(source string, group export.EmptyGroup) {
	d.logger.InfoSource("Port group has no listed ports", source,
		"addr", group.Addr,
		"host_index", group.HostIndex,
		"group_index", group.GroupIndex,
		"extraports", group.Summary())
}

var (
	_ Diagnostics = NopDiagnostics{}
	_ Diagnostics = (*LogDiagnostics)(nil)
)
