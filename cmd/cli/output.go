package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/scanexport/internal/batch"
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/export"
)

const stdoutName = "-"

// newCollector creates a collector configured from the export settings.
func (a *app) newCollector(opts ...batch.Option) *batch.Collector {
	base := []batch.Option{
		batch.WithWorkers(a.cfg.Export.Workers),
		batch.WithPrettyJSON(a.cfg.Export.Pretty),
		batch.WithDiagnostics(batch.NewLogDiagnostics(a.logger)),
	}
	return batch.New(append(base, opts...)...)
}

// discoverSources expands args into sources, reading "-" from the command's
// input. Finding none is an error.
func (a *app) discoverSources(cmd *cobra.Command, args []string) ([]batch.Source, error) {
	sources, err := batch.DiscoverWithStdin(args, a.cfg.Export.Pattern, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.NewConfigFieldError(errors.CodeNoSourceMatch,
			"No source matched", "sources", strings.Join(args, " "))
	}
	return sources, nil
}

// outputName is the sink name reported in errors for path.
func outputName(path string) string {
	if path == "" || path == stdoutName {
		return "stdout"
	}
	return path
}

// writeOutput runs write against stdout, or against a temporary file that
// replaces path only when write succeeded.
func writeOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "" || path == stdoutName {
		return write(stdout)
	}

	out, err := export.CreateAtomic(path)
	if err != nil {
		return errors.ErrSinkWrite(path, err)
	}
	defer out.Abort()

	if err := write(out); err != nil {
		return err
	}
	if err := out.Commit(); err != nil {
		return errors.ErrSinkFlush(path, err)
	}
	return nil
}

// printSummary renders a batch summary and its skipped sources as tables.
func printSummary(w io.Writer, summary *batch.Summary) error {
	table := tablewriter.NewWriter(w)
	table.Header("Batch", "Format", "Sources", "Decoded", "Skipped", "Hosts", "Rows", "Duration")
	if err := table.Append([]string{
		summary.BatchID,
		summary.Format,
		strconv.Itoa(summary.Sources),
		strconv.Itoa(summary.Decoded),
		strconv.Itoa(summary.Skipped),
		strconv.Itoa(summary.Hosts),
		strconv.Itoa(summary.Rows),
		summary.Duration.Round(time.Millisecond).String(),
	}); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(summary.SkippedSources) == 0 {
		return nil
	}

	skipped := tablewriter.NewWriter(w)
	skipped.Header("Skipped source", "Code", "Reason")
	for _, s := range summary.SkippedSources {
		reason := ""
		if s.Err != nil {
			reason = s.Err.Error()
		}
		if err := skipped.Append([]string{s.Name, string(s.Code), reason}); err != nil {
			return err
		}
	}
	return skipped.Render()
}

// reportSkipped prints one line per skipped source when no summary table
// was asked for.
func reportSkipped(w io.Writer, summary *batch.Summary) {
	if summary == nil || summary.Skipped == 0 {
		return
	}
	fmt.Fprintf(w, "Skipped %d of %d sources: %s\n",
		summary.Skipped, summary.Sources, strings.Join(summary.SkippedNames(), ", "))
}
