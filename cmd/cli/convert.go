package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/anstrom/scanexport/internal/batch"
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/scanning"
)

// exportFlags are the output flags shared by convert and scan.
type exportFlags struct {
	format  string
	output  string
	workers int
	pretty  bool
	summary bool
}

func (f *exportFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.format, "format", "f", "json", "Output format: json or csv")
	flags.StringVarP(&f.output, "output", "o", "", "Output file (default stdout); replaced only when the export succeeds")
	flags.IntVar(&f.workers, "workers", 4, "Number of reports decoded ahead of the one being written")
	flags.BoolVar(&f.pretty, "pretty", false, "Indent JSON output")
	flags.BoolVar(&f.summary, "summary", false, "Print a batch summary table to stderr")
}

// apply copies explicitly set flags over the configuration.
func (f *exportFlags) apply(cmd *cobra.Command, a *app) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		a.cfg.Export.Format = f.format
	}
	if flags.Changed("output") {
		a.cfg.Export.Output = f.output
	}
	if flags.Changed("workers") {
		a.cfg.Export.Workers = f.workers
	}
	if flags.Changed("pretty") {
		a.cfg.Export.Pretty = f.pretty
	}
	return a.cfg.Validate()
}

func newConvertCmd(a *app) *cobra.Command {
	var (
		flags   exportFlags
		pattern string
	)

	cmd := &cobra.Command{
		Use:   "convert [sources...]",
		Short: "Convert nmap XML reports to JSON or CSV",
		Long: `Convert nmap XML reports into one JSON array of hosts or one CSV table of
host and port rows. Sources may be files, directories (searched for --pattern)
or glob patterns, and are processed in sorted order. Reports that cannot be
read or parsed are skipped and listed on stderr.`,
		Example: `  scanexport convert scan.xml
  scanexport convert -f csv -o ports.csv scans/
  scanexport convert --pretty "reports/2024-*.xml"
  scanexport convert -f csv --summary scans/ > ports.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("pattern") {
				a.cfg.Export.Pattern = pattern
			}
			if err := flags.apply(cmd, a); err != nil {
				return err
			}

			sources, err := a.discoverSources(cmd, args)
			if err != nil {
				return err
			}
			return a.runExport(cmd, sources, flags.summary)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&pattern, "pattern", batch.DefaultPattern, "File pattern used for directory sources")
	return cmd
}

// runExport writes sources in the configured format to the configured
// output.
func (a *app) runExport(cmd *cobra.Command, sources []batch.Source, summary bool) error {
	format := a.cfg.Export.Format
	output := a.cfg.Export.Output
	collector := a.newCollector(batch.WithSinkName(outputName(output)))

	var result *batch.Summary
	err := writeOutput(output, cmd.OutOrStdout(), func(w io.Writer) error {
		var err error
		result, err = collector.Collect(cmd.Context(), format, sources, w)
		return err
	})
	if err != nil {
		a.logger.ErrorExport("Export failed", format, err, "output", outputName(output))
		return err
	}

	if summary {
		return printSummary(cmd.ErrOrStderr(), result)
	}
	reportSkipped(cmd.ErrOrStderr(), result)
	return nil
}

func newNormalizeCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "normalize <report>",
		Short: "Rewrite an nmap XML report in canonical form",
		Long: `Decode one nmap XML report and encode it again. The result holds only the
elements and attributes scanexport understands, indented and in a fixed order,
which makes reports from different nmap versions easy to compare. Use "-" to
read the report from stdin.`,
		Example: `  scanexport normalize scan.xml
  nmap -oX - 10.0.0.1 | scanexport normalize - -o scan.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source batch.Source = batch.FileSource{Path: args[0]}
			if args[0] == stdoutName {
				source = batch.ReaderSource{Label: "stdin", Reader: cmd.InOrStdin()}
			}

			data, err := source.Read(cmd.Context())
			if err != nil {
				return err
			}
			scan, err := scanning.Decode(data)
			if err != nil {
				return errors.AttachSource(err, source.Name())
			}

			return writeOutput(output, cmd.OutOrStdout(), func(w io.Writer) error {
				return scanning.Encode(w, scan)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
