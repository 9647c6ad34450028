package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/scanexport/internal/batch"
	"github.com/anstrom/scanexport/internal/db"
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/export"
	"github.com/anstrom/scanexport/internal/metrics"
)

const (
	defaultBatchLimit = 20
	pushTimeout       = 10 * time.Second
)

// databaseOperation is a function that operates on a database connection.
type databaseOperation func(ctx context.Context, database *db.DB) error

// withDatabase runs operation with a connection opened from the database
// settings and closes it afterwards.
func (a *app) withDatabase(ctx context.Context, operation databaseOperation) error {
	database, err := a.openDB(ctx, &a.cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			a.logger.ErrorDatabase("Failed to close database connection", closeErr)
		}
	}()

	return operation(ctx, database)
}

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store exported rows in PostgreSQL",
		Long: `Write the CSV rows of a batch of reports into the scan_port_rows table of
the configured PostgreSQL database, and read stored batches back. Rows of one
batch are stored in one transaction: a batch that fails stores nothing.`,
	}

	cmd.AddCommand(
		newStoreMigrateCmd(a),
		newStoreStatusCmd(a),
		newStoreImportCmd(a),
		newStoreBatchesCmd(a),
		newStoreExportCmd(a),
	)
	return cmd
}

func newStoreMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDatabase(cmd.Context(), func(ctx context.Context, database *db.DB) error {
				applied, err := db.NewMigrator(database.DB).Up(ctx)
				for _, name := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
				}
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				}
				return nil
			})
		},
	}
}

func newStoreStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show schema migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDatabase(cmd.Context(), func(ctx context.Context, database *db.DB) error {
				statuses, err := db.NewMigrator(database.DB).Status(ctx)
				if err != nil {
					return err
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.Header("Migration", "Applied", "Applied at")
				for _, s := range statuses {
					appliedAt := "-"
					if s.Applied {
						appliedAt = s.AppliedAt.Local().Format(time.RFC3339)
					}
					if err := table.Append([]string{s.Name, strconv.FormatBool(s.Applied), appliedAt}); err != nil {
						return err
					}
				}
				return table.Render()
			})
		},
	}
}

func newStoreImportCmd(a *app) *cobra.Command {
	var (
		pattern     string
		summary     bool
		pushgateway string
	)

	cmd := &cobra.Command{
		Use:   "import [sources...]",
		Short: "Store the rows of nmap XML reports",
		Long: `Convert reports to host and port rows, exactly as "convert -f csv" would,
and store them under a new batch ID. Unreadable reports are skipped. The batch
ID is printed on success. When a Pushgateway is configured, the batch and
stored row metrics are pushed to it after the import, whether it succeeded
or not.`,
		Example: `  scanexport store import scans/
  scanexport store import --summary "reports/*.xml"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("pattern") {
				a.cfg.Export.Pattern = pattern
			}
			if cmd.Flags().Changed("pushgateway") {
				a.cfg.Metrics.Pushgateway = pushgateway
			}
			sources, err := a.discoverSources(cmd, args)
			if err != nil {
				return err
			}

			return a.withDatabase(cmd.Context(), func(ctx context.Context, database *db.DB) error {
				id := uuid.New()
				registry := metrics.NewPrometheusMetrics()
				defer a.pushMetrics(ctx, registry)

				store := db.NewRowStore(ctx, database, id, db.WithRowRecorder(registry))
				defer func() {
					if err := store.Close(); err != nil {
						a.logger.ErrorDatabase("Failed to roll back rows", err, "batch_id", id)
					}
				}()

				collector := a.newCollector(
					batch.WithBatchID(id.String()),
					batch.WithSinkName("database"),
					batch.WithRecorder(registry),
				)
				result, err := collector.CollectRows(ctx, sources, store)
				if err != nil {
					a.logger.ErrorDatabase("Failed to store batch", err, "batch_id", id)
					return err
				}

				a.logger.InfoDatabase("Stored batch", "batch_id", id, "rows", result.Rows)
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %d rows as batch %s\n", result.Rows, id)
				if summary {
					return printSummary(cmd.ErrOrStderr(), result)
				}
				reportSkipped(cmd.ErrOrStderr(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", batch.DefaultPattern, "File pattern used for directory sources")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a batch summary table to stderr")
	cmd.Flags().StringVar(&pushgateway, "pushgateway", "", "Prometheus Pushgateway URL for import metrics")
	return cmd
}

// pushMetrics sends registry to the configured Pushgateway. A failed push is
// logged and does not fail the command.
func (a *app) pushMetrics(ctx context.Context, registry *metrics.PrometheusMetrics) {
	url := a.cfg.Metrics.Pushgateway
	if url == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()

	if err := registry.Push(ctx, url, a.cfg.Metrics.PushJob); err != nil {
		a.logger.Warn("Failed to push metrics", "pushgateway", url, "error", err)
		return
	}
	a.logger.Debug("Pushed metrics", "pushgateway", url, "job", a.cfg.Metrics.PushJob)
}

func newStoreBatchesCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List stored batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return errors.ErrConfigInvalid("limit", limit)
			}
			return a.withDatabase(cmd.Context(), func(ctx context.Context, database *db.DB) error {
				batches, err := database.ListBatches(ctx, limit)
				if err != nil {
					return err
				}
				if len(batches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored batches.")
					return nil
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.Header("Batch", "Rows", "Stored at")
				for _, b := range batches {
					if err := table.Append([]string{
						b.BatchID.String(),
						strconv.Itoa(b.Rows),
						b.StoredAt.Local().Format(time.RFC3339),
					}); err != nil {
						return err
					}
				}
				return table.Render()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultBatchLimit, "Maximum number of batches to list")
	return cmd
}

func newStoreExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <batch-id>",
		Short: "Write a stored batch as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return errors.ErrConfigInvalid("batch-id", args[0])
			}

			return a.withDatabase(cmd.Context(), func(ctx context.Context, database *db.DB) error {
				rows, err := database.BatchRows(ctx, id)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					return fmt.Errorf("batch %s not found", id)
				}

				return writeOutput(output, cmd.OutOrStdout(), func(w io.Writer) error {
					sink := export.NewCSVWriter(w, outputName(output))
					if err := sink.WriteHeader(); err != nil {
						return err
					}
					for _, row := range rows {
						if err := sink.WriteRow(row); err != nil {
							return err
						}
					}
					return sink.Flush()
				})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
