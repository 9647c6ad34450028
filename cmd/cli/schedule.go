package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/scheduler"
)

func newScheduleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and run scheduled exports",
		Long: `Scheduled exports are configured in the schedule.jobs section. Each job
names a cron expression, its sources and an output file that is replaced
atomically on every run. "serve" runs them next to the API; "schedule start"
runs them on their own.`,
	}

	cmd.AddCommand(newScheduleListCmd(a), newScheduleRunCmd(a), newScheduleStartCmd(a))
	return cmd
}

func newScheduleListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sched, err := a.newScheduler(nil)
			if err != nil {
				return err
			}

			jobs := sched.Jobs()
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scheduled exports configured.")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Name", "Cron", "Format", "Sources", "Output", "Next run")
			for _, job := range jobs {
				if err := table.Append([]string{
					job.Name,
					job.Config.Cron,
					job.Format,
					strings.Join(job.Config.Sources, ", "),
					job.Config.Output,
					formatNextRun(job.NextRun),
				}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func newScheduleRunCmd(a *app) *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "run [jobs...]",
		Short: "Run scheduled exports now",
		Long: `Run the named scheduled exports once, or all of them when no name is given.
Every job is attempted; the command fails if any of them failed.`,
		Example: `  scanexport schedule run
  scanexport schedule run nightly-csv --summary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := a.newScheduler(nil)
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				for _, job := range sched.Jobs() {
					names = append(names, job.Name)
				}
			}
			if len(names) == 0 {
				return errors.ErrConfigMissing("schedule.jobs")
			}

			var failed []string
			for _, name := range names {
				result, err := sched.RunNow(cmd.Context(), name)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Job %s failed: %v\n", name, err)
					failed = append(failed, name)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %d hosts, %d rows from %d of %d sources\n",
					name, result.Hosts, result.Rows, result.Decoded, result.Sources)
				if summary {
					if err := printSummary(cmd.OutOrStdout(), result); err != nil {
						return err
					}
				} else {
					reportSkipped(cmd.ErrOrStderr(), result)
				}
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d of %d jobs failed: %s", len(failed), len(names), strings.Join(failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "Print a batch summary table per job")
	return cmd
}

func newScheduleStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run scheduled exports in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(a.cfg.Schedule.Jobs) == 0 {
				return errors.ErrConfigMissing("schedule.jobs")
			}
			sched, err := a.newScheduler(nil)
			if err != nil {
				return err
			}
			return runScheduler(cmd, sched)
		},
	}
}

// runScheduler runs sched until the command context is canceled.
func runScheduler(cmd *cobra.Command, sched *scheduler.Scheduler) error {
	if err := sched.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Running %d scheduled exports, press Ctrl+C to stop\n", len(sched.Jobs()))

	<-cmd.Context().Done()
	sched.Stop()
	return nil
}

func formatNextRun(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
