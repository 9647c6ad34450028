package cli

import (
	"github.com/spf13/cobra"

	"github.com/anstrom/scanexport/internal/api"
	"github.com/anstrom/scanexport/internal/batch"
	"github.com/anstrom/scanexport/internal/metrics"
	"github.com/anstrom/scanexport/internal/scheduler"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host        string
		port        int
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion API",
		Long: `Start the HTTP API. Reports posted to /api/v1/convert/{json,csv} are
converted and returned in the response; /metrics exposes Prometheus metrics.
Unless --no-scheduler is given, the scheduled exports of the configuration run
in the same process. A configured database is checked by /api/v1/health.`,
		Example: `  scanexport serve
  scanexport serve --host 0.0.0.0 --port 9090
  curl --data-binary @scan.xml http://127.0.0.1:8080/api/v1/convert/csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.API.ListenAddr = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.API.Port = port
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			registry := metrics.NewPrometheusMetrics()

			opts := []api.Option{
				api.WithLogger(a.logger),
				api.WithMetrics(registry),
			}

			if a.cfg.Database.Configured() {
				database, err := a.openDB(ctx, &a.cfg.Database)
				if err != nil {
					return err
				}
				defer func() {
					if err := database.Close(); err != nil {
						a.logger.ErrorDatabase("Failed to close database", err)
					}
				}()
				opts = append(opts, api.WithDatabase(database))
			}

			if !noScheduler && len(a.cfg.Schedule.Jobs) > 0 {
				sched, err := a.newScheduler(registry)
				if err != nil {
					return err
				}
				if err := sched.Start(); err != nil {
					return err
				}
				defer sched.Stop()
				opts = append(opts, api.WithScheduledJobs(func() int { return len(sched.Jobs()) }))
			}

			server := api.New(a.cfg, opts...)
			return server.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Address to listen on (default from api.listen_addr)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default from api.port)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Do not run scheduled exports")
	return cmd
}

// newScheduler creates a scheduler holding every configured job.
func (a *app) newScheduler(registry metrics.MetricsRegistry) (*scheduler.Scheduler, error) {
	collectorOpts := []batch.Option{}
	opts := []scheduler.Option{
		scheduler.WithPattern(a.cfg.Export.Pattern),
		scheduler.WithLogger(a.logger),
	}
	if registry != nil {
		collectorOpts = append(collectorOpts, batch.WithRecorder(registry))
		opts = append(opts, scheduler.WithRunRecorder(registry))
	}

	sched := scheduler.NewScheduler(a.newCollector(collectorOpts...), opts...)
	for _, job := range a.cfg.Schedule.Jobs {
		if err := sched.AddJob(job, a.cfg.Export.Format); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
