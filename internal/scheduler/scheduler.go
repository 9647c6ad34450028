// Package scheduler runs configured batch exports on cron schedules. Each run
// re-discovers the job's sources and atomically replaces its output file, so
// consumers always read a complete export.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/scanexport/internal/batch"
	"github.com/anstrom/scanexport/internal/config"
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/export"
	"github.com/anstrom/scanexport/internal/logging"
)

// RunRecorder counts scheduled runs, typically for metrics.
type RunRecorder interface {
	RecordScheduledRun(job string, err error)
}

type nopRunRecorder struct{}

func (nopRunRecorder) RecordScheduledRun(string, error) {}

// ScheduledJob is a snapshot of one job and its last run.
type ScheduledJob struct {
	Name        string
	Config      config.JobConfig
	Format      string
	CronID      cron.EntryID
	LastRun     time.Time
	NextRun     time.Time
	Running     bool
	LastSummary *batch.Summary
	LastError   error
}

// Scheduler manages scheduled export jobs.
type Scheduler struct {
	collector *batch.Collector
	pattern   string
	recorder  RunRecorder
	logger    *logging.Logger

	cron    *cron.Cron
	jobs    map[string]*ScheduledJob
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPattern sets the file pattern used for directory sources.
func WithPattern(pattern string) Option {
	return func(s *Scheduler) {
		s.pattern = pattern
	}
}

// WithRunRecorder sets the run recorder.
func WithRunRecorder(r RunRecorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler whose jobs run through collector.
func NewScheduler(collector *batch.Collector, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		collector: collector,
		pattern:   batch.DefaultPattern,
		recorder:  nopRunRecorder{},
		logger:    logging.Discard(),
		jobs:      make(map[string]*ScheduledJob),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.WithComponent("scheduler")
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.logger}),
	))
	return s
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler, cancels running exports and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()

	s.logger.Info("Scheduler stopped")
}

// AddJob schedules job. format is used when the job names none.
func (s *Scheduler) AddJob(job config.JobConfig, format string) error {
	if job.Name == "" {
		return errors.ErrConfigMissing("schedule.jobs.name")
	}
	if job.Format != "" {
		format = job.Format
	}
	if format != batch.FormatJSON && format != batch.FormatCSV {
		return errors.ErrConfigInvalid("schedule.jobs.format", format)
	}
	if _, err := cron.ParseStandard(job.Cron); err != nil {
		cfgErr := errors.ErrConfigInvalid("schedule.jobs.cron", job.Cron)
		cfgErr.Cause = err
		return cfgErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already exists", job.Name)
	}

	name := job.Name
	cronID, err := s.cron.AddFunc(job.Cron, func() { s.execute(name) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", name, err)
	}

	s.jobs[name] = &ScheduledJob{
		Name:   name,
		Config: job,
		Format: format,
		CronID: cronID,
	}

	s.logger.Info("Added scheduled export", "job", name, "schedule", job.Cron, "format", format)
	return nil
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %q not found", name)
	}

	s.cron.Remove(job.CronID)
	delete(s.jobs, name)

	s.logger.Info("Removed scheduled export", "job", name)
	return nil
}

// Jobs returns a snapshot of all jobs, sorted by name.
func (s *Scheduler) Jobs() []ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		snapshot.NextRun = s.cron.Entry(job.CronID).Next
		if snapshot.NextRun.IsZero() {
			if schedule, err := cron.ParseStandard(job.Config.Cron); err == nil {
				snapshot.NextRun = schedule.Next(time.Now())
			}
		}
		jobs = append(jobs, snapshot)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// RunNow runs job name immediately on the calling goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*batch.Summary, error) {
	job, ok := s.prepareJobExecution(name)
	if !ok {
		return nil, fmt.Errorf("job %q not found or already running", name)
	}
	summary, err := s.run(ctx, job)
	s.cleanupJobExecution(name, summary, err)
	return summary, err
}

// execute is the cron entry point of a job.
func (s *Scheduler) execute(name string) {
	job, ok := s.prepareJobExecution(name)
	if !ok {
		return
	}
	summary, err := s.run(s.ctx, job)
	s.cleanupJobExecution(name, summary, err)
}

// prepareJobExecution marks the job as running and returns a copy of it.
// It refuses a job that is still running from a previous tick.
func (s *Scheduler) prepareJobExecution(name string) (ScheduledJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return ScheduledJob{}, false
	}
	if job.Running {
		s.logger.Warn("Scheduled export is still running, skipping", "job", name)
		return ScheduledJob{}, false
	}

	job.Running = true
	job.LastRun = time.Now()
	return *job, true
}

func (s *Scheduler) cleanupJobExecution(name string, summary *batch.Summary, err error) {
	s.mu.Lock()
	if job, exists := s.jobs[name]; exists {
		job.Running = false
		job.LastSummary = summary
		job.LastError = err
	}
	s.mu.Unlock()

	s.recorder.RecordScheduledRun(name, err)
}

// run exports the job's sources into a temporary file and moves it over the
// output only when the batch succeeded.
func (s *Scheduler) run(ctx context.Context, job ScheduledJob) (*batch.Summary, error) {
	logger := s.logger.WithFields("job", job.Name)

	sources, err := batch.Discover(job.Config.Sources, s.pattern)
	if err != nil {
		logger.Error("Failed to discover sources", "error", err)
		return nil, err
	}
	if len(sources) == 0 {
		err := errors.NewConfigFieldError(errors.CodeNoSourceMatch,
			"No source matched", "schedule.jobs.sources", job.Config.Sources)
		logger.Warn("Scheduled export has no sources", "sources", job.Config.Sources)
		return nil, err
	}

	out, err := export.CreateAtomic(job.Config.Output)
	if err != nil {
		sinkErr := errors.ErrSinkWrite(job.Config.Output, err)
		logger.ErrorExport("Failed to open output", job.Format, sinkErr)
		return nil, sinkErr
	}
	defer out.Abort()

	summary, err := s.collector.Collect(ctx, job.Format, sources, out)
	if err != nil {
		logger.ErrorExport("Scheduled export failed", job.Format, err, "output", job.Config.Output)
		return summary, err
	}

	if err := out.Commit(); err != nil {
		sinkErr := errors.ErrSinkFlush(job.Config.Output, err)
		logger.ErrorExport("Failed to replace output", job.Format, sinkErr)
		return summary, sinkErr
	}

	logger.InfoExport("Scheduled export completed", job.Format,
		"output", job.Config.Output,
		"decoded", summary.Decoded,
		"skipped", summary.Skipped,
		"hosts", summary.Hosts,
		"rows", summary.Rows)
	return summary, nil
}

// cronLogger adapts a Logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
