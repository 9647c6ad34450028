package scheduler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/scanexport/internal/batch"
	"github.com/anstrom/scanexport/internal/config"
	"github.com/anstrom/scanexport/internal/errors"
)

type fakeRunRecorder struct {
	mu   sync.Mutex
	runs map[string][]error
}

func (r *fakeRunRecorder) RecordScheduledRun(job string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[string][]error)
	}
	r.runs[job] = append(r.runs[job], err)
}

func copyFixture(t *testing.T, dir, name string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "scanning", "testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeRunRecorder) {
	t.Helper()
	recorder := &fakeRunRecorder{}
	s := NewScheduler(batch.New(batch.WithWorkers(2)), WithRunRecorder(recorder))
	t.Cleanup(s.Stop)
	return s, recorder
}

func TestScheduler_AddJob(t *testing.T) {
	s, _ := newTestScheduler(t)

	job := config.JobConfig{Name: "hourly", Cron: "@hourly", Sources: []string{"scans"}, Output: "out.json"}
	require.NoError(t, s.AddJob(job, "json"))

	err := s.AddJob(job, "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	bad := job
	bad.Name = "bad"
	bad.Cron = "not a schedule"
	err = s.AddJob(bad, "json")
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))

	bad.Cron = "@daily"
	err = s.AddJob(bad, "xml")
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "hourly", jobs[0].Name)
	assert.Equal(t, "json", jobs[0].Format)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestScheduler_RemoveJob(t *testing.T) {
	s, _ := newTestScheduler(t)

	require.NoError(t, s.AddJob(config.JobConfig{Name: "a", Cron: "@daily", Sources: []string{"x"}, Output: "o"}, "csv"))
	require.NoError(t, s.AddJob(config.JobConfig{Name: "b", Cron: "@daily", Sources: []string{"x"}, Output: "o"}, "csv"))
	require.NoError(t, s.RemoveJob("a"))
	require.Error(t, s.RemoveJob("a"))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "b", jobs[0].Name)
}

func TestScheduler_RunNowWritesOutput(t *testing.T) {
	dir := t.TempDir()
	scans := filepath.Join(dir, "scans")
	require.NoError(t, os.Mkdir(scans, 0o750))
	copyFixture(t, scans, "single_port.xml")
	copyFixture(t, scans, "extraports_only.xml")
	require.NoError(t, os.WriteFile(filepath.Join(scans, "broken.xml"), []byte("<nmaprun"), 0o600))

	output := filepath.Join(dir, "hosts.json")
	s, recorder := newTestScheduler(t)
	require.NoError(t, s.AddJob(config.JobConfig{
		Name:    "nightly",
		Cron:    "0 2 * * *",
		Sources: []string{scans},
		Output:  output,
	}, "json"))

	summary, err := s.RunNow(context.Background(), "nightly")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Sources)
	assert.Equal(t, 2, summary.Decoded)
	assert.Equal(t, []string{filepath.Join(scans, "broken.xml")}, summary.SkippedNames())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var hosts []map[string]any
	require.NoError(t, json.Unmarshal(data, &hosts))
	assert.Len(t, hosts, 2)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Running)
	assert.False(t, jobs[0].LastRun.IsZero())
	assert.NoError(t, jobs[0].LastError)
	assert.Same(t, summary, jobs[0].LastSummary)

	assert.Equal(t, []error{nil}, recorder.runs["nightly"])
}

func TestScheduler_FailedRunKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(output, []byte("previous"), 0o600))

	s, recorder := newTestScheduler(t)
	require.NoError(t, s.AddJob(config.JobConfig{
		Name:    "empty",
		Cron:    "@hourly",
		Sources: []string{filepath.Join(dir, "nothing", "*.xml")},
		Output:  output,
	}, "csv"))

	_, err := s.RunNow(context.Background(), "empty")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNoSourceMatch, errors.GetCode(err))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	require.Len(t, recorder.runs["empty"], 1)
	assert.Error(t, recorder.runs["empty"][0])
	assert.Error(t, s.Jobs()[0].LastError)
}

func TestScheduler_CanceledRunLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "full.xml")
	output := filepath.Join(dir, "out", "hosts.csv")
	require.NoError(t, os.Mkdir(filepath.Dir(output), 0o750))

	s, _ := newTestScheduler(t)
	require.NoError(t, s.AddJob(config.JobConfig{
		Name:    "canceled",
		Cron:    "@hourly",
		Sources: []string{filepath.Join(dir, "full.xml")},
		Output:  output,
	}, "csv"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RunNow(ctx, "canceled")
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(filepath.Dir(output))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScheduler_RunNowUnknownJob(t *testing.T) {
	s, _ := newTestScheduler(t)
	_, err := s.RunNow(context.Background(), "missing")
	require.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, _ := newTestScheduler(t)

	require.NoError(t, s.Start())
	require.Error(t, s.Start())
	s.Stop()
	s.Stop()
}

func TestScheduler_ExecuteRunsJob(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "single_port.xml")
	output := filepath.Join(dir, "rows.csv")

	s, recorder := newTestScheduler(t)
	require.NoError(t, s.AddJob(config.JobConfig{
		Name:    "tick",
		Cron:    "@every 1h",
		Sources: []string{filepath.Join(dir, "*.xml")},
		Output:  output,
	}, "csv"))

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	entries[0].Job.Run()

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "192.168.1.10,ipv4,tcp,80,open")
	assert.Equal(t, []error{nil}, recorder.runs["tick"])
}
