package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// recordingExecutor fails the first failures attempts of every job
type recordingExecutor struct {
	mu       sync.Mutex
	failures int
	attempts map[string]int
	done     chan *Job
}

func newRecordingExecutor(failures int) *recordingExecutor {
	return &recordingExecutor{failures: failures, attempts: make(map[string]int), done: make(chan *Job, 16)}
}

func (e *recordingExecutor) Execute(_ context.Context, job *Job) error {
	e.mu.Lock()
	e.attempts[job.ID.String()]++
	n := e.attempts[job.ID.String()]
	e.mu.Unlock()

	if n <= e.failures {
		e.done <- job
		return errors.New("database unavailable")
	}
	e.done <- job
	return nil
}

func waitJob(t *testing.T, ch <-chan *Job) *Job {
	t.Helper()
	select {
	case j := <-ch:
		return j
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
		return nil
	}
}

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentJobs: 1,
		QueueSize:         4,
		JobTimeout:        time.Second,
		RetryAttempts:     2,
		RetryDelay:        10 * time.Millisecond,
	}
}

func TestJobLifecycle(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	job := NewJob(JobTypeGenerateInvoices, 2024, time.March, 1)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, "2024-03", job.Period())

	job.Start(now)
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	job.Fail(now, "boom")
	assert.True(t, job.ShouldRetry())

	job.PrepareRetry()
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Empty(t, job.Error)

	job.Start(now)
	job.Fail(now, "boom")
	assert.False(t, job.ShouldRetry())

	job.Start(now)
	job.Complete(now)
	assert.Equal(t, JobStatusSuccess, job.Status)
}

func TestSchedulerConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultSchedulerConfig().Validate())

	bad := DefaultSchedulerConfig()
	bad.MaxConcurrentJobs = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	_, err := NewScheduler(bad, newRecordingExecutor(0), shared.NewFixedClock(time.Now()), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScheduler_RunsJob(t *testing.T) {
	exec := newRecordingExecutor(0)
	s, err := NewScheduler(testSchedulerConfig(), exec, shared.NewFixedClock(time.Now()), zap.NewNop())
	require.NoError(t, err)

	_, err = s.Schedule(JobTypeGenerateInvoices, 2024, time.March)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	job, err := s.Schedule(JobTypeGenerateInvoices, 2024, time.March)
	require.NoError(t, err)

	got := waitJob(t, exec.done)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, JobTypeGenerateInvoices, got.Type)
}

func TestScheduler_RetriesFailedJob(t *testing.T) {
	exec := newRecordingExecutor(2)
	s, err := NewScheduler(testSchedulerConfig(), exec, shared.NewFixedClock(time.Now()), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	job, err := s.Schedule(JobTypeApplyLateFees, 2024, time.February)
	require.NoError(t, err)

	for range 3 {
		waitJob(t, exec.done)
	}

	exec.mu.Lock()
	assert.Equal(t, 3, exec.attempts[job.ID.String()])
	exec.mu.Unlock()
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s, err := NewScheduler(testSchedulerConfig(), newRecordingExecutor(0), shared.NewFixedClock(time.Now()), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	_, err = s.Schedule(JobTypeGenerateInvoices, 2024, time.March)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}
