package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu   sync.Mutex
	jobs []Job
	done chan struct{}
	fail int
}

func newRecorder(fail int) *recorder {
	return &recorder{done: make(chan struct{}, 16), fail: fail}
}

func (r *recorder) handle(ctx context.Context, job Job) error {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	failing := r.fail > 0
	if failing {
		r.fail--
	}
	r.mu.Unlock()
	r.done <- struct{}{}
	if failing {
		return errors.New("scan failed")
	}
	return nil
}

func (r *recorder) snapshot() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Job(nil), r.jobs...)
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
}

func TestSchedulerRunsOnStartAndTrigger(t *testing.T) {
	rec := newRecorder(0)
	s := NewScheduler("backfill", rec.handle, SchedulerConfig{Interval: time.Hour, RunOnStart: true})
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, rec.done)
	require.NoError(t, s.Trigger("manual"))
	waitFor(t, rec.done)

	jobs := rec.snapshot()
	require.Len(t, jobs, 2)
	assert.Equal(t, "startup", jobs[0].Reason)
	assert.Equal(t, "manual", jobs[1].Reason)
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	rec := newRecorder(0)
	s := NewScheduler("backfill", rec.handle, SchedulerConfig{Interval: 10 * time.Millisecond})
	s.Start(context.Background())

	waitFor(t, rec.done)
	waitFor(t, rec.done)
	s.Stop()

	for _, job := range rec.snapshot() {
		assert.Equal(t, "interval", job.Reason)
	}
}

func TestSchedulerRetriesFailedJobs(t *testing.T) {
	rec := newRecorder(2)
	s := NewScheduler("backfill", rec.handle, SchedulerConfig{Interval: time.Hour, MaxRetries: 3, RetryDelay: time.Millisecond})
	s.Start(context.Background())
	defer s.Stop()

	require.NoError(t, s.Trigger("manual"))
	waitFor(t, rec.done)
	waitFor(t, rec.done)
	waitFor(t, rec.done)

	jobs := rec.snapshot()
	require.Len(t, jobs, 3)
	assert.Equal(t, 0, jobs[0].Attempt)
	assert.Equal(t, 2, jobs[2].Attempt)
}

func TestSchedulerTriggerBeforeStart(t *testing.T) {
	s := NewScheduler("backfill", newRecorder(0).handle, SchedulerConfig{})
	assert.ErrorIs(t, s.Trigger("manual"), ErrNotStarted)
	s.Stop()
}

func TestSchedulerKeepsOneJobQueued(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	handler := func(ctx context.Context, job Job) error {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}
	s := NewScheduler("backfill", handler, SchedulerConfig{Interval: time.Hour})
	s.Start(context.Background())

	require.NoError(t, s.Trigger("first"))
	waitFor(t, started)
	require.NoError(t, s.Trigger("second"))
	assert.ErrorIs(t, s.Trigger("third"), ErrAlreadyQueued)

	close(release)
	waitFor(t, started)
	s.Stop()
}
