package workers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/RyanH-sudo/NewToolKit-sub004/internal/errors"
)

// MockJob implements the Job interface for testing.
type MockJob struct {
	id       string
	jobType  string
	duration time.Duration
	err      error
	executed int32
}

func NewMockJob(id, jobType string, duration time.Duration, err error) *MockJob {
	return &MockJob{
		id:       id,
		jobType:  jobType,
		duration: duration,
		err:      err,
	}
}

func (m *MockJob) Execute(ctx context.Context) error {
	atomic.AddInt32(&m.executed, 1)
	if m.duration > 0 {
		select {
		case <-time.After(m.duration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func (m *MockJob) ID() string {
	return m.id
}

func (m *MockJob) Type() string {
	return m.jobType
}

func (m *MockJob) ExecutedCount() int32 {
	return atomic.LoadInt32(&m.executed)
}

func TestNewPool(t *testing.T) {
	config := Config{
		Size:            5,
		QueueSize:       100,
		MaxRetries:      3,
		RetryDelay:      time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	pool := New(config)

	assert.NotNil(t, pool)
	assert.Equal(t, config.Size, cap(pool.workers))
	assert.Equal(t, config.QueueSize, cap(pool.jobs))
	assert.Equal(t, config.QueueSize, cap(pool.results))
}

func TestPoolExecutesJobs(t *testing.T) {
	config := Config{
		Size:            2,
		QueueSize:       10,
		MaxRetries:      0,
		RetryDelay:      time.Millisecond,
		ShutdownTimeout: time.Second,
	}
	pool := New(config)
	pool.Start()

	job := NewMockJob("job-1", "probe", 0, nil)
	require.NoError(t, pool.Submit(job))

	select {
	case result := <-pool.Results():
		assert.Equal(t, "job-1", result.JobID)
		assert.Equal(t, "probe", result.JobType)
		assert.NoError(t, result.Error)
		assert.Equal(t, 0, result.Retries)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job result")
	}

	require.NoError(t, pool.Shutdown())
	assert.Equal(t, int32(1), job.ExecutedCount())
}

func TestPoolRetriesTransientFailures(t *testing.T) {
	config := Config{
		Size:            1,
		QueueSize:       10,
		MaxRetries:      2,
		RetryDelay:      time.Millisecond,
		ShutdownTimeout: time.Second,
	}
	pool := New(config)
	pool.Start()

	transient := apperrors.NewProbeError(apperrors.CodeTimeout, "connect timed out", "198.51.100.9", 22)
	job := NewMockJob("job-retry", "probe", 0, transient)
	require.NoError(t, pool.Submit(job))

	select {
	case result := <-pool.Results():
		assert.Error(t, result.Error)
		assert.Equal(t, 2, result.Retries)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job result")
	}

	require.NoError(t, pool.Shutdown())
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), job.ExecutedCount())
}

func TestPoolDoesNotRetryDefinitiveFailures(t *testing.T) {
	config := Config{
		Size:            1,
		QueueSize:       10,
		MaxRetries:      3,
		RetryDelay:      time.Millisecond,
		ShutdownTimeout: time.Second,
	}
	pool := New(config)
	pool.Start()

	refused := apperrors.NewProbeError(apperrors.CodePortClosed, "connection refused", "198.51.100.9", 22)
	job := NewMockJob("job-refused", "probe", 0, refused)
	require.NoError(t, pool.Submit(job))

	select {
	case result := <-pool.Results():
		assert.Error(t, result.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job result")
	}

	require.NoError(t, pool.Shutdown())
	assert.Equal(t, int32(1), job.ExecutedCount(), "connection refused must not be retried")
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 3
	config := Config{
		Size:            size,
		QueueSize:       64,
		MaxRetries:      0,
		RetryDelay:      time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
	}
	pool := New(config)
	pool.Start()

	var current, peak int32
	jobCount := 20
	for i := 0; i < jobCount; i++ {
		job := NewProbeJob("job", "198.51.100.1", 1000+i,
			func(ctx context.Context, target string, port int) error {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			})
		require.NoError(t, pool.Submit(job))
	}

	received := 0
	deadline := time.After(5 * time.Second)
	for received < jobCount {
		select {
		case <-pool.Results():
			received++
		case <-deadline:
			t.Fatalf("received only %d of %d results", received, jobCount)
		}
	}

	require.NoError(t, pool.Shutdown())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(size),
		"in-flight jobs must never exceed the pool size")
}

func TestShutdownWithAbandonedResultsConsumer(t *testing.T) {
	config := Config{
		Size:            4,
		QueueSize:       32,
		MaxRetries:      0,
		RetryDelay:      time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
	}
	pool := New(config)
	pool.Start()

	for i := 0; i < 32; i++ {
		require.NoError(t, pool.Submit(NewMockJob(fmt.Sprintf("job-%d", i), "probe", 0, nil)))
	}

	// Read one result, then walk away the way a cancelled caller does.
	select {
	case <-pool.Results():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first result")
	}

	require.NotPanics(t, func() {
		require.NoError(t, pool.Shutdown())
	})

	// The forwarder owns the external channel: after shutdown it drains
	// the backlog and closes, never panicking mid-forward.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-pool.Results():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("results channel never closed after shutdown")
		}
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	pool := New(DefaultConfig())
	pool.Start()
	require.NoError(t, pool.Shutdown())

	err := pool.Submit(NewMockJob("late", "probe", 0, nil))
	assert.Error(t, err)
}

func TestShutdownIsIdempotent(t *testing.T) {
	pool := New(DefaultConfig())
	pool.Start()

	require.NoError(t, pool.Shutdown())
	require.NoError(t, pool.Shutdown())
}

func TestQueueFull(t *testing.T) {
	config := Config{
		Size:            1,
		QueueSize:       1,
		MaxRetries:      0,
		RetryDelay:      time.Millisecond,
		ShutdownTimeout: time.Second,
	}
	pool := New(config)
	// Pool deliberately not started so nothing drains the queue.

	require.NoError(t, pool.Submit(NewMockJob("a", "probe", 0, nil)))
	err := pool.Submit(NewMockJob("b", "probe", 0, nil))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")
}
