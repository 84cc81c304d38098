// Package workers provides a bounded worker pool used for concurrent probe
// and lookup operations. It supports job queuing, rate limiting, graceful
// shutdown, and retry with exponential backoff for transient failures.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/errors"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/metrics"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for metrics and logging.
	Type() string
}

// Result represents the result of executing a job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
	Retries  int
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
	// QueueSize is the maximum number of jobs that can be queued.
	QueueSize int
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int
	// RetryDelay is the base delay between retries. The delay doubles
	// after each failed attempt.
	RetryDelay time.Duration
	// ShutdownTimeout is the maximum time to wait for workers to finish.
	ShutdownTimeout time.Duration
	// RateLimit is the maximum number of jobs per second (0 = no limit).
	RateLimit int
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            10,
		QueueSize:       256,
		MaxRetries:      2,
		RetryDelay:      100 * time.Millisecond,
		ShutdownTimeout: 30 * time.Second,
		RateLimit:       0,
	}
}

// Pool manages a pool of worker goroutines for concurrent job execution.
type Pool struct {
	config          Config
	jobs            chan Job
	results         chan Result
	externalResults chan Result
	workers         []*worker
	wg              sync.WaitGroup
	ctx             context.Context
	cancel          context.CancelFunc
	shutdown        chan struct{}
	done            chan struct{}
	rateLimiter     *time.Ticker
	startOnce       sync.Once
	closeOnce       sync.Once
	shutdown32      int32 // atomic shutdown flag
}

// worker represents a single worker goroutine.
type worker struct {
	id   int
	pool *Pool
}

// New creates a new worker pool with the given configuration.
func New(config Config) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		config:          config,
		jobs:            make(chan Job, config.QueueSize),
		results:         make(chan Result, config.QueueSize),
		externalResults: make(chan Result, config.QueueSize),
		workers:         make([]*worker, config.Size),
		ctx:             ctx,
		cancel:          cancel,
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}

	if config.RateLimit > 0 {
		interval := time.Second / time.Duration(config.RateLimit)
		pool.rateLimiter = time.NewTicker(interval)
	}

	for i := 0; i < config.Size; i++ {
		pool.workers[i] = &worker{
			id:   i,
			pool: pool,
		}
	}

	return pool
}

// Start begins the worker pool operations.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		logging.Info("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize,
			"rate_limit", p.config.RateLimit)

		for _, w := range p.workers {
			p.wg.Add(1)
			go w.run()
		}

		go p.processResults()

		metrics.Gauge("worker_pool_size", float64(p.config.Size), metrics.Labels{
			"component": "workers",
		})
	})
}

// Submit adds a job to the worker pool queue.
func (p *Pool) Submit(job Job) error {
	if atomic.LoadInt32(&p.shutdown32) == 1 {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		logging.Debug("Job submitted to worker pool",
			"job_id", job.ID(),
			"job_type", job.Type())
		metrics.Counter("jobs_submitted_total", metrics.Labels{
			"job_type": job.Type(),
		})
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		return fmt.Errorf("job queue is full")
	}
}

// Results returns a channel for receiving job results.
func (p *Pool) Results() <-chan Result {
	return p.externalResults
}

// Shutdown gracefully shuts down the worker pool.
func (p *Pool) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&p.shutdown32, 0, 1) {
		return nil
	}

	logging.Info("Shutting down worker pool")

	p.cancel()
	close(p.shutdown)
	close(p.jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Worker pool shutdown completed")
	case <-time.After(p.config.ShutdownTimeout):
		logging.Warn("Worker pool shutdown timeout, forcing termination")
		<-done
	}

	// All workers have exited, so no further sends can race the close.
	// processResults drains what remains and closes externalResults itself.
	close(p.results)

	if p.rateLimiter != nil {
		p.rateLimiter.Stop()
	}

	return nil
}

// Wait blocks until the pool has fully shut down.
func (p *Pool) Wait() {
	<-p.done
}

// worker.run executes the worker loop.
func (w *worker) run() {
	defer w.pool.wg.Done()

	logging.Debug("Worker started", "worker_id", w.id)
	defer logging.Debug("Worker stopped", "worker_id", w.id)

	for {
		select {
		case job, ok := <-w.pool.jobs:
			if !ok {
				return
			}
			w.executeJob(job)

		case <-w.pool.shutdown:
			return

		case <-w.pool.ctx.Done():
			return
		}
	}
}

// executeJob executes a single job, retrying transient failures with a
// doubling delay. Errors classified as definitive (connection refused,
// invalid target, cancellation) are never retried.
func (w *worker) executeJob(job Job) {
	jobTimer := metrics.NewTimer("job_duration_seconds", metrics.Labels{
		"job_type":  job.Type(),
		"worker_id": fmt.Sprintf("worker-%d", w.id),
	})
	defer jobTimer.Stop()

	if w.pool.rateLimiter != nil {
		select {
		case <-w.pool.rateLimiter.C:
		case <-w.pool.ctx.Done():
			return
		}
	}

	var lastErr error
	var retries int
	delay := w.pool.config.RetryDelay

	for attempt := 0; attempt <= w.pool.config.MaxRetries; attempt++ {
		start := time.Now()

		jobCtx, cancel := context.WithCancel(w.pool.ctx)
		err := job.Execute(jobCtx)
		cancel()

		duration := time.Since(start)

		if err == nil {
			w.pool.results <- Result{
				JobID:    job.ID(),
				JobType:  job.Type(),
				Duration: duration,
				Retries:  retries,
			}

			metrics.Counter("jobs_completed_total", metrics.Labels{
				"job_type": job.Type(),
				"status":   "success",
			})

			logging.Debug("Job completed successfully",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"duration", duration,
				"worker_id", w.id,
				"retries", retries)
			return
		}

		lastErr = err
		retries = attempt

		if !errors.IsRetryable(err) {
			logging.Debug("Job failed with definitive error",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"error", err)
			break
		}

		if attempt < w.pool.config.MaxRetries {
			logging.Debug("Job failed, retrying",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"attempt", attempt+1,
				"max_retries", w.pool.config.MaxRetries,
				"delay", delay,
				"error", err)

			metrics.Counter(metrics.MetricProbeRetries, metrics.Labels{
				"job_type": job.Type(),
			})

			select {
			case <-time.After(delay):
			case <-w.pool.ctx.Done():
				return
			}
			delay *= 2
		}
	}

	w.pool.results <- Result{
		JobID:   job.ID(),
		JobType: job.Type(),
		Error:   lastErr,
		Retries: retries,
	}

	metrics.Counter("jobs_completed_total", metrics.Labels{
		"job_type": job.Type(),
		"status":   "error",
	})

	logging.Debug("Job failed",
		"job_id", job.ID(),
		"job_type", job.Type(),
		"retries", retries,
		"error", lastErr,
		"worker_id", w.id)
}

// processResults fans job results out to external consumers and records
// retry metrics. It is the sole closer of externalResults: it runs until
// Shutdown closes the internal results channel, drains it, then closes the
// external one, so a forward can never race the close.
func (p *Pool) processResults() {
	defer p.closeOnce.Do(func() {
		close(p.done)
	})
	defer close(p.externalResults)

	for result := range p.results {
		select {
		case p.externalResults <- result:
		default:
			// External consumer not reading, continue with metrics
		}

		if result.Error != nil {
			metrics.Counter("job_errors_total", metrics.Labels{
				"job_type": result.JobType,
			})
		}

		metrics.Histogram("job_retry_count", float64(result.Retries), metrics.Labels{
			"job_type": result.JobType,
		})
	}
}

// ProbeJob implements Job for single-port connection probes.
type ProbeJob struct {
	id       string
	target   string
	port     int
	executor func(ctx context.Context, target string, port int) error
}

// NewProbeJob creates a job that probes one port on one target.
func NewProbeJob(id, target string, port int,
	executor func(ctx context.Context, target string, port int) error) *ProbeJob {
	return &ProbeJob{
		id:       id,
		target:   target,
		port:     port,
		executor: executor,
	}
}

// Execute implements the Job interface.
func (j *ProbeJob) Execute(ctx context.Context) error {
	return j.executor(ctx, j.target, j.port)
}

// ID implements the Job interface.
func (j *ProbeJob) ID() string {
	return j.id
}

// Type implements the Job interface.
func (j *ProbeJob) Type() string {
	return "probe"
}

// LookupJob implements Job for auxiliary lookups such as reverse DNS and
// SNMP identification.
type LookupJob struct {
	id       string
	target   string
	kind     string
	executor func(ctx context.Context, target string) error
}

// NewLookupJob creates a job that performs a named lookup against a target.
func NewLookupJob(id, target, kind string,
	executor func(ctx context.Context, target string) error) *LookupJob {
	return &LookupJob{
		id:       id,
		target:   target,
		kind:     kind,
		executor: executor,
	}
}

// Execute implements the Job interface.
func (j *LookupJob) Execute(ctx context.Context) error {
	return j.executor(ctx, j.target)
}

// ID implements the Job interface.
func (j *LookupJob) ID() string {
	return j.id
}

// Type implements the Job interface.
func (j *LookupJob) Type() string {
	return "lookup"
}
