// Package worker runs the background side of the job queue: a pool of
// pollers claiming pending jobs from the store and the reaper sweeping
// stalled ones. Worker processes coordinate with each other only through the
// store's atomic claim, so any number of them can run against one database.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ncobase/spacearc/config"
	"github.com/ncobase/spacearc/event"
	"github.com/ncobase/spacearc/job/data/repository"
	"github.com/ncobase/spacearc/job/structs"
	"github.com/ncobase/spacearc/logging/logger"
)

// ErrAbandoned tells the poller that the job row turned terminal underneath
// the executor (admin force-fail or reaper sweep) and the run was discarded.
var ErrAbandoned = errors.New("job abandoned: row is no longer active")

// Reporter is handed to executors for progress and stage writes. Every write
// doubles as the worker heartbeat watched by the reaper; a write against a
// terminal row returns ErrAbandoned and the executor must stop.
type Reporter interface {
	Progress(ctx context.Context, percent int, bytes int64, eta *int64) error
	Downloading(ctx context.Context) error
	Processing(ctx context.Context) error
}

// Handler executes one job kind and returns the produced artifact path.
type Handler func(ctx context.Context, job *structs.Job, rep Reporter) (string, error)

// Metrics tracks the pool's operational counters.
type Metrics struct {
	ActivePollers atomic.Int64
	RunningJobs   atomic.Int64
	Completed     atomic.Int64
	Failed        atomic.Int64
	Abandoned     atomic.Int64
}

// Pool is a set of poller goroutines sharing one handler registry.
type Pool struct {
	cfg      *config.Workers
	repo     repository.JobRepository
	bus      *event.Bus
	logger   *logger.Logger
	handlers map[structs.JobKind]Handler

	cancelPoll context.CancelFunc
	runCtx     context.Context
	cancelRuns context.CancelFunc
	wg         sync.WaitGroup
	metrics    *Metrics
}

// NewPool creates a poller pool. Handlers are registered before Start.
func NewPool(cfg *config.Workers, repo repository.JobRepository, bus *event.Bus, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.StdLogger()
	}
	return &Pool{
		cfg:      cfg,
		repo:     repo,
		bus:      bus,
		logger:   log,
		handlers: make(map[structs.JobKind]Handler),
		metrics:  &Metrics{},
	}
}

// Register binds a handler to a job kind.
func (p *Pool) Register(kind structs.JobKind, handler Handler) {
	p.handlers[kind] = handler
}

// Start launches the poller goroutines.
func (p *Pool) Start(ctx context.Context) {
	pollCtx, cancelPoll := context.WithCancel(ctx)
	p.cancelPoll = cancelPoll
	// Executions run on a context detached from the poll cancellation so a
	// drained Stop can let in-flight jobs finish; it falls only when the
	// drain window lapses.
	p.runCtx, p.cancelRuns = context.WithCancel(context.WithoutCancel(ctx))

	count := p.cfg.Count
	if count <= 0 {
		count = 1
	}
	for i := 0; i < count; i++ {
		p.wg.Add(1)
		go p.poll(pollCtx, i)
	}
	p.logger.Info(ctx, "worker pool started",
		"pollers", count, "poll_interval", p.cfg.PollInterval, "task_timeout", p.cfg.TaskTimeout)
}

// Stop stops claiming new jobs and waits for in-flight jobs up to the
// context deadline. Jobs still running after that are interrupted and land
// failed with the cancellation error.
func (p *Pool) Stop(ctx context.Context) error {
	if p.cancelPoll != nil {
		p.cancelPoll()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if p.cancelRuns != nil {
			p.cancelRuns()
		}
		return nil
	case <-ctx.Done():
		running := p.metrics.RunningJobs.Load()
		if p.cancelRuns != nil {
			p.cancelRuns()
		}
		return fmt.Errorf("worker pool drain timeout with %d jobs running", running)
	}
}

// GetMetrics returns the current pool counters.
func (p *Pool) GetMetrics() map[string]int64 {
	return map[string]int64{
		"active_pollers": p.metrics.ActivePollers.Load(),
		"running_jobs":   p.metrics.RunningJobs.Load(),
		"completed":      p.metrics.Completed.Load(),
		"failed":         p.metrics.Failed.Load(),
		"abandoned":      p.metrics.Abandoned.Load(),
	}
}

// poll is one poller's loop: tick, claim, execute, repeat. An empty queue
// costs one tick; a claimed job is executed before the next claim attempt.
func (p *Pool) poll(ctx context.Context, id int) {
	defer p.wg.Done()
	p.metrics.ActivePollers.Add(1)
	defer p.metrics.ActivePollers.Add(-1)

	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug(context.Background(), "poller stopped", "poller_id", id)
			return
		case <-ticker.C:
			for {
				job, err := p.repo.Claim(ctx)
				if errors.Is(err, repository.ErrNoPending) {
					break
				}
				if err != nil {
					if ctx.Err() == nil {
						p.logger.Error(ctx, "claim failed", "poller_id", id, "error", err)
					}
					break
				}
				p.execute(ctx, id, job)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// execute runs one claimed job through its kind handler and finishes the row.
func (p *Pool) execute(ctx context.Context, pollerID int, job *structs.Job) {
	p.metrics.RunningJobs.Add(1)
	defer p.metrics.RunningJobs.Add(-1)

	p.publish(ctx, event.EventTypeJobClaimed, job)
	p.logger.Info(ctx, "job claimed",
		"poller_id", pollerID, "job_id", job.ID, "kind", job.Kind, "space_id", job.SpaceID)

	jobCtx := p.runCtx
	if jobCtx == nil {
		jobCtx = ctx
	}
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, p.cfg.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			p.finishFailed(job, fmt.Sprintf("worker panic: %v", r))
		}
	}()

	handler, ok := p.handlers[job.Kind]
	if !ok {
		p.finishFailed(job, fmt.Sprintf("no handler registered for kind %s", job.Kind))
		return
	}

	start := time.Now()
	outputPath, err := handler(jobCtx, job, &repoReporter{repo: p.repo, id: job.ID})

	switch {
	case errors.Is(err, ErrAbandoned):
		p.metrics.Abandoned.Add(1)
		p.logger.Warn(ctx, "job abandoned mid-run",
			"job_id", job.ID, "kind", job.Kind, "duration", time.Since(start))
	case err != nil:
		p.finishFailed(job, err.Error())
	default:
		p.finishCompleted(job, outputPath, time.Since(start))
	}
}

func (p *Pool) finishCompleted(job *structs.Job, outputPath string, took time.Duration) {
	// Finishing writes use a fresh context so a drained pool still lands
	// the terminal row.
	ctx := context.Background()
	if err := p.repo.Complete(ctx, job.ID, outputPath); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			p.metrics.Abandoned.Add(1)
			return
		}
		p.logger.Error(ctx, "failed to complete job", "job_id", job.ID, "error", err)
		return
	}
	p.metrics.Completed.Add(1)

	job.Status = structs.StatusCompleted
	job.OutputPath = outputPath
	p.publish(ctx, event.EventTypeJobCompleted, job)
	p.logger.Info(ctx, "job completed",
		"job_id", job.ID, "kind", job.Kind, "output", outputPath, "duration", took)
}

func (p *Pool) finishFailed(job *structs.Job, errMsg string) {
	ctx := context.Background()
	if err := p.repo.Fail(ctx, job.ID, errMsg); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			p.metrics.Abandoned.Add(1)
			return
		}
		p.logger.Error(ctx, "failed to fail job", "job_id", job.ID, "error", err)
		return
	}
	p.metrics.Failed.Add(1)

	job.Status = structs.StatusFailed
	job.Error = errMsg
	p.publish(ctx, event.EventTypeJobFailed, job)
	p.logger.Error(ctx, "job failed", "job_id", job.ID, "kind", job.Kind, "error", errMsg)
}

func (p *Pool) publish(ctx context.Context, t event.EventType, job *structs.Job) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, event.JobEvent(t, job)); err != nil {
		p.logger.Warn(ctx, "event publish failed", "type", t, "job_id", job.ID, "error", err)
	}
}

// repoReporter writes progress through the repository's guarded updates.
type repoReporter struct {
	repo repository.JobRepository
	id   int64
}

func (r *repoReporter) Progress(ctx context.Context, percent int, bytes int64, eta *int64) error {
	return abandonedOr(r.repo.UpdateProgress(ctx, r.id, percent, bytes, eta))
}

func (r *repoReporter) Downloading(ctx context.Context) error {
	return abandonedOr(r.repo.MarkDownloading(ctx, r.id))
}

func (r *repoReporter) Processing(ctx context.Context) error {
	return abandonedOr(r.repo.MarkProcessing(ctx, r.id))
}

// abandonedOr converts a status-guard rejection into ErrAbandoned so
// executors can tell "stop, the row moved on" from a real write failure.
func abandonedOr(err error) error {
	if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
		return ErrAbandoned
	}
	return err
}
