package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ncobase/spacearc/config"
	"github.com/ncobase/spacearc/event"
	"github.com/ncobase/spacearc/job/data/repository"
	"github.com/ncobase/spacearc/logging/logger"
)

// Reaper fails jobs whose heartbeat stalled past the threshold. It is the
// only recovery path for a worker process that died mid-job: nothing else
// ever touches an in_progress row it does not own.
type Reaper struct {
	cfg    *config.Reaper
	repo   repository.JobRepository
	bus    *event.Bus
	logger *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	reaped atomic.Int64
}

// NewReaper creates a reaper from the reaper config section.
func NewReaper(cfg *config.Reaper, repo repository.JobRepository, bus *event.Bus, log *logger.Logger) *Reaper {
	if log == nil {
		log = logger.StdLogger()
	}
	return &Reaper{cfg: cfg, repo: repo, bus: bus, logger: log}
}

// Start launches the sweep loop.
func (r *Reaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	interval := r.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep(ctx)
			}
		}
	}()
	r.logger.Info(ctx, "reaper started", "interval", interval, "stale_after", r.cfg.StaleAfter)
}

// Stop halts the sweep loop.
func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Sweep fails every active job whose updated_at is older than the threshold
// and returns the victims' ids.
func (r *Reaper) Sweep(ctx context.Context) []int64 {
	staleAfter := r.cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	cutoff := time.Now().UTC().Add(-staleAfter)
	errMsg := fmt.Sprintf("timed out after %s without progress", staleAfter)

	ids, err := r.repo.ReapStale(ctx, cutoff, errMsg)
	if err != nil {
		r.logger.Error(ctx, "reap sweep failed", "error", err)
	}
	if len(ids) == 0 {
		return nil
	}

	r.reaped.Add(int64(len(ids)))
	for _, id := range ids {
		r.logger.Warn(ctx, "reaped stale job", "job_id", id, "stale_after", staleAfter)
		if r.bus == nil {
			continue
		}
		evt := &event.Event{
			Type:   event.EventTypeJobReaped,
			JobID:  id,
			Status: "failed",
			Error:  errMsg,
		}
		if err := r.bus.Publish(ctx, evt); err != nil {
			r.logger.Warn(ctx, "event publish failed", "type", evt.Type, "job_id", id, "error", err)
		}
	}
	return ids
}

// Reaped returns the number of jobs reaped since start.
func (r *Reaper) Reaped() int64 {
	return r.reaped.Load()
}
