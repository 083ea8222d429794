package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ncobase/spacearc/event"
	"github.com/ncobase/spacearc/job/service"
	"github.com/ncobase/spacearc/job/structs"
	"github.com/ncobase/spacearc/job/worker"
	"github.com/ncobase/spacearc/logging/logger"
	"github.com/ncobase/spacearc/monitor"
	"github.com/ncobase/spacearc/net/resp"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Admin serves the operator endpoints behind the admin token.
type Admin struct {
	svc     *service.Service
	store   event.Store
	pool    *worker.Pool
	reaper  *worker.Reaper
	bus     *event.Bus
	sampler *monitor.Sampler
	breaker func() string
	logger  *logger.Logger
}

// NewAdmin creates the admin handler. Any nil collaborator simply leaves its
// section out of the stats payload.
func NewAdmin(svc *service.Service, store event.Store, pool *worker.Pool, reaper *worker.Reaper,
	bus *event.Bus, sampler *monitor.Sampler, breaker func() string, log *logger.Logger) *Admin {
	if log == nil {
		log = logger.StdLogger()
	}
	return &Admin{
		svc:     svc,
		store:   store,
		pool:    pool,
		reaper:  reaper,
		bus:     bus,
		sampler: sampler,
		breaker: breaker,
		logger:  log,
	}
}

// Retry resets a terminal job to pending.
func (a *Admin) Retry(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := a.svc.Retry(c.Request.Context(), id)
	if err != nil {
		failFor(c, err)
		return
	}
	resp.Success(c.Writer, job)
}

// Cancel cancels a pending job.
func (a *Admin) Cancel(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := a.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		failFor(c, err)
		return
	}
	resp.Success(c.Writer, job)
}

type failRequest struct {
	Reason string `json:"reason" form:"reason"`
}

// Fail force-fails a pending or running job. The owning worker abandons the
// run at its next progress write.
func (a *Admin) Fail(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	var req failRequest
	_ = c.ShouldBind(&req) // body is optional

	job, err := a.svc.ForceFail(c.Request.Context(), id, req.Reason)
	if err != nil {
		failFor(c, err)
		return
	}
	resp.Success(c.Writer, job)
}

// Inspect returns the full job row with its lifecycle event trail.
func (a *Admin) Inspect(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := a.svc.Get(c.Request.Context(), id)
	if err != nil {
		failFor(c, err)
		return
	}

	var events []*event.Event
	if a.store != nil {
		events, err = a.store.LoadByJob(c.Request.Context(), id)
		if err != nil {
			a.logger.Warn(c.Request.Context(), "event trail load failed", "job_id", id, "error", err)
		}
	}
	resp.Success(c.Writer, gin.H{"job": job, "events": events})
}

// History pages through jobs in one status, newest first.
func (a *Admin) History(c *gin.Context) {
	status := structs.JobStatus(c.Query("status"))
	if !status.IsValid() {
		resp.Fail(c.Writer, resp.BadRequest("status must be one of the job lifecycle states"))
		return
	}

	var cursor int64
	if raw := c.Query("cursor"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			resp.Fail(c.Writer, resp.BadRequest("cursor must be a non-negative integer"))
			return
		}
		cursor = v
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			resp.Fail(c.Writer, resp.BadRequest("limit must be a positive integer"))
			return
		}
		limit = v
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	jobs, next, err := a.svc.History(c.Request.Context(), status, cursor, limit)
	if err != nil {
		failFor(c, err)
		return
	}
	resp.Success(c.Writer, gin.H{"jobs": jobs, "next_cursor": next, "count": len(jobs)})
}

// Stats aggregates queue counts with the operational counters of every
// background component.
func (a *Admin) Stats(c *gin.Context) {
	counts, err := a.svc.Counts(c.Request.Context())
	if err != nil {
		failFor(c, err)
		return
	}

	stats := gin.H{"jobs": counts}
	if a.pool != nil {
		stats["workers"] = a.pool.GetMetrics()
	}
	if a.reaper != nil {
		stats["reaped_total"] = a.reaper.Reaped()
	}
	if a.bus != nil {
		stats["events"] = a.bus.Stats()
	}
	if a.breaker != nil {
		stats["ai_breaker"] = a.breaker()
	}
	resp.Success(c.Writer, stats)
}

// Runtime reports the process runtime metrics.
func (a *Admin) Runtime(c *gin.Context) {
	if a.sampler == nil {
		resp.Fail(c.Writer, resp.ServiceUnavailable("runtime sampler is not running"))
		return
	}
	resp.Success(c.Writer, gin.H{
		"current": a.sampler.Snapshot(),
		"peak":    a.sampler.Peaks(),
	})
}

// Events returns the most recent lifecycle events across all jobs.
func (a *Admin) Events(c *gin.Context) {
	if a.store == nil {
		resp.Fail(c.Writer, resp.ServiceUnavailable("event store is not configured"))
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	events, err := a.store.LoadRecent(c.Request.Context(), limit)
	if err != nil {
		failFor(c, err)
		return
	}
	resp.Success(c.Writer, gin.H{"events": events, "count": len(events)})
}
