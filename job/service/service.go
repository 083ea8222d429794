// Package service implements the job operations behind the HTTP surface:
// enqueueing, status views, and the admin transitions.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ncobase/spacearc/data"
	"github.com/ncobase/spacearc/data/cache"
	"github.com/ncobase/spacearc/event"
	"github.com/ncobase/spacearc/job/data/repository"
	"github.com/ncobase/spacearc/job/structs"
	"github.com/ncobase/spacearc/logging/logger"
	"github.com/ncobase/spacearc/util"
)

// statusCacheTTL stays under the browser's 5s poll so a cached entry is
// refreshed at most one poll late.
const statusCacheTTL = 3 * time.Second

// ErrUnknownKind rejects enqueue requests naming a kind outside the enum.
var ErrUnknownKind = errors.New("unknown job kind")

// EnqueueRequest is the payload accepted by the enqueue endpoint.
type EnqueueRequest struct {
	SourceURL   string          `json:"source_url" form:"source_url" validate:"required,url"`
	Kind        structs.JobKind `json:"kind" form:"kind"`
	Title       string          `json:"title" form:"title" validate:"omitempty,max=200"`
	TargetLang  string          `json:"target_lang" form:"target_lang" validate:"omitempty,max=64"`
	NotifyEmail string          `json:"notify_email" form:"notify_email" validate:"omitempty,email"`
	CreatedBy   string          `json:"-" form:"-"`
}

// Status is the view served to the polling browser.
type Status struct {
	ID                int64  `json:"id"`
	Kind              string `json:"kind"`
	SpaceID           string `json:"space_id"`
	Status            string `json:"status"`
	ProgressInPercent int    `json:"progress_in_percent"`
	ProgressInSize    string `json:"progress_in_size"`
	ETA               string `json:"eta,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// Service coordinates the repository, the status cache and the event bus.
type Service struct {
	repo   repository.JobRepository
	bus    *event.Bus
	cache  *cache.Cache[Status]
	logger *logger.Logger
}

// New creates the job service. The Redis status cache is optional and only
// used when the data layer carries a Redis client.
func New(repo repository.JobRepository, d *data.Data, bus *event.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.StdLogger()
	}
	s := &Service{repo: repo, bus: bus, logger: log}
	if d != nil {
		if rc := d.GetRedis(); rc != nil {
			s.cache = cache.NewCache[Status](rc, "spacearc:status")
		}
	}
	return s
}

// RegisterInvalidation drops cached status entries when a job leaves the
// state the cache may still be serving.
func (s *Service) RegisterInvalidation(bus *event.Bus) {
	if s.cache == nil {
		return
	}
	invalidate := func(ctx context.Context, e *event.Event) error {
		return s.cache.Delete(ctx, statusKey(e.JobID))
	}
	for _, t := range []event.EventType{
		event.EventTypeJobCompleted,
		event.EventTypeJobFailed,
		event.EventTypeJobCancelled,
		event.EventTypeJobRetried,
		event.EventTypeJobReaped,
	} {
		bus.Subscribe(t, invalidate)
	}
}

// spaceIDRe matches the space identifier in an X Spaces URL.
var spaceIDRe = regexp.MustCompile(`/i/spaces/([A-Za-z0-9]+)`)

// SpaceIDFromURL extracts the space identifier from a source URL. URLs that
// are not X Spaces links fall back to the last path element so other
// yt-dlp-supported sources still get a stable content key.
func SpaceIDFromURL(sourceURL string) string {
	if m := spaceIDRe.FindStringSubmatch(sourceURL); m != nil {
		return m[1]
	}
	u, err := url.Parse(sourceURL)
	if err != nil || u.Path == "" {
		return sourceURL
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := parts[len(parts)-1]
	if last == "" {
		return u.Host
	}
	return last
}

// Enqueue validates the request and inserts a pending job. An identical
// (space, kind) already pending or running is returned instead of inserting
// a second row; the second return reports whether a new row was created.
func (s *Service) Enqueue(ctx context.Context, req *EnqueueRequest) (*structs.Job, bool, error) {
	if req.Kind == "" {
		req.Kind = structs.KindSpaceDownload
	}
	if !req.Kind.IsValid() {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}

	spaceID := SpaceIDFromURL(req.SourceURL)

	open, err := s.repo.FindOpen(ctx, spaceID, req.Kind)
	if err == nil {
		s.logger.Info(ctx, "duplicate enqueue folded into open job",
			"job_id", open.ID, "space_id", spaceID, "kind", req.Kind)
		return open, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		// Without the duplicate check an insert could double up an open job.
		return nil, false, fmt.Errorf("check open jobs: %w", err)
	}

	job := &structs.Job{
		SpaceID:     spaceID,
		Kind:        req.Kind,
		Status:      structs.StatusPending,
		CreatedBy:   req.CreatedBy,
		NotifyEmail: req.NotifyEmail,
		Payload: map[string]any{
			"source_url": req.SourceURL,
		},
	}
	if req.Title != "" {
		job.Payload["title"] = req.Title
	}
	if req.TargetLang != "" {
		job.Payload["target_lang"] = req.TargetLang
	}

	id, err := s.repo.Create(ctx, job)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue job: %w", err)
	}

	s.publish(ctx, event.EventTypeJobCreated, job)
	s.logger.Info(ctx, "job enqueued",
		"job_id", id, "space_id", spaceID, "kind", req.Kind, "created_by", req.CreatedBy)
	return job, true, nil
}

// Get returns the full job row.
func (s *Service) Get(ctx context.Context, id int64) (*structs.Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Status returns the polling view for one job, served from the short-TTL
// cache when present.
func (s *Service) Status(ctx context.Context, id int64) (*Status, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, statusKey(id)); err == nil && cached != nil {
			return cached, nil
		}
	}

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := statusView(job, time.Now().UTC())

	if s.cache != nil {
		if err := s.cache.Set(ctx, statusKey(id), view, statusCacheTTL); err != nil {
			s.logger.Debug(ctx, "status cache write failed", "job_id", id, "error", err)
		}
	}
	return view, nil
}

// QueueStatus returns the views of every active job across kinds.
func (s *Service) QueueStatus(ctx context.Context) ([]*Status, error) {
	jobs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	views := make([]*Status, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, statusView(job, now))
	}
	return views, nil
}

// Retry resets a terminal job to pending.
func (s *Service) Retry(ctx context.Context, id int64) (*structs.Job, error) {
	if err := s.repo.Reset(ctx, id); err != nil {
		return nil, err
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event.EventTypeJobRetried, job)
	s.logger.Info(ctx, "job retried", "job_id", id)
	return job, nil
}

// Cancel moves a pending job to cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (*structs.Job, error) {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return nil, err
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event.EventTypeJobCancelled, job)
	s.logger.Info(ctx, "job cancelled", "job_id", id)
	return job, nil
}

// ForceFail fails a pending or active job with the given reason. The running
// worker notices the terminal row at its next progress write and abandons
// the run.
func (s *Service) ForceFail(ctx context.Context, id int64, reason string) (*structs.Job, error) {
	if reason == "" {
		reason = "failed by administrator"
	}
	if err := s.repo.Fail(ctx, id, reason); err != nil {
		return nil, err
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event.EventTypeJobFailed, job)
	s.logger.Info(ctx, "job force-failed", "job_id", id, "reason", reason)
	return job, nil
}

// History returns a cursor page of jobs in the given status, newest first.
func (s *Service) History(ctx context.Context, status structs.JobStatus, cursor int64, limit int) ([]*structs.Job, int64, error) {
	jobs, err := s.repo.ListByStatus(ctx, status, cursor, limit)
	if err != nil {
		return nil, 0, err
	}
	var next int64
	if len(jobs) > 0 {
		next = jobs[len(jobs)-1].ID
	}
	return jobs, next, nil
}

// Counts returns the per-status row counts for the stats endpoint.
func (s *Service) Counts(ctx context.Context) (map[structs.JobStatus]int, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) publish(ctx context.Context, t event.EventType, job *structs.Job) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event.JobEvent(t, job)); err != nil {
		s.logger.Warn(ctx, "event publish failed", "type", t, "job_id", job.ID, "error", err)
	}
}

func statusKey(id int64) string {
	return fmt.Sprintf("%d", id)
}

// statusView renders the polling response. When the stored ETA is absent and
// the job is actively progressing, the remaining time is estimated from the
// progress rate: elapsed * (100-p)/p.
func statusView(job *structs.Job, now time.Time) *Status {
	view := &Status{
		ID:                job.ID,
		Kind:              string(job.Kind),
		SpaceID:           job.SpaceID,
		Status:            string(job.Status),
		ProgressInPercent: job.Progress,
		ProgressInSize:    util.HumanizeBytes(job.BytesDone),
		ErrorMessage:      job.Error,
	}

	switch {
	case job.ETASeconds != nil:
		view.ETA = util.FormatETA(time.Duration(*job.ETASeconds) * time.Second)
	case job.Status.IsActive() && job.Progress > 0:
		elapsed := job.Elapsed(now)
		if elapsed > 0 {
			remaining := elapsed * time.Duration(100-job.Progress) / time.Duration(job.Progress)
			view.ETA = util.FormatETA(remaining)
		}
	}
	return view
}
