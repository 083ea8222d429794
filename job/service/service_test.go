package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ncobase/spacearc/job/data/repository"
	"github.com/ncobase/spacearc/job/structs"
)

func newTestService(t *testing.T) (*Service, repository.JobRepository) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := repository.New(db, "sqlite")
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	return New(repo, nil, nil, nil), repo
}

func TestSpaceIDFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://x.com/i/spaces/1mnxeRzXqZdxX", "1mnxeRzXqZdxX"},
		{"https://twitter.com/i/spaces/1ABCdef123/peek", "1ABCdef123"},
		{"https://www.youtube.com/watch", "watch"},
		{"https://example.com/audio/episode-42", "episode-42"},
		{"https://example.com/", "example.com"},
		{"not a url at all", "not a url at all"},
	}
	for _, tc := range cases {
		if got := SpaceIDFromURL(tc.url); got != tc.want {
			t.Errorf("SpaceIDFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestEnqueueFoldsDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := &EnqueueRequest{SourceURL: "https://x.com/i/spaces/1abc", CreatedBy: "tok"}
	first, created, err := svc.Enqueue(ctx, req)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !created {
		t.Fatal("first enqueue must create a row")
	}
	if first.Kind != structs.KindSpaceDownload {
		t.Errorf("default kind = %s", first.Kind)
	}

	second, created, err := svc.Enqueue(ctx, req)
	if err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}
	if created {
		t.Error("duplicate enqueue must not create a second row")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate returned job %d, want %d", second.ID, first.ID)
	}

	// A different kind for the same space is a separate job.
	other, created, err := svc.Enqueue(ctx, &EnqueueRequest{
		SourceURL: "https://x.com/i/spaces/1abc",
		Kind:      structs.KindTranscription,
	})
	if err != nil {
		t.Fatalf("other kind enqueue: %v", err)
	}
	if !created || other.ID == first.ID {
		t.Errorf("different kind must create a new row: created=%v id=%d", created, other.ID)
	}
}

func TestEnqueueRejectsUnknownKind(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.Enqueue(context.Background(), &EnqueueRequest{
		SourceURL: "https://x.com/i/spaces/1abc",
		Kind:      "mining",
	})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

// brokenFindOpenRepo simulates a transport failure on the duplicate check.
type brokenFindOpenRepo struct {
	repository.JobRepository
}

func (r *brokenFindOpenRepo) FindOpen(ctx context.Context, spaceID string, kind structs.JobKind) (*structs.Job, error) {
	return nil, errors.New("connection reset")
}

func TestEnqueuePropagatesDuplicateCheckErrors(t *testing.T) {
	_, repo := newTestService(t)
	svc := New(&brokenFindOpenRepo{JobRepository: repo}, nil, nil, nil)

	_, created, err := svc.Enqueue(context.Background(), &EnqueueRequest{
		SourceURL: "https://x.com/i/spaces/1abc",
	})
	if err == nil || created {
		t.Fatalf("err = %v created = %v, want propagated error", err, created)
	}

	// A broken duplicate guard must not insert a second row.
	counts, cerr := repo.CountByStatus(context.Background())
	if cerr != nil {
		t.Fatalf("counts: %v", cerr)
	}
	if counts[structs.StatusPending] != 0 {
		t.Errorf("pending = %d, want 0", counts[structs.StatusPending])
	}
}

func TestStatusViewETA(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(-100 * time.Second)

	// Stored ETA wins.
	eta := int64(90)
	job := &structs.Job{ID: 1, Status: structs.StatusDownloading, Progress: 40,
		ETASeconds: &eta, StartTime: &start}
	if view := statusView(job, now); view.ETA != "01:30" {
		t.Errorf("stored eta view = %q, want 01:30", view.ETA)
	}

	// Without a stored ETA the remaining time comes from the progress rate:
	// 100s elapsed at 25% leaves about 300s.
	job = &structs.Job{ID: 2, Status: structs.StatusDownloading, Progress: 25, StartTime: &start}
	if view := statusView(job, now); view.ETA != "05:00" {
		t.Errorf("estimated eta view = %q, want 05:00", view.ETA)
	}

	// No progress yet means no estimate.
	job = &structs.Job{ID: 3, Status: structs.StatusInProgress, Progress: 0, StartTime: &start}
	if view := statusView(job, now); view.ETA != "" {
		t.Errorf("eta with zero progress = %q, want empty", view.ETA)
	}

	// Terminal jobs never show an estimate.
	job = &structs.Job{ID: 4, Status: structs.StatusCompleted, Progress: 100, StartTime: &start}
	if view := statusView(job, now); view.ETA != "" {
		t.Errorf("eta on completed job = %q, want empty", view.ETA)
	}
}

func TestStatusReadsRepository(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	job, _, err := svc.Enqueue(ctx, &EnqueueRequest{SourceURL: "https://x.com/i/spaces/1abc"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := repo.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.UpdateProgress(ctx, claimed.ID, 30, 3<<20, nil); err != nil {
		t.Fatalf("progress: %v", err)
	}

	view, err := svc.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if view.ProgressInPercent != 30 {
		t.Errorf("percent = %d, want 30", view.ProgressInPercent)
	}
	if view.ProgressInSize == "" {
		t.Error("size must be humanized, got empty")
	}

	if _, err := svc.Status(ctx, 9999); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing job error = %v, want ErrNotFound", err)
	}
}

func TestRetryRequiresTerminalJob(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	job, _, err := svc.Enqueue(ctx, &EnqueueRequest{SourceURL: "https://x.com/i/spaces/1abc"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := svc.Retry(ctx, job.ID); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("retry pending = %v, want ErrConflict", err)
	}

	if err := repo.Fail(ctx, job.ID, "broke"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	retried, err := svc.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("retry failed job: %v", err)
	}
	if retried.Status != structs.StatusPending {
		t.Errorf("retried status = %s, want pending", retried.Status)
	}
	if retried.Error != "" || retried.Progress != 0 {
		t.Errorf("retry must clear error and progress: %+v", retried)
	}
}

func TestCancelOnlyPending(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	job, _, err := svc.Enqueue(ctx, &EnqueueRequest{SourceURL: "https://x.com/i/spaces/1abc"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if cancelled.Status != structs.StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	// Running jobs cannot be cancelled, only force-failed.
	job2, _, err := svc.Enqueue(ctx, &EnqueueRequest{SourceURL: "https://x.com/i/spaces/2def"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.Cancel(ctx, job2.ID); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("cancel running = %v, want ErrConflict", err)
	}
}

func TestForceFailDefaultsReason(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	job, _, err := svc.Enqueue(ctx, &EnqueueRequest{SourceURL: "https://x.com/i/spaces/1abc"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	failed, err := svc.ForceFail(ctx, job.ID, "")
	if err != nil {
		t.Fatalf("force fail: %v", err)
	}
	if failed.Status != structs.StatusFailed {
		t.Errorf("status = %s, want failed", failed.Status)
	}
	if failed.Error != "failed by administrator" {
		t.Errorf("error = %q", failed.Error)
	}
}

func TestHistoryAndCounts(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	for _, space := range []string{"a", "b", "c"} {
		job, _, err := svc.Enqueue(ctx, &EnqueueRequest{SourceURL: "https://x.com/i/spaces/" + space})
		if err != nil {
			t.Fatalf("enqueue %s: %v", space, err)
		}
		if err := repo.Fail(ctx, job.ID, "x"); err != nil {
			t.Fatalf("fail %s: %v", space, err)
		}
	}

	page, next, err := svc.History(ctx, structs.StatusFailed, 0, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	if page[0].ID < page[1].ID {
		t.Error("history must be newest first")
	}

	rest, _, err := svc.History(ctx, structs.StatusFailed, next, 2)
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("second page size = %d, want 1", len(rest))
	}

	counts, err := svc.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[structs.StatusFailed] != 3 {
		t.Errorf("failed count = %d, want 3", counts[structs.StatusFailed])
	}
}
