package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ncobase/spacearc/job/structs"
)

func newTestRepo(t *testing.T) (JobRepository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection so every query sees the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := New(db, "sqlite")
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	return repo, db
}

func newPendingJob(spaceID string) *structs.Job {
	return &structs.Job{
		SpaceID:     spaceID,
		Kind:        structs.KindSpaceDownload,
		NotifyEmail: "owner@example.com",
		Payload:     map[string]any{"source_url": "https://x.com/i/spaces/" + spaceID},
	}
}

func TestCreateAndFindRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, newPendingJob("1abc"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	job, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if job.Status != structs.StatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.SpaceID != "1abc" || job.Kind != structs.KindSpaceDownload {
		t.Errorf("unexpected identity: %+v", job)
	}
	if job.Payload["source_url"] != "https://x.com/i/spaces/1abc" {
		t.Errorf("payload lost: %v", job.Payload)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Error("timestamps must be set on create")
	}
	if job.StartTime != nil || job.EndTime != nil {
		t.Error("pending job must have no start or end time")
	}

	if _, err := repo.FindByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}
}

func TestClaimOldestFirst(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	var ids []int64
	for _, space := range []string{"a", "b", "c"} {
		id, err := repo.Create(ctx, newPendingJob(space))
		if err != nil {
			t.Fatalf("create %s: %v", space, err)
		}
		ids = append(ids, id)
	}

	for _, want := range ids {
		job, err := repo.Claim(ctx)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if job.ID != want {
			t.Fatalf("claimed %d, want %d", job.ID, want)
		}
		if job.Status != structs.StatusInProgress {
			t.Fatalf("claimed status = %s, want in_progress", job.Status)
		}
		if job.StartTime == nil {
			t.Fatal("claim must set start_time")
		}
	}

	if _, err := repo.Claim(ctx); !errors.Is(err, ErrNoPending) {
		t.Fatalf("empty queue error = %v, want ErrNoPending", err)
	}
}

func TestClaimConcurrent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newPendingJob("race")); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 4
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Claim(ctx)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrNoPending):
			lost++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if won != 1 || lost != workers-1 {
		t.Fatalf("winners = %d, losers = %d, want 1 and %d", won, lost, workers-1)
	}
}

func TestUpdateProgressMonotonic(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, newPendingJob("p"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	eta := int64(120)
	if err := repo.UpdateProgress(ctx, id, 50, 1024, &eta); err != nil {
		t.Fatalf("progress 50: %v", err)
	}
	// A late, lower report must not move progress backward.
	if err := repo.UpdateProgress(ctx, id, 30, 512, nil); err != nil {
		t.Fatalf("progress 30: %v", err)
	}

	job, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if job.Progress != 50 {
		t.Errorf("progress = %d, want 50", job.Progress)
	}
	if job.BytesDone != 1024 {
		t.Errorf("bytes_done = %d, want 1024", job.BytesDone)
	}
	if job.ETASeconds != nil {
		t.Errorf("eta = %v, want nil after last report", *job.ETASeconds)
	}

	if err := repo.UpdateProgress(ctx, id, 150, 2048, nil); err != nil {
		t.Fatalf("progress 150: %v", err)
	}
	job, _ = repo.FindByID(ctx, id)
	if job.Progress != 100 {
		t.Errorf("progress = %d, want clamped 100", job.Progress)
	}
}

func TestUpdateProgressRejectsInactive(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, newPendingJob("q"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdateProgress(ctx, id, 10, 0, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("progress on pending = %v, want ErrConflict", err)
	}
	if err := repo.UpdateProgress(ctx, 9999, 10, 0, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("progress on missing = %v, want ErrNotFound", err)
	}
}

// TestLifecycleScenario walks job 42 through the full happy path.
func TestLifecycleScenario(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 42; i++ {
		id, err := repo.Create(ctx, newPendingJob("space"))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		last = id
	}
	if last != 42 {
		t.Fatalf("last id = %d, want 42", last)
	}
	for id := int64(1); id < 42; id++ {
		if err := repo.Cancel(ctx, id); err != nil {
			t.Fatalf("cancel %d: %v", id, err)
		}
	}

	job, err := repo.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job.ID != 42 {
		t.Fatalf("claimed %d, want 42", job.ID)
	}
	if job.Status != structs.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", job.Status)
	}

	if err := repo.MarkDownloading(ctx, 42); err != nil {
		t.Fatalf("mark downloading: %v", err)
	}
	if err := repo.UpdateProgress(ctx, 42, 60, 6_000_000, nil); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := repo.MarkProcessing(ctx, 42); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := repo.Complete(ctx, 42, "/data/spaces/space.mp3"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	job, err = repo.FindByID(ctx, 42)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if job.Status != structs.StatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}
	if job.EndTime == nil {
		t.Error("completed job must have end_time")
	}
	if job.OutputPath != "/data/spaces/space.mp3" {
		t.Errorf("output_path = %q", job.OutputPath)
	}

	// Terminal rows reject further worker writes.
	if err := repo.Complete(ctx, 42, "x"); !errors.Is(err, ErrConflict) {
		t.Errorf("double complete = %v, want ErrConflict", err)
	}
}

func TestCancelRequiresPending(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, newPendingJob("c"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := repo.Cancel(ctx, id); !errors.Is(err, ErrConflict) {
		t.Fatalf("cancel running = %v, want ErrConflict", err)
	}
}

func TestResetClearsRun(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, newPendingJob("r"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Reset(ctx, id); !errors.Is(err, ErrConflict) {
		t.Fatalf("reset pending = %v, want ErrConflict", err)
	}

	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.UpdateProgress(ctx, id, 40, 4096, nil); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := repo.Fail(ctx, id, "yt-dlp exited with code 1"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	if err := repo.Reset(ctx, id); err != nil {
		t.Fatalf("reset failed job: %v", err)
	}
	job, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if job.Status != structs.StatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.Progress != 0 || job.BytesDone != 0 || job.Error != "" {
		t.Errorf("run state not cleared: %+v", job)
	}
	if job.StartTime != nil || job.EndTime != nil {
		t.Error("reset must clear start_time and end_time")
	}
}

func TestReapStale(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	staleID, err := repo.Create(ctx, newPendingJob("stale"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim stale: %v", err)
	}
	freshID, err := repo.Create(ctx, newPendingJob("fresh"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim fresh: %v", err)
	}

	// Backdate the first worker's heartbeat past the threshold.
	old := formatTime(time.Now().UTC().Add(-2 * time.Hour))
	if _, err := db.ExecContext(ctx, `UPDATE jobs SET updated_at = ? WHERE id = ?`, old, staleID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	cutoff := time.Now().UTC().Add(-time.Hour)
	reaped, err := repo.ReapStale(ctx, cutoff, "timed out after 1h0m0s without progress")
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(reaped) != 1 || reaped[0] != staleID {
		t.Fatalf("reaped = %v, want [%d]", reaped, staleID)
	}

	stale, _ := repo.FindByID(ctx, staleID)
	if stale.Status != structs.StatusFailed {
		t.Errorf("stale status = %s, want failed", stale.Status)
	}
	if !strings.Contains(stale.Error, "timed out") {
		t.Errorf("stale error = %q, want timeout text", stale.Error)
	}
	fresh, _ := repo.FindByID(ctx, freshID)
	if fresh.Status != structs.StatusInProgress {
		t.Errorf("fresh status = %s, want in_progress untouched", fresh.Status)
	}
}

func TestFindOpenDuplicateGuard(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, newPendingJob("dup"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	open, err := repo.FindOpen(ctx, "dup", structs.KindSpaceDownload)
	if err != nil {
		t.Fatalf("find open pending: %v", err)
	}
	if open.ID != id {
		t.Fatalf("open id = %d, want %d", open.ID, id)
	}

	// A different kind of the same space is a separate unit of work.
	if _, err := repo.FindOpen(ctx, "dup", structs.KindTranscription); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other kind = %v, want ErrNotFound", err)
	}

	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := repo.FindOpen(ctx, "dup", structs.KindSpaceDownload); err != nil {
		t.Fatalf("find open running: %v", err)
	}

	if err := repo.Fail(ctx, id, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, err := repo.FindOpen(ctx, "dup", structs.KindSpaceDownload); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after fail = %v, want ErrNotFound", err)
	}
}

func TestListByStatusPagination(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := repo.Create(ctx, newPendingJob("page"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := repo.Cancel(ctx, id); err != nil {
			t.Fatalf("cancel: %v", err)
		}
	}

	var got []int64
	cursor := int64(0)
	for {
		page, err := repo.ListByStatus(ctx, structs.StatusCancelled, cursor, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, j := range page {
			got = append(got, j.ID)
		}
		cursor = page[len(page)-1].ID
	}

	want := []int64{5, 4, 3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestCountByStatus(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, newPendingJob("count")); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[structs.StatusPending] != 2 {
		t.Errorf("pending = %d, want 2", counts[structs.StatusPending])
	}
	if counts[structs.StatusInProgress] != 1 {
		t.Errorf("in_progress = %d, want 1", counts[structs.StatusInProgress])
	}
	if counts[structs.StatusCompleted] != 0 {
		t.Errorf("completed = %d, want 0 (seeded)", counts[structs.StatusCompleted])
	}
}

func TestListActive(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newPendingJob("idle")); err != nil {
		t.Fatalf("create: %v", err)
	}
	runningID, err := repo.Create(ctx, newPendingJob("busy"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Claim takes the oldest pending, so drain until busy is running.
	first, err := repo.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.Fail(ctx, first.ID, "skip"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != runningID {
		t.Fatalf("active = %+v, want single job %d", active, runningID)
	}
}
