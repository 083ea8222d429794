package structs

import (
	"testing"
	"time"
)

func allStatuses() []JobStatus {
	return []JobStatus{
		StatusPending, StatusInProgress, StatusDownloading, StatusProcessing,
		StatusCompleted, StatusFailed, StatusCancelled,
	}
}

// TestCanTransition walks the full status matrix and checks every edge
// against the allowed set.
func TestCanTransition(t *testing.T) {
	allowed := map[JobStatus]map[JobStatus]bool{
		StatusPending:     {StatusInProgress: true, StatusFailed: true, StatusCancelled: true},
		StatusInProgress:  {StatusDownloading: true, StatusProcessing: true, StatusCompleted: true, StatusFailed: true},
		StatusDownloading: {StatusProcessing: true, StatusCompleted: true, StatusFailed: true},
		StatusProcessing:  {StatusCompleted: true, StatusFailed: true},
	}

	for _, from := range allStatuses() {
		for _, to := range allStatuses() {
			want := allowed[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

// TestTerminalStatesHaveNoOutgoingEdges guards against edges being added to
// completed, failed or cancelled by accident.
func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range []JobStatus{StatusCompleted, StatusFailed, StatusCancelled} {
		for _, to := range allStatuses() {
			if CanTransition(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	active := map[JobStatus]bool{
		StatusInProgress: true, StatusDownloading: true, StatusProcessing: true,
	}
	terminal := map[JobStatus]bool{
		StatusCompleted: true, StatusFailed: true, StatusCancelled: true,
	}

	for _, s := range allStatuses() {
		if got := s.IsActive(); got != active[s] {
			t.Errorf("%s.IsActive() = %v, want %v", s, got, active[s])
		}
		if got := s.IsTerminal(); got != terminal[s] {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, terminal[s])
		}
	}
}

func TestKindIsValid(t *testing.T) {
	for _, k := range Kinds() {
		if !k.IsValid() {
			t.Errorf("kind %s should be valid", k)
		}
	}
	for _, k := range []JobKind{"", "download", "SPACE_DOWNLOAD", "space-download"} {
		if k.IsValid() {
			t.Errorf("kind %q should be invalid", k)
		}
	}
}

func TestElapsed(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	j := &Job{}
	if got := j.Elapsed(now); got != 0 {
		t.Fatalf("elapsed before start = %v, want 0", got)
	}

	start := now.Add(-90 * time.Second)
	j.StartTime = &start
	if got := j.Elapsed(now); got != 90*time.Second {
		t.Fatalf("elapsed = %v, want 90s", got)
	}

	end := now.Add(-30 * time.Second)
	j.EndTime = &end
	if got := j.Elapsed(now); got != time.Minute {
		t.Fatalf("elapsed with end = %v, want 1m", got)
	}
}
