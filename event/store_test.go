package event

import (
	"context"
	"strconv"
	"testing"
)

func TestMemoryStoreOrderedHistory(t *testing.T) {
	store := NewMemoryStore(16)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		evt := &Event{ID: "e" + strconv.Itoa(i), Type: EventTypeJobClaimed, JobID: 7}
		if err := store.Save(ctx, evt); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := store.Save(ctx, &Event{ID: "other", Type: EventTypeJobCreated, JobID: 8}); err != nil {
		t.Fatalf("save: %v", err)
	}

	events, err := store.LoadByJob(ctx, 7)
	if err != nil {
		t.Fatalf("load by job: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len = %d, want 3", len(events))
	}
	for i, evt := range events {
		if evt.ID != "e"+strconv.Itoa(i) {
			t.Errorf("events out of order: %v", events)
		}
	}

	recent, err := store.LoadRecent(ctx, 2)
	if err != nil {
		t.Fatalf("load recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "e2" || recent[1].ID != "other" {
		t.Fatalf("recent = %+v, want [e2 other]", recent)
	}
}

func TestMemoryStoreCapsHistory(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Save(ctx, &Event{ID: "e" + strconv.Itoa(i), JobID: 1}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	events, err := store.LoadRecent(ctx, 0)
	if err != nil {
		t.Fatalf("load recent: %v", err)
	}
	if len(events) != 2 || events[0].ID != "e1" || events[1].ID != "e2" {
		t.Fatalf("ring = %+v, want the two newest", events)
	}
}

func TestMemoryStoreSavesCopies(t *testing.T) {
	store := NewMemoryStore(4)
	ctx := context.Background()

	evt := &Event{ID: "live", JobID: 3, Status: "pending"}
	if err := store.Save(ctx, evt); err != nil {
		t.Fatalf("save: %v", err)
	}
	evt.Status = "failed"

	events, _ := store.LoadByJob(ctx, 3)
	if len(events) != 1 || events[0].Status != "pending" {
		t.Fatalf("stored event mutated: %+v", events)
	}
}

func TestNewStoreSelection(t *testing.T) {
	if _, ok := NewStore("memory", "", nil, nil).(*MemoryStore); !ok {
		t.Error("memory kind must build the ring store")
	}
	// Mongo requested but no connections available falls back to memory.
	if _, ok := NewStore("mongo", "spacearc", nil, nil).(*MemoryStore); !ok {
		t.Error("unreachable mongo must fall back to the ring store")
	}
}
