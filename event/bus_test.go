package event

import (
	"context"
	"testing"
	"time"

	"github.com/ncobase/spacearc/job/structs"
)

func TestPublishSetsMetadata(t *testing.T) {
	bus := NewBus(4, nil, nil)
	evt := JobEvent(EventTypeJobCreated, &structs.Job{ID: 7, Kind: structs.KindSpaceDownload, SpaceID: "s7"})

	if err := bus.Publish(context.Background(), evt); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if evt.ID == "" {
		t.Error("publish must assign an event id")
	}
	if evt.Timestamp.IsZero() {
		t.Error("publish must stamp the event")
	}
	if evt.JobID != 7 || evt.Kind != string(structs.KindSpaceDownload) {
		t.Errorf("job snapshot lost: %+v", evt)
	}
}

func TestBusDeliversToAllSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(4, nil, nil)
	first := make(chan *Event, 1)
	second := make(chan *Event, 1)
	bus.Subscribe(EventTypeJobCompleted, func(ctx context.Context, e *Event) error {
		first <- e
		return nil
	})
	bus.Subscribe(EventTypeJobCompleted, func(ctx context.Context, e *Event) error {
		second <- e
		return nil
	})
	bus.Start(ctx, 2)

	evt := JobEvent(EventTypeJobCompleted, &structs.Job{ID: 42, Status: structs.StatusCompleted})
	if err := bus.Publish(ctx, evt); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, ch := range map[string]chan *Event{"first": first, "second": second} {
		select {
		case got := <-ch:
			if got.JobID != 42 {
				t.Errorf("%s subscriber got job %d, want 42", name, got.JobID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s subscriber never received the event", name)
		}
	}
}

func TestBusStats(t *testing.T) {
	bus := NewBus(16, nil, nil)
	noop := func(ctx context.Context, e *Event) error { return nil }
	bus.Subscribe(EventTypeJobCreated, noop)
	bus.Subscribe(EventTypeJobCreated, noop)
	bus.Subscribe(EventTypeJobFailed, noop)

	stats := bus.Stats()
	if stats["total_handlers"] != 3 {
		t.Errorf("total_handlers = %v, want 3", stats["total_handlers"])
	}
	if stats["event_types"] != 2 {
		t.Errorf("event_types = %v, want 2", stats["event_types"])
	}
	if stats["buffer_size"] != 16 {
		t.Errorf("buffer_size = %v, want 16", stats["buffer_size"])
	}
}

func TestShutdownAfterDrain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(4, nil, nil)
	done := make(chan struct{}, 1)
	bus.Subscribe(EventTypeJobReaped, func(ctx context.Context, e *Event) error {
		done <- struct{}{}
		return nil
	})
	bus.Start(ctx, 1)

	if err := bus.Publish(ctx, JobEvent(EventTypeJobReaped, &structs.Job{ID: 1})); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event never dispatched")
	}

	if err := bus.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
