package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ncobase/spacearc/logging/logger"
)

const (
	publishWait     = 5 * time.Second
	handlerTimeout  = 30 * time.Second
	dispatchTimeout = time.Minute
	shutdownTimeout = 10 * time.Second
)

// Handler processes one event. Returned errors are logged, never retried.
type Handler func(ctx context.Context, event *Event) error

// Bus fans job lifecycle events out to in-process subscribers, persists them
// to the configured store and mirrors them to a broker when one is connected.
type Bus struct {
	handlers map[EventType][]Handler
	buffer   chan *Event
	mu       sync.RWMutex
	logger   *logger.Logger
	store    Store
	mirror   *Mirror
}

// NewBus creates an event bus with the given buffer size.
func NewBus(bufferSize int, log *logger.Logger, store Store) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if log == nil {
		log = logger.StdLogger()
	}
	return &Bus{
		handlers: make(map[EventType][]Handler),
		buffer:   make(chan *Event, bufferSize),
		logger:   log,
		store:    store,
	}
}

// SetMirror attaches an external broker mirror. Call before Start.
func (b *Bus) SetMirror(m *Mirror) {
	b.mirror = m
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug(context.Background(), "event handler subscribed",
		"event_type", eventType,
		"total_handlers", len(b.handlers[eventType]))
}

// Publish stores the event and queues it for dispatch. It blocks only when
// the buffer is full, and gives up after a short wait.
func (b *Bus) Publish(ctx context.Context, event *Event) error {
	event.Timestamp = time.Now().UTC()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if b.store != nil {
		if err := b.store.Save(ctx, event); err != nil {
			// Dispatch still proceeds; the store is audit only.
			b.logger.Error(ctx, "failed to store event",
				"error", err, "event_id", event.ID, "event_type", event.Type)
		}
	}

	select {
	case b.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishWait):
		return fmt.Errorf("event buffer full, dropped %s for job %d", event.Type, event.JobID)
	}
}

// Start launches the dispatch workers. They exit when ctx is cancelled.
func (b *Bus) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		go b.worker(ctx, i)
	}
	b.logger.Info(ctx, "event bus started", "workers", numWorkers, "buffer", cap(b.buffer))
}

func (b *Bus) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			b.logger.Debug(ctx, "event bus worker stopped", "worker_id", id)
			return
		case event := <-b.buffer:
			b.dispatch(ctx, event)
			b.mirror.publish(ctx, event)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, event *Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i, handler := range handlers {
		wg.Add(1)
		go func(h Handler, idx int) {
			defer wg.Done()

			handlerCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
			defer cancel()

			start := time.Now()
			if err := h(handlerCtx, event); err != nil {
				b.logger.Error(ctx, "event handler failed",
					"type", event.Type,
					"job_id", event.JobID,
					"handler_index", idx,
					"duration", time.Since(start),
					"error", err)
			}
		}(handler, i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(dispatchTimeout):
		b.logger.Warn(ctx, "event dispatch timeout", "type", event.Type, "job_id", event.JobID)
	}
}

// Stats reports queue depth and subscriber counts.
func (b *Bus) Stats() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := make(map[string]int)
	total := 0
	for eventType, handlers := range b.handlers {
		subscribers[string(eventType)] = len(handlers)
		total += len(handlers)
	}

	return map[string]any{
		"buffer_size":    cap(b.buffer),
		"buffer_used":    len(b.buffer),
		"event_types":    len(b.handlers),
		"total_handlers": total,
		"subscribers":    subscribers,
	}
}

// Shutdown waits for the buffer to drain, up to a timeout.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Info(ctx, "shutting down event bus", "pending_events", len(b.buffer))

	deadline := time.After(shutdownTimeout)
	for {
		select {
		case <-deadline:
			return fmt.Errorf("event bus shutdown timeout with %d events remaining", len(b.buffer))
		case <-ctx.Done():
			return ctx.Err()
		default:
			if len(b.buffer) == 0 {
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}
