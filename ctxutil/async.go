package ctxutil

import (
	"context"
	"time"
)

// DefaultAsyncTimeout is the default timeout for async operations
const DefaultAsyncTimeout = 10 * time.Second

// WithAsyncContext creates a context suitable for async operations.
// It detaches from the parent's cancellation while preserving its
// values, so trace information survives the originating request.
func WithAsyncContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = DefaultAsyncTimeout
	}
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}

// WithAsyncContextDefault creates an async context with default timeout
func WithAsyncContextDefault(parent context.Context) (context.Context, context.CancelFunc) {
	return WithAsyncContext(parent, DefaultAsyncTimeout)
}
