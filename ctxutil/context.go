package ctxutil

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ncobase/spacearc/consts"
)

const (
	ginContextKey = consts.GinContextKey
	ownerKey      = consts.OwnerKey
	adminKey      = consts.AdminKey

	TraceIDKey = "trace_id"
)

// FromGinContext extracts the context.Context from *gin.Context.
func FromGinContext(c *gin.Context) context.Context {
	return c.Request.Context()
}

// WithGinContext returns a context.Context that embeds the *gin.Context.
func WithGinContext(ctx context.Context, c *gin.Context) context.Context {
	return context.WithValue(ctx, ginContextKey, c)
}

// GetGinContext extracts *gin.Context from context.Context if it exists.
func GetGinContext(ctx context.Context) (*gin.Context, bool) {
	if c, ok := ctx.Value(ginContextKey).(*gin.Context); ok {
		return c, ok
	}
	return nil, false
}

// GetValue retrieves a value from the context.
func GetValue(ctx context.Context, key string) any {
	if c, ok := GetGinContext(ctx); ok {
		if val, exists := c.Get(key); exists {
			return val
		}
	}
	return ctx.Value(key)
}

// SetValue sets a value to the context.
func SetValue(ctx context.Context, key string, val any) context.Context {
	if c, ok := GetGinContext(ctx); ok {
		c.Set(key, val)
	}
	return context.WithValue(ctx, key, val)
}

// SetOwnerToken sets the job owner token to context.Context.
func SetOwnerToken(ctx context.Context, token string) context.Context {
	return SetValue(ctx, ownerKey, token)
}

// GetOwnerToken gets the job owner token from context.Context.
func GetOwnerToken(ctx context.Context) string {
	if token, ok := GetValue(ctx, ownerKey).(string); ok {
		return token
	}
	return ""
}

// SetIsAdmin sets the admin flag to context.Context.
func SetIsAdmin(ctx context.Context, isAdmin bool) context.Context {
	return SetValue(ctx, adminKey, isAdmin)
}

// GetIsAdmin gets the admin flag from context.Context.
func GetIsAdmin(ctx context.Context) bool {
	if isAdmin, ok := GetValue(ctx, adminKey).(bool); ok {
		return isAdmin
	}
	return false
}

// GetTraceID gets trace id from context.Context or gin.Context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := GetValue(ctx, TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// SetTraceID sets trace id to context.Context and gin.Context if available.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return SetValue(ctx, TraceIDKey, traceID)
}

// EnsureTraceID ensures that a trace ID exists in the context.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if traceID := GetTraceID(ctx); traceID != "" {
		return ctx, traceID
	}
	traceID := uuid.NewString()
	return SetTraceID(ctx, traceID), traceID
}
