package ctxutil

import (
	"context"
	"net"
	"net/http"
	"strings"
)

const clientIPKey = "client_ip"

// SetClientIP sets client IP to context.Context
func SetClientIP(ctx context.Context, ip string) context.Context {
	return SetValue(ctx, clientIPKey, ip)
}

// GetClientIP gets client IP from context.Context
func GetClientIP(ctx context.Context) string {
	if ip, ok := GetValue(ctx, clientIPKey).(string); ok && ip != "" {
		return ip
	}
	if c, ok := GetGinContext(ctx); ok {
		return c.ClientIP()
	}
	return "unknown"
}

// ClientIPFromRequest extracts the client IP from a bare *http.Request,
// honoring X-Forwarded-For and X-Real-IP before the remote address.
func ClientIPFromRequest(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := req.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
