package server

import (
	"crypto/subtle"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"github.com/ncobase/spacearc/consts"
	"github.com/ncobase/spacearc/ctxutil"
	"github.com/ncobase/spacearc/net/resp"
)

// traceMiddleware attaches a trace id to every request and echoes it in the
// response headers.
func (s *Server) traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, traceID := ctxutil.EnsureTraceID(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Header(consts.TraceKey, traceID)
		c.Next()
	}
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info(c.Request.Context(), "HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

// recoveryMiddleware reports handler panics and answers with the standard
// error envelope instead of a dropped connection.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				sentry.CurrentHub().Recover(r)
				s.logger.Error(c.Request.Context(), "handler panic",
					"path", c.Request.URL.Path, "panic", r)
				resp.Fail(c.Writer, resp.InternalServer("internal server error"))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// adminAuthMiddleware guards the admin group. An unset token disables the
// whole group; a set token must match in constant time.
func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if s.cfg.Admin != nil {
			token = s.cfg.Admin.Token
		}
		if token == "" {
			resp.Fail(c.Writer, resp.NotFound("not found"))
			c.Abort()
			return
		}

		given := c.GetHeader(consts.AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			resp.Fail(c.Writer, resp.UnAuthorized("invalid admin token"))
			c.Abort()
			return
		}

		ctx := ctxutil.SetIsAdmin(c.Request.Context(), true)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
