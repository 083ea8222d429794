// Package handler exposes the job queue over HTTP.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ncobase/spacearc/consts"
	"github.com/ncobase/spacearc/job/data/repository"
	"github.com/ncobase/spacearc/job/service"
	"github.com/ncobase/spacearc/logging/logger"
	"github.com/ncobase/spacearc/net/cookie"
	"github.com/ncobase/spacearc/net/resp"
	"github.com/ncobase/spacearc/validation/validator"
)

// Handler serves the public endpoints: enqueue and the status polls.
type Handler struct {
	svc    *service.Service
	domain string
	logger *logger.Logger
}

// New creates the public handler. The domain scopes the owner token cookie.
func New(svc *service.Service, domain string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.StdLogger()
	}
	return &Handler{svc: svc, domain: domain, logger: log}
}

// enqueueReply points the caller at the poll endpoint for the job.
type enqueueReply struct {
	ID        int64  `json:"id"`
	SpaceID   string `json:"space_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// Enqueue accepts a new archive request. A duplicate of an open job answers
// 200 with the existing job; a fresh insert answers 202.
func (h *Handler) Enqueue(c *gin.Context) {
	var req service.EnqueueRequest
	fields, err := validator.ShouldBindAndValidateStruct(c, &req)
	if err != nil {
		resp.Fail(c.Writer, resp.BadRequest("invalid request body"))
		return
	}
	if len(fields) > 0 {
		resp.Fail(c.Writer, resp.BadRequest("validation failed", fields))
		return
	}

	// A gateway-authenticated user id wins; anonymous callers get a cookie token.
	req.CreatedBy = c.GetHeader(consts.UserIDHeader)
	if req.CreatedBy == "" {
		req.CreatedBy = cookie.EnsureOwnerToken(c.Writer, c.Request, h.domain)
	}

	job, created, err := h.svc.Enqueue(c.Request.Context(), &req)
	if errors.Is(err, service.ErrUnknownKind) {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}
	if err != nil {
		failFor(c, err)
		return
	}

	reply := &enqueueReply{
		ID:        job.ID,
		SpaceID:   job.SpaceID,
		Kind:      string(job.Kind),
		Status:    string(job.Status),
		StatusURL: fmt.Sprintf("/api/status/%d", job.ID),
	}
	if created {
		resp.WithStatusCode(c.Writer, http.StatusAccepted, reply)
		return
	}
	resp.Success(c.Writer, reply)
}

// Status serves the polling view of one job.
func (h *Handler) Status(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	view, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		failFor(c, err)
		return
	}
	resp.Success(c.Writer, view)
}

// QueueStatus serves the views of all active jobs.
func (h *Handler) QueueStatus(c *gin.Context) {
	views, err := h.svc.QueueStatus(c.Request.Context())
	if err != nil {
		failFor(c, err)
		return
	}
	resp.Success(c.Writer, gin.H{"jobs": views, "count": len(views)})
}

// jobID parses the :id path parameter, answering 400 when it is not numeric.
func jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		resp.Fail(c.Writer, resp.BadRequest("job id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// failFor maps repository errors onto the response envelope.
func failFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		resp.Fail(c.Writer, resp.NotFound("job not found"))
	case errors.Is(err, repository.ErrConflict):
		resp.Fail(c.Writer, resp.Conflict(err.Error()))
	default:
		resp.Fail(c.Writer, resp.InternalServer(err.Error()))
	}
}
