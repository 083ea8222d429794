// Package server wires configuration, the data layer and the job subsystem
// into one runnable service.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ncobase/spacearc/config"
	"github.com/ncobase/spacearc/data"
	_ "github.com/ncobase/spacearc/data/all" // register database drivers
	"github.com/ncobase/spacearc/email"
	"github.com/ncobase/spacearc/event"
	"github.com/ncobase/spacearc/job/data/repository"
	"github.com/ncobase/spacearc/job/executor"
	"github.com/ncobase/spacearc/job/handler"
	"github.com/ncobase/spacearc/job/service"
	"github.com/ncobase/spacearc/job/worker"
	"github.com/ncobase/spacearc/logging/logger"
	"github.com/ncobase/spacearc/logging/observes"
	"github.com/ncobase/spacearc/monitor"
	"github.com/ncobase/spacearc/net/resp"
)

const samplerInterval = time.Second

// Server owns every component of the archive service.
type Server struct {
	cfg    *config.Config
	logger *logger.Logger

	data        *data.Data
	dataCleanup func()

	repo     repository.JobRepository
	bus      *event.Bus
	store    event.Store
	svc      *service.Service
	execs    *executor.Executors
	pool     *worker.Pool
	reaper   *worker.Reaper
	notifier *email.Notifier
	sampler  *monitor.Sampler

	engine *gin.Engine
}

// NewServer builds the full component graph. Nothing runs until
// StartBackground is called.
func NewServer(cfg *config.Config, log *logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if log == nil {
		log = logger.StdLogger()
	}

	if cfg.Observes != nil {
		if err := observes.NewSentry(sentryOptions(cfg)); err != nil {
			log.Warn(context.Background(), "sentry initialization failed", "error", err)
		}
	}

	d, dataCleanup, err := data.New(cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("initialize data layer: %w", err)
	}

	dialect := ""
	if cfg.Data != nil && cfg.Data.Database != nil && cfg.Data.Database.Master != nil {
		dialect = cfg.Data.Database.Master.Driver
	}
	repo, err := repository.New(d.GetDB(), dialect)
	if err != nil {
		dataCleanup()
		return nil, fmt.Errorf("initialize job repository: %w", err)
	}

	store := event.NewStore(cfg.Events.Store, cfg.Events.MongoDatabase, d, log)
	bus := event.NewBus(cfg.Events.BufferSize, log, store)
	bus.SetMirror(event.NewMirror(d, cfg.Events.Exchange, cfg.Events.Topic, log))

	svc := service.New(repo, d, bus, log)
	svc.RegisterInvalidation(bus)

	execs := executor.New(cfg.Jobs.Media, nil)
	pool := worker.NewPool(cfg.Jobs.Workers, repo, bus, log)
	execs.Register(pool)
	reaper := worker.NewReaper(cfg.Jobs.Reaper, repo, bus, log)

	var notifier *email.Notifier
	if cfg.Email != nil {
		sender, err := email.NewSender(cfg.Email)
		if err != nil {
			log.Warn(context.Background(), "email notifications disabled", "error", err)
		} else {
			notifier = email.NewNotifier(sender, repo, log, cfg.AppName)
			notifier.Register(bus)
		}
	}

	return &Server{
		cfg:         cfg,
		logger:      log,
		data:        d,
		dataCleanup: dataCleanup,
		repo:        repo,
		bus:         bus,
		store:       store,
		svc:         svc,
		execs:       execs,
		pool:        pool,
		reaper:      reaper,
		notifier:    notifier,
		sampler:     monitor.NewSampler(samplerInterval),
	}, nil
}

func sentryOptions(cfg *config.Config) *observes.SentryOptions {
	s := cfg.Observes.Sentry
	if s == nil {
		return nil
	}
	return &observes.SentryOptions{
		Dsn:         s.Endpoint,
		Name:        cfg.AppName,
		Release:     s.Release,
		Environment: s.Environment,
		SampleRate:  s.SampleRate,
	}
}

// SetupRouter builds the gin engine with the public and admin routes.
func (s *Server) SetupRouter() *gin.Engine {
	if s.cfg.RunMode != "" {
		gin.SetMode(s.cfg.RunMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(s.traceMiddleware())
	r.Use(s.loggerMiddleware())
	r.Use(s.recoveryMiddleware())

	r.GET("/health", s.handleHealth)

	h := handler.New(s.svc, s.cfg.Domain, s.logger)
	api := r.Group("/api")
	{
		api.POST("/jobs", h.Enqueue)
		api.GET("/status/:id", h.Status)
		api.GET("/queue_status", h.QueueStatus)
	}

	a := handler.NewAdmin(s.svc, s.store, s.pool, s.reaper, s.bus, s.sampler,
		s.execs.BreakerState, s.logger)
	admin := api.Group("/admin", s.adminAuthMiddleware())
	{
		admin.GET("/jobs/:id", a.Inspect)
		admin.POST("/jobs/:id/retry", a.Retry)
		admin.POST("/jobs/:id/cancel", a.Cancel)
		admin.POST("/jobs/:id/fail", a.Fail)
		admin.GET("/history", a.History)
		admin.GET("/stats", a.Stats)
		admin.GET("/runtime", a.Runtime)
		admin.GET("/events", a.Events)
	}

	s.engine = r
	return r
}

// StartBackground launches the event bus, the worker pool, the reaper and the
// runtime sampler. The pool stays off when this process serves HTTP only.
func (s *Server) StartBackground(ctx context.Context) {
	s.bus.Start(ctx, s.cfg.Events.Workers)
	if s.cfg.Jobs.Workers.Embedded {
		s.pool.Start(ctx)
	}
	s.reaper.Start(ctx)
	s.sampler.Start(ctx)
}

// StartWorkers launches only the background components, for dedicated worker
// processes that serve no HTTP.
func (s *Server) StartWorkers(ctx context.Context) {
	s.bus.Start(ctx, s.cfg.Events.Workers)
	s.pool.Start(ctx)
	s.reaper.Start(ctx)
	s.sampler.Start(ctx)
}

// Cleanup drains the background components and closes connections.
func (s *Server) Cleanup(ctx context.Context) {
	if err := s.pool.Stop(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool stop incomplete", "error", err)
	}
	s.reaper.Stop()
	s.sampler.Stop()
	if err := s.bus.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "event bus shutdown incomplete", "error", err)
	}
	if s.dataCleanup != nil {
		s.dataCleanup()
	}
}

// Repository exposes the job repository for commands that bypass HTTP.
func (s *Server) Repository() repository.JobRepository {
	return s.repo
}

func (s *Server) handleHealth(c *gin.Context) {
	health := s.data.Health(c.Request.Context())
	health["workers"] = s.pool.GetMetrics()
	resp.Success(c.Writer, health)
}
