package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ncobase/spacearc/config"
	"github.com/ncobase/spacearc/logging/logger"
	"github.com/ncobase/spacearc/server"
)

const shutdownGrace = 30 * time.Second

// NewServeCommand runs the HTTP API with the embedded background workers.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cleanup, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer cleanup()
	log := logger.StdLogger()

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	router := srv.SetupRouter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartBackground(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info(context.Background(), "starting server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(context.Background(), "server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(context.Background(), "shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(context.Background(), "server forced to shutdown", "error", err)
	}

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cleanupCancel()
	srv.Cleanup(cleanupCtx)

	log.Info(context.Background(), "server exited")
	return nil
}
