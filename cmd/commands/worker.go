package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ncobase/spacearc/config"
	"github.com/ncobase/spacearc/logging/logger"
	"github.com/ncobase/spacearc/server"
)

// NewWorkerCommand runs a worker process without the HTTP API. Any number of
// workers can point at the same database; the claim query keeps them from
// stepping on each other.
func NewWorkerCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a background worker process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func runWorker(configPath string) error {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartWorkers(ctx)
	log.Info(ctx, "worker process started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(context.Background(), "shutting down worker")
	cancel()

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cleanupCancel()
	srv.Cleanup(cleanupCtx)

	time.Sleep(100 * time.Millisecond) // let final log lines flush
	log.Info(context.Background(), "worker exited")
	return nil
}
