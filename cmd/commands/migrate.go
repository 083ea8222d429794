package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ncobase/spacearc/config"
	"github.com/ncobase/spacearc/data"
	_ "github.com/ncobase/spacearc/data/all" // register database drivers
	"github.com/ncobase/spacearc/job/data/repository"
)

// NewMigrateCommand ensures the jobs schema exists and exits. Serve and
// worker do the same on boot; this command is for running migrations from a
// deploy pipeline before traffic arrives.
func NewMigrateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func runMigrate(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	d, cleanup, err := data.New(cfg.Data)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer cleanup()

	dialect := ""
	if cfg.Data != nil && cfg.Data.Database != nil && cfg.Data.Database.Master != nil {
		dialect = cfg.Data.Database.Master.Driver
	}
	if _, err := repository.New(d.GetDB(), dialect); err != nil {
		return fmt.Errorf("migrate jobs schema: %w", err)
	}

	fmt.Println("jobs schema is up to date")
	return nil
}
