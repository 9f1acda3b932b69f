package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/gopost/internal/app"
	"github.com/jonesrussell/gopost/internal/config"
	"github.com/jonesrussell/gopost/internal/database"
	"github.com/jonesrussell/gopost/internal/logger"
)

// recycleCmd runs one recycling sweep and exits, for manual or cron-external use.
func recycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recycle",
		Short: "Run a single recycling sweep and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(app.Options{ConfigPath: cfgFile, Version: Version})
			if err != nil {
				return err
			}
			defer a.Close()

			recycled, err := a.Sweeper().RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("recycled %d content item(s)\n", recycled)
			return nil
		},
	}
}

// resetCountersCmd zeroes every client's monthly post counter. Meant to run
// from an external scheduler at the start of each month.
func resetCountersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-counters",
		Short: "Reset all monthly post counters to zero",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(app.Options{ConfigPath: cfgFile, Version: Version})
			if err != nil {
				return err
			}
			defer a.Close()

			reset, err := a.Clients().ResetMonthlyCounters(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("reset monthly counters for %d client(s)\n", reset)
			return nil
		},
	}
}

// migrateCmd applies or rolls back database migrations without starting the
// rest of the service.
func migrateCmd() *cobra.Command {
	var (
		migrationsPath string
		down           bool
		steps          int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log, err := logger.NewLogger(cfg.Debug)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			dbCfg := database.Config{
				Host:     cfg.Database.Host,
				Port:     cfg.Database.Port,
				User:     cfg.Database.User,
				Password: cfg.Database.Password,
				DBName:   cfg.Database.DBName,
				SSLMode:  cfg.Database.SSLMode,
			}

			if down {
				return database.MigrateDown(dbCfg, migrationsPath, steps, log)
			}
			return database.RunMigrations(dbCfg, migrationsPath, log)
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "path", "migrations", "path to the migrations directory")
	cmd.Flags().BoolVar(&down, "down", false, "roll back instead of applying")
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back with --down")
	return cmd
}
