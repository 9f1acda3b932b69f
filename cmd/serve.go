package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/gopost/internal/app"
)

// serveCmd runs the full service: HTTP API, job worker and recycling
// scheduler in one process.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with background processing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(app.Options{ConfigPath: cfgFile, Version: Version})
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Run(cmd.Context())
		},
	}
}

// workerCmd runs only the background processing, for deployments that scale
// the API and the workers separately.
func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the job worker and recycling scheduler without the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(app.Options{ConfigPath: cfgFile, Version: Version})
			if err != nil {
				return err
			}
			defer a.Close()

			return a.RunWorker(cmd.Context())
		},
	}
}
