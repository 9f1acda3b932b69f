// Package cmd implements the command-line interface for the content
// publishing service.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "gopost",
		Short: "AI-assisted social content publishing service",
		Long: `gopost runs the content publishing lifecycle: quota-gated intake,
AI caption generation, human approval with a bounded regenerate loop,
multi-platform publishing and recycling of aged content.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment overrides are visible to config loading.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("gopost version %s\n", Version)
		},
	})

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(recycleCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(resetCountersCmd())
}
