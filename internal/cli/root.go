// Package cli holds the crm command tree.
package cli

import (
	"fmt"

	"crm-service/pkg/config"
	"crm-service/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	appConfig *config.Config
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "crm",
	Short: "CRM service for a small web agency",
	Long: `crm runs the CRM HTTP API and its maintenance jobs.

Run 'crm serve' to start the API, 'crm scan-expiry' from cron to
raise hosting and domain expiry notifications, and 'crm worker' to
deliver reminder emails published on the message queue.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		appConfig = cfg

		if err := logger.InitLogger(cfg); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.GetLogger().Debug("Command started", zap.String("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.GetLogger().Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(createUserCmd)
}
