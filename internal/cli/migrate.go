package cli

import (
	"crm-service/internal/model"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger()
		if _, err := openDB(appConfig, log); err != nil {
			return err
		}
		defer database.Close()

		if err := database.MigrateModels(model.All()...); err != nil {
			return err
		}
		log.Info("Database migrated")
		return nil
	},
}
