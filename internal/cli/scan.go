package cli

import (
	"fmt"
	"time"

	"crm-service/internal/service"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanNotify bool

var scanCmd = &cobra.Command{
	Use:   "scan-expiry",
	Short: "Raise notifications for expiring hosting and domains",
	Long: `Run one expiry scan over every client and mark sent invoices past their
due date as overdue. Intended to be run daily from cron.

Examples:
  crm scan-expiry
  crm scan-expiry --notify`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanNotify, "notify", false, "Email a reminder for every new notification")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger()
	ctx := cmd.Context()

	db, err := openDB(appConfig, log)
	if err != nil {
		return err
	}
	defer database.Close()

	deps := connectInfra(appConfig, log)
	defer deps.Close()

	scanner := newScanner(db, appConfig, deps, newEmailService(appConfig, log), log)
	res, err := scanner.Scan(ctx, service.ScanOptions{Notify: scanNotify, Trigger: service.TriggerCLI})
	if err != nil {
		return fmt.Errorf("expiry scan failed: %w", err)
	}

	overdue, err := service.MarkOverdue(ctx, db, time.Now())
	if err != nil {
		log.Error("Failed to mark overdue invoices", zap.Error(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "checked %d clients: %d created, %d skipped", res.Checked, res.Created, res.Skipped)
	if scanNotify {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d emailed, %d failed, %d queued", res.EmailsSent, res.EmailsFailed, res.EmailsQueued)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "; %d invoices overdue\n", overdue)
	return nil
}
