package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crm-service/internal/service"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"
	"crm-service/pkg/mq"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reminderQueue = "crm.notification.email.q"

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Deliver reminder emails for published notification events",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger()
	if appConfig.MQ.URL == "" {
		return errors.New("MQ_URL is not configured")
	}

	db, err := openDB(appConfig, log)
	if err != nil {
		return err
	}
	defer database.Close()

	log.Info("Init consumer: " + reminderQueue)
	consumer, err := mq.NewConsumer(appConfig.MQ.URL, reminderQueue, mq.RoutingNotificationCreated, log)
	if err != nil {
		return fmt.Errorf("reminder consumer init failed: %w", err)
	}
	defer consumer.Close()
	consumer.SetHandler(reminderHandler(db, newEmailService(appConfig, log)))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Worker running")
	return consumer.StartConsuming(ctx)
}

// reminderHandler emails the reminder for a notification.created event.
// Events for deleted notifications are dropped.
func reminderHandler(db *gorm.DB, sender service.ReminderSender) mq.MessageHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		log := logger.FromCtx(ctx)

		var event service.NotificationEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Error("Dropping malformed event", zap.Error(err))
			return nil
		}
		if !event.Remind {
			return nil
		}

		err := service.SendReminderFor(ctx, db, sender, event.NotificationID)
		if errors.Is(err, service.ErrNotFound) {
			log.Warn("Notification gone, skipping reminder", zap.String("notification_id", event.NotificationID))
			return nil
		}
		if err != nil {
			return err
		}

		log.Info("Expiry reminder sent",
			zap.String("notification_id", event.NotificationID),
			zap.String("client_id", event.ClientID))
		return nil
	}
}
