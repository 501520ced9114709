package cli

import (
	"fmt"

	"crm-service/internal/service"
	"crm-service/pkg/config"
	"crm-service/pkg/database"
	"crm-service/pkg/dedup"
	"crm-service/pkg/mailer"
	"crm-service/pkg/mq"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// infra holds the optional connections shared by the long-running commands
type infra struct {
	redis     *redis.Client
	publisher *mq.Publisher
}

func (i *infra) Close() {
	if i.publisher != nil {
		i.publisher.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
}

func openDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established",
		zap.String("host", cfg.DB.Host),
		zap.String("database", cfg.DB.DBName))
	return db, nil
}

// connectInfra dials Redis and RabbitMQ when configured. A broker that cannot
// be reached is logged and skipped.
func connectInfra(cfg *config.Config, log *zap.Logger) *infra {
	i := &infra{redis: dedup.NewRedisClient(cfg.Redis)}
	if i.redis != nil {
		log.Info("Redis dedup enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.MQ.URL != "" {
		pub, err := mq.NewPublisher(cfg.MQ.URL, cfg.ServiceName)
		if err != nil {
			log.Warn("Event publishing disabled", zap.Error(err))
		} else {
			i.publisher = pub
			log.Info("Event publishing enabled", zap.String("exchange", mq.ExchangeName))
		}
	}
	return i
}

func newEmailService(cfg *config.Config, log *zap.Logger) *service.EmailService {
	sender := mailer.NewSender(cfg.SMTP, log)
	from := mailer.Address{Name: cfg.SMTP.FromName, Email: cfg.SMTP.From}
	return service.NewEmailService(sender, from, log)
}

// newScanner wires the scanner. With a publisher the reminder emails are
// left to the worker; the email service sends them when publishing fails.
func newScanner(db *gorm.DB, cfg *config.Config, i *infra, emails *service.EmailService, log *zap.Logger) *service.ExpiryScanner {
	opts := []service.ScannerOption{service.WithWindow(cfg.Scan.WindowDays)}
	if i.redis != nil {
		opts = append(opts, service.WithClaimer(dedup.NewDeduper(i.redis, cfg.Scan.DedupTTL, log)))
	}
	if i.publisher != nil {
		opts = append(opts, service.WithPublisher(i.publisher))
	}
	opts = append(opts, service.WithReminders(emails))
	return service.NewExpiryScanner(db, log, opts...)
}
