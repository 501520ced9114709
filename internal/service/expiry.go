package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"crm-service/internal/model"
	"crm-service/pkg/mq"
	"crm-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultExpiryWindowDays is the look-ahead of an expiry scan
const DefaultExpiryWindowDays = 30

const dedupScope = "expiry"

// Scan triggers
const (
	TriggerAPI = "api"
	TriggerCLI = "cli"
)

// Claimer grants a short-lived exclusive claim on a key
type Claimer interface {
	AcquireOnce(ctx context.Context, scope, id string) bool
	Release(ctx context.Context, scope, id string)
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// ReminderSender emails a client about an expiring service
type ReminderSender interface {
	SendExpiryReminder(ctx context.Context, client *model.Client, n *model.Notification) error
}

// NotificationEvent is the payload of a notification.created event
type NotificationEvent struct {
	NotificationID  string    `json:"notificationId"`
	ClientID        string    `json:"clientId"`
	Type            string    `json:"type"`
	DaysUntilExpiry int       `json:"daysUntilExpiry"`
	ExpiryDate      time.Time `json:"expiryDate"`
	// Remind asks the worker to email the client
	Remind bool `json:"remind"`
}

// DueService is one hosting or domain service inside the scan window
type DueService struct {
	Type            string
	Name            string
	Provider        string
	ExpiryDate      time.Time
	DaysUntilExpiry int
}

// DaysUntil returns ceil((expiry - now) / 24h)
func DaysUntil(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

// DueServices lists the client's services expiring within [0, windowDays] days
func DueServices(c *model.Client, now time.Time, windowDays int) []DueService {
	var due []DueService
	if c.DomainExpiryDate != nil {
		if d := DaysUntil(*c.DomainExpiryDate, now); d >= 0 && d <= windowDays {
			due = append(due, DueService{
				Type:            model.NotificationDomainExpiry,
				Name:            c.DomainName,
				Provider:        c.DomainProvider,
				ExpiryDate:      *c.DomainExpiryDate,
				DaysUntilExpiry: d,
			})
		}
	}
	if c.HostingExpiryDate != nil {
		if d := DaysUntil(*c.HostingExpiryDate, now); d >= 0 && d <= windowDays {
			due = append(due, DueService{
				Type:            model.NotificationHostingExpiry,
				Name:            c.HostingProvider,
				Provider:        c.HostingProvider,
				ExpiryDate:      *c.HostingExpiryDate,
				DaysUntilExpiry: d,
			})
		}
	}
	return due
}

// DedupKey identifies one expiry of one service of one client
func DedupKey(clientID, notificationType string, expiry time.Time) string {
	return fmt.Sprintf("%s:%s:%s", clientID, notificationType, expiry.UTC().Format("2006-01-02"))
}

// ScanOptions controls one scan invocation
type ScanOptions struct {
	Notify  bool
	Trigger string
}

// ScanResult summarises one scan
type ScanResult struct {
	Checked       int                  `json:"checked"`
	Created       int                  `json:"created"`
	Skipped       int                  `json:"skipped"`
	EmailsSent    int                  `json:"emailsSent"`
	EmailsFailed  int                  `json:"emailsFailed"`
	EmailsQueued  int                  `json:"emailsQueued"`
	Notifications []model.Notification `json:"notifications"`
}

// ExpiryScanner turns soon-expiring services into notifications. Each Scan
// is a one-shot pass; scheduling is left to the caller.
type ExpiryScanner struct {
	db         *gorm.DB
	logger     *zap.Logger
	claimer    Claimer
	publisher  EventPublisher
	reminders  ReminderSender
	windowDays int
	now        func() time.Time
}

// ScannerOption configures an ExpiryScanner
type ScannerOption func(*ExpiryScanner)

// WithClaimer guards scans with a distributed claim
func WithClaimer(c Claimer) ScannerOption {
	return func(s *ExpiryScanner) { s.claimer = c }
}

// WithPublisher publishes every created notification. Reminders of scans run
// with Notify are queued for the worker instead of being sent inline.
func WithPublisher(p EventPublisher) ScannerOption {
	return func(s *ExpiryScanner) { s.publisher = p }
}

// WithReminders sends reminder emails inline for scans run with Notify, and
// covers reminders the publisher could not queue
func WithReminders(r ReminderSender) ScannerOption {
	return func(s *ExpiryScanner) { s.reminders = r }
}

// WithWindow sets the look-ahead in days
func WithWindow(days int) ScannerOption {
	return func(s *ExpiryScanner) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithClock overrides the current time source
func WithClock(now func() time.Time) ScannerOption {
	return func(s *ExpiryScanner) { s.now = now }
}

// NewExpiryScanner creates a scanner over db
func NewExpiryScanner(db *gorm.DB, logger *zap.Logger, opts ...ScannerOption) *ExpiryScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExpiryScanner{
		db:         db,
		logger:     logger,
		windowDays: DefaultExpiryWindowDays,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan checks every client with a hosting or domain expiry date. A service
// already covered by an unread notification with the same key is skipped.
func (s *ExpiryScanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	if opts.Trigger == "" {
		opts.Trigger = TriggerAPI
	}
	prometheus.RecordExpiryScan(opts.Trigger)

	now := s.now()
	result := &ScanResult{Notifications: []model.Notification{}}

	var clients []model.Client
	err := s.db.WithContext(ctx).
		Where("domain_expiry_date IS NOT NULL OR hosting_expiry_date IS NOT NULL").
		Find(&clients).Error
	if err != nil {
		return nil, fmt.Errorf("loading clients: %w", err)
	}

	for i := range clients {
		client := &clients[i]
		result.Checked++

		for _, svc := range DueServices(client, now, s.windowDays) {
			n, err := s.notifyOnce(ctx, client, svc)
			if err != nil {
				return result, err
			}
			if n == nil {
				result.Skipped++
				prometheus.RecordExpiryNotification(svc.Type, "skipped")
				continue
			}

			result.Created++
			result.Notifications = append(result.Notifications, *n)
			prometheus.RecordExpiryNotification(svc.Type, "created")
			queue := opts.Notify && s.publisher != nil
			queued := s.publish(ctx, n, queue)
			if !opts.Notify {
				continue
			}
			if queue && queued {
				result.EmailsQueued++
				continue
			}
			// broker missing or unreachable: send inline
			s.remind(ctx, client, n, result)
		}
	}

	s.logger.Info("Expiry scan finished",
		zap.String("trigger", opts.Trigger),
		zap.Int("checked", result.Checked),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("emails_sent", result.EmailsSent),
		zap.Int("emails_failed", result.EmailsFailed),
		zap.Int("emails_queued", result.EmailsQueued),
	)
	return result, nil
}

// notifyOnce creates the notification for svc, or returns nil when one is
// already pending for the same key.
func (s *ExpiryScanner) notifyOnce(ctx context.Context, client *model.Client, svc DueService) (*model.Notification, error) {
	key := DedupKey(client.ID, svc.Type, svc.ExpiryDate)

	if s.claimer != nil && !s.claimer.AcquireOnce(ctx, dedupScope, key) {
		return nil, nil
	}

	var pending int64
	err := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("dedup_key = ? AND is_read = ?", key, false).
		Count(&pending).Error
	if err != nil {
		s.release(ctx, key)
		return nil, fmt.Errorf("checking pending notifications: %w", err)
	}
	if pending > 0 {
		return nil, nil
	}

	expiry := svc.ExpiryDate
	n := &model.Notification{
		ClientID:        client.ID,
		Type:            svc.Type,
		Title:           expiryTitle(svc),
		Message:         expiryMessage(client, svc),
		DaysUntilExpiry: svc.DaysUntilExpiry,
		ExpiryDate:      &expiry,
		DedupKey:        key,
	}

	defer prometheus.TrackDBOperation("create_notification")(time.Now())
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		s.release(ctx, key)
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return n, nil
}

func (s *ExpiryScanner) remind(ctx context.Context, client *model.Client, n *model.Notification, result *ScanResult) {
	if s.reminders == nil {
		result.EmailsFailed++
		s.logger.Error("Expiry reminder lost, no sender available",
			zap.String("client_id", client.ID),
			zap.String("notification_id", n.ID),
		)
		return
	}
	if err := s.reminders.SendExpiryReminder(ctx, client, n); err != nil {
		result.EmailsFailed++
		s.logger.Warn("Expiry reminder failed",
			zap.String("client_id", client.ID),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		return
	}
	result.EmailsSent++
}

func (s *ExpiryScanner) release(ctx context.Context, key string) {
	if s.claimer != nil {
		s.claimer.Release(ctx, dedupScope, key)
	}
}

func (s *ExpiryScanner) publish(ctx context.Context, n *model.Notification, remind bool) bool {
	if s.publisher == nil {
		return false
	}
	event := NotificationEvent{
		NotificationID:  n.ID,
		ClientID:        n.ClientID,
		Type:            n.Type,
		DaysUntilExpiry: n.DaysUntilExpiry,
		Remind:          remind,
	}
	if n.ExpiryDate != nil {
		event.ExpiryDate = *n.ExpiryDate
	}
	if err := s.publisher.Publish(ctx, mq.RoutingNotificationCreated, event); err != nil {
		s.logger.Warn("Failed to publish notification event",
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
		return false
	}
	return true
}

// SendReminderFor loads the notification and its client and emails the
// reminder. Used by the background worker.
func SendReminderFor(ctx context.Context, db *gorm.DB, sender ReminderSender, notificationID string) error {
	var n model.Notification
	if err := db.WithContext(ctx).First(&n, "id = ?", notificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if n.IsRead {
		return nil
	}

	var c model.Client
	if err := db.WithContext(ctx).First(&c, "id = ?", n.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return sender.SendExpiryReminder(ctx, &c, &n)
}

func serviceLabel(notificationType string) string {
	if notificationType == model.NotificationDomainExpiry {
		return "Domain"
	}
	return "Hosting"
}

func expiryTitle(svc DueService) string {
	return fmt.Sprintf("%s expiring soon", serviceLabel(svc.Type))
}

func expiryMessage(c *model.Client, svc DueService) string {
	what := serviceLabel(svc.Type)
	if svc.Name != "" {
		what = fmt.Sprintf("%s %s", what, svc.Name)
	}
	when := fmt.Sprintf("in %d days", svc.DaysUntilExpiry)
	switch svc.DaysUntilExpiry {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	}
	return fmt.Sprintf("%s for %s expires %s (%s)", what, c.Name, when, svc.ExpiryDate.Format("2006-01-02"))
}
