package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm-service/internal/model"
	"crm-service/internal/testutil"
	"crm-service/pkg/mq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var scanNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return scanNow }

func inDays(d int) *time.Time {
	t := scanNow.AddDate(0, 0, d)
	return &t
}

func createClient(t *testing.T, db *gorm.DB, c *model.Client) *model.Client {
	t.Helper()
	if c.Name == "" {
		c.Name = "Client " + c.Email
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []NotificationEvent
	keys   []string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.events = append(p.events, payload.(NotificationEvent))
	return nil
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.calls++
	return errors.New("broker unreachable")
}

type fakeReminders struct {
	failFor map[string]bool
	sent    []string
}

func (f *fakeReminders) SendExpiryReminder(ctx context.Context, c *model.Client, n *model.Notification) error {
	if f.failFor[c.Email] {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, c.Email+"/"+n.Type)
	return nil
}

type denyClaimer struct{ released int }

func (d *denyClaimer) AcquireOnce(ctx context.Context, scope, id string) bool { return false }
func (d *denyClaimer) Release(ctx context.Context, scope, id string) { d.released++ }

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 5, DaysUntil(scanNow.AddDate(0, 0, 5), scanNow))
	assert.Equal(t, 1, DaysUntil(scanNow.Add(time.Hour), scanNow))
	assert.Equal(t, 0, DaysUntil(scanNow, scanNow))
	assert.Equal(t, 0, DaysUntil(scanNow.Add(-time.Hour), scanNow))
	assert.Equal(t, -1, DaysUntil(scanNow.Add(-25*time.Hour), scanNow))
	assert.Equal(t, 31, DaysUntil(scanNow.Add(30*24*time.Hour+time.Minute), scanNow))
}

func TestDueServicesWindow(t *testing.T) {
	tests := []struct {
		name   string
		expiry *time.Time
		want   bool
	}{
		{"today", inDays(0), true},
		{"in five days", inDays(5), true},
		{"last day of window", inDays(30), true},
		{"past window", inDays(31), false},
		{"already expired", inDays(-2), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &model.Client{ID: "c1", DomainExpiryDate: tt.expiry}
			due := DueServices(c, scanNow, 30)
			assert.Equal(t, tt.want, len(due) == 1)
		})
	}

	both := &model.Client{ID: "c2", DomainExpiryDate: inDays(3), HostingExpiryDate: inDays(10)}
	due := DueServices(both, scanNow, 30)
	require.Len(t, due, 2)
	assert.Equal(t, model.NotificationDomainExpiry, due[0].Type)
	assert.Equal(t, model.NotificationHostingExpiry, due[1].Type)
	assert.Equal(t, 10, due[1].DaysUntilExpiry)
}

func TestDedupKey(t *testing.T) {
	expiry := time.Date(2026, 11, 2, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "c1:domain-expiry:2026-11-02", DedupKey("c1", model.NotificationDomainExpiry, expiry))
}

func TestScanCreatesDomainNotification(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	client := createClient(t, db, &model.Client{Email: "acme@example.com", DomainName: "acme.test", DomainExpiryDate: inDays(5)})

	pub := &recordingPublisher{}
	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock), WithPublisher(pub))

	res, err := s.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, res.Created)

	var stored []model.Notification
	require.NoError(t, db.Where("client_id = ?", client.ID).Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, model.NotificationDomainExpiry, stored[0].Type)
	assert.Equal(t, 5, stored[0].DaysUntilExpiry)
	assert.False(t, stored[0].IsRead)
	assert.Contains(t, stored[0].Message, "acme.test")

	require.Len(t, pub.events, 1)
	assert.Equal(t, mq.RoutingNotificationCreated, pub.keys[0])
	assert.Equal(t, stored[0].ID, pub.events[0].NotificationID)
	assert.False(t, pub.events[0].Remind)
}

func TestScanQueuesRemindersThroughPublisher(t *testing.T) {
	db := testutil.NewDB(t)
	createClient(t, db, &model.Client{Email: "acme@example.com", HostingProvider: "Host Co", HostingExpiryDate: inDays(10)})

	pub := &recordingPublisher{}
	reminders := &fakeReminders{}
	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock), WithPublisher(pub), WithReminders(reminders))

	res, err := s.Scan(context.Background(), ScanOptions{Notify: true, Trigger: TriggerCLI})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EmailsQueued)
	assert.Zero(t, res.EmailsSent)
	assert.Empty(t, reminders.sent)
	require.Len(t, pub.events, 1)
	assert.True(t, pub.events[0].Remind)
	assert.Equal(t, model.NotificationHostingExpiry, pub.events[0].Type)
}

func TestScanSendsInlineWhenPublishFails(t *testing.T) {
	db := testutil.NewDB(t)
	createClient(t, db, &model.Client{Email: "acme@example.com", DomainName: "acme.test", DomainExpiryDate: inDays(3)})

	pub := &failingPublisher{}
	reminders := &fakeReminders{}
	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock), WithPublisher(pub), WithReminders(reminders))

	res, err := s.Scan(context.Background(), ScanOptions{Notify: true})
	require.NoError(t, err)
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.EmailsSent)
	assert.Zero(t, res.EmailsQueued)
	assert.Equal(t, []string{"acme@example.com/" + model.NotificationDomainExpiry}, reminders.sent)
}

func TestScanCountsReminderFailedWhenPublishFailsWithoutSender(t *testing.T) {
	db := testutil.NewDB(t)
	createClient(t, db, &model.Client{Email: "acme@example.com", DomainName: "acme.test", DomainExpiryDate: inDays(3)})

	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock), WithPublisher(&failingPublisher{}))

	res, err := s.Scan(context.Background(), ScanOptions{Notify: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, res.Created, res.EmailsSent+res.EmailsFailed+res.EmailsQueued)
	assert.Equal(t, 1, res.EmailsFailed)
}

func TestScanIsIdempotentWhileUnread(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	createClient(t, db, &model.Client{Email: "a@example.com", DomainExpiryDate: inDays(5), HostingExpiryDate: inDays(20)})

	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock))

	first, err := s.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := s.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Skipped)

	var count int64
	require.NoError(t, db.Model(&model.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// once read, the same expiry may be announced again
	require.NoError(t, db.Model(&model.Notification{}).
		Where("type = ?", model.NotificationDomainExpiry).
		Update("is_read", true).Error)

	third, err := s.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, third.Created)
	assert.Equal(t, 1, third.Skipped)
}

func TestScanIgnoresServicesOutsideWindow(t *testing.T) {
	db := testutil.NewDB(t)
	createClient(t, db, &model.Client{Email: "expired@example.com", DomainExpiryDate: inDays(-3)})
	createClient(t, db, &model.Client{Email: "far@example.com", HostingExpiryDate: inDays(45)})
	createClient(t, db, &model.Client{Email: "none@example.com"})

	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock))
	res, err := s.Scan(context.Background(), ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 0, res.Created)
	assert.Empty(t, res.Notifications)

	wide := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock), WithWindow(60))
	res, err = wide.Scan(context.Background(), ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}

func TestScanNotifyContinuesAfterEmailFailure(t *testing.T) {
	db := testutil.NewDB(t)
	createClient(t, db, &model.Client{Email: "ok@example.com", DomainExpiryDate: inDays(2)})
	createClient(t, db, &model.Client{Email: "broken@example.com", HostingExpiryDate: inDays(3)})
	createClient(t, db, &model.Client{Email: "also-ok@example.com", HostingExpiryDate: inDays(4)})

	reminders := &fakeReminders{failFor: map[string]bool{"broken@example.com": true}}
	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock), WithReminders(reminders))

	res, err := s.Scan(context.Background(), ScanOptions{Notify: true, Trigger: TriggerCLI})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 2, res.EmailsSent)
	assert.Equal(t, 1, res.EmailsFailed)
	assert.Len(t, reminders.sent, 2)
}

func TestScanWithoutNotifySendsNothing(t *testing.T) {
	db := testutil.NewDB(t)
	createClient(t, db, &model.Client{Email: "ok@example.com", DomainExpiryDate: inDays(2)})

	reminders := &fakeReminders{}
	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock), WithReminders(reminders))

	res, err := s.Scan(context.Background(), ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Zero(t, res.EmailsSent)
	assert.Empty(t, reminders.sent)
}

func TestScanSkipsClaimedKeys(t *testing.T) {
	db := testutil.NewDB(t)
	createClient(t, db, &model.Client{Email: "a@example.com", DomainExpiryDate: inDays(5)})

	claimer := &denyClaimer{}
	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock), WithClaimer(claimer))

	res, err := s.Scan(context.Background(), ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, claimer.released)
}

func TestSendReminderFor(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	client := createClient(t, db, &model.Client{Email: "a@example.com", DomainExpiryDate: inDays(5)})

	s := NewExpiryScanner(db, zap.NewNop(), WithClock(fixedClock))
	res, err := s.Scan(ctx, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Notifications, 1)

	reminders := &fakeReminders{}
	require.NoError(t, SendReminderFor(ctx, db, reminders, res.Notifications[0].ID))
	assert.Equal(t, []string{client.Email + "/" + model.NotificationDomainExpiry}, reminders.sent)

	assert.ErrorIs(t, SendReminderFor(ctx, db, reminders, "missing"), ErrNotFound)
}
