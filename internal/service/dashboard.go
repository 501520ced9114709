package service

import (
	"context"
	"sort"
	"time"

	"crm-service/internal/model"
	"crm-service/prometheus"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const recentActivityLimit = 5

// Activity kinds
const (
	ActivityClient  = "client"
	ActivityProject = "project"
)

// ActivityItem is one entry of the recent activity feed
type ActivityItem struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// DashboardStats is the aggregate shown on the staff dashboard
type DashboardStats struct {
	TotalClients     int64          `json:"totalClients"`
	ActiveProjects   int64          `json:"activeProjects"`
	TasksDueThisWeek int64          `json:"tasksDueThisWeek"`
	ExpiringServices int64          `json:"expiringServices"`
	RecentActivity   []ActivityItem `json:"recentActivity"`
}

// DashboardQueries are the independent reads behind DashboardStats
type DashboardQueries interface {
	CountClients(ctx context.Context) (int64, error)
	CountActiveProjects(ctx context.Context) (int64, error)
	CountTasksDue(ctx context.Context, from, to time.Time) (int64, error)
	CountExpiringServices(ctx context.Context, from, to time.Time) (int64, error)
	RecentClients(ctx context.Context, limit int) ([]model.Client, error)
	RecentProjects(ctx context.Context, limit int) ([]model.Project, error)
}

// GormDashboardQueries implements DashboardQueries with gorm
type GormDashboardQueries struct {
	db *gorm.DB
}

// NewGormDashboardQueries wraps db
func NewGormDashboardQueries(db *gorm.DB) *GormDashboardQueries {
	return &GormDashboardQueries{db: db}
}

func (q *GormDashboardQueries) CountClients(ctx context.Context) (int64, error) {
	defer prometheus.TrackDBOperation("dashboard_count_clients")(time.Now())
	var n int64
	err := q.db.WithContext(ctx).Model(&model.Client{}).Count(&n).Error
	return n, err
}

func (q *GormDashboardQueries) CountActiveProjects(ctx context.Context) (int64, error) {
	defer prometheus.TrackDBOperation("dashboard_count_projects")(time.Now())
	var n int64
	err := q.db.WithContext(ctx).Model(&model.Project{}).
		Where("status = ?", model.ProjectStatusInProgress).
		Count(&n).Error
	return n, err
}

func (q *GormDashboardQueries) CountTasksDue(ctx context.Context, from, to time.Time) (int64, error) {
	defer prometheus.TrackDBOperation("dashboard_count_tasks")(time.Now())
	var n int64
	err := q.db.WithContext(ctx).Model(&model.Task{}).
		Where("status <> ?", model.TaskStatusCompleted).
		Where("due_date >= ? AND due_date < ?", from, to).
		Count(&n).Error
	return n, err
}

// CountExpiringServices counts domain and hosting services separately, so a
// client with both expiring counts twice.
func (q *GormDashboardQueries) CountExpiringServices(ctx context.Context, from, to time.Time) (int64, error) {
	defer prometheus.TrackDBOperation("dashboard_count_expiring")(time.Now())
	var total int64
	for _, column := range []string{"domain_expiry_date", "hosting_expiry_date"} {
		var n int64
		err := q.db.WithContext(ctx).Model(&model.Client{}).
			Where(column+" >= ? AND "+column+" <= ?", from, to).
			Count(&n).Error
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (q *GormDashboardQueries) RecentClients(ctx context.Context, limit int) ([]model.Client, error) {
	var clients []model.Client
	err := q.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&clients).Error
	return clients, err
}

func (q *GormDashboardQueries) RecentProjects(ctx context.Context, limit int) ([]model.Project, error) {
	var projects []model.Project
	err := q.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&projects).Error
	return projects, err
}

// Dashboard runs the dashboard queries concurrently. A failing query is
// logged and its slot keeps the zero value; Stats never fails.
type Dashboard struct {
	queries    DashboardQueries
	logger     *zap.Logger
	windowDays int
	now        func() time.Time
}

// NewDashboard creates the aggregator. windowDays bounds "expiring services".
func NewDashboard(queries DashboardQueries, logger *zap.Logger, windowDays int) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		queries:    queries,
		logger:     logger,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// Stats collects every dashboard metric
func (d *Dashboard) Stats(ctx context.Context) DashboardStats {
	now := d.now()
	today := StartOfDay(now)

	stats := DashboardStats{RecentActivity: []ActivityItem{}}
	var (
		clients  []model.Client
		projects []model.Project
	)

	var g errgroup.Group
	g.Go(func() error {
		n, err := d.queries.CountClients(ctx)
		stats.TotalClients = d.settle("total_clients", n, err)
		return nil
	})
	g.Go(func() error {
		n, err := d.queries.CountActiveProjects(ctx)
		stats.ActiveProjects = d.settle("active_projects", n, err)
		return nil
	})
	g.Go(func() error {
		n, err := d.queries.CountTasksDue(ctx, today, today.AddDate(0, 0, 7))
		stats.TasksDueThisWeek = d.settle("tasks_due_this_week", n, err)
		return nil
	})
	g.Go(func() error {
		n, err := d.queries.CountExpiringServices(ctx, now, now.AddDate(0, 0, d.windowDays))
		stats.ExpiringServices = d.settle("expiring_services", n, err)
		return nil
	})
	g.Go(func() error {
		c, err := d.queries.RecentClients(ctx, recentActivityLimit)
		if err != nil {
			d.fail("recent_clients", err)
			return nil
		}
		clients = c
		return nil
	})
	g.Go(func() error {
		p, err := d.queries.RecentProjects(ctx, recentActivityLimit)
		if err != nil {
			d.fail("recent_projects", err)
			return nil
		}
		projects = p
		return nil
	})
	_ = g.Wait()

	stats.RecentActivity = MergeActivity(clients, projects, recentActivityLimit)
	return stats
}

func (d *Dashboard) settle(query string, n int64, err error) int64 {
	if err != nil {
		d.fail(query, err)
		return 0
	}
	return n
}

func (d *Dashboard) fail(query string, err error) {
	prometheus.RecordDashboardFailure(query)
	d.logger.Warn("Dashboard query failed, using fallback",
		zap.String("query", query),
		zap.Error(err),
	)
}

// MergeActivity interleaves clients and projects newest first and keeps limit items
func MergeActivity(clients []model.Client, projects []model.Project, limit int) []ActivityItem {
	items := make([]ActivityItem, 0, len(clients)+len(projects))
	for _, c := range clients {
		items = append(items, ActivityItem{
			Type:      ActivityClient,
			ID:        c.ID,
			Title:     c.Name,
			Status:    c.Status,
			CreatedAt: c.CreatedAt,
		})
	}
	for _, p := range projects {
		items = append(items, ActivityItem{
			Type:      ActivityProject,
			ID:        p.ID,
			Title:     p.Name,
			Status:    p.Status,
			CreatedAt: p.CreatedAt,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// StartOfDay truncates t to local midnight
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
