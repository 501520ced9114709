package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm-service/internal/model"
	"crm-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQueries struct {
	clients        int64
	projects       int64
	tasks          int64
	expiring       int64
	recentClients  []model.Client
	recentProjects []model.Project
	failing        map[string]bool
}

var errQuery = errors.New("query failed")

func (f *fakeQueries) err(name string) error {
	if f.failing[name] {
		return errQuery
	}
	return nil
}

func (f *fakeQueries) CountClients(ctx context.Context) (int64, error) {
	return f.clients, f.err("clients")
}

func (f *fakeQueries) CountActiveProjects(ctx context.Context) (int64, error) {
	return f.projects, f.err("projects")
}

func (f *fakeQueries) CountTasksDue(ctx context.Context, from, to time.Time) (int64, error) {
	return f.tasks, f.err("tasks")
}

func (f *fakeQueries) CountExpiringServices(ctx context.Context, from, to time.Time) (int64, error) {
	return f.expiring, f.err("expiring")
}

func (f *fakeQueries) RecentClients(ctx context.Context, limit int) ([]model.Client, error) {
	if err := f.err("recentClients"); err != nil {
		return nil, err
	}
	return f.recentClients, nil
}

func (f *fakeQueries) RecentProjects(ctx context.Context, limit int) ([]model.Project, error) {
	if err := f.err("recentProjects"); err != nil {
		return nil, err
	}
	return f.recentProjects, nil
}

func TestDashboardStatsFallsBackPerSlot(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	q := &fakeQueries{
		clients:  12,
		projects: 4,
		tasks:    7,
		expiring: 2,
		recentProjects: []model.Project{
			{ID: "p1", Name: "Shop", CreatedAt: base},
		},
		failing: map[string]bool{"projects": true, "recentClients": true},
	}

	stats := NewDashboard(q, zap.NewNop(), 30).Stats(context.Background())

	assert.Equal(t, int64(12), stats.TotalClients)
	assert.Equal(t, int64(0), stats.ActiveProjects)
	assert.Equal(t, int64(7), stats.TasksDueThisWeek)
	assert.Equal(t, int64(2), stats.ExpiringServices)
	require.Len(t, stats.RecentActivity, 1)
	assert.Equal(t, "p1", stats.RecentActivity[0].ID)
}

func TestDashboardStatsAllQueriesFail(t *testing.T) {
	q := &fakeQueries{failing: map[string]bool{
		"clients": true, "projects": true, "tasks": true,
		"expiring": true, "recentClients": true, "recentProjects": true,
	}}

	stats := NewDashboard(q, nil, 30).Stats(context.Background())

	assert.Zero(t, stats.TotalClients)
	assert.Zero(t, stats.ActiveProjects)
	assert.Zero(t, stats.TasksDueThisWeek)
	assert.Zero(t, stats.ExpiringServices)
	assert.NotNil(t, stats.RecentActivity)
	assert.Empty(t, stats.RecentActivity)
}

func TestMergeActivity(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	clients := []model.Client{
		{ID: "c1", CreatedAt: at(1)},
		{ID: "c2", CreatedAt: at(5)},
		{ID: "c3", CreatedAt: at(3)},
	}
	projects := []model.Project{
		{ID: "p1", CreatedAt: at(6)},
		{ID: "p2", CreatedAt: at(2)},
		{ID: "p3", CreatedAt: at(4)},
	}

	items := MergeActivity(clients, projects, 5)
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	assert.Equal(t, []string{"p1", "c2", "p3", "c3", "p2"}, ids)
	assert.Equal(t, ActivityProject, items[0].Type)
	assert.Equal(t, ActivityClient, items[1].Type)
}

func TestGormDashboardQueries(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	now := time.Now()

	soon := now.AddDate(0, 0, 10)
	far := now.AddDate(0, 0, 90)
	require.NoError(t, db.Create(&model.Client{Name: "Acme", Email: "acme@example.com", DomainExpiryDate: &soon}).Error)
	require.NoError(t, db.Create(&model.Client{Name: "Globex", Email: "globex@example.com", HostingExpiryDate: &far}).Error)

	p := &model.Project{ClientID: "c", Name: "Site", Status: model.ProjectStatusInProgress}
	require.NoError(t, db.Create(p).Error)
	require.NoError(t, db.Create(&model.Project{ClientID: "c", Name: "Idea"}).Error)

	inThreeDays := StartOfDay(now).AddDate(0, 0, 3)
	nextMonth := now.AddDate(0, 1, 0)
	require.NoError(t, db.Create(&model.Task{ProjectID: p.ID, Title: "due", DueDate: &inThreeDays}).Error)
	require.NoError(t, db.Create(&model.Task{ProjectID: p.ID, Title: "done", Status: model.TaskStatusCompleted, DueDate: &inThreeDays}).Error)
	require.NoError(t, db.Create(&model.Task{ProjectID: p.ID, Title: "later", DueDate: &nextMonth}).Error)

	stats := NewDashboard(NewGormDashboardQueries(db), zap.NewNop(), 30).Stats(ctx)

	assert.Equal(t, int64(2), stats.TotalClients)
	assert.Equal(t, int64(1), stats.ActiveProjects)
	assert.Equal(t, int64(1), stats.TasksDueThisWeek)
	assert.Equal(t, int64(1), stats.ExpiringServices)
	assert.Len(t, stats.RecentActivity, 4)
}

func TestCountExpiringServicesCountsEachService(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Now()

	soon := now.AddDate(0, 0, 5)
	past := now.AddDate(0, 0, -1)
	require.NoError(t, db.Create(&model.Client{Name: "Acme", Email: "acme@example.com", DomainExpiryDate: &soon, HostingExpiryDate: &soon}).Error)
	require.NoError(t, db.Create(&model.Client{Name: "Globex", Email: "globex@example.com", DomainExpiryDate: &past, HostingExpiryDate: &soon}).Error)

	n, err := NewGormDashboardQueries(db).CountExpiringServices(context.Background(), now, now.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
