package service

import (
	"context"
	"testing"
	"time"

	"crm-service/internal/model"
	"crm-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestPercentages(t *testing.T) {
	assert.Equal(t, 0, TaskProgress(0, 0))
	assert.Equal(t, 33, TaskProgress(1, 3))
	assert.Equal(t, 67, TaskProgress(2, 3))
	assert.Equal(t, 100, TaskProgress(2, 2))

	assert.Equal(t, 0, FinancialProgress(500, 0))
	assert.Equal(t, 0, FinancialProgress(500, -10))
	assert.Equal(t, 0, FinancialProgress(-200, 1000))
	assert.Equal(t, 150, FinancialProgress(1500, 1000), "overpayment is not clamped")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		progress  int
		financial int
		overdue   int
		want      HealthStatus
	}{
		{"overdue wins", 100, 100, 1, HealthNeedsAttention},
		{"payments lag delivery", 80, 39, 0, HealthNeedsAttention},
		{"payments exactly half", 80, 40, 0, HealthGood},
		{"progress at 50 not checked", 50, 0, 0, HealthGood},
		{"delivery lags payments", 10, 41, 0, HealthAtRisk},
		{"delivery lag of exactly 30", 10, 40, 0, HealthGood},
		{"no tasks no money", 0, 0, 0, HealthGood},
		{"odd progress half", 51, 25, 0, HealthNeedsAttention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.progress, tt.financial, tt.overdue))
		})
	}
}

func TestScoreProject(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	earlierToday := time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC)

	t.Run("no tasks", func(t *testing.T) {
		h := ScoreProject(model.Project{ID: "p1", Budget: 1000}, nil, now)
		assert.Equal(t, 0, h.Progress)
		assert.Equal(t, 0, h.OverdueTasks)
		assert.Equal(t, HealthGood, h.HealthStatus)
	})

	t.Run("fully delivered and paid", func(t *testing.T) {
		tasks := []model.Task{
			{Status: model.TaskStatusCompleted},
			{Status: model.TaskStatusCompleted},
		}
		h := ScoreProject(model.Project{Budget: 1000, AmountPaid: 1000}, tasks, now)
		assert.Equal(t, 100, h.Progress)
		assert.Equal(t, 100, h.FinancialProgress)
		assert.Equal(t, HealthGood, h.HealthStatus)
	})

	t.Run("all tasks overdue and unpaid", func(t *testing.T) {
		tasks := []model.Task{
			{Status: model.TaskStatusTodo, DueDate: ptrTime(yesterday)},
			{Status: model.TaskStatusInProgress, DueDate: ptrTime(yesterday)},
			{Status: model.TaskStatusTodo, DueDate: ptrTime(now.AddDate(0, 0, -10))},
		}
		h := ScoreProject(model.Project{Budget: 10000}, tasks, now)
		assert.Equal(t, 3, h.OverdueTasks)
		assert.Equal(t, 0, h.FinancialProgress)
		assert.Equal(t, HealthNeedsAttention, h.HealthStatus)
	})

	t.Run("due today is not overdue", func(t *testing.T) {
		tasks := []model.Task{
			{Status: model.TaskStatusTodo, DueDate: ptrTime(earlierToday)},
			{Status: model.TaskStatusCompleted, DueDate: ptrTime(yesterday)},
		}
		h := ScoreProject(model.Project{}, tasks, now)
		assert.Equal(t, 0, h.OverdueTasks)
		assert.Equal(t, 50, h.Progress)
	})
}

func TestHealthReportOnlyInProgress(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	now := time.Now()

	active := &model.Project{ClientID: "c1", Name: "Site", Status: model.ProjectStatusInProgress, Budget: 10000}
	parked := &model.Project{ClientID: "c1", Name: "Later", Status: model.ProjectStatusOnHold}
	require.NoError(t, db.Create(active).Error)
	require.NoError(t, db.Create(parked).Error)

	past := now.AddDate(0, 0, -3)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&model.Task{ProjectID: active.ID, Title: "late", DueDate: &past}).Error)
	}

	report, err := HealthReport(ctx, db, now, model.ProjectStatusInProgress)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, active.ID, report[0].ProjectID)
	assert.Equal(t, 3, report[0].OverdueTasks)
	assert.Equal(t, HealthNeedsAttention, report[0].HealthStatus)

	one, err := ProjectHealthByID(ctx, db, parked.ID, now)
	require.NoError(t, err)
	assert.Equal(t, HealthGood, one.HealthStatus)

	_, err = ProjectHealthByID(ctx, db, "missing", now)
	assert.ErrorIs(t, err, ErrNotFound)
}
