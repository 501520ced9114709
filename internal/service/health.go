package service

import (
	"context"
	"errors"
	"math"
	"time"

	"crm-service/internal/model"

	"gorm.io/gorm"
)

// HealthStatus classifies a project's delivery state
type HealthStatus string

const (
	HealthGood           HealthStatus = "good"
	HealthAtRisk         HealthStatus = "at-risk"
	HealthNeedsAttention HealthStatus = "needs-attention"
)

// ProjectHealth is the derived view of one project
type ProjectHealth struct {
	ProjectID         string       `json:"projectId"`
	ProjectName       string       `json:"projectName"`
	ClientID          string       `json:"clientId"`
	Status            string       `json:"status"`
	TotalTasks        int          `json:"totalTasks"`
	CompletedTasks    int          `json:"completedTasks"`
	OverdueTasks      int          `json:"overdueTasks"`
	Progress          int          `json:"progress"`
	FinancialProgress int          `json:"financialProgress"`
	Budget            float64      `json:"budget"`
	AmountPaid        float64      `json:"amountPaid"`
	HealthStatus      HealthStatus `json:"healthStatus"`
}

// percent returns round(part/whole*100), 0 when whole is not positive and
// never negative. Values above 100 are kept.
func percent(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	p := int(math.Round(part / whole * 100))
	if p < 0 {
		return 0
	}
	return p
}

// TaskProgress is the share of completed tasks as a whole percentage
func TaskProgress(completed, total int) int {
	return percent(float64(completed), float64(total))
}

// FinancialProgress is the share of the budget already paid
func FinancialProgress(paid, budget float64) int {
	return percent(paid, budget)
}

// Classify applies the health rules in order: overdue work or payments
// lagging far behind delivery need attention; delivery lagging payments by
// more than 30 points is at risk.
func Classify(progress, financial, overdue int) HealthStatus {
	if overdue > 0 || (progress > 50 && float64(financial) < float64(progress)/2) {
		return HealthNeedsAttention
	}
	if progress < financial-30 {
		return HealthAtRisk
	}
	return HealthGood
}

// ScoreProject computes the health of p from its tasks as of now
func ScoreProject(p model.Project, tasks []model.Task, now time.Time) ProjectHealth {
	h := ProjectHealth{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		ClientID:    p.ClientID,
		Status:      p.Status,
		TotalTasks:  len(tasks),
		Budget:      p.Budget,
		AmountPaid:  p.AmountPaid,
	}
	for i := range tasks {
		if tasks[i].IsCompleted() {
			h.CompletedTasks++
		}
		if tasks[i].IsOverdue(now) {
			h.OverdueTasks++
		}
	}
	h.Progress = TaskProgress(h.CompletedTasks, h.TotalTasks)
	h.FinancialProgress = FinancialProgress(p.AmountPaid, p.Budget)
	h.HealthStatus = Classify(h.Progress, h.FinancialProgress, h.OverdueTasks)
	return h
}

// HealthReport scores every project in the given statuses, all projects when
// statuses is empty. Tasks are loaded in one query.
func HealthReport(ctx context.Context, db *gorm.DB, now time.Time, statuses ...string) ([]ProjectHealth, error) {
	var projects []model.Project
	q := db.WithContext(ctx).Order("created_at DESC")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Find(&projects).Error; err != nil {
		return nil, err
	}

	report := make([]ProjectHealth, 0, len(projects))
	if len(projects) == 0 {
		return report, nil
	}

	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	var tasks []model.Task
	if err := db.WithContext(ctx).Where("project_id IN ?", ids).Find(&tasks).Error; err != nil {
		return nil, err
	}

	byProject := make(map[string][]model.Task, len(projects))
	for _, t := range tasks {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}

	for _, p := range projects {
		report = append(report, ScoreProject(p, byProject[p.ID], now))
	}
	return report, nil
}

// ProjectHealthByID scores a single project
func ProjectHealthByID(ctx context.Context, db *gorm.DB, id string, now time.Time) (*ProjectHealth, error) {
	var p model.Project
	if err := db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var tasks []model.Task
	if err := db.WithContext(ctx).Where("project_id = ?", p.ID).Find(&tasks).Error; err != nil {
		return nil, err
	}

	h := ScoreProject(p, tasks, now)
	return &h, nil
}
