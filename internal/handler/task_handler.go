package handler

import (
	"net/http"
	"time"

	"crm-service/internal/model"
	"crm-service/internal/service"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"
	"crm-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskRequest is used for both create and update
type TaskRequest struct {
	ProjectID   *string `json:"projectId"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	DueDate     *Date   `json:"dueDate"`
}

func (r *TaskRequest) apply(t *model.Task) error {
	setString(&t.ProjectID, r.ProjectID)
	setString(&t.Title, r.Title)
	setString(&t.Description, r.Description)
	if r.Status != nil {
		if !model.IsValidTaskStatus(*r.Status) {
			return service.Invalid("status", "must be todo, in-progress or completed")
		}
		t.Status = *r.Status
	}
	if r.Priority != nil {
		if !model.IsValidPriority(*r.Priority) {
			return service.Invalid("priority", "must be low, medium or high")
		}
		t.Priority = *r.Priority
	}
	if r.DueDate != nil {
		t.DueDate = r.DueDate.Ptr()
	}

	if err := required("projectId", t.ProjectID); err != nil {
		return err
	}
	return required("title", t.Title)
}

func projectExists(db *gorm.DB, id string) error {
	var count int64
	if err := db.Model(&model.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return service.Invalid("projectId", "project not found")
	}
	return nil
}

// ListTasks lists tasks, filtered by projectId, status and overdue=true
func ListTasks(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "list")

	page, limit, offset := parsePagination(c)

	query := database.GetDB().Model(&model.Task{})
	// Filter by project if specified
	if projectID := c.QueryParam("projectId"); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	// Filter by status if specified
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	// Only overdue tasks if requested
	if c.QueryParam("overdue") == "true" {
		query = query.Where("status <> ? AND due_date < ?", model.TaskStatusCompleted, service.StartOfDay(now()))
	}

	// Count matches before paging
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return respondError(c, err, "tasks", "retrieve")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	// Execute the query
	var tasks []model.Task
	if err := query.Order("due_date asc").Order("created_at desc").Limit(limit).Offset(offset).Find(&tasks).Error; err != nil {
		return respondError(c, err, "tasks", "retrieve")
	}

	log.Info("Tasks retrieved successfully",
		zap.Int("count", len(tasks)),
		zap.Int64("total", total))

	return c.JSON(http.StatusOK, echo.Map{
		"tasks":      tasks,
		"pagination": paginationMeta(page, limit, total),
	})
}

// GetTask returns one task
func GetTask(c echo.Context) error {
	prometheus.RecordOperation("task", "get")

	var task model.Task
	if err := database.GetDB().First(&task, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "task", "retrieve")
	}
	return c.JSON(http.StatusOK, task)
}

// CreateTask creates a task in an existing project
func CreateTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "create")

	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	task := model.Task{Status: model.TaskStatusTodo, Priority: model.PriorityMedium}
	if err := req.apply(&task); err != nil {
		return respondError(c, err, "task", "create")
	}

	db := database.GetDB()
	if err := projectExists(db, task.ProjectID); err != nil {
		return respondError(c, err, "task", "create")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	// Create the task
	if err := db.Create(&task).Error; err != nil {
		return respondError(c, err, "task", "create")
	}

	log.Info("Task created successfully",
		zap.String("task_id", task.ID),
		zap.String("project_id", task.ProjectID))
	return c.JSON(http.StatusCreated, task)
}

// UpdateTask applies the provided fields to a task
func UpdateTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "update")

	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	db := database.GetDB()
	// Find existing task
	var task model.Task
	if err := db.First(&task, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "task", "update")
	}

	// Update fields
	oldProject := task.ProjectID
	if err := req.apply(&task); err != nil {
		return respondError(c, err, "task", "update")
	}
	if task.ProjectID != oldProject {
		if err := projectExists(db, task.ProjectID); err != nil {
			return respondError(c, err, "task", "update")
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	// Save changes
	if err := db.Save(&task).Error; err != nil {
		return respondError(c, err, "task", "update")
	}

	log.Info("Task updated successfully", zap.String("task_id", task.ID))
	return c.JSON(http.StatusOK, task)
}

// TaskStatusRequest changes only the status
type TaskStatusRequest struct {
	Status string `json:"status"`
}

// UpdateTaskStatus moves a task between todo, in-progress and completed
func UpdateTaskStatus(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "status")

	var req TaskStatusRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}
	if !model.IsValidTaskStatus(req.Status) {
		return badRequest(c, "status: must be todo, in-progress or completed")
	}

	db := database.GetDB()
	// Find existing task
	var task model.Task
	if err := db.First(&task, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "task", "update")
	}

	if err := db.Model(&task).Update("status", req.Status).Error; err != nil {
		return respondError(c, err, "task", "update")
	}

	log.Info("Task status changed",
		zap.String("task_id", task.ID),
		zap.String("status", req.Status))
	return c.JSON(http.StatusOK, task)
}

// DeleteTask soft-deletes a task
func DeleteTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "delete")
	id := c.Param("id")

	defer prometheus.TrackDBOperation("delete")(time.Now())

	res := database.GetDB().Where("id = ?", id).Delete(&model.Task{})
	if res.Error != nil {
		return respondError(c, res.Error, "task", "delete")
	}
	if res.RowsAffected == 0 {
		return respondError(c, service.ErrNotFound, "task", "delete")
	}

	log.Info("Task deleted successfully", zap.String("task_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Task deleted successfully"})
}
