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

// ProjectRequest is used for both create and update
type ProjectRequest struct {
	ClientID          *string  `json:"clientId"`
	Name              *string  `json:"name"`
	Description       *string  `json:"description"`
	Status            *string  `json:"status"`
	Budget            *float64 `json:"budget"`
	AmountPaid        *float64 `json:"amountPaid"`
	StartDate         *Date    `json:"startDate"`
	EndDate           *Date    `json:"endDate"`
	DomainExpiryDate  *Date    `json:"domainExpiryDate"`
	HostingExpiryDate *Date    `json:"hostingExpiryDate"`
}

func (r *ProjectRequest) apply(p *model.Project) error {
	setString(&p.ClientID, r.ClientID)
	setString(&p.Name, r.Name)
	setString(&p.Description, r.Description)
	if r.Status != nil {
		if !model.IsValidProjectStatus(*r.Status) {
			return service.Invalid("status", "must be planning, in-progress, completed or on-hold")
		}
		p.Status = *r.Status
	}
	setFloat(&p.Budget, r.Budget)
	setFloat(&p.AmountPaid, r.AmountPaid)
	if r.StartDate != nil {
		p.StartDate = r.StartDate.Ptr()
	}
	if r.EndDate != nil {
		p.EndDate = r.EndDate.Ptr()
	}
	if r.DomainExpiryDate != nil {
		p.DomainExpiryDate = r.DomainExpiryDate.Ptr()
	}
	if r.HostingExpiryDate != nil {
		p.HostingExpiryDate = r.HostingExpiryDate.Ptr()
	}

	if err := required("clientId", p.ClientID); err != nil {
		return err
	}
	if err := required("name", p.Name); err != nil {
		return err
	}
	if p.Budget < 0 {
		return service.Invalid("budget", "must not be negative")
	}
	return nil
}

func clientExists(db *gorm.DB, id string) error {
	var count int64
	if err := db.Model(&model.Client{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return service.Invalid("clientId", "client not found")
	}
	return nil
}

// ListProjects lists projects, filtered by clientId and status
func ListProjects(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("project", "list")

	page, limit, offset := parsePagination(c)

	query := database.GetDB().Model(&model.Project{})
	// Filter by client if specified
	if clientID := c.QueryParam("clientId"); clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	// Filter by status if specified
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	// Count matches before paging
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return respondError(c, err, "projects", "retrieve")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	// Execute the query
	var projects []model.Project
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&projects).Error; err != nil {
		return respondError(c, err, "projects", "retrieve")
	}

	log.Info("Projects retrieved successfully",
		zap.Int("count", len(projects)),
		zap.Int64("total", total))

	return c.JSON(http.StatusOK, echo.Map{
		"projects":   projects,
		"pagination": paginationMeta(page, limit, total),
	})
}

// GetProject returns one project
func GetProject(c echo.Context) error {
	prometheus.RecordOperation("project", "get")

	var project model.Project
	if err := database.GetDB().First(&project, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "project", "retrieve")
	}
	return c.JSON(http.StatusOK, project)
}

// CreateProject creates a project for an existing client
func CreateProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("project", "create")

	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	project := model.Project{Status: model.ProjectStatusPlanning}
	if err := req.apply(&project); err != nil {
		return respondError(c, err, "project", "create")
	}

	db := database.GetDB()
	if err := clientExists(db, project.ClientID); err != nil {
		return respondError(c, err, "project", "create")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	// Create the project
	if err := db.Create(&project).Error; err != nil {
		return respondError(c, err, "project", "create")
	}

	log.Info("Project created successfully",
		zap.String("project_id", project.ID),
		zap.String("client_id", project.ClientID))
	return c.JSON(http.StatusCreated, project)
}

// UpdateProject applies the provided fields to a project
func UpdateProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("project", "update")

	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	db := database.GetDB()
	// Find existing project
	var project model.Project
	if err := db.First(&project, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "project", "update")
	}

	// Update fields
	oldClient := project.ClientID
	if err := req.apply(&project); err != nil {
		return respondError(c, err, "project", "update")
	}
	if project.ClientID != oldClient {
		if err := clientExists(db, project.ClientID); err != nil {
			return respondError(c, err, "project", "update")
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	// Save changes
	if err := db.Save(&project).Error; err != nil {
		return respondError(c, err, "project", "update")
	}

	log.Info("Project updated successfully", zap.String("project_id", project.ID))
	return c.JSON(http.StatusOK, project)
}

// DeleteProject soft-deletes a project and its tasks
func DeleteProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("project", "delete")
	id := c.Param("id")

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := service.DeleteProject(c.Request().Context(), database.GetDB(), id); err != nil {
		return respondError(c, err, "project", "delete")
	}

	log.Info("Project deleted successfully", zap.String("project_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Project deleted successfully"})
}

// GetProjectHealth scores one project
func GetProjectHealth(c echo.Context) error {
	prometheus.RecordOperation("project", "health")

	health, err := service.ProjectHealthByID(c.Request().Context(), database.GetDB(), c.Param("id"), now())
	if err != nil {
		return respondError(c, err, "project", "score")
	}
	return c.JSON(http.StatusOK, health)
}
