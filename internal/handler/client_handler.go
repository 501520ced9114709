package handler

import (
	"net/http"
	"strings"
	"time"

	"crm-service/internal/model"
	"crm-service/internal/service"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"
	"crm-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ClientRequest is used for both create and update; nil fields are left untouched on update
type ClientRequest struct {
	Name              *string  `json:"name"`
	Email             *string  `json:"email"`
	Phone             *string  `json:"phone"`
	Company           *string  `json:"company"`
	Address           *string  `json:"address"`
	Notes             *string  `json:"notes"`
	Status            *string  `json:"status"`
	HostingProvider   *string  `json:"hostingProvider"`
	HostingExpiryDate *Date    `json:"hostingExpiryDate"`
	HostingPrice      *float64 `json:"hostingPrice"`
	DomainName        *string  `json:"domainName"`
	DomainProvider    *string  `json:"domainProvider"`
	DomainExpiryDate  *Date    `json:"domainExpiryDate"`
	DomainPrice       *float64 `json:"domainPrice"`
}

func (r *ClientRequest) apply(c *model.Client) error {
	setString(&c.Name, r.Name)
	if r.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
	setString(&c.Phone, r.Phone)
	setString(&c.Company, r.Company)
	setString(&c.Address, r.Address)
	setString(&c.Notes, r.Notes)
	if r.Status != nil {
		if !model.IsValidClientStatus(*r.Status) {
			return service.Invalid("status", "must be active or inactive")
		}
		c.Status = *r.Status
	}
	setString(&c.HostingProvider, r.HostingProvider)
	if r.HostingExpiryDate != nil {
		c.HostingExpiryDate = r.HostingExpiryDate.Ptr()
	}
	setFloat(&c.HostingPrice, r.HostingPrice)
	setString(&c.DomainName, r.DomainName)
	setString(&c.DomainProvider, r.DomainProvider)
	if r.DomainExpiryDate != nil {
		c.DomainExpiryDate = r.DomainExpiryDate.Ptr()
	}
	setFloat(&c.DomainPrice, r.DomainPrice)

	if err := required("name", c.Name); err != nil {
		return err
	}
	if err := required("email", c.Email); err != nil {
		return err
	}
	if !strings.Contains(c.Email, "@") {
		return service.Invalid("email", "is not a valid address")
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func emailTaken(email, exceptID string) (bool, error) {
	var count int64
	q := database.GetDB().Model(&model.Client{}).Where("email = ?", email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// ListClients lists clients with optional status filter and name/email/company search
func ListClients(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "list")

	page, limit, offset := parsePagination(c)

	query := database.GetDB().Model(&model.Client{})
	// Filter by status if specified
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	// Search by free text if specified
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?", like, like, like)
	}

	// Count matches before paging
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return respondError(c, err, "clients", "retrieve")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	// Execute the query
	var clients []model.Client
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&clients).Error; err != nil {
		return respondError(c, err, "clients", "retrieve")
	}

	log.Info("Clients retrieved successfully",
		zap.Int("count", len(clients)),
		zap.Int64("total", total))

	return c.JSON(http.StatusOK, echo.Map{
		"clients":    clients,
		"pagination": paginationMeta(page, limit, total),
	})
}

// GetClient returns one client
func GetClient(c echo.Context) error {
	prometheus.RecordOperation("client", "get")
	id := c.Param("id")

	var client model.Client
	if err := database.GetDB().First(&client, "id = ?", id).Error; err != nil {
		return respondError(c, err, "client", "retrieve")
	}
	return c.JSON(http.StatusOK, client)
}

// CreateClient creates a client; email must be unique
func CreateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "create")

	var req ClientRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	client := model.Client{Status: model.ClientStatusActive}
	if err := req.apply(&client); err != nil {
		return respondError(c, err, "client", "create")
	}

	// Check if a client with this email already exists
	taken, err := emailTaken(client.Email, "")
	if err != nil {
		return respondError(c, err, "client", "create")
	}
	if taken {
		log.Warn("Client with this email already exists", zap.String("email", client.Email))
		return badRequest(c, "A client with this email already exists")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	// Create the client
	if err := database.GetDB().Create(&client).Error; err != nil {
		return respondError(c, err, "client", "create")
	}

	log.Info("Client created successfully",
		zap.String("client_id", client.ID),
		zap.String("name", client.Name))
	return c.JSON(http.StatusCreated, client)
}

// UpdateClient applies the provided fields to a client
func UpdateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "update")
	id := c.Param("id")

	var req ClientRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	// Find existing client
	db := database.GetDB()
	var client model.Client
	if err := db.First(&client, "id = ?", id).Error; err != nil {
		return respondError(c, err, "client", "update")
	}

	// Update fields
	oldEmail := client.Email
	if err := req.apply(&client); err != nil {
		return respondError(c, err, "client", "update")
	}

	if client.Email != oldEmail {
		// Check if a client with this email already exists
		taken, err := emailTaken(client.Email, client.ID)
		if err != nil {
			return respondError(c, err, "client", "update")
		}
		if taken {
			log.Warn("Client email change collides", zap.String("email", client.Email))
			return badRequest(c, "A client with this email already exists")
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	// Save changes
	if err := db.Save(&client).Error; err != nil {
		return respondError(c, err, "client", "update")
	}

	log.Info("Client updated successfully", zap.String("client_id", client.ID))
	return c.JSON(http.StatusOK, client)
}

// DeleteClient soft-deletes the client and everything referencing it
func DeleteClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "delete")
	id := c.Param("id")

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := service.DeleteClient(c.Request().Context(), database.GetDB(), id); err != nil {
		return respondError(c, err, "client", "delete")
	}

	log.Info("Client deleted successfully", zap.String("client_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Client deleted successfully"})
}

// PortalAccessRequest sets a client's portal password and access flag
type PortalAccessRequest struct {
	Password string `json:"password"`
	Enabled  bool   `json:"enabled"`
}

// SetPortalAccess enables or disables portal login for a client
func SetPortalAccess(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "portal_access")
	id := c.Param("id")

	var req PortalAccessRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	// Find existing client
	db := database.GetDB()
	var client model.Client
	if err := db.First(&client, "id = ?", id).Error; err != nil {
		return respondError(c, err, "client", "update")
	}

	updates := map[string]interface{}{"portal_enabled": req.Enabled}
	if req.Password != "" {
		if len(req.Password) < 8 {
			return badRequest(c, "password: must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return respondError(c, err, "client", "update")
		}
		updates["portal_password_hash"] = string(hash)
	} else if req.Enabled && client.PortalPasswordHash == "" {
		return badRequest(c, "password: is required to enable portal access")
	}

	if err := db.Model(&client).Updates(updates).Error; err != nil {
		return respondError(c, err, "client", "update")
	}

	log.Info("Portal access updated",
		zap.String("client_id", client.ID),
		zap.Bool("enabled", req.Enabled))
	return c.JSON(http.StatusOK, echo.Map{
		"id":            client.ID,
		"portalEnabled": req.Enabled,
	})
}
