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
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InvoiceRequest is used for both create and update; totals are always recomputed
type InvoiceRequest struct {
	ClientID  *string              `json:"clientId"`
	ProjectID *string              `json:"projectId"`
	IssueDate *Date                `json:"issueDate"`
	DueDate   *Date                `json:"dueDate"`
	Items     *[]model.InvoiceItem `json:"items"`
	TaxRate   *float64             `json:"taxRate"`
	Status    *string              `json:"status"`
	Notes     *string              `json:"notes"`
}

func (r *InvoiceRequest) apply(inv *model.Invoice) error {
	setString(&inv.ClientID, r.ClientID)
	setString(&inv.ProjectID, r.ProjectID)
	if r.IssueDate != nil && !r.IssueDate.IsZero() {
		inv.IssueDate = r.IssueDate.Time
	}
	if r.DueDate != nil {
		inv.DueDate = r.DueDate.Ptr()
	}
	if r.Items != nil {
		inv.Items = datatypes.JSONSlice[model.InvoiceItem](*r.Items)
	}
	setFloat(&inv.TaxRate, r.TaxRate)
	if r.Status != nil {
		if !model.IsValidInvoiceStatus(*r.Status) {
			return service.Invalid("status", "must be draft, sent, paid, overdue or cancelled")
		}
		inv.Status = *r.Status
	}
	setString(&inv.Notes, r.Notes)
	return service.ApplyTotals(inv)
}

// ListInvoices lists invoices, filtered by clientId, projectId and status
func ListInvoices(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("invoice", "list")

	page, limit, offset := parsePagination(c)

	query := database.GetDB().Model(&model.Invoice{})
	// Filter by client if specified
	if clientID := c.QueryParam("clientId"); clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	// Filter by project if specified
	if projectID := c.QueryParam("projectId"); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	// Filter by status if specified
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	// Count matches before paging
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return respondError(c, err, "invoices", "retrieve")
	}

	// Execute the query
	var invoices []model.Invoice
	if err := query.Order("issue_date desc").Limit(limit).Offset(offset).Find(&invoices).Error; err != nil {
		return respondError(c, err, "invoices", "retrieve")
	}

	log.Info("Invoices retrieved successfully", zap.Int("count", len(invoices)))
	return c.JSON(http.StatusOK, echo.Map{
		"invoices":   invoices,
		"pagination": paginationMeta(page, limit, total),
	})
}

// GetInvoice returns one invoice
func GetInvoice(c echo.Context) error {
	prometheus.RecordOperation("invoice", "get")

	var inv model.Invoice
	if err := database.GetDB().First(&inv, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "invoice", "retrieve")
	}
	return c.JSON(http.StatusOK, inv)
}

// CreateInvoice numbers and stores a new invoice
func CreateInvoice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("invoice", "create")

	var req InvoiceRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	inv := model.Invoice{Status: model.InvoiceStatusDraft}
	if err := req.apply(&inv); err != nil {
		return respondError(c, err, "invoice", "create")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := service.CreateInvoice(c.Request().Context(), database.GetDB(), &inv, now()); err != nil {
		return respondError(c, err, "invoice", "create")
	}

	log.Info("Invoice created successfully",
		zap.String("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Float64("total", inv.Total))
	return c.JSON(http.StatusCreated, inv)
}

// UpdateInvoice applies the provided fields and recomputes totals
func UpdateInvoice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("invoice", "update")

	var req InvoiceRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	db := database.GetDB()
	// Find existing invoice
	var inv model.Invoice
	if err := db.First(&inv, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "invoice", "update")
	}

	// Update fields
	oldClient := inv.ClientID
	if err := req.apply(&inv); err != nil {
		return respondError(c, err, "invoice", "update")
	}
	if inv.ClientID != oldClient {
		if err := clientExists(db, inv.ClientID); err != nil {
			return respondError(c, err, "invoice", "update")
		}
	}

	// Save changes
	if err := db.Save(&inv).Error; err != nil {
		return respondError(c, err, "invoice", "update")
	}

	log.Info("Invoice updated successfully", zap.String("invoice_id", inv.ID))
	return c.JSON(http.StatusOK, inv)
}

// SendInvoice emails the invoice to its client and moves a draft to sent
func SendInvoice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("invoice", "send")

	ctx := c.Request().Context()
	db := database.GetDB()

	// Find existing invoice
	var inv model.Invoice
	if err := db.First(&inv, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "invoice", "send")
	}
	if inv.Status == model.InvoiceStatusCancelled {
		return badRequest(c, "Cancelled invoices cannot be sent")
	}

	var client model.Client
	if err := db.First(&client, "id = ?", inv.ClientID).Error; err != nil {
		return respondError(c, err, "client", "retrieve")
	}

	if err := mail.SendInvoice(ctx, &client, &inv); err != nil {
		return respondError(c, err, "invoice", "send")
	}

	sentAt := now()
	updates := map[string]interface{}{"sent_at": sentAt}
	if inv.Status == model.InvoiceStatusDraft {
		updates["status"] = model.InvoiceStatusSent
	}
	if err := db.Model(&inv).Updates(updates).Error; err != nil {
		return respondError(c, err, "invoice", "update")
	}
	inv.SentAt = &sentAt
	if s, ok := updates["status"].(string); ok {
		inv.Status = s
	}

	log.Info("Invoice sent",
		zap.String("invoice_id", inv.ID),
		zap.String("client_id", client.ID))
	return c.JSON(http.StatusOK, inv)
}

// DeleteInvoice soft-deletes an invoice
func DeleteInvoice(c echo.Context) error {
	prometheus.RecordOperation("invoice", "delete")

	res := database.GetDB().Where("id = ?", c.Param("id")).Delete(&model.Invoice{})
	if res.Error != nil {
		return respondError(c, res.Error, "invoice", "delete")
	}
	if res.RowsAffected == 0 {
		return respondError(c, service.ErrNotFound, "invoice", "delete")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Invoice deleted successfully"})
}
