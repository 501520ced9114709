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

// PaymentRequest records a payment
type PaymentRequest struct {
	ClientID    string  `json:"clientId"`
	ProjectID   string  `json:"projectId"`
	InvoiceID   string  `json:"invoiceId"`
	Amount      float64 `json:"amount"`
	PaymentDate *Date   `json:"paymentDate"`
	Method      string  `json:"method"`
	Reference   string  `json:"reference"`
	Notes       string  `json:"notes"`
}

// ListPayments lists payments, filtered by clientId, projectId and invoiceId
func ListPayments(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("payment", "list")

	page, limit, offset := parsePagination(c)

	query := database.GetDB().Model(&model.Payment{})
	for param, column := range map[string]string{
		"clientId":  "client_id",
		"projectId": "project_id",
		"invoiceId": "invoice_id",
	} {
		if v := c.QueryParam(param); v != "" {
			query = query.Where(column+" = ?", v)
		}
	}

	// Count matches before paging
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return respondError(c, err, "payments", "retrieve")
	}

	// Execute the query
	var payments []model.Payment
	if err := query.Order("payment_date desc").Limit(limit).Offset(offset).Find(&payments).Error; err != nil {
		return respondError(c, err, "payments", "retrieve")
	}

	log.Info("Payments retrieved successfully", zap.Int("count", len(payments)))
	return c.JSON(http.StatusOK, echo.Map{
		"payments":   payments,
		"pagination": paginationMeta(page, limit, total),
	})
}

// GetPayment returns one payment
func GetPayment(c echo.Context) error {
	prometheus.RecordOperation("payment", "get")

	var p model.Payment
	if err := database.GetDB().First(&p, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "payment", "retrieve")
	}
	return c.JSON(http.StatusOK, p)
}

// CreatePayment records a payment and updates the project's amount paid
func CreatePayment(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("payment", "create")

	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	p := model.Payment{
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Notes:     req.Notes,
	}
	if d := req.PaymentDate.Ptr(); d != nil {
		p.PaymentDate = *d
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := service.RecordPayment(c.Request().Context(), database.GetDB(), &p, now()); err != nil {
		return respondError(c, err, "payment", "create")
	}

	log.Info("Payment recorded",
		zap.String("payment_id", p.ID),
		zap.String("project_id", p.ProjectID),
		zap.Float64("amount", p.Amount))
	return c.JSON(http.StatusCreated, p)
}

// DeletePayment removes a payment and reverses its effect
func DeletePayment(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("payment", "delete")
	id := c.Param("id")

	if err := service.DeletePayment(c.Request().Context(), database.GetDB(), id, now()); err != nil {
		return respondError(c, err, "payment", "delete")
	}

	log.Info("Payment deleted", zap.String("payment_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Payment deleted successfully"})
}
