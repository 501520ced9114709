package handler

import (
	"net/http"
	"strconv"
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

// ListNotifications lists notifications newest first, filtered by clientId,
// type and unread=true
func ListNotifications(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "list")

	page, limit, offset := parsePagination(c)

	query := database.GetDB().Model(&model.Notification{})
	unreadQuery := database.GetDB().Model(&model.Notification{}).Where("is_read = ?", false)
	// Filter by client if specified
	if clientID := c.QueryParam("clientId"); clientID != "" {
		query = query.Where("client_id = ?", clientID)
		unreadQuery = unreadQuery.Where("client_id = ?", clientID)
	}
	// Filter by type if specified
	if typ := c.QueryParam("type"); typ != "" {
		query = query.Where("type = ?", typ)
	}
	if unread, err := strconv.ParseBool(c.QueryParam("unread")); err == nil && unread {
		query = query.Where("is_read = ?", false)
	}

	// Count matches before paging
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return respondError(c, err, "notifications", "retrieve")
	}

	var unreadCount int64
	if err := unreadQuery.Count(&unreadCount).Error; err != nil {
		return respondError(c, err, "notifications", "retrieve")
	}

	// Execute the query
	var notifications []model.Notification
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&notifications).Error; err != nil {
		return respondError(c, err, "notifications", "retrieve")
	}

	log.Info("Notifications retrieved successfully",
		zap.Int("count", len(notifications)),
		zap.Int64("unread", unreadCount))

	return c.JSON(http.StatusOK, echo.Map{
		"notifications": notifications,
		"unreadCount":   unreadCount,
		"pagination":    paginationMeta(page, limit, total),
	})
}

// NotificationRequest creates a general notification
type NotificationRequest struct {
	ClientID string `json:"clientId"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// CreateNotification creates a general notification for a client
func CreateNotification(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "create")

	var req NotificationRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}
	for field, value := range map[string]string{"clientId": req.ClientID, "title": req.Title} {
		if err := required(field, value); err != nil {
			return respondError(c, err, "notification", "create")
		}
	}

	db := database.GetDB()
	if err := clientExists(db, req.ClientID); err != nil {
		return respondError(c, err, "notification", "create")
	}

	n := model.Notification{
		ClientID: req.ClientID,
		Type:     model.NotificationGeneral,
		Title:    req.Title,
		Message:  req.Message,
	}
	// Create the notification
	if err := db.Create(&n).Error; err != nil {
		return respondError(c, err, "notification", "create")
	}

	log.Info("Notification created", zap.String("notification_id", n.ID))
	return c.JSON(http.StatusCreated, n)
}

// MarkNotificationRead flags one notification as read
func MarkNotificationRead(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "read")

	db := database.GetDB()
	// Find existing notification
	var n model.Notification
	if err := db.First(&n, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "notification", "update")
	}

	if !n.IsRead {
		readAt := now()
		if err := db.Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": readAt}).Error; err != nil {
			return respondError(c, err, "notification", "update")
		}
		n.IsRead = true
		n.ReadAt = &readAt
	}

	log.Info("Notification marked as read", zap.String("notification_id", n.ID))
	return c.JSON(http.StatusOK, n)
}

// MarkAllNotificationsRead flags every unread notification, optionally for one client
func MarkAllNotificationsRead(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "read_all")

	query := database.GetDB().Model(&model.Notification{}).Where("is_read = ?", false)
	// Filter by client if specified
	if clientID := c.QueryParam("clientId"); clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}

	res := query.Updates(map[string]interface{}{"is_read": true, "read_at": now()})
	if res.Error != nil {
		return respondError(c, res.Error, "notifications", "update")
	}

	log.Info("Notifications marked as read", zap.Int64("updated", res.RowsAffected))
	return c.JSON(http.StatusOK, echo.Map{"updated": res.RowsAffected})
}

// DeleteNotification soft-deletes a notification
func DeleteNotification(c echo.Context) error {
	prometheus.RecordOperation("notification", "delete")

	res := database.GetDB().Where("id = ?", c.Param("id")).Delete(&model.Notification{})
	if res.Error != nil {
		return respondError(c, res.Error, "notification", "delete")
	}
	if res.RowsAffected == 0 {
		return respondError(c, service.ErrNotFound, "notification", "delete")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Notification deleted successfully"})
}

// CheckExpiry runs one expiry scan. notify=true also emails each client
// a reminder for every new notification.
func CheckExpiry(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "check_expiry")

	notify, _ := strconv.ParseBool(c.QueryParam("notify"))

	start := time.Now()
	result, err := scanner.Scan(c.Request().Context(), service.ScanOptions{
		Notify:  notify,
		Trigger: service.TriggerAPI,
	})
	if err != nil {
		return respondError(c, err, "expiry scan", "run")
	}

	log.Info("Expiry check completed",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Duration("took", time.Since(start)))
	return c.JSON(http.StatusOK, result)
}
