package handler

import (
	"net/http"
	"time"

	"crm-service/internal/model"
	"crm-service/internal/service"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"
	"crm-service/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TicketRequest opens a ticket; Message becomes the first entry of the conversation
type TicketRequest struct {
	ClientID string `json:"clientId"`
	Subject  string `json:"subject"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
}

// TicketUpdateRequest changes ticket metadata
type TicketUpdateRequest struct {
	Subject  *string `json:"subject"`
	Priority *string `json:"priority"`
	Status   *string `json:"status"`
}

// TicketMessageRequest appends to a ticket conversation
type TicketMessageRequest struct {
	Body   string `json:"body"`
	Notify bool   `json:"notify"`
}

func newTicket(clientID, subject, priority, message, sender string) (*model.Ticket, error) {
	if err := required("subject", subject); err != nil {
		return nil, err
	}
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.IsValidPriority(priority) {
		return nil, service.Invalid("priority", "must be low, medium or high")
	}

	t := &model.Ticket{
		ClientID: clientID,
		Subject:  subject,
		Priority: priority,
		Status:   model.TicketStatusOpen,
		Messages: datatypes.JSONSlice[model.TicketMessage]{},
	}
	if message != "" {
		t.Messages = append(t.Messages, model.TicketMessage{
			ID:        uuid.NewString(),
			Sender:    sender,
			Body:      message,
			CreatedAt: now(),
		})
	}
	return t, nil
}

// ListTickets lists tickets, filtered by clientId, status and priority
func ListTickets(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("ticket", "list")

	page, limit, offset := parsePagination(c)

	query := database.GetDB().Model(&model.Ticket{})
	// Filter by client if specified
	if clientID := c.QueryParam("clientId"); clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	// Filter by status if specified
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	// Filter by priority if specified
	if priority := c.QueryParam("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}

	// Count matches before paging
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return respondError(c, err, "tickets", "retrieve")
	}

	// Execute the query
	var tickets []model.Ticket
	if err := query.Order("updated_at desc").Limit(limit).Offset(offset).Find(&tickets).Error; err != nil {
		return respondError(c, err, "tickets", "retrieve")
	}

	log.Info("Tickets retrieved successfully", zap.Int("count", len(tickets)))
	return c.JSON(http.StatusOK, echo.Map{
		"tickets":    tickets,
		"pagination": paginationMeta(page, limit, total),
	})
}

// GetTicket returns one ticket with its conversation
func GetTicket(c echo.Context) error {
	prometheus.RecordOperation("ticket", "get")

	var ticket model.Ticket
	if err := database.GetDB().First(&ticket, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "ticket", "retrieve")
	}
	return c.JSON(http.StatusOK, ticket)
}

// CreateTicket opens a ticket on behalf of a client
func CreateTicket(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("ticket", "create")

	var req TicketRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}
	if err := required("clientId", req.ClientID); err != nil {
		return respondError(c, err, "ticket", "create")
	}

	ticket, err := newTicket(req.ClientID, req.Subject, req.Priority, req.Message, model.SenderStaff)
	if err != nil {
		return respondError(c, err, "ticket", "create")
	}

	db := database.GetDB()
	if err := clientExists(db, req.ClientID); err != nil {
		return respondError(c, err, "ticket", "create")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := db.Create(ticket).Error; err != nil {
		return respondError(c, err, "ticket", "create")
	}

	log.Info("Ticket created successfully", zap.String("ticket_id", ticket.ID))
	return c.JSON(http.StatusCreated, ticket)
}

// UpdateTicket changes subject, priority or status
func UpdateTicket(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("ticket", "update")

	var req TicketUpdateRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	db := database.GetDB()
	// Find existing ticket
	var ticket model.Ticket
	if err := db.First(&ticket, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "ticket", "update")
	}

	setString(&ticket.Subject, req.Subject)
	if req.Priority != nil {
		if !model.IsValidPriority(*req.Priority) {
			return badRequest(c, "priority: must be low, medium or high")
		}
		ticket.Priority = *req.Priority
	}
	if req.Status != nil {
		if !model.IsValidTicketStatus(*req.Status) {
			return badRequest(c, "status: must be open, in-progress or closed")
		}
		ticket.Status = *req.Status
	}
	if err := required("subject", ticket.Subject); err != nil {
		return respondError(c, err, "ticket", "update")
	}

	if err := db.Model(&ticket).Select("subject", "priority", "status").Updates(&ticket).Error; err != nil {
		return respondError(c, err, "ticket", "update")
	}

	log.Info("Ticket updated successfully", zap.String("ticket_id", ticket.ID))
	return c.JSON(http.StatusOK, ticket)
}

// AddTicketMessage appends a staff reply; notify=true also emails the client
func AddTicketMessage(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("ticket", "reply")

	var req TicketMessageRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	ctx := c.Request().Context()
	db := database.GetDB()
	ticket, err := service.AppendTicketMessage(ctx, db, c.Param("id"), model.SenderStaff, req.Body, now())
	if err != nil {
		return respondError(c, err, "ticket", "update")
	}

	emailed := false
	if req.Notify && mail != nil {
		var client model.Client
		if err := db.First(&client, "id = ?", ticket.ClientID).Error; err != nil {
			log.Warn("Ticket client not found, reply not emailed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		} else if err := mail.SendTicketReply(ctx, &client, ticket, req.Body); err == nil {
			emailed = true
		}
	}

	log.Info("Ticket reply added",
		zap.String("ticket_id", ticket.ID),
		zap.Bool("emailed", emailed))
	return c.JSON(http.StatusOK, echo.Map{
		"ticket":  ticket,
		"emailed": emailed,
	})
}

// DeleteTicket soft-deletes a ticket
func DeleteTicket(c echo.Context) error {
	prometheus.RecordOperation("ticket", "delete")

	res := database.GetDB().Where("id = ?", c.Param("id")).Delete(&model.Ticket{})
	if res.Error != nil {
		return respondError(c, res.Error, "ticket", "delete")
	}
	if res.RowsAffected == 0 {
		return respondError(c, service.ErrNotFound, "ticket", "delete")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Ticket deleted successfully"})
}
