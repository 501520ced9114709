package handler

import (
	"net/http"
	"strings"
	"time"

	"crm-service/internal/middleware"
	"crm-service/internal/model"
	"crm-service/internal/service"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"
	"crm-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     appConfig.Portal.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   appConfig.Portal.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// PortalLogin authenticates a client and sets the session cookie
func PortalLogin(c echo.Context) error {
	log := logger.FromContext(c)

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	// Every failure returns the same 401
	var client model.Client
	err := database.GetDB().Where("email = ?", email).First(&client).Error
	if err == nil && (!client.PortalEnabled || client.PortalPasswordHash == "") {
		err = service.ErrNotFound
	}
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(client.PortalPasswordHash), []byte(req.Password))
	}
	if err != nil {
		prometheus.RecordAuthAttempt("portal", false)
		log.Warn("Portal login failed", zap.String("email", email))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	}

	token, err := tokens.GeneratePortalToken(client.ID, client.Email)
	if err != nil {
		return respondError(c, err, "session", "create")
	}

	// Session lives in an HttpOnly cookie
	c.SetCookie(sessionCookie(token, int(tokens.PortalTTL()/time.Second)))
	prometheus.RecordAuthAttempt("portal", true)
	log.Info("Client logged in to portal", zap.String("client_id", client.ID))
	return c.JSON(http.StatusOK, client)
}

// PortalLogout clears the session cookie
func PortalLogout(c echo.Context) error {
	c.SetCookie(sessionCookie("", -1))
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}

func portalClientID(c echo.Context) string {
	id, _ := middleware.GetClientIDFromContext(c)
	return id
}

// PortalMe returns the logged-in client
func PortalMe(c echo.Context) error {
	var client model.Client
	if err := database.GetDB().First(&client, "id = ?", portalClientID(c)).Error; err != nil {
		return respondError(c, err, "client", "retrieve")
	}
	return c.JSON(http.StatusOK, client)
}

// PortalProjects lists the client's projects with their health
func PortalProjects(c echo.Context) error {
	prometheus.RecordOperation("portal", "projects")
	clientID := portalClientID(c)
	db := database.GetDB()

	var projects []model.Project
	if err := db.Where("client_id = ?", clientID).Order("created_at desc").Find(&projects).Error; err != nil {
		return respondError(c, err, "projects", "retrieve")
	}

	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	var tasks []model.Task
	if len(ids) > 0 {
		if err := db.Where("project_id IN ?", ids).Find(&tasks).Error; err != nil {
			return respondError(c, err, "tasks", "retrieve")
		}
	}
	byProject := make(map[string][]model.Task)
	for _, t := range tasks {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}

	type projectView struct {
		model.Project
		Health service.ProjectHealth `json:"health"`
	}
	views := make([]projectView, 0, len(projects))
	at := now()
	for _, p := range projects {
		views = append(views, projectView{Project: p, Health: service.ScoreProject(p, byProject[p.ID], at)})
	}
	return c.JSON(http.StatusOK, echo.Map{"projects": views})
}

// PortalInvoices lists the client's invoices except drafts
func PortalInvoices(c echo.Context) error {
	prometheus.RecordOperation("portal", "invoices")

	var invoices []model.Invoice
	err := database.GetDB().
		Where("client_id = ? AND status <> ?", portalClientID(c), model.InvoiceStatusDraft).
		Order("issue_date desc").
		Find(&invoices).Error
	if err != nil {
		return respondError(c, err, "invoices", "retrieve")
	}
	return c.JSON(http.StatusOK, echo.Map{"invoices": invoices})
}

// PortalTickets lists the client's tickets
func PortalTickets(c echo.Context) error {
	prometheus.RecordOperation("portal", "tickets")

	var tickets []model.Ticket
	if err := database.GetDB().Where("client_id = ?", portalClientID(c)).Order("updated_at desc").Find(&tickets).Error; err != nil {
		return respondError(c, err, "tickets", "retrieve")
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

// PortalCreateTicket opens a ticket from the portal
func PortalCreateTicket(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("portal", "create_ticket")

	var req TicketRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}
	if err := required("message", req.Message); err != nil {
		return respondError(c, err, "ticket", "create")
	}

	ticket, err := newTicket(portalClientID(c), req.Subject, req.Priority, req.Message, model.SenderClient)
	if err != nil {
		return respondError(c, err, "ticket", "create")
	}
	if err := database.GetDB().Create(ticket).Error; err != nil {
		return respondError(c, err, "ticket", "create")
	}

	log.Info("Portal ticket opened", zap.String("ticket_id", ticket.ID))
	return c.JSON(http.StatusCreated, ticket)
}

// PortalAddTicketMessage appends a client message to one of the client's tickets
func PortalAddTicketMessage(c echo.Context) error {
	prometheus.RecordOperation("portal", "reply")

	var req TicketMessageRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	db := database.GetDB()
	var count int64
	if err := db.Model(&model.Ticket{}).Where("id = ? AND client_id = ?", c.Param("id"), portalClientID(c)).Count(&count).Error; err != nil {
		return respondError(c, err, "ticket", "update")
	}
	if count == 0 {
		return respondError(c, service.ErrNotFound, "ticket", "update")
	}

	ticket, err := service.AppendTicketMessage(c.Request().Context(), db, c.Param("id"), model.SenderClient, req.Body, now())
	if err != nil {
		return respondError(c, err, "ticket", "update")
	}
	return c.JSON(http.StatusOK, ticket)
}

// PortalNotifications lists the client's notifications
func PortalNotifications(c echo.Context) error {
	var notifications []model.Notification
	err := database.GetDB().
		Where("client_id = ?", portalClientID(c)).
		Order("created_at desc").
		Limit(maxPageSize).
		Find(&notifications).Error
	if err != nil {
		return respondError(c, err, "notifications", "retrieve")
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": notifications})
}
