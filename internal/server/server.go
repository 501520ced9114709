// Package server assembles the echo instance and the CRM routes.
package server

import (
	"crm-service/internal/handler"
	mid "crm-service/internal/middleware"
	"crm-service/internal/model"
	"crm-service/pkg/config"
	"crm-service/pkg/jwtutil"
	"crm-service/pkg/logger"
	"crm-service/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// New builds the HTTP server. handler.Init must have been called.
func New(cfg *config.Config, tokens *jwtutil.JWTUtil, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.PATCH, echo.DELETE, echo.OPTIONS},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(mid.RequestID)
	e.Use(logger.Middleware(log))
	e.Use(metrics.NewHTTPMetrics(cfg.ServiceName).Middleware())

	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))
	e.GET("/health", handler.Health)

	e.POST("/auth/login", handler.Login)

	// Public knowledge base
	e.GET("/kb", handler.PublicListKBArticles)
	e.GET("/kb/:slug", handler.PublicGetKBArticle)

	registerAPI(e.Group("/api", mid.StaffAuth(tokens)))
	registerPortal(e.Group("/portal"), tokens, cfg.Portal.CookieName)

	return e
}

func registerAPI(api *echo.Group) {
	api.GET("/me", handler.Me)

	clients := api.Group("/clients")
	clients.GET("", handler.ListClients)
	clients.GET("/:id", handler.GetClient)
	clients.POST("", handler.CreateClient)
	clients.PUT("/:id", handler.UpdateClient)
	clients.DELETE("/:id", handler.DeleteClient, mid.RequireRole(model.RoleAdmin))
	clients.PUT("/:id/portal", handler.SetPortalAccess)

	projects := api.Group("/projects")
	projects.GET("", handler.ListProjects)
	projects.GET("/:id", handler.GetProject)
	projects.GET("/:id/health", handler.GetProjectHealth)
	projects.POST("", handler.CreateProject)
	projects.PUT("/:id", handler.UpdateProject)
	projects.DELETE("/:id", handler.DeleteProject)

	tasks := api.Group("/tasks")
	tasks.GET("", handler.ListTasks)
	tasks.GET("/:id", handler.GetTask)
	tasks.POST("", handler.CreateTask)
	tasks.PUT("/:id", handler.UpdateTask)
	tasks.PATCH("/:id/status", handler.UpdateTaskStatus)
	tasks.DELETE("/:id", handler.DeleteTask)

	notifications := api.Group("/notifications")
	notifications.GET("", handler.ListNotifications)
	notifications.POST("", handler.CreateNotification)
	notifications.POST("/check-expiry", handler.CheckExpiry)
	notifications.POST("/read-all", handler.MarkAllNotificationsRead)
	notifications.PATCH("/:id/read", handler.MarkNotificationRead)
	notifications.DELETE("/:id", handler.DeleteNotification)

	tickets := api.Group("/tickets")
	tickets.GET("", handler.ListTickets)
	tickets.GET("/:id", handler.GetTicket)
	tickets.POST("", handler.CreateTicket)
	tickets.PUT("/:id", handler.UpdateTicket)
	tickets.POST("/:id/messages", handler.AddTicketMessage)
	tickets.DELETE("/:id", handler.DeleteTicket)

	invoices := api.Group("/invoices")
	invoices.GET("", handler.ListInvoices)
	invoices.GET("/:id", handler.GetInvoice)
	invoices.POST("", handler.CreateInvoice)
	invoices.PUT("/:id", handler.UpdateInvoice)
	invoices.POST("/:id/send", handler.SendInvoice)
	invoices.DELETE("/:id", handler.DeleteInvoice)

	payments := api.Group("/payments")
	payments.GET("", handler.ListPayments)
	payments.GET("/:id", handler.GetPayment)
	payments.POST("", handler.CreatePayment)
	payments.DELETE("/:id", handler.DeletePayment)

	kb := api.Group("/kb")
	kb.GET("", handler.ListKBArticles)
	kb.GET("/:id", handler.GetKBArticle)
	kb.POST("", handler.CreateKBArticle)
	kb.PUT("/:id", handler.UpdateKBArticle)
	kb.DELETE("/:id", handler.DeleteKBArticle)

	api.GET("/dashboard/stats", handler.GetDashboardStats)
	api.GET("/dashboard/project-health", handler.GetProjectHealthReport)

	api.POST("/emails/bulk", handler.SendBulkEmail)
}

func registerPortal(portal *echo.Group, tokens *jwtutil.JWTUtil, cookieName string) {
	portal.POST("/login", handler.PortalLogin)
	portal.POST("/logout", handler.PortalLogout)

	session := portal.Group("", mid.PortalSession(tokens, cookieName))
	session.GET("/me", handler.PortalMe)
	session.GET("/projects", handler.PortalProjects)
	session.GET("/invoices", handler.PortalInvoices)
	session.GET("/tickets", handler.PortalTickets)
	session.POST("/tickets", handler.PortalCreateTicket)
	session.POST("/tickets/:id/messages", handler.PortalAddTicketMessage)
	session.GET("/notifications", handler.PortalNotifications)
}
