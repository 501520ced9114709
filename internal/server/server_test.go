package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-service/internal/handler"
	"crm-service/internal/model"
	"crm-service/internal/service"
	"crm-service/internal/testutil"
	"crm-service/pkg/config"
	"crm-service/pkg/jwtutil"
	"crm-service/pkg/mailer"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

type testServer struct {
	e      *echo.Echo
	db     *gorm.DB
	tokens *jwtutil.JWTUtil
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := config.Default()
	cfg.JWT.SigningKey = "test-signing-key"
	log := zap.NewNop()
	clock := func() time.Time { return testNow }

	tokens := jwtutil.New(cfg.JWT, cfg.Portal)
	emails := service.NewEmailService(mailer.NewLogSender(log), mailer.Address{Name: "CRM", Email: "crm@example.com"}, log)

	handler.Init(handler.Dependencies{
		Config:    cfg,
		Tokens:    tokens,
		Scanner:   service.NewExpiryScanner(db, log, service.WithClock(clock), service.WithReminders(emails)),
		Emails:    emails,
		Dashboard: service.NewDashboard(service.NewGormDashboardQueries(db), log, cfg.Scan.WindowDays),
		Now:       clock,
	})

	token, err := tokens.GenerateStaffToken("staff-1", "admin@example.com", model.RoleAdmin)
	require.NoError(t, err)

	return &testServer{e: New(cfg, tokens, log), db: db, tokens: tokens, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) api(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, body, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/health?check=db", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"up"`)
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/clients", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaffLogin(t *testing.T) {
	s := newTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, s.db.Create(&model.User{
		Name:         "Admin",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	}).Error)

	rec := s.do(t, http.MethodPost, "/auth/login", handler.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", handler.LoginRequest{Email: "Admin@Example.com", Password: "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, model.RoleAdmin, resp.User.Role)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	claims, err := s.tokens.ValidateStaffToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestClientErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(t, http.MethodGet, "/api/clients/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Client not found"}`, rec.Body.String())

	rec = s.api(t, http.MethodPost, "/api/clients", map[string]string{"email": "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"name: is required"}`, rec.Body.String())

	rec = s.api(t, http.MethodPost, "/api/clients", map[string]string{"name": "Acme", "email": "a@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.api(t, http.MethodPost, "/api/clients", map[string]string{"name": "Other", "email": "A@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientCRUDAndList(t *testing.T) {
	s := newTestServer(t)

	for _, name := range []string{"Acme", "Globex", "Initech"} {
		rec := s.api(t, http.MethodPost, "/api/clients", map[string]string{
			"name":  name,
			"email": name + "@example.com",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.api(t, http.MethodGet, "/api/clients?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Clients    []model.Client `json:"clients"`
		Pagination struct {
			Total      int64 `json:"total"`
			TotalPages int   `json:"total_pages"`
		} `json:"pagination"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Clients, 2)
	assert.EqualValues(t, 3, list.Pagination.Total)
	assert.Equal(t, 2, list.Pagination.TotalPages)

	rec = s.api(t, http.MethodGet, "/api/clients?q=glob", nil)
	decode(t, rec, &list)
	require.Len(t, list.Clients, 1)
	id := list.Clients[0].ID

	rec = s.api(t, http.MethodPut, "/api/clients/"+id, map[string]string{"phone": "555-0100"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.Client
	decode(t, rec, &updated)
	assert.Equal(t, "Globex", updated.Name)
	assert.Equal(t, "555-0100", updated.Phone)

	rec = s.api(t, http.MethodDelete, "/api/clients/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.api(t, http.MethodGet, "/api/clients/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpiryCheckCreatesOneNotification(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(t, http.MethodPost, "/api/clients", map[string]string{
		"name":             "Acme",
		"email":            "acme@example.com",
		"domainName":       "acme.test",
		"domainExpiryDate": testNow.AddDate(0, 0, 5).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var client model.Client
	decode(t, rec, &client)

	rec = s.api(t, http.MethodPost, "/api/notifications/check-expiry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result service.ScanResult
	decode(t, rec, &result)
	assert.Equal(t, 1, result.Created)

	rec = s.api(t, http.MethodPost, "/api/notifications/check-expiry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &result)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Skipped)

	rec = s.api(t, http.MethodGet, "/api/notifications?clientId="+client.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Notifications []model.Notification `json:"notifications"`
		UnreadCount   int64                `json:"unreadCount"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Notifications, 1)
	n := list.Notifications[0]
	assert.Equal(t, model.NotificationDomainExpiry, n.Type)
	assert.Equal(t, 5, n.DaysUntilExpiry)
	assert.False(t, n.IsRead)
	assert.EqualValues(t, 1, list.UnreadCount)

	rec = s.api(t, http.MethodPatch, "/api/notifications/"+n.ID+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var read model.Notification
	decode(t, rec, &read)
	assert.True(t, read.IsRead)
}

func TestProjectHealthRoutes(t *testing.T) {
	s := newTestServer(t)

	client := model.Client{Name: "Acme", Email: "acme@example.com", Status: model.ClientStatusActive}
	require.NoError(t, s.db.Create(&client).Error)
	project := model.Project{ClientID: client.ID, Name: "Site", Status: model.ProjectStatusInProgress, Budget: 10000}
	require.NoError(t, s.db.Create(&project).Error)
	for i := 0; i < 3; i++ {
		due := testNow.AddDate(0, 0, -2)
		require.NoError(t, s.db.Create(&model.Task{
			ProjectID: project.ID,
			Title:     "late",
			Status:    model.TaskStatusTodo,
			DueDate:   &due,
		}).Error)
	}

	rec := s.api(t, http.MethodGet, "/api/projects/"+project.ID+"/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health service.ProjectHealth
	decode(t, rec, &health)
	assert.Equal(t, service.HealthNeedsAttention, health.HealthStatus)
	assert.Equal(t, 3, health.OverdueTasks)

	rec = s.api(t, http.MethodGet, "/api/projects/"+client.ID+"/health", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.api(t, http.MethodGet, "/api/dashboard/project-health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), project.ID)
}

func TestDashboardStats(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, s.db.Create(&model.Client{Name: "Acme", Email: "acme@example.com"}).Error)

	rec := s.api(t, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats service.DashboardStats
	decode(t, rec, &stats)
	assert.EqualValues(t, 1, stats.TotalClients)
	assert.EqualValues(t, 0, stats.ActiveProjects)
	assert.Len(t, stats.RecentActivity, 1)
}

func TestInvoiceAndPaymentFlow(t *testing.T) {
	s := newTestServer(t)

	client := model.Client{Name: "Acme", Email: "acme@example.com"}
	require.NoError(t, s.db.Create(&client).Error)
	project := model.Project{ClientID: client.ID, Name: "Site", Status: model.ProjectStatusInProgress, Budget: 1000}
	require.NoError(t, s.db.Create(&project).Error)

	rec := s.api(t, http.MethodPost, "/api/invoices", map[string]interface{}{
		"clientId":  client.ID,
		"projectId": project.ID,
		"taxRate":   10,
		"items": []map[string]interface{}{
			{"description": "Design", "quantity": 2, "unitPrice": 250},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var inv model.Invoice
	decode(t, rec, &inv)
	assert.Equal(t, 500.0, inv.Subtotal)
	assert.Equal(t, 550.0, inv.Total)
	assert.Equal(t, "INV-202610-0001", inv.InvoiceNumber)

	rec = s.api(t, http.MethodPost, "/api/invoices/"+inv.ID+"/send", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.api(t, http.MethodPost, "/api/payments", map[string]interface{}{
		"clientId":  client.ID,
		"projectId": project.ID,
		"invoiceId": inv.ID,
		"amount":    550,
		"method":    model.PaymentMethodBankTransfer,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var reloaded model.Invoice
	require.NoError(t, s.db.First(&reloaded, "id = ?", inv.ID).Error)
	assert.Equal(t, model.InvoiceStatusPaid, reloaded.Status)

	var p model.Project
	require.NoError(t, s.db.First(&p, "id = ?", project.ID).Error)
	assert.Equal(t, 550.0, p.AmountPaid)
}

func TestPublicKnowledgeBase(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(t, http.MethodPost, "/api/kb", map[string]interface{}{
		"title":     "Getting Started",
		"content":   "Welcome",
		"published": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.api(t, http.MethodPost, "/api/kb", map[string]interface{}{
		"title":   "Internal Draft",
		"content": "Hidden",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/kb", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "getting-started")
	assert.NotContains(t, rec.Body.String(), "internal-draft")

	rec = s.do(t, http.MethodGet, "/kb/getting-started", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var a model.KBArticle
	decode(t, rec, &a)
	assert.Equal(t, 1, a.Views)

	rec = s.do(t, http.MethodGet, "/kb/internal-draft", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecreateAfterDelete(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(t, http.MethodPost, "/api/clients", map[string]string{"name": "Acme", "email": "acme@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var client model.Client
	decode(t, rec, &client)

	rec = s.api(t, http.MethodDelete, "/api/clients/"+client.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.api(t, http.MethodPost, "/api/clients", map[string]string{"name": "Acme", "email": "acme@example.com"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.api(t, http.MethodPost, "/api/kb", map[string]interface{}{"title": "Getting Started", "content": "v1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var article model.KBArticle
	decode(t, rec, &article)

	rec = s.api(t, http.MethodDelete, "/api/kb/"+article.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.api(t, http.MethodPost, "/api/kb", map[string]interface{}{"title": "Getting Started", "content": "v2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &article)
	assert.Equal(t, "getting-started", article.Slug)
}

func TestBulkEmailReportsUnknownClients(t *testing.T) {
	s := newTestServer(t)

	client := model.Client{Name: "Acme", Email: "acme@example.com"}
	require.NoError(t, s.db.Create(&client).Error)

	rec := s.api(t, http.MethodPost, "/api/emails/bulk", map[string]interface{}{
		"clientIds": []string{client.ID, "missing-id"},
		"subject":   "Maintenance",
		"message":   "Servers restart tonight.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res service.BulkResult
	decode(t, rec, &res)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "missing-id", res.Errors[0].ClientID)
}

func TestPortalSessionFlow(t *testing.T) {
	s := newTestServer(t)

	client := model.Client{Name: "Acme", Email: "acme@example.com"}
	require.NoError(t, s.db.Create(&client).Error)
	require.NoError(t, s.db.Create(&model.Invoice{
		ClientID:      client.ID,
		InvoiceNumber: "INV-202610-0001",
		IssueDate:     testNow,
		Status:        model.InvoiceStatusDraft,
	}).Error)
	require.NoError(t, s.db.Create(&model.Invoice{
		ClientID:      client.ID,
		InvoiceNumber: "INV-202610-0002",
		IssueDate:     testNow,
		Status:        model.InvoiceStatusSent,
	}).Error)

	login := handler.LoginRequest{Email: "acme@example.com", Password: "portal-pass"}

	rec := s.do(t, http.MethodPost, "/portal/login", login)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "portal disabled by default")

	rec = s.api(t, http.MethodPut, "/api/clients/"+client.ID+"/portal", map[string]interface{}{
		"password": "portal-pass",
		"enabled":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/portal/login", login)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	session := cookies[0]
	assert.Equal(t, "portal_session", session.Name)
	assert.True(t, session.HttpOnly)

	withSession := func(r *http.Request) { r.AddCookie(session) }

	rec = s.do(t, http.MethodGet, "/portal/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/portal/me", nil, withSession)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), client.ID)

	rec = s.do(t, http.MethodGet, "/portal/invoices", nil, withSession)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "INV-202610-0002")
	assert.NotContains(t, rec.Body.String(), "INV-202610-0001")

	rec = s.do(t, http.MethodPost, "/portal/tickets", map[string]string{
		"subject": "Site is down",
		"message": "Since this morning",
	}, withSession)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ticket model.Ticket
	decode(t, rec, &ticket)
	assert.Equal(t, client.ID, ticket.ClientID)
	require.Len(t, ticket.Messages, 1)
	assert.Equal(t, model.SenderClient, ticket.Messages[0].Sender)

	rec = s.do(t, http.MethodPost, "/portal/tickets/"+ticket.ID+"/messages", map[string]string{"body": "Any update?"}, withSession)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &ticket)
	assert.Len(t, ticket.Messages, 2)

	rec = s.do(t, http.MethodPost, "/portal/logout", nil, withSession)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
}
