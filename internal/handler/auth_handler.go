package handler

import (
	"net/http"
	"strings"

	"crm-service/internal/middleware"
	"crm-service/internal/model"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"
	"crm-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LoginRequest carries credentials for staff and portal logins
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a staff user and returns a bearer token
func Login(c echo.Context) error {
	log := logger.FromContext(c)

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	// Find user by email
	var user model.User
	if err := database.GetDB().Where("email = ?", email).First(&user).Error; err != nil {
		prometheus.RecordAuthAttempt("staff", false)
		log.Warn("Login attempt for unknown user", zap.String("email", email))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		prometheus.RecordAuthAttempt("staff", false)
		log.Warn("Invalid password", zap.String("user_id", user.ID))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	}

	// Generate JWT token
	token, err := tokens.GenerateStaffToken(user.ID, user.Email, user.Role)
	if err != nil {
		return respondError(c, err, "token", "generate")
	}

	prometheus.RecordAuthAttempt("staff", true)
	log.Info("User logged in", zap.String("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"token":     token,
		"expiresIn": appConfig.JWT.ExpirationHours * 3600,
		"user":      user,
	})
}

// Me returns the authenticated staff user
func Me(c echo.Context) error {
	id, _ := middleware.GetUserIDFromContext(c)

	var user model.User
	if err := database.GetDB().First(&user, "id = ?", id).Error; err != nil {
		return respondError(c, err, "user", "retrieve")
	}
	return c.JSON(http.StatusOK, user)
}
