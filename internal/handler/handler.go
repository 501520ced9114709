// Package handler implements the CRM's HTTP endpoints.
package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"crm-service/internal/service"
	"crm-service/pkg/config"
	"crm-service/pkg/jwtutil"
	"crm-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the collaborators shared by all handlers
type Dependencies struct {
	Config    *config.Config
	Tokens    *jwtutil.JWTUtil
	Scanner   *service.ExpiryScanner
	Emails    *service.EmailService
	Dashboard *service.Dashboard
	// Broker is nil when event publishing is disabled
	Broker BrokerStatus
	Now    func() time.Time
}

// BrokerStatus reports the message broker connection
type BrokerStatus interface {
	Connected() bool
}

var (
	appConfig *config.Config
	tokens    *jwtutil.JWTUtil
	scanner   *service.ExpiryScanner
	mail      *service.EmailService
	dashboard *service.Dashboard
	broker    BrokerStatus
	now       = time.Now
)

// Init installs the handler dependencies
func Init(deps Dependencies) {
	appConfig = deps.Config
	tokens = deps.Tokens
	scanner = deps.Scanner
	mail = deps.Emails
	dashboard = deps.Dashboard
	broker = deps.Broker
	if deps.Now != nil {
		now = deps.Now
	} else {
		now = time.Now
	}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// parsePagination reads page and limit query parameters
func parsePagination(c echo.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize // Default limit
	}

	return page, limit, (page - 1) * limit
}

func paginationMeta(page, limit int, total int64) echo.Map {
	return echo.Map{
		"current_page": page,
		"limit":        limit,
		"total":        total,
		"total_pages":  int(math.Ceil(float64(total) / float64(limit))),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// respondError maps an error to the API error taxonomy: bad input and
// duplicates are 400, missing records 404, anything else 500.
func respondError(c echo.Context, err error, resource, action string) error {
	log := logger.FromContext(c)

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Warn("Validation failed", zap.String("resource", resource), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error()})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("Record not found", zap.String("resource", resource))
		return c.JSON(http.StatusNotFound, echo.Map{"error": capitalize(resource) + " not found"})
	case errors.Is(err, gorm.ErrDuplicatedKey):
		log.Warn("Duplicate record", zap.String("resource", resource), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": capitalize(resource) + " already exists"})
	}

	log.Error("Failed to "+action+" "+resource, zap.Error(err))
	body := echo.Map{"error": "Failed to " + action + " " + resource}
	if appConfig == nil || !appConfig.Server.IsProduction() {
		body["details"] = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func bindError(c echo.Context, err error) error {
	logger.FromContext(c).Warn("Invalid request data", zap.Error(err))
	return badRequest(c, "Invalid request data")
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return service.Invalid(field, "is required")
	}
	return nil
}

// Date accepts RFC 3339 timestamps or plain YYYY-MM-DD dates. An empty string
// decodes to the zero time, which clears optional dates on update.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return service.Invalid("date", "expected YYYY-MM-DD or RFC 3339, got "+s)
	}
	d.Time = t
	return nil
}

// Ptr returns nil for an unset date
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
