package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string          `yaml:"host"`
	Port            string          `yaml:"port"`
	User            string          `yaml:"user"`
	Password        string          `yaml:"password"`
	DBName          string          `yaml:"name"`
	SSLMode         string          `yaml:"sslmode"`
	MaxIdleConns    int             `yaml:"max_idle_conns"`
	MaxOpenConns    int             `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration   `yaml:"conn_max_lifetime"`
	LogLevel        logger.LogLevel `yaml:"-"`
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

// IsProduction reports whether the service runs with production settings.
func (c ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// JWTConfig holds JWT configuration for staff bearer tokens
type JWTConfig struct {
	SigningKey      string `yaml:"signing_key"`
	ExpirationHours int    `yaml:"expiration_hours"`
}

// PortalConfig holds the client portal session settings
type PortalConfig struct {
	CookieName   string `yaml:"cookie_name"`
	SessionHours int    `yaml:"session_hours"`
	SecureCookie bool   `yaml:"secure_cookie"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// SMTPConfig holds the outbound mail relay settings. An empty Host
// disables SMTP delivery and mail is only logged.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

// Addr returns host:port of the relay
func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig holds Redis configuration. An empty Addr disables dedup claims.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQConfig holds RabbitMQ configuration. An empty URL disables event publishing.
type MQConfig struct {
	URL string `yaml:"url"`
}

// ScanConfig holds expiry scan settings
type ScanConfig struct {
	WindowDays int           `yaml:"window_days"`
	DedupTTL   time.Duration `yaml:"dedup_ttl"`
}

// Config holds all configuration
type Config struct {
	ServiceName string       `yaml:"service_name"`
	DB          DBConfig     `yaml:"db"`
	Server      ServerConfig `yaml:"server"`
	JWT         JWTConfig    `yaml:"jwt"`
	Portal      PortalConfig `yaml:"portal"`
	Log         LogConfig    `yaml:"log"`
	SMTP        SMTPConfig   `yaml:"smtp"`
	Redis       RedisConfig  `yaml:"redis"`
	MQ          MQConfig     `yaml:"mq"`
	Scan        ScanConfig   `yaml:"scan"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		ServiceName: "crm-service",
		DB: DBConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "password",
			DBName:          "crm",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			LogLevel:        logger.Warn,
		},
		Server: ServerConfig{
			Port: "8080",
			Env:  "development",
		},
		JWT: JWTConfig{
			SigningKey:      "defaultsecretkey",
			ExpirationHours: 24,
		},
		Portal: PortalConfig{
			CookieName:   "portal_session",
			SessionHours: 24 * 7,
		},
		Log: LogConfig{
			Level: "info",
		},
		SMTP: SMTPConfig{
			Port:     587,
			From:     "no-reply@localhost",
			FromName: "CRM",
		},
		Scan: ScanConfig{
			WindowDays: 30,
			DedupTTL:   10 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and finally environment variables (highest priority).
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, err
		}
	}

	overrideFromEnv(cfg)

	if cfg.Scan.WindowDays <= 0 {
		return nil, fmt.Errorf("scan window must be positive, got %d", cfg.Scan.WindowDays)
	}

	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnv("DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.DBName = getEnv("DB_NAME", cfg.DB.DBName)
	cfg.DB.SSLMode = getEnv("DB_SSL_MODE", cfg.DB.SSLMode)
	cfg.DB.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", cfg.DB.MaxIdleConns)
	cfg.DB.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)
	cfg.DB.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", cfg.DB.ConnMaxLifetime)
	cfg.DB.LogLevel = getEnvAsLogLevel("DB_LOG_LEVEL", cfg.DB.LogLevel)

	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Env = getEnv("APP_ENV", cfg.Server.Env)

	cfg.JWT.SigningKey = getEnv("JWT_SIGNING_KEY", cfg.JWT.SigningKey)
	cfg.JWT.ExpirationHours = getEnvAsInt("JWT_EXPIRATION_HOURS", cfg.JWT.ExpirationHours)

	cfg.Portal.CookieName = getEnv("PORTAL_COOKIE_NAME", cfg.Portal.CookieName)
	cfg.Portal.SessionHours = getEnvAsInt("PORTAL_SESSION_HOURS", cfg.Portal.SessionHours)
	cfg.Portal.SecureCookie = getEnvAsBool("PORTAL_SECURE_COOKIE", cfg.Portal.SecureCookie)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvAsInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.User = getEnv("SMTP_USER", cfg.SMTP.User)
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.From)
	cfg.SMTP.FromName = getEnv("SMTP_FROM_NAME", cfg.SMTP.FromName)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.MQ.URL = getEnv("MQ_URL", cfg.MQ.URL)

	cfg.Scan.WindowDays = getEnvAsInt("EXPIRY_WINDOW_DAYS", cfg.Scan.WindowDays)
	cfg.Scan.DedupTTL = getEnvAsDuration("EXPIRY_DEDUP_TTL", cfg.Scan.DedupTTL)
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
