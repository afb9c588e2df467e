package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

type Config struct {
	AppEnv  string
	GinMode string
	Port    string
	Version string

	DBDriver       string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// RedisURL is the queue backend URL. Empty selects the in-process queue.
	RedisURL      string
	SessionSecret string
	JWTSecret     string
	JWTTTL        time.Duration

	LogLevel          string
	LogFormat         string
	TelemetryKey      string
	TelemetryEndpoint string

	WorkerConcurrency int
	MailMaxRetries    int
	SMTPHost          string
	SMTPPort          string
	SMTPUsername      string
	SMTPPassword      string
	MailFrom          string

	// Warnings collects problems found while loading, reported once a logger exists.
	Warnings []string
}

func Load() *Config {
	cfg := &Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		cfg.warnf("failed to load .env file: %v", err)
	}

	cfg.AppEnv = getEnv("APP_ENV", EnvDevelopment)
	cfg.GinMode = getEnv("GIN_MODE", "debug")
	cfg.Port = getEnv("PORT", "8080")
	cfg.Version = getEnv("APP_VERSION", "dev")

	cfg.DBDriver = getEnv("DB_DRIVER", "mysql")
	cfg.DBHost = getEnv("DB_HOST", "localhost")
	cfg.DBPort = getEnv("DB_PORT", defaultDBPort(cfg.DBDriver))
	cfg.DBUser = getEnv("DB_USER", "taskuser")
	cfg.DBPassword = getEnv("DB_PASSWORD", "taskpassword")
	cfg.DBName = getEnv("DB_NAME", "taskflow")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.DBMaxOpenConns = cfg.getInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = cfg.getInt("DB_MAX_IDLE_CONNS", 5)

	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.SessionSecret = getEnv("SESSION_SECRET", "default-secret-key-change-me")
	cfg.JWTSecret = getEnv("JWT_SECRET", "default-jwt-secret-change-me")
	cfg.JWTTTL = cfg.getDuration("JWT_TTL", 24*time.Hour)

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "")
	cfg.TelemetryKey = getEnv("TELEMETRY_KEY", "")
	cfg.TelemetryEndpoint = getEnv("TELEMETRY_ENDPOINT", "")

	cfg.WorkerConcurrency = cfg.getInt("WORKER_CONCURRENCY", 5)
	cfg.MailMaxRetries = cfg.getInt("MAIL_MAX_RETRIES", 3)
	cfg.SMTPHost = getEnv("SMTP_HOST", "")
	cfg.SMTPPort = getEnv("SMTP_PORT", "587")
	cfg.SMTPUsername = getEnv("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnv("SMTP_PASSWORD", "")
	cfg.MailFrom = getEnv("MAIL_FROM", "no-reply@taskflow.local")

	return cfg
}

// IsProduction reports whether internal error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// DSN returns the connection string for the configured driver.
// DATABASE_URL takes precedence over the individual DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	switch c.DBDriver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
	case "sqlite":
		return c.DBName + ".db"
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	}
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func (c *Config) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		c.warnf("invalid integer for %s: %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func (c *Config) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		c.warnf("invalid duration for %s: %q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func defaultDBPort(driver string) string {
	if driver == "postgres" {
		return "5432"
	}
	return "3306"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
