package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
	Alerts   AlertConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// Coarse per-IP request ceiling on /auth endpoints, independent of the ledger
	AuthRequestsPerMinute int
	// Per-user request ceiling on authenticated endpoints
	APIRequestsPerMinute int
	CORSAllowedOrigins   []string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// SecurityConfig holds the login defense thresholds. It is built once at startup
// and passed by value into every component that needs it.
type SecurityConfig struct {
	MaxAttemptsPerAccount   int
	MaxAttemptsPerOrigin    int
	Window                  time.Duration
	LockoutDuration         time.Duration
	Retention               time.Duration
	StorageTimeout          time.Duration
	MaintenanceInitialDelay time.Duration
	MaintenanceInterval     time.Duration
	ReportInterval          time.Duration
	TopN                    int
}

// AlertConfig controls the daily security digest
type AlertConfig struct {
	FailedAttemptsThreshold int64
	ActiveLockoutsThreshold int64
	SESRegion               string
	FromAddress             string
	Recipients              []string
}

// Enabled reports whether alert emails should be sent
func (c AlertConfig) Enabled() bool {
	return c.SESRegion != "" && c.FromAddress != "" && len(c.Recipients) > 0
}

// DefaultSecurityConfig returns the production defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxAttemptsPerAccount:   5,
		MaxAttemptsPerOrigin:    10,
		Window:                  15 * time.Minute,
		LockoutDuration:         15 * time.Minute,
		Retention:               24 * time.Hour,
		StorageTimeout:          2 * time.Second,
		MaintenanceInitialDelay: 5 * time.Minute,
		MaintenanceInterval:     1 * time.Hour,
		ReportInterval:          24 * time.Hour,
		TopN:                    10,
	}
}

// WindowMinutes returns the counting window in whole minutes
func (c SecurityConfig) WindowMinutes() int {
	return int(c.Window / time.Minute)
}

// Validate rejects thresholds and durations that would disable or invert the defense
func (c SecurityConfig) Validate() error {
	if c.MaxAttemptsPerAccount <= 0 {
		return &models.ConfigurationError{Field: "MaxAttemptsPerAccount", Reason: "must be positive"}
	}
	if c.MaxAttemptsPerOrigin <= 0 {
		return &models.ConfigurationError{Field: "MaxAttemptsPerOrigin", Reason: "must be positive"}
	}
	if c.Window < time.Minute || c.Window%time.Minute != 0 {
		return &models.ConfigurationError{Field: "Window", Reason: "must be a positive whole number of minutes"}
	}
	if c.LockoutDuration <= 0 {
		return &models.ConfigurationError{Field: "LockoutDuration", Reason: "must be positive"}
	}
	if c.Retention < c.Window {
		return &models.ConfigurationError{Field: "Retention", Reason: "must not be shorter than Window"}
	}
	if c.StorageTimeout <= 0 {
		return &models.ConfigurationError{Field: "StorageTimeout", Reason: "must be positive"}
	}
	if c.MaintenanceInitialDelay < 0 {
		return &models.ConfigurationError{Field: "MaintenanceInitialDelay", Reason: "must not be negative"}
	}
	if c.MaintenanceInterval <= 0 {
		return &models.ConfigurationError{Field: "MaintenanceInterval", Reason: "must be positive"}
	}
	if c.ReportInterval <= 0 {
		return &models.ConfigurationError{Field: "ReportInterval", Reason: "must be positive"}
	}
	if c.TopN <= 0 {
		return &models.ConfigurationError{Field: "TopN", Reason: "must be positive"}
	}
	return nil
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")
	sec := DefaultSecurityConfig()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "stockroom"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Port:                  getEnv("PORT", "8080"),
			Env:                   env,
			LogLevel:              getEnv("LOG_LEVEL", "info"),
			TrustedProxies:        getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:           getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:          getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:           getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AuthRequestsPerMinute: getEnvAsInt("AUTH_REQUESTS_PER_MINUTE", 30),
			APIRequestsPerMinute:  getEnvAsInt("API_REQUESTS_PER_MINUTE", 300),
			CORSAllowedOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
		},
		Security: SecurityConfig{
			MaxAttemptsPerAccount:   getEnvAsInt("SECURITY_MAX_ATTEMPTS_PER_ACCOUNT", sec.MaxAttemptsPerAccount),
			MaxAttemptsPerOrigin:    getEnvAsInt("SECURITY_MAX_ATTEMPTS_PER_ORIGIN", sec.MaxAttemptsPerOrigin),
			Window:                  getEnvAsDuration("SECURITY_WINDOW", sec.Window),
			LockoutDuration:         getEnvAsDuration("SECURITY_LOCKOUT_DURATION", sec.LockoutDuration),
			Retention:               getEnvAsDuration("SECURITY_RETENTION", sec.Retention),
			StorageTimeout:          getEnvAsDuration("SECURITY_STORAGE_TIMEOUT", sec.StorageTimeout),
			MaintenanceInitialDelay: getEnvAsDuration("SECURITY_MAINTENANCE_INITIAL_DELAY", sec.MaintenanceInitialDelay),
			MaintenanceInterval:     getEnvAsDuration("SECURITY_MAINTENANCE_INTERVAL", sec.MaintenanceInterval),
			ReportInterval:          getEnvAsDuration("SECURITY_REPORT_INTERVAL", sec.ReportInterval),
			TopN:                    sec.TopN,
		},
		Alerts: AlertConfig{
			FailedAttemptsThreshold: int64(getEnvAsInt("ALERT_FAILED_ATTEMPTS_THRESHOLD", 100)),
			ActiveLockoutsThreshold: int64(getEnvAsInt("ALERT_ACTIVE_LOCKOUTS_THRESHOLD", 5)),
			SESRegion:               getEnv("ALERT_SES_REGION", ""),
			FromAddress:             getEnv("ALERT_FROM_ADDRESS", ""),
			Recipients:              getEnvAsList("ALERT_RECIPIENTS"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Security.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
