// Package config loads service settings from the environment, optionally
// seeded from a .env file in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds every tunable the service reads at startup.
type Settings struct {
	AppName     string
	AppVersion  string
	Description string
	Environment string
	Debug       bool

	Host      string
	Port      int
	APIPrefix string

	SecretKey        string
	SessionSecret    string
	SessionMaxAge    time.Duration
	JWTSecret        string
	JWTAlgorithm     string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	BcryptCost       int
	CORSOrigins      []string
	AllowedHosts     []string

	DatabaseURL     string
	DBPoolSize      int
	DBMaxOverflow   int
	RedisURL        string
	CeleryBrokerURL string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	AzureTenantID      string
	AzureClientID      string
	AzureClientSecret  string
	GCPProjectID       string
	GCPCredentialsPath string

	LogLevel  string
	LogFormat string
	LogFile   string

	EnableCostOptimization bool
	EnablePolicyEngine     bool
	EnableDriftDetection   bool
	EnableBackupAutomation bool

	RateLimitPerMinute int
	RateLimitBurst     int
	LoginRatePerMinute int
}

// Load reads settings from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	s := &Settings{
		AppName:     getenv("APP_NAME", "CloudOps Central"),
		AppVersion:  getenv("VERSION", "1.0.0"),
		Description: getenv("DESCRIPTION", "Multi-tenant cloud infrastructure management platform"),
		Environment: getenv("ENVIRONMENT", "development"),
		Debug:       getbool("DEBUG", false),

		Host:      getenv("HOST", "0.0.0.0"),
		Port:      getint("PORT", 8000),
		APIPrefix: getenv("API_V1_STR", "/api/v1"),

		SecretKey:       getenv("SECRET_KEY", ""),
		SessionSecret:   getenv("SESSION_SECRET", ""),
		SessionMaxAge:   time.Duration(getint("SESSION_MAX_AGE", 3600)) * time.Second,
		JWTSecret:       getenv("JWT_SECRET_KEY", ""),
		JWTAlgorithm:    getenv("JWT_ALGORITHM", "HS256"),
		AccessTokenTTL:  time.Duration(getint("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 60)) * time.Minute,
		RefreshTokenTTL: time.Duration(getint("JWT_REFRESH_TOKEN_EXPIRE_DAYS", 30)) * 24 * time.Hour,
		BcryptCost:      getint("BCRYPT_ROUNDS", 12),
		CORSOrigins:     getlist("BACKEND_CORS_ORIGINS"),
		AllowedHosts:    getlist("ALLOWED_HOSTS"),

		DatabaseURL:     getenv("DATABASE_URL", ""),
		DBPoolSize:      getint("DATABASE_POOL_SIZE", 10),
		DBMaxOverflow:   getint("DATABASE_MAX_OVERFLOW", 20),
		RedisURL:        getenv("REDIS_URL", ""),
		CeleryBrokerURL: getenv("CELERY_BROKER_URL", ""),

		AWSAccessKeyID:     getenv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY", ""),
		AWSRegion:          getenv("AWS_DEFAULT_REGION", "us-east-1"),
		AzureTenantID:      getenv("AZURE_TENANT_ID", ""),
		AzureClientID:      getenv("AZURE_CLIENT_ID", ""),
		AzureClientSecret:  getenv("AZURE_CLIENT_SECRET", ""),
		GCPProjectID:       getenv("GCP_PROJECT_ID", ""),
		GCPCredentialsPath: getenv("GCP_CREDENTIALS_PATH", ""),

		LogLevel:  getenv("LOG_LEVEL", "INFO"),
		LogFormat: getenv("LOG_FORMAT", "json"),
		LogFile:   getenv("LOG_FILE", ""),

		EnableCostOptimization: getbool("ENABLE_COST_OPTIMIZATION", true),
		EnablePolicyEngine:     getbool("ENABLE_POLICY_ENGINE", true),
		EnableDriftDetection:   getbool("ENABLE_DRIFT_DETECTION", true),
		EnableBackupAutomation: getbool("ENABLE_BACKUP_AUTOMATION", false),

		RateLimitPerMinute: getint("RATE_LIMIT_PER_MINUTE", 100),
		RateLimitBurst:     getint("RATE_LIMIT_BURST", 10),
		LoginRatePerMinute: getint("LOGIN_RATE_PER_MINUTE", 10),
	}

	if s.JWTSecret == "" {
		s.JWTSecret = s.SecretKey
	}
	if s.SessionSecret == "" {
		s.SessionSecret = s.SecretKey
	}
	if s.IsProduction() && s.SecretKey == "" {
		return nil, fmt.Errorf("config: SECRET_KEY is required in production")
	}
	return s, nil
}

// IsProduction reports whether the service runs in the production environment.
func (s *Settings) IsProduction() bool { return strings.EqualFold(s.Environment, "production") }

// IsDevelopment reports whether the service runs in the development environment.
func (s *Settings) IsDevelopment() bool { return strings.EqualFold(s.Environment, "development") }

// Addr returns the host:port listen address.
func (s *Settings) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getbool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getlist(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
