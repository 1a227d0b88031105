package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Image generation service.
	GenBaseURL string
	GenModel   string
	GenAPIKey  string // platform fallback when no key is stored in the DB

	// Shared credit pool.
	GraceTiers []string

	// Guardrails.
	BlockedTopics  []string
	SafetyPreamble string
	RenderDailyCap int

	// Worker and gateway scheduling.
	WorkerSecret  string
	KickTimeout   time.Duration
	SweepInterval time.Duration
	SweepBatch    int

	// Object storage.
	StorageDriver     string
	StoragePath       string
	StorageBaseURL    string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Tenant credential encryption.
	CredentialSecret string

	// Notifications.
	NotifyWebhookURL string

	GeoIPDBPath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		GenBaseURL: getEnv("GEN_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GenModel:   getEnv("GEN_MODEL", "gemini-2.5-flash"),
		GenAPIKey:  os.Getenv("GEN_API_KEY"),

		GraceTiers: getEnvList("GRACE_TIERS", "tier1,tier2"),

		BlockedTopics:  getEnvList("BLOCKED_TOPICS", ""),
		SafetyPreamble: os.Getenv("SAFETY_PREAMBLE"),
		RenderDailyCap: getEnvInt("RENDER_DAILY_CAP", 25),

		WorkerSecret:  os.Getenv("WORKER_SECRET"),
		KickTimeout:   time.Second * time.Duration(getEnvInt("KICK_TIMEOUT_SECONDS", 3)),
		SweepInterval: time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 30)),
		SweepBatch:    getEnvInt("SWEEP_BATCH", 5),

		StorageDriver:     getEnv("STORAGE_DRIVER", "filesystem"),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),

		CredentialSecret: os.Getenv("CREDENTIAL_SECRET"),

		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),

		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StorageDriver {
	case "filesystem", "s3":
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be filesystem or s3, got %q", cfg.StorageDriver)
	}
	if cfg.StorageDriver == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
