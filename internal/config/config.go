package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Debug          bool
	AllowedOrigins []string

	// Verification configuration
	VerifyTimeout      time.Duration
	VerifyWorkers      int
	CommentConcurrency int
	VerifyRateLimit    float64 // outbound requests per second, 0 disables
	UserAgent          string
	MaxBodyBytes       int64
	MaxRedirects       int
	StrictDialGuard    bool

	// Toxicity scorer configuration
	ToxicityURL             string
	ToxicityRedThreshold    float64
	ToxicityYellowThreshold float64

	// Storage configuration
	StorageBackend   string // "azure" or "local"
	StorageAccount   string
	StorageContainer string
	LocalStorageDir  string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Schedule for persisting telemetry snapshots (cron with seconds field)
	StatsSchedule string

	// Comment sources
	RedditClientID     string
	RedditClientSecret string
	MaxSourceComments  int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8000"),
		Debug:          getBoolEnv("DEBUG", false),
		AllowedOrigins: getSliceEnv("ALLOWED_ORIGINS", []string{"*"}),

		VerifyTimeout:      getDurationEnv("VERIFY_TIMEOUT", 10*time.Second),
		VerifyWorkers:      getIntEnv("VERIFY_WORKERS", 8),
		CommentConcurrency: getIntEnv("COMMENT_CONCURRENCY", 4),
		VerifyRateLimit:    getFloatEnv("VERIFY_RATE_LIMIT", 0),
		UserAgent:          getEnv("VERIFY_USER_AGENT", "TL-Verifier/1.0 (+evidence-check)"),
		MaxBodyBytes:       int64(getIntEnv("MAX_BODY_BYTES", 2*1024*1024)),
		MaxRedirects:       getIntEnv("MAX_REDIRECTS", 10),
		StrictDialGuard:    getBoolEnv("STRICT_DIAL_GUARD", true),

		ToxicityURL:             getEnv("TOXICITY_URL", ""),
		ToxicityRedThreshold:    getFloatEnv("TOXICITY_RED_THRESHOLD", 0.7),
		ToxicityYellowThreshold: getFloatEnv("TOXICITY_YELLOW_THRESHOLD", 0.3),

		StorageBackend:   getEnv("STORAGE_BACKEND", "local"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "trustlens-reports"),
		LocalStorageDir:  getEnv("LOCAL_STORAGE_DIR", "artifacts"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		StatsSchedule: getEnv("STATS_SCHEDULE", "0 0 * * * *"),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		MaxSourceComments:  getIntEnv("MAX_SOURCE_COMMENTS", 500),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no environment is present
func Default() *Config {
	return &Config{
		Port:                    "8000",
		AllowedOrigins:          []string{"*"},
		VerifyTimeout:           10 * time.Second,
		VerifyWorkers:           8,
		CommentConcurrency:      4,
		UserAgent:               "TL-Verifier/1.0 (+evidence-check)",
		MaxBodyBytes:            2 * 1024 * 1024,
		MaxRedirects:            10,
		StrictDialGuard:         true,
		ToxicityRedThreshold:    0.7,
		ToxicityYellowThreshold: 0.3,
		StorageBackend:          "local",
		StorageContainer:        "trustlens-reports",
		LocalStorageDir:         "artifacts",
		SMTPPort:                587,
		StatsSchedule:           "0 0 * * * *",
		MaxSourceComments:       500,
	}
}

func (c *Config) validate() error {
	if c.VerifyTimeout <= 0 {
		return fmt.Errorf("VERIFY_TIMEOUT must be positive")
	}

	if c.VerifyWorkers < 1 || c.CommentConcurrency < 1 {
		return fmt.Errorf("VERIFY_WORKERS and COMMENT_CONCURRENCY must be at least 1")
	}

	if c.ToxicityYellowThreshold < 0 || c.ToxicityRedThreshold > 1 || c.ToxicityYellowThreshold > c.ToxicityRedThreshold {
		return fmt.Errorf("toxicity thresholds must satisfy 0 <= yellow <= red <= 1")
	}

	switch c.StorageBackend {
	case "local":
		if c.LocalStorageDir == "" {
			return fmt.Errorf("LOCAL_STORAGE_DIR is required for the local storage backend")
		}
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required for the azure storage backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be 'local' or 'azure'")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
