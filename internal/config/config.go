// Package config loads the process configuration from environment
// variables. A local .env file is honored for development; in production
// the platform injects real env vars.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is immutable after Load.
type Config struct {
	Port string

	// Postgres
	DatabaseDSN string

	// Token service
	TokenSecretB64 string // base64-encoded HMAC key, decoded length >= 32 bytes
	TokenTTL       time.Duration

	// Optional externals — empty means "not configured", the app starts
	// against a no-op implementation.
	BrokerURL    string // amqp://...
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	AIServiceURL string

	// Mail relay
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string
	AppName  string

	// Payments
	PaymentWebhookSecret string

	// Rate limiting
	LoginMaxAttempts int
	LoginWindow      time.Duration
	RegisterMax      int
	RegisterWindow   time.Duration

	// Subscription
	TrialDays        int
	SubscriptionDays int
	AIChatLimitFree  int
	AIChatLimitTrial int
	AIChatLimitPaid  int

	DefaultCurrency string
	CORSOrigins     []string
}

// Load reads the environment. It fails only on values that would make the
// process unsafe to run (missing DSN, undersized token secret).
func Load() (*Config, error) {
	// Best effort — absence of .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		DatabaseDSN:    os.Getenv("DATABASE_URL"),
		TokenSecretB64: os.Getenv("JWT_SECRET"),
		TokenTTL:       durationEnv("JWT_TTL", 24*time.Hour),

		BrokerURL:    os.Getenv("BROKER_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:      intEnv("REDIS_DB", 0),
		AIServiceURL: getenv("AI_SERVICE_URL", ""),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: intEnv("SMTP_PORT", 587),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASSWORD"),
		MailFrom: os.Getenv("MAIL_FROM"),
		AppName:  getenv("APP_NAME", "AI Finance Assistant"),

		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),

		LoginMaxAttempts: intEnv("RATE_LIMIT_LOGIN_MAX", 5),
		LoginWindow:      durationEnv("RATE_LIMIT_LOGIN_WINDOW", time.Minute),
		RegisterMax:      intEnv("RATE_LIMIT_REGISTER_MAX", 3),
		RegisterWindow:   durationEnv("RATE_LIMIT_REGISTER_WINDOW", 10*time.Minute),

		TrialDays:        intEnv("TRIAL_DAYS", 5),
		SubscriptionDays: intEnv("SUBSCRIPTION_DAYS", 30),
		AIChatLimitFree:  intEnv("AI_CHAT_LIMIT_FREE", 3),
		AIChatLimitTrial: intEnv("AI_CHAT_LIMIT_TRIAL", 10),
		AIChatLimitPaid:  intEnv("AI_CHAT_LIMIT_ACTIVE", 50),

		DefaultCurrency: getenv("DEFAULT_CURRENCY", "USD"),
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	if err := validateTokenSecret(cfg.TokenSecretB64); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateTokenSecret enforces the >= 256-bit signing key requirement.
func validateTokenSecret(b64 string) error {
	if b64 == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("JWT_SECRET is not valid base64: %w", err)
	}
	if len(key) < 32 {
		return fmt.Errorf("JWT_SECRET decodes to %d bytes, need at least 32", len(key))
	}
	return nil
}

// TokenSecret returns the decoded signing key. Load has already validated it.
func (c *Config) TokenSecret() []byte {
	key, _ := base64.StdEncoding.DecodeString(c.TokenSecretB64)
	return key
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
