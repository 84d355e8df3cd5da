package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`
	AdminAddr  string `env:"ADMIN_ADDR" envDefault:":9091"`

	RedisURL    string `env:"REDIS_URL,required"`
	PostgresURL string `env:"POSTGRES_URL"` // empty disables the audit sink

	// Base64-encoded 128/192/256-bit AES key for secrets at rest.
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	SignatureTolerance time.Duration `env:"SIGNATURE_TOLERANCE" envDefault:"300s"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitMax       int64         `env:"RATE_LIMIT_MAX" envDefault:"10"`
	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"3600s"`

	SessionNameFormat string        `env:"SESSION_NAME_FORMAT" envDefault:"Sunrin-{org_name}-{user_id}"`
	ReadonlyRoleName  string        `env:"READONLY_ROLE_NAME" envDefault:"SunrinPowerUser"`
	AWSRegion         string        `env:"AWS_REGION" envDefault:"us-east-1"`
	SessionDuration   time.Duration `env:"SESSION_DURATION" envDefault:"3600s"`

	TemplateBucket       string `env:"TEMPLATE_BUCKET"`
	TemplateKey          string `env:"TEMPLATE_KEY" envDefault:"stack.yaml"`
	TemplatePublicAccess bool   `env:"TEMPLATE_PUBLIC_ACCESS" envDefault:"false"`

	// Local path of the workload stack template deployed into customer
	// accounts.
	WorkloadTemplatePath string `env:"WORKLOAD_TEMPLATE_PATH" envDefault:"workload.yaml"`

	// In-process token bucket guarding the webhook endpoint per remote host.
	WebhookRPS   float64 `env:"WEBHOOK_RPS" envDefault:"5"`
	WebhookBurst int     `env:"WEBHOOK_BURST" envDefault:"10"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if _, err := cfg.DecodeEncryptionKey(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DecodeEncryptionKey decodes and validates the AES key material.
func (c *Config) DecodeEncryptionKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid base64: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 16, 24, or 32 bytes, got %d", len(key))
	}
}
