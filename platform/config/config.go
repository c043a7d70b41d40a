// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// WebhookConfig provides the shared secret inbound channel webhooks must present.
type WebhookConfig interface {
	GetWebhookSecret() string
}

// SchedulerConfig provides Redis/asynq settings for background jobs.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetPaymentSweepInterval() time.Duration
	GetOutboxPollInterval() time.Duration
}

// WhatsAppConfig provides settings for the WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
	GetPhoneDefaultRegion() string
}

// SMSConfig provides settings for the SNS text-message fallback channel.
type SMSConfig interface {
	GetSMSRegion() string
	GetSMSSenderID() string
	GetPhoneDefaultRegion() string
	IsSMSEnabled() bool
}

// EmailConfig provides SMTP settings for internal digests.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSalesInbox() string
	IsEmailEnabled() bool
}

// ThreadConfig provides conversation reconciliation policy.
type ThreadConfig interface {
	GetThreadReplyDBFallback() bool
}

// WorkflowConfig provides the workflow defaults document.
type WorkflowConfig interface {
	GetWorkflow() *WorkflowDefaults
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	MigrationsEnabled     bool
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	WebhookSecret         string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	WhatsAppURL           string
	WhatsAppKey           string
	WhatsAppDeviceID      string
	PhoneDefaultRegion    string
	SMSRegion             string
	SMSSenderID           string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
	SalesInbox            string
	ThreadReplyDBFallback bool
	PaymentSweepInterval  time.Duration
	OutboxPollInterval    time.Duration
	Workflow              *WorkflowDefaults
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// WebhookConfig implementation
func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetPaymentSweepInterval() time.Duration {
	return c.PaymentSweepInterval
}
func (c *Config) GetOutboxPollInterval() time.Duration {
	return c.OutboxPollInterval
}

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string        { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string        { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string   { return c.WhatsAppDeviceID }
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// SMSConfig implementation
func (c *Config) GetSMSRegion() string   { return c.SMSRegion }
func (c *Config) GetSMSSenderID() string { return c.SMSSenderID }
func (c *Config) IsSMSEnabled() bool     { return c.SMSRegion != "" }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetSalesInbox() string       { return c.SalesInbox }
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPHost != "" && c.EmailFromAddress != "" && c.SalesInbox != ""
}

// ThreadConfig implementation
func (c *Config) GetThreadReplyDBFallback() bool { return c.ThreadReplyDBFallback }

// WorkflowConfig implementation
func (c *Config) GetWorkflow() *WorkflowDefaults { return c.Workflow }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	workflow, err := LoadWorkflowDefaults(getEnv("WORKFLOW_DEFAULTS_PATH", ""))
	if err != nil {
		return nil, fmt.Errorf("load workflow defaults: %w", err)
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		MigrationsEnabled:     !strings.EqualFold(getEnv("DB_MIGRATIONS", "true"), "false"),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		WebhookSecret:         getEnv("WHATSAPP_WEBHOOK_SECRET", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		WhatsAppURL:           getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:           getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:      getEnv("WHATSAPP_DEVICE_ID", ""),
		PhoneDefaultRegion:    strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "IT")),
		SMSRegion:             getEnv("SMS_AWS_REGION", ""),
		SMSSenderID:           getEnv("SMS_SENDER_ID", ""),
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "CRM"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		SalesInbox:            getEnv("SALES_INBOX", ""),
		ThreadReplyDBFallback: !strings.EqualFold(getEnv("THREAD_REPLY_DB_FALLBACK", "true"), "false"),
		PaymentSweepInterval:  mustDuration(getEnv("PAYMENT_SWEEP_INTERVAL", "1h")),
		OutboxPollInterval:    mustDuration(getEnv("OUTBOX_POLL_INTERVAL", "5s")),
		Workflow:              workflow,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when SMTP_HOST is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
