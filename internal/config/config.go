// Package config loads lexwatch settings from the environment and an
// optional config file.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP Server Configuration
	HTTPPort           int
	CORSAllowedOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Database Configuration (empty DatabaseURL disables the archive)
	DatabaseDriver string
	DatabaseURL    string

	// Authentication Configuration
	AdminUsername  string
	AdminPassword  string
	JWTSecret      string
	JWTExpiryHours int
	DataDir        string
	// IngestAPIKeys authorize producers posting to the ingest endpoint
	IngestAPIKeys []string

	// Alerting
	AlertDeduplicationWindow time.Duration
	CorrelationEnabled       bool
	CorrelationWindow        time.Duration
	NotifyMinSeverity        alerts.Severity
	ChannelTimeout           time.Duration
	CleanupInterval          time.Duration
	ResolvedAlertMaxAge      time.Duration
	// ArchiveRetention bounds how long resolved alerts stay in the archive; 0 keeps them forever.
	ArchiveRetention time.Duration
	PatternsFile     string

	// Slack
	SlackWebhookURL string
	SlackBotToken   string
	SlackChannel    string

	// PagerDuty
	PagerDutyRoutingKey string
	PagerDutyEventsURL  string

	// SMS (Twilio)
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	SMSRecipients    []string
	SMSMinSeverity   alerts.Severity
	SMSPerMinute     int

	// Generic webhooks
	WebhookURLs      []string
	WebhookAuthToken string

	// Email
	EmailSMTPURL      string
	EmailRecipients   []string
	EmailCriticalOnly bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", 3000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("DATA_DIR", "/var/lib/lexwatch")
	v.SetDefault("ALERT_DEDUPLICATION_WINDOW_MS", 300000)
	v.SetDefault("CORRELATION_ENABLED", true)
	v.SetDefault("CORRELATION_WINDOW_MS", 300000)
	v.SetDefault("NOTIFY_MIN_SEVERITY", "info")
	v.SetDefault("CHANNEL_TIMEOUT", "10s")
	v.SetDefault("CLEANUP_INTERVAL", "5m")
	v.SetDefault("RESOLVED_ALERT_MAX_AGE", "24h")
	v.SetDefault("ARCHIVE_RETENTION", "720h")
	v.SetDefault("SMS_MIN_SEVERITY", "critical")
	v.SetDefault("SMS_PER_MINUTE", 10)
	v.SetDefault("EMAIL_CRITICAL_ONLY", true)
}

// Load reads configuration from environment variables and, when
// configFile is not empty, from that file. Environment values win.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPPort:           v.GetInt("HTTP_PORT"),
		CORSAllowedOrigins: getList(v, "CORS_ALLOWED_ORIGINS"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		DatabaseDriver:     v.GetString("DATABASE_DRIVER"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		AdminUsername:      v.GetString("ADMIN_USERNAME"),
		AdminPassword:      v.GetString("ADMIN_PASSWORD"), // No default - must be set
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTExpiryHours:     v.GetInt("JWT_EXPIRY_HOURS"),
		DataDir:            v.GetString("DATA_DIR"),
		IngestAPIKeys:      getList(v, "INGEST_API_KEYS"),

		AlertDeduplicationWindow: time.Duration(v.GetInt64("ALERT_DEDUPLICATION_WINDOW_MS")) * time.Millisecond,
		CorrelationEnabled:       v.GetBool("CORRELATION_ENABLED"),
		CorrelationWindow:        time.Duration(v.GetInt64("CORRELATION_WINDOW_MS")) * time.Millisecond,
		ChannelTimeout:           v.GetDuration("CHANNEL_TIMEOUT"),
		CleanupInterval:          v.GetDuration("CLEANUP_INTERVAL"),
		ResolvedAlertMaxAge:      v.GetDuration("RESOLVED_ALERT_MAX_AGE"),
		ArchiveRetention:         v.GetDuration("ARCHIVE_RETENTION"),
		PatternsFile:             v.GetString("PATTERNS_FILE"),

		SlackWebhookURL: v.GetString("SLACK_WEBHOOK_URL"),
		SlackBotToken:   v.GetString("SLACK_BOT_TOKEN"),
		SlackChannel:    v.GetString("SLACK_ALERTS_CHANNEL"),

		PagerDutyRoutingKey: v.GetString("PAGERDUTY_ROUTING_KEY"),
		PagerDutyEventsURL:  v.GetString("PAGERDUTY_EVENTS_URL"),

		TwilioAccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: v.GetString("TWILIO_FROM_NUMBER"),
		SMSRecipients:    getList(v, "SMS_RECIPIENTS"),
		SMSPerMinute:     v.GetInt("SMS_PER_MINUTE"),

		WebhookURLs:      getList(v, "WEBHOOK_URLS"),
		WebhookAuthToken: v.GetString("WEBHOOK_AUTH_TOKEN"),

		EmailSMTPURL:      v.GetString("EMAIL_SMTP_URL"),
		EmailRecipients:   getList(v, "EMAIL_RECIPIENTS"),
		EmailCriticalOnly: v.GetBool("EMAIL_CRITICAL_ONLY"),
	}

	var err error
	if cfg.NotifyMinSeverity, err = alerts.ParseSeverity(v.GetString("NOTIFY_MIN_SEVERITY")); err != nil {
		return nil, fmt.Errorf("NOTIFY_MIN_SEVERITY: %w", err)
	}
	if cfg.SMSMinSeverity, err = alerts.ParseSeverity(v.GetString("SMS_MIN_SEVERITY")); err != nil {
		return nil, fmt.Errorf("SMS_MIN_SEVERITY: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the alerting core cannot run with
func (c *Config) Validate() error {
	var errs []error
	// A zero dedup window disables deduplication.
	if c.AlertDeduplicationWindow < 0 {
		errs = append(errs, errors.New("ALERT_DEDUPLICATION_WINDOW_MS must not be negative"))
	}
	if c.CorrelationWindow <= 0 {
		errs = append(errs, errors.New("CORRELATION_WINDOW_MS must be positive"))
	}
	if c.ChannelTimeout <= 0 {
		errs = append(errs, errors.New("CHANNEL_TIMEOUT must be positive"))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("CLEANUP_INTERVAL must be positive"))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT %d out of range", c.HTTPPort))
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver))
	}
	return errors.Join(errs...)
}

// EnsureJWTSecret fills JWTSecret from DataDir/.jwt_secret, generating and
// persisting a new one when neither the env nor the file provides it.
func (c *Config) EnsureJWTSecret(logger *zap.Logger) {
	if c.JWTSecret != "" {
		logger.Info("using JWT secret from environment")
		return
	}
	secretPath := filepath.Join(c.DataDir, ".jwt_secret")

	if data, err := os.ReadFile(secretPath); err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			logger.Info("loaded JWT secret", zap.String("path", secretPath))
			c.JWTSecret = secret
			return
		}
	}

	c.JWTSecret = generateSecureSecret(32) // 256 bits

	if err := os.MkdirAll(filepath.Dir(secretPath), 0755); err != nil {
		logger.Warn("could not create directory for JWT secret", zap.Error(err))
		return
	}
	if err := os.WriteFile(secretPath, []byte(c.JWTSecret), 0600); err != nil {
		logger.Warn("could not save JWT secret", zap.Error(err))
		return
	}
	logger.Info("generated and saved new JWT secret", zap.String("path", secretPath))
}

// generateSecureSecret generates a cryptographically secure random string
func generateSecureSecret(bytes int) string {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// getList reads a comma separated env value or a list from the config file
func getList(v *viper.Viper, key string) []string {
	var raw []string
	if s, ok := v.Get(key).(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
