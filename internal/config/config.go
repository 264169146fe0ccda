package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"
)

type Config struct {
	Port              int
	DatabaseURL       string
	RedisURL          string
	SiteURL           string
	JWTSecret         string
	AdminUser         string
	AdminPasswordHash string
	LogLevel          string

	ArticleReadThreshold int
	DismissGrace         time.Duration
	SubmitTimeout        time.Duration
	SessionTTL           time.Duration
	ReadsTTL             time.Duration

	NotifyChannelType string
	NotifyWebhookURL  string
	WorkerConcurrency int
}

func Load() *Config {
	return &Config{
		Port:              envInt("PORT", 8080),
		DatabaseURL:       env("DATABASE_URL", "postgres://storydraw:storydraw@db:5432/storydraw?sslmode=disable"),
		RedisURL:          env("REDIS_URL", "redis:6379"),
		SiteURL:           env("SITE_URL", "http://localhost:3000"),
		JWTSecret:         env("JWT_SECRET", "change-me-in-production"),
		AdminUser:         env("ADMIN_USER", "admin"),
		AdminPasswordHash: env("ADMIN_PASSWORD_HASH", ""),
		LogLevel:          env("LOG_LEVEL", "info"),

		ArticleReadThreshold: envInt("ARTICLE_READ_THRESHOLD", 5),
		DismissGrace:         envDuration("DISMISS_GRACE", time.Second),
		SubmitTimeout:        envDuration("SUBMIT_TIMEOUT", 10*time.Second),
		SessionTTL:           envDuration("SESSION_TTL", 30*time.Minute),
		ReadsTTL:             envDuration("READS_TTL", 60*24*time.Hour),

		NotifyChannelType: env("NOTIFY_CHANNEL_TYPE", "generic"),
		NotifyWebhookURL:  env("NOTIFY_WEBHOOK_URL", ""),
		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 2),
	}
}

// SettingsSource supplies the runtime overrides stored in system_settings.
type SettingsSource interface {
	GetAll(ctx context.Context) (map[string]string, error)
}

// MergeFromDB applies runtime overrides from system_settings.
func (c *Config) MergeFromDB(ctx context.Context, src SettingsSource, log *zap.Logger) {
	settings, err := src.GetAll(ctx)
	if err != nil {
		log.Warn("config: skipping DB merge", zap.Error(err))
		return
	}
	c.Apply(settings, log)
}

// SettingKeys are the system_settings keys Apply understands.
var SettingKeys = []string{
	"article_read_threshold",
	"dismiss_grace",
	"submit_timeout",
	"notify_channel_type",
	"notify_webhook_url",
}

// ValidateSetting reports whether value is acceptable for key.
func ValidateSetting(key, value string) error {
	switch key {
	case "article_read_threshold":
		if v, err := cast.ToIntE(value); err != nil || v <= 0 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
	case "dismiss_grace":
		if v, err := parseDuration(value); err != nil || v < 0 {
			return fmt.Errorf("%s must be a non-negative duration", key)
		}
	case "submit_timeout":
		if v, err := parseDuration(value); err != nil || v <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	case "notify_channel_type":
		switch value {
		case "discord", "slack", "generic":
		default:
			return fmt.Errorf("%s must be discord, slack or generic", key)
		}
	case "notify_webhook_url":
		if value != "" && !strings.HasPrefix(value, "https://") && !strings.HasPrefix(value, "http://") {
			return fmt.Errorf("%s must be an http(s) URL", key)
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Apply merges known setting keys. Invalid values are logged and skipped.
func (c *Config) Apply(settings map[string]string, log *zap.Logger) {
	for key, value := range settings {
		if err := ValidateSetting(key, value); err != nil {
			log.Warn("config: bad setting", zap.String("key", key), zap.String("value", value), zap.Error(err))
			continue
		}
		switch key {
		case "article_read_threshold":
			c.ArticleReadThreshold = cast.ToInt(value)
		case "dismiss_grace":
			c.DismissGrace, _ = parseDuration(value)
		case "submit_timeout":
			c.SubmitTimeout, _ = parseDuration(value)
		case "notify_channel_type":
			c.NotifyChannelType = value
		case "notify_webhook_url":
			c.NotifyWebhookURL = value
		}
	}
}

func (c *Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPasswordHash != ""
}

func (c *Config) NotificationsEnabled() bool {
	return c.NotifyWebhookURL != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := parseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// parseDuration rejects bare numbers other than 0, which cast would read
// as nanoseconds.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if _, err := strconv.ParseFloat(v, 64); err == nil && v != "0" {
		return 0, fmt.Errorf("duration %q has no unit", v)
	}
	return cast.ToDurationE(v)
}
