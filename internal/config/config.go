package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/publisher"
	"github.com/spf13/viper"
)

// Режимы publisher'а.
const (
	PublisherModeLog     = publisher.ModeLog
	PublisherModeWebhook = publisher.ModeWebhook
)

// Config — конфигурация herald-api и herald-scheduler.
type Config struct {
	DatabaseURL string
	RabbitMQURL string // пусто — без RabbitMQ
	RedisURL    string // пусто — lease через Postgres

	APIPort   int
	SchedPort int

	LogLevel  string
	LogFormat string

	MaxRetryCount  int
	PostingHour    int
	PublishTimeout time.Duration
	ClaimLease     time.Duration

	TriggerCron        string
	TriggerConcurrency int
	TriggerBatchSize   int
	LeaseTTL           time.Duration // только для Redis lease

	DefaultPlatform domain.Platform

	PublisherMode       string
	PublisherWebhookURL string
	PublishRatePerSec   float64
}

var defaults = map[string]any{
	"DB_URL":                "",
	"RABBITMQ_URL":          "",
	"REDIS_URL":             "",
	"API_PORT":              8080,
	"SCHED_PORT":            8081,
	"LOG_LEVEL":             "INFO",
	"LOG_FORMAT":            "json",
	"MAX_RETRY_COUNT":       3,
	"POSTING_HOUR":          19,
	"PUBLISH_TIMEOUT":       30 * time.Second,
	"CLAIM_LEASE":           2 * time.Minute,
	"TRIGGER_CRON":          "@every 1m",
	"TRIGGER_CONCURRENCY":   1,
	"TRIGGER_BATCH_SIZE":    100,
	"LEASE_TTL":             3 * time.Minute,
	"DEFAULT_PLATFORM":      string(domain.PlatformTwitter),
	"PUBLISHER_MODE":        PublisherModeLog,
	"PUBLISHER_WEBHOOK_URL": "",
	"PUBLISH_RATE_PER_SEC":  0.0,
}

// Load читает .env (если есть) и окружение.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper собирает Config из заполненного viper и валидирует его.
func FromViper(v *viper.Viper) (*Config, error) {
	platform, err := domain.ParsePlatform(v.GetString("DEFAULT_PLATFORM"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_PLATFORM: %w", err)
	}

	cfg := &Config{
		DatabaseURL: v.GetString("DB_URL"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		RedisURL:    v.GetString("REDIS_URL"),

		APIPort:   v.GetInt("API_PORT"),
		SchedPort: v.GetInt("SCHED_PORT"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),

		MaxRetryCount:  v.GetInt("MAX_RETRY_COUNT"),
		PostingHour:    v.GetInt("POSTING_HOUR"),
		PublishTimeout: v.GetDuration("PUBLISH_TIMEOUT"),
		ClaimLease:     v.GetDuration("CLAIM_LEASE"),

		TriggerCron:        strings.TrimSpace(v.GetString("TRIGGER_CRON")),
		TriggerConcurrency: v.GetInt("TRIGGER_CONCURRENCY"),
		TriggerBatchSize:   v.GetInt("TRIGGER_BATCH_SIZE"),
		LeaseTTL:           v.GetDuration("LEASE_TTL"),

		DefaultPlatform: platform,

		PublisherMode:       strings.ToLower(v.GetString("PUBLISHER_MODE")),
		PublisherWebhookURL: v.GetString("PUBLISHER_WEBHOOK_URL"),
		PublishRatePerSec:   v.GetFloat64("PUBLISH_RATE_PER_SEC"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения. Возвращает все найденные ошибки.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(validPort(c.APIPort), "API_PORT out of range: %d", c.APIPort)
	check(validPort(c.SchedPort), "SCHED_PORT out of range: %d", c.SchedPort)
	check(c.LogFormat == "json" || c.LogFormat == "text", "LOG_FORMAT must be json or text, got %q", c.LogFormat)
	check(c.MaxRetryCount >= 1, "MAX_RETRY_COUNT must be >= 1, got %d", c.MaxRetryCount)
	check(c.PostingHour >= 0 && c.PostingHour <= 23, "POSTING_HOUR must be in 0..23, got %d", c.PostingHour)
	check(c.PublishTimeout > 0, "PUBLISH_TIMEOUT must be positive")
	check(c.ClaimLease > c.PublishTimeout, "CLAIM_LEASE (%s) must exceed PUBLISH_TIMEOUT (%s)", c.ClaimLease, c.PublishTimeout)
	check(c.TriggerCron != "", "TRIGGER_CRON is empty")
	check(c.TriggerConcurrency >= 1, "TRIGGER_CONCURRENCY must be >= 1, got %d", c.TriggerConcurrency)
	check(c.TriggerBatchSize >= 1, "TRIGGER_BATCH_SIZE must be >= 1, got %d", c.TriggerBatchSize)
	check(c.LeaseTTL > 0, "LEASE_TTL must be positive")
	check(c.PublishRatePerSec >= 0, "PUBLISH_RATE_PER_SEC must be >= 0")
	if c.PublishRatePerSec > 0 && c.TriggerConcurrency >= 1 {
		// Ожидание лимитера идёт внутри PUBLISH_TIMEOUT и при нехватке времени
		// засчитывается как отказ публикации.
		wait := time.Duration(float64(c.TriggerConcurrency) / c.PublishRatePerSec * float64(time.Second))
		check(wait < c.PublishTimeout,
			"PUBLISH_RATE_PER_SEC too low: TRIGGER_CONCURRENCY=%d may wait %s for the limiter, PUBLISH_TIMEOUT is %s",
			c.TriggerConcurrency, wait, c.PublishTimeout)
	}

	switch c.PublisherMode {
	case PublisherModeLog:
	case PublisherModeWebhook:
		check(c.PublisherWebhookURL != "", "PUBLISHER_WEBHOOK_URL is required in webhook mode")
	default:
		errs = append(errs, fmt.Errorf("PUBLISHER_MODE must be log or webhook, got %q", c.PublisherMode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
