package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FeedBaseURL string
	FeedTimeout time.Duration

	FetchInterval time.Duration
	CycleTimeout  time.Duration
	Workers       int

	AlertsEnabled bool
	TelegramToken string
	Cooldown      time.Duration

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	feedTimeout, err := parseDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchInterval, err := parseDuration("FETCH_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	cycleTimeout, err := parseDuration("CYCLE_TIMEOUT", "4m")
	if err != nil {
		return nil, err
	}
	cooldown, err := parseDuration("ALERT_COOLDOWN", "24h")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("WORKERS", 40)
	if err != nil {
		return nil, err
	}
	redisDB, err := parseInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	telegramToken := os.Getenv("TELEGRAM_TOKEN")
	alertsEnabled := telegramToken != ""
	if v := os.Getenv("ALERTS_ENABLED"); v != "" {
		alertsEnabled = v == "true"
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		RedisAddr:       envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		FeedBaseURL:     envOrDefault("FEED_BASE_URL", "https://allertameteo.regione.emilia-romagna.it"),
		FeedTimeout:     feedTimeout,
		FetchInterval:   fetchInterval,
		CycleTimeout:    cycleTimeout,
		Workers:         workers,
		AlertsEnabled:   alertsEnabled,
		TelegramToken:   telegramToken,
		Cooldown:        cooldown,
		KafkaEnabled:    kafkaEnabled,
		KafkaBrokers:    splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      envOrDefault("KAFKA_TOPIC", "river-level-events"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	if cfg.FeedBaseURL == "" {
		return nil, errors.New("FEED_BASE_URL is required")
	}
	if cfg.Workers <= 0 {
		return nil, errors.New("WORKERS must be positive")
	}
	if cfg.Cooldown <= 0 {
		return nil, errors.New("ALERT_COOLDOWN must be positive")
	}
	if cfg.AlertsEnabled && cfg.TelegramToken == "" {
		return nil, errors.New("ALERTS_ENABLED is true but TELEGRAM_TOKEN is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
