package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "https://allertameteo.regione.emilia-romagna.it", cfg.FeedBaseURL)
	assert.Equal(t, 10*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 5*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 4*time.Minute, cfg.CycleTimeout)
	assert.Equal(t, 40, cfg.Workers)
	assert.False(t, cfg.AlertsEnabled)
	assert.Equal(t, 24*time.Hour, cfg.Cooldown)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "river-level-events", cfg.KafkaTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("FEED_BASE_URL", "http://localhost:9091")
	t.Setenv("FEED_TIMEOUT", "2s")
	t.Setenv("FETCH_INTERVAL", "1m")
	t.Setenv("CYCLE_TIMEOUT", "45s")
	t.Setenv("WORKERS", "8")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("ALERT_COOLDOWN", "12h")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-events")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, "hunter2", cfg.RedisPassword)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "http://localhost:9091", cfg.FeedBaseURL)
	assert.Equal(t, 2*time.Second, cfg.FeedTimeout)
	assert.Equal(t, time.Minute, cfg.FetchInterval)
	assert.Equal(t, 45*time.Second, cfg.CycleTimeout)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.AlertsEnabled)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, 12*time.Hour, cfg.Cooldown)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-events", cfg.KafkaTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_AlertsEnabledByToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AlertsEnabled)
}

func TestLoad_AlertsDisabledExplicitly(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("ALERTS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.AlertsEnabled)
}

func TestLoad_AlertsEnabledWithoutToken(t *testing.T) {
	t.Setenv("ALERTS_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidFetchInterval(t *testing.T) {
	t.Setenv("FETCH_INTERVAL", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_INTERVAL")
}

func TestLoad_InvalidWorkers(t *testing.T) {
	t.Setenv("WORKERS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKERS")
}
