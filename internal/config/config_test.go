package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 14, cfg.FutureDays)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Enrich)
	assert.Equal(t, 10*time.Second, cfg.Upstream.FetchTimeout)
	assert.Equal(t, 3, cfg.Upstream.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Upstream.MinInterval)
	assert.Contains(t, cfg.Upstream.SinaListURL, "hk_IPOList.php")
	assert.Empty(t, cfg.Upstream.StaticMainlandPath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("IPO_LISTEN_ADDR", ":9090")
	t.Setenv("IPO_FUTURE_DAYS", "30")
	t.Setenv("IPO_TIMEZONE", "Asia/Hong_Kong")
	t.Setenv("IPO_MIN_INTERVAL_S", "0.5")
	t.Setenv("IPO_MAX_RETRIES", "0")
	t.Setenv("IPO_ENRICH", "false")
	t.Setenv("IPO_STATIC_HK", "testdata/hk.json")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 30, cfg.FutureDays)
	assert.Equal(t, 500*time.Millisecond, cfg.Upstream.MinInterval)
	assert.Zero(t, cfg.Upstream.MaxRetries)
	assert.False(t, cfg.Enrich)
	assert.Equal(t, "testdata/hk.json", cfg.Upstream.StaticHongKongPath)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non numeric horizon", key: "IPO_FUTURE_DAYS", value: "soon"},
		{name: "horizon out of range", key: "IPO_FUTURE_DAYS", value: "365"},
		{name: "zero fetch timeout", key: "IPO_FETCH_TIMEOUT_S", value: "0"},
		{name: "bad enrich flag", key: "IPO_ENRICH", value: "maybe"},
		{name: "unknown timezone", key: "IPO_TIMEZONE", value: "Mars/Olympus"},
		{name: "bad upstream url", key: "IPO_SINA_LIST_URL", value: "not a url"},
		{name: "unknown log level", key: "LOG_LEVEL", value: "chatty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestNewLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Str("market", "hk").Msg("visible")
	assert.Contains(t, buf.String(), `"market":"hk"`)
	assert.Contains(t, buf.String(), `"service":"ipowatch"`)

	fallback := NewLoggerTo(LoggingConfig{Level: "nonsense"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, fallback.GetLevel())

	buf.Reset()
	console := NewLoggerTo(LoggingConfig{Level: "debug", Format: "console"}, &buf)
	console.Debug().Msg("pretty")
	assert.Contains(t, buf.String(), "pretty")
	assert.NotContains(t, buf.String(), `"message"`)
}
