package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, "rooms:", cfg.KeyPrefix)
	assert.Equal(t, 24, cfg.JWTExpiryHours)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 30*time.Second, cfg.SilenceDuration)
	assert.Equal(t, 7*24*time.Hour, cfg.ShareLinkRetention)
	assert.False(t, cfg.OfficialOnly)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("ROOMS_OFFICIAL_ONLY", "true")
	t.Setenv("SILENCE_DURATION", "45s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "chatty")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.True(t, cfg.OfficialOnly)
	assert.Equal(t, 45*time.Second, cfg.SilenceDuration)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err = LoadConfig()
	assert.Error(t, err)
}
