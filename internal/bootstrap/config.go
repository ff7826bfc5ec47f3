package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"party-rooms/internal/infra/setup"
)

// Config 存储从环境变量或 .env 文件加载的配置
type Config struct {
	AppEnv     string
	LogLevel   string
	ServerPort string

	StorageDriver string
	DBUser        string
	DBPassword    string
	DBHost        string
	DBPort        string
	DBName        string
	DBSSLMode     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	JWTSecret      string
	JWTExpiryHours int

	RateLimitMax    int
	RateLimitWindow time.Duration
	CORSOrigins     []string

	OfficialOnly       bool
	ShareLinkBaseURL   string
	ShareLinkRetention time.Duration
	LockTTL            time.Duration
	SilenceDuration    time.Duration
}

// RedisEnabled Redis 地址为空时房间锁、事件分发和审计都退化为进程内实现
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// LoadConfig 从环境变量加载配置，.env 文件存在时先加载它
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("STORAGE_DRIVER", setup.DriverMySQL)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "rooms:")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "1s")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("ROOMS_OFFICIAL_ONLY", false)
	v.SetDefault("SHARE_LINK_RETENTION", "168h")
	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("SILENCE_DURATION", "30s")

	cfg := &Config{
		AppEnv:             v.GetString("APP_ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		ServerPort:         v.GetString("SERVER_PORT"),
		StorageDriver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
		DBUser:             v.GetString("DB_USER"),
		DBPassword:         v.GetString("DB_PASSWORD"),
		DBHost:             v.GetString("DB_HOST"),
		DBPort:             v.GetString("DB_PORT"),
		DBName:             v.GetString("DB_NAME"),
		DBSSLMode:          v.GetString("DB_SSLMODE"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		KeyPrefix:          v.GetString("REDIS_KEY_PREFIX"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTExpiryHours:     v.GetInt("JWT_EXPIRY_HOURS"),
		RateLimitMax:       v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow:    v.GetDuration("RATE_LIMIT_WINDOW"),
		CORSOrigins:        splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		OfficialOnly:       v.GetBool("ROOMS_OFFICIAL_ONLY"),
		ShareLinkBaseURL:   v.GetString("SHARE_LINK_BASE_URL"),
		ShareLinkRetention: v.GetDuration("SHARE_LINK_RETENTION"),
		LockTTL:            v.GetDuration("LOCK_TTL"),
		SilenceDuration:    v.GetDuration("SILENCE_DURATION"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	switch cfg.StorageDriver {
	case setup.DriverMySQL, setup.DriverPostgres, setup.DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if cfg.JWTExpiryHours <= 0 {
		cfg.JWTExpiryHours = 24
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
