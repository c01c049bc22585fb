package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/credentials"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Credential store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config holds application configuration
type Config struct {
	Server      ServerConfig
	API         APIConfig
	Credentials CredentialsConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// APIConfig points at the EIS REST backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CredentialsConfig selects where the session tokens are persisted.
type CredentialsConfig struct {
	Backend     string
	SQLitePath  string
	RedisPrefix string
	// Origin is derived from API.BaseURL; tokens are scoped to it.
	Origin string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type LogConfig struct {
	Level  string
	Format string
}

// Addr is the shell's listen address.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

// Addr is the Redis host:port.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// LoadConfig loads configuration from environment variables and a .env file
// (ENV_FILE, default ./.env). Values already in the environment win.
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5173")
	v.SetDefault("SERVER_HOST", "127.0.0.1")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("API_BASE_URL", "http://127.0.0.1:8000/api")
	v.SetDefault("API_TIMEOUT", 10)
	v.SetDefault("CREDENTIALS_BACKEND", BackendSQLite)
	v.SetDefault("CREDENTIALS_SQLITE_PATH", defaultSQLitePath())
	v.SetDefault("CREDENTIALS_REDIS_PREFIX", "eis:credentials:")
	v.SetDefault("MONGODB_DATABASE", "eis_dashboard")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 0.2)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
			Timeout: time.Duration(v.GetInt("API_TIMEOUT")) * time.Second,
		},
		Credentials: CredentialsConfig{
			Backend:     strings.ToLower(strings.TrimSpace(v.GetString("CREDENTIALS_BACKEND"))),
			SQLitePath:  v.GetString("CREDENTIALS_SQLITE_PATH"),
			RedisPrefix: v.GetString("CREDENTIALS_REDIS_PREFIX"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	origin, err := credentials.OriginOf(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("API_BASE_URL: %w", err)
	}
	c.Credentials.Origin = origin
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}

	switch c.Credentials.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Credentials.SQLitePath == "" {
			return fmt.Errorf("CREDENTIALS_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis backend")
		}
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo backend")
		}
	default:
		return fmt.Errorf("CREDENTIALS_BACKEND %q: want memory, sqlite, redis or mongo", c.Credentials.Backend)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
			return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
		}
		if c.RateLimit.UseRedis && c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required when RATE_LIMIT_USE_REDIS is set")
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT %q: want console or json", c.Log.Format)
	}
	return nil
}

func defaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".eis", "credentials.db")
	}
	return filepath.Join(dir, "eis", "credentials.db")
}
