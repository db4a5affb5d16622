package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"takaro-dashboard-api/internal/cache"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	Takaro    TakaroConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string   `envconfig:"APP_NAME" default:"takaro-dashboard-api"`
	Environment string   `envconfig:"APP_ENV" default:"development"`
	Version     string   `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKeys     []string `envconfig:"DASHBOARD_API_KEYS"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string   `envconfig:"LOG_FORMAT" default:"text"` // text or json
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	RedisURL           string        `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	KeyPrefix          string        `envconfig:"CACHE_KEY_PREFIX" default:"takaro"`
	ConnectTimeout     time.Duration `envconfig:"CACHE_CONNECT_TIMEOUT" default:"5s"`
	ReconnectInterval  time.Duration `envconfig:"CACHE_RECONNECT_INTERVAL" default:"0s"` // 0 disables
	JanitorInterval    time.Duration `envconfig:"CACHE_JANITOR_INTERVAL" default:"1m"`
	TTLOverrides       string        `envconfig:"CACHE_TTL_OVERRIDES" default:""` // e.g. map-info=2h,death-events=1d
	SingleFlight       bool          `envconfig:"CACHE_SINGLE_FLIGHT" default:"false"`
	PageSize           int           `envconfig:"CACHE_PAGE_SIZE" default:"100"`
	MaxPaginationTotal int           `envconfig:"CACHE_MAX_PAGINATION_TOTAL" default:"10000"`
}

// TakaroConfig holds upstream management API settings.
type TakaroConfig struct {
	APIURL  string        `envconfig:"TAKARO_API_URL" default:"https://api.takaro.io"`
	Token   string        `envconfig:"TAKARO_API_TOKEN" default:""`
	Timeout time.Duration `envconfig:"TAKARO_TIMEOUT" default:"30s"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled    bool    `envconfig:"OTEL_ENABLED" default:"false"`
	Endpoint   string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	SampleRate float64 `envconfig:"OTEL_SAMPLE_RATE" default:"1.0"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Policy builds the TTL policy with configured overrides applied.
func (c *CacheConfig) Policy() (cache.Policy, error) {
	return cache.ParsePolicyOverrides(c.TTLOverrides)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.Cache.Policy(); err != nil {
		return fmt.Errorf("invalid CACHE_TTL_OVERRIDES: %w", err)
	}
	if c.Cache.PageSize <= 0 {
		return fmt.Errorf("CACHE_PAGE_SIZE must be positive, got %d", c.Cache.PageSize)
	}
	if c.Cache.MaxPaginationTotal <= 0 {
		return fmt.Errorf("CACHE_MAX_PAGINATION_TOTAL must be positive, got %d", c.Cache.MaxPaginationTotal)
	}
	switch strings.ToLower(c.App.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.App.LogFormat)
	}

	keys := c.App.APIKeys[:0]
	for _, k := range c.App.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	c.App.APIKeys = keys
	return nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
