package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// HandlerHeadroom is added to the backend timeouts for the gateway handler that waits
// on them.
const HandlerHeadroom = 5 * time.Second

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	HTTPPort           string        `env:"HTTP_PORT,default=8080"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT,default=60s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_SIZE,default=1048576"` // 1MB

	APIBaseURL     string        `env:"API_BASE_URL,default=http://localhost:8081/api"`
	APITimeout     time.Duration `env:"API_TIMEOUT,default=15s"`
	CaptureTimeout time.Duration `env:"CAPTURE_TIMEOUT,default=45s"`
	APIMaxRetries  int           `env:"API_MAX_RETRIES,default=2"`

	StoreDriver   string `env:"STORE_DRIVER,default=sqlite"`
	StorePrefix   string `env:"STORE_PREFIX,default=storefront:"`
	SQLitePath    string `env:"SQLITE_PATH,default=storefront.db"`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=storefront-analytics"`

	CatalogPath string `env:"CATALOG_PATH"`

	TokenCheckInterval time.Duration `env:"TOKEN_CHECK_INTERVAL,default=1s"`
	TokenWarningWindow time.Duration `env:"TOKEN_WARNING_WINDOW,default=5m"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=40"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// Load reads an optional .env file and decodes the environment into Config.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.APITimeout <= 0 || c.CaptureTimeout <= 0 {
		return errors.New("API_TIMEOUT and CAPTURE_TIMEOUT must be positive")
	}
	// the router's REQUEST_TIMEOUT bounds every handler context, including capture
	if c.RequestTimeout > 0 && c.RequestTimeout < c.CaptureTimeout+HandlerHeadroom {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must be at least CAPTURE_TIMEOUT + %s (%s)",
			c.RequestTimeout, HandlerHeadroom, c.CaptureTimeout+HandlerHeadroom)
	}
	if c.APIMaxRetries < 0 {
		return errors.New("API_MAX_RETRIES must not be negative")
	}
	if c.TokenCheckInterval <= 0 {
		return errors.New("TOKEN_CHECK_INTERVAL must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// Brokers splits KAFKA_BROKERS on commas. Empty means analytics are disabled.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
