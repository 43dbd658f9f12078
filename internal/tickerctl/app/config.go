package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers for the persistent credential lifetime.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	APIURL string `env:"TICKERWATCH_API_URL" envDefault:"http://localhost:8000"` // Backend base URL

	StoreDriver   string `env:"TICKERWATCH_STORE_DRIVER" envDefault:"sqlite"` // sqlite, redis or memory
	DatabaseFile  string `env:"TICKERWATCH_DATABASE_FILE"`                    // Default: <config dir>/tickerwatch/credentials.db
	RedisAddr     string `env:"TICKERWATCH_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"TICKERWATCH_REDIS_PASSWORD"`
	RedisDB       int    `env:"TICKERWATCH_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"TICKERWATCH_REDIS_PREFIX" envDefault:"tickerwatch:cred:"`
	MasterKeyPath string `env:"TICKERWATCH_MASTER_KEY_PATH"` // Default: <config dir>/tickerwatch/master.key

	InactivityTimeout time.Duration `env:"TICKERWATCH_INACTIVITY_TIMEOUT" envDefault:"30m"` // 0 disables
	CallbackAddr      string        `env:"TICKERWATCH_CALLBACK_ADDR" envDefault:"127.0.0.1:8765"`
	CallbackTimeout   time.Duration `env:"TICKERWATCH_CALLBACK_TIMEOUT" envDefault:"5m"`
	RequestTimeout    time.Duration `env:"TICKERWATCH_REQUEST_TIMEOUT" envDefault:"0s"` // 0 means no timeout
	RequestsPerSecond float64       `env:"TICKERWATCH_REQUESTS_PER_SECOND" envDefault:"0"`

	OTLPEndpoint string `env:"TICKERWATCH_OTLP_ENDPOINT"` // Empty disables tracing

	Env       string `env:"ENV" envDefault:"prod"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"warn"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadConfig reads the configuration from the environment and fills in
// file locations under the user's config directory.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = filepath.Join(dataDir(), "credentials.db")
	}
	if cfg.MasterKeyPath == "" {
		cfg.MasterKeyPath = filepath.Join(dataDir(), "master.key")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q (want sqlite, redis or memory)", c.StoreDriver)
	}
	if c.APIURL == "" {
		return fmt.Errorf("TICKERWATCH_API_URL must not be empty")
	}
	if c.InactivityTimeout < 0 || c.RequestTimeout < 0 || c.CallbackTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("TICKERWATCH_REQUESTS_PER_SECOND must not be negative")
	}
	return nil
}

func dataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tickerwatch")
	}
	return ".tickerwatch"
}
