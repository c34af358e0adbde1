package app

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	platformcache "github.com/guildledger/ledgerboard/internal/platform/cache"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"60s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	// BackendURL points at the ledger backend that owns all ledger data.
	BackendURL     string        `envconfig:"LEDGER_BACKEND_URL" default:"http://127.0.0.1:8000"`
	// BackendTimeout of zero leaves backend requests unbounded.
	BackendTimeout time.Duration `envconfig:"LEDGER_BACKEND_TIMEOUT" default:"0s"`
	CacheTTL       time.Duration `envconfig:"LEDGER_CACHE_TTL" default:"5m"`

	Locale         string `envconfig:"LEDGER_LOCALE" default:"en-US"`
	CurrencySuffix string `envconfig:"LEDGER_CURRENCY_SUFFIX" default:"ISK"`
	ImageBase      string `envconfig:"LEDGER_IMAGE_BASE" default:"https://images.evetech.net"`

	// DefaultEntity, as "entity:pk", is where the root path redirects.
	DefaultEntity string `envconfig:"LEDGER_DEFAULT_ENTITY" default:""`

	WarmupEntities    string        `envconfig:"LEDGER_WARMUP_ENTITIES" default:""`
	WarmupCron        string        `envconfig:"LEDGER_WARMUP_CRON" default:"*/15 * * * *"`
	WorkspaceTTL      time.Duration `envconfig:"LEDGER_WORKSPACE_TTL" default:"2h"`
	JobQueue          bool          `envconfig:"LEDGER_JOB_QUEUE" default:"true"`
	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"5"`
}

// LoadConfig reads configuration from environment variables. A local .env file
// is applied first when present; real environment variables win.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	if cfg.BackendURL == "" {
		return nil, errors.New("ledger backend url must be provided")
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Redis returns the connection options shared by every Redis consumer.
func (c *Config) Redis() platformcache.Options {
	return platformcache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
