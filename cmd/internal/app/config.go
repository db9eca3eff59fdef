package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string `env:"KOACH_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"KOACH_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"KOACH_LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"KOACH_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"KOACH_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"KOACH_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"KOACH_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"KOACH_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"KOACH_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// Store selects the identity backend. Empty means postgres when
	// DatabaseURL is set and memory otherwise.
	Store       string `env:"KOACH_STORE"`
	DatabaseURL string `env:"KOACH_DATABASE_URL"`
	DBSchema    string `env:"KOACH_DB_SCHEMA" envDefault:"koach"`
	DBMaxConns  int32  `env:"KOACH_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"KOACH_DB_MIN_CONNS" envDefault:"0"`
	SQLitePath  string `env:"KOACH_SQLITE_PATH" envDefault:"koach.db"`

	// If true, /readyz returns 503 unless a persistent store is configured.
	ReadinessRequireDB bool `env:"KOACH_READINESS_REQUIRE_DB" envDefault:"false"`

	CORSAllowedOrigins   []string `env:"KOACH_CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"KOACH_CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	CORSMaxAgeSeconds    int      `env:"KOACH_CORS_MAX_AGE_SECONDS" envDefault:"600"`
}

// LoadConfig parses Config from the environment and checks it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = StoreMemory
		if strings.TrimSpace(c.DatabaseURL) != "" {
			c.Store = StorePostgres
		}
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	origins := c.CORSAllowedOrigins[:0]
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowedOrigins = origins
}

// Check rejects combinations the server cannot start with.
func (c Config) Check() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("config: KOACH_STORE=sqlite requires KOACH_SQLITE_PATH")
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("config: KOACH_STORE=postgres requires KOACH_DATABASE_URL")
		}
	default:
		return fmt.Errorf("config: unknown KOACH_STORE %q", c.Store)
	}

	switch c.LogFormat {
	case "json", "pretty":
	default:
		return fmt.Errorf("config: unknown KOACH_LOG_FORMAT %q", c.LogFormat)
	}

	if c.DBMinConns < 0 || c.DBMaxConns < 0 || (c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns) {
		return fmt.Errorf("config: invalid db pool bounds min=%d max=%d", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
