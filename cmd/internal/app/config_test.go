package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("KOACH_STORE", "")
	t.Setenv("KOACH_DATABASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("Store=%q want memory", cfg.Store)
	}
	if cfg.ReadTimeout != 15*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("timeouts: read=%v shutdown=%v", cfg.ReadTimeout, cfg.ShutdownTimeout)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("LogFormat=%q", cfg.LogFormat)
	}
}

func TestLoadConfig_DatabaseURLSelectsPostgres(t *testing.T) {
	t.Setenv("KOACH_STORE", "")
	t.Setenv("KOACH_DATABASE_URL", "postgres://koach@localhost/koach")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store != StorePostgres {
		t.Fatalf("Store=%q want postgres", cfg.Store)
	}
}

func TestLoadConfig_CORSOrigins(t *testing.T) {
	t.Setenv("KOACH_CORS_ALLOWED_ORIGINS", " https://a.example.com, ,http://127.0.0.1:* ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 ||
		cfg.CORSAllowedOrigins[0] != "https://a.example.com" ||
		cfg.CORSAllowedOrigins[1] != "http://127.0.0.1:*" {
		t.Fatalf("origins=%q", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":          {"KOACH_STORE": "mongo"},
		"postgres without url":   {"KOACH_STORE": "postgres", "KOACH_DATABASE_URL": ""},
		"unknown log format":     {"KOACH_LOG_FORMAT": "xml"},
		"min conns above max":    {"KOACH_DB_MIN_CONNS": "5", "KOACH_DB_MAX_CONNS": "2"},
		"unparseable duration":   {"KOACH_HTTP_READ_TIMEOUT": "soon"},
		"sqlite with blank path": {"KOACH_STORE": "sqlite", "KOACH_SQLITE_PATH": " "},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("KOACH_DOTENV_FILL=from-file\nKOACH_DOTENV_KEEP=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("KOACH_DOTENV_KEEP", "from-env")
	t.Setenv("KOACH_DOTENV_FILL", "")
	// t.Setenv registers restore; unset so godotenv can fill it.
	_ = os.Unsetenv("KOACH_DOTENV_FILL")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("KOACH_DOTENV_FILL"); got != "from-file" {
		t.Fatalf("fill=%q", got)
	}
	if got := os.Getenv("KOACH_DOTENV_KEEP"); got != "from-env" {
		t.Fatalf("existing env overwritten: %q", got)
	}
}
