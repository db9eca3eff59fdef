package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/koach.
// It returns an error instead of calling os.Exit to keep defers effective and lint clean.
func Run() error {
	if err := LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	sec, err := LoadSecurityConfig()
	if err != nil {
		log.Error("security.config.invalid", "err", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, sec, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
