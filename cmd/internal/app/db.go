package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"koach/cmd/identity"
)

const (
	pgApplicationName = "koach"
	pgConnectTimeout  = 3 * time.Second
)

// postgresSettings is the slice of Config the postgres backend needs.
type postgresSettings struct {
	URL      string
	Schema   string
	MaxConns int32
	MinConns int32
}

func (c Config) postgres() postgresSettings {
	return postgresSettings{
		URL:      strings.TrimSpace(c.DatabaseURL),
		Schema:   c.DBSchema,
		MaxConns: c.DBMaxConns,
		MinConns: c.DBMinConns,
	}
}

// poolConfig parses the DSN and applies pool bounds. Connections are tagged
// with the application name so they are easy to spot in pg_stat_activity.
func (s postgresSettings) poolConfig() (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(s.URL)
	if err != nil {
		return nil, fmt.Errorf("parse KOACH_DATABASE_URL: %w", err)
	}
	if s.MaxConns > 0 {
		pcfg.MaxConns = s.MaxConns
	}
	if s.MinConns > 0 {
		pcfg.MinConns = s.MinConns
	}
	if pcfg.ConnConfig.RuntimeParams == nil {
		pcfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if pcfg.ConnConfig.RuntimeParams["application_name"] == "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = pgApplicationName
	}
	return pcfg, nil
}

// openPostgres connects, proves a connection can be acquired and brings the
// identity schema up to date. The caller owns the returned pool.
func openPostgres(ctx context.Context, s postgresSettings, log Logger) (*pgxpool.Pool, error) {
	pcfg, err := s.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pgConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if err := identity.MigratePostgres(ctx, pool, s.Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("db.postgres.ready",
		"schema", s.Schema,
		"max_conns", pcfg.MaxConns,
		"host", pcfg.ConnConfig.Host,
	)
	return pool, nil
}
