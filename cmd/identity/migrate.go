package identity

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

func runMigrations(ctx context.Context, dialect goose.Dialect, db *sql.DB, dir string) error {
	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// MigratePostgres creates schema if needed and applies the embedded
// migrations inside it. The goose version table lives in the same schema.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if pool == nil {
		return fmt.Errorf("identity: nil pool")
	}
	if !pgIdentIsValid(schema) {
		return fmt.Errorf("identity: invalid schema identifier")
	}

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgIdent1(schema)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	cc := pool.Config().ConnConfig.Copy()
	if cc.RuntimeParams == nil {
		cc.RuntimeParams = map[string]string{}
	}
	cc.RuntimeParams["search_path"] = schema

	db := stdlib.OpenDB(*cc)
	defer func() { _ = db.Close() }()

	return runMigrations(ctx, goose.DialectPostgres, db, "migrations/postgres")
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, goose.DialectSQLite3, db, "migrations/sqlite")
}
