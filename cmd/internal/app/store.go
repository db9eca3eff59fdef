package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"koach/cmd/identity"
)

// storeHandle owns the identity store and whatever it was opened on.
type storeHandle struct {
	identity.Store
	pool       *pgxpool.Pool
	persistent bool
}

func (s storeHandle) Close() error {
	err := s.Store.Close()
	// PostgresStore.Close is a no-op; the pool is owned here.
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// newStore opens the configured identity backend and brings its schema up
// to date.
func newStore(ctx context.Context, cfg Config, log Logger) (storeHandle, error) {
	switch cfg.Store {
	case StorePostgres:
		pg := cfg.postgres()
		pool, err := openPostgres(ctx, pg, log)
		if err != nil {
			return storeHandle{}, fmt.Errorf("open postgres: %w", err)
		}
		st, err := identity.NewPostgresStore(pool, identity.WithSchema(pg.Schema))
		if err != nil {
			pool.Close()
			return storeHandle{}, err
		}
		log.Info("db.enabled.postgres_store", "schema", st.Schema())
		return storeHandle{Store: st, pool: pool, persistent: true}, nil

	case StoreSQLite:
		st, err := identity.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return storeHandle{}, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info("db.enabled.sqlite_store", "path", cfg.SQLitePath)
		return storeHandle{Store: st, persistent: true}, nil

	default:
		log.Info("db.disabled.inmemory_store")
		return storeHandle{Store: identity.NewMemoryStore()}, nil
	}
}
