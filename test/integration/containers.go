package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type Env struct {
	PG     *postgres.PostgresContainer
	Pool   *pgxpool.Pool
	PGURL  string
	Cancel context.CancelFunc
}

// Setup starts a throwaway Postgres and applies db/schema.sql to it.
func Setup(ctx context.Context) (env *Env, err error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	// testcontainers panics instead of returning an error when no Docker
	// host can be found; surface that as an error so callers can skip.
	defer func() {
		if r := recover(); r != nil {
			cancel()
			env, err = nil, fmt.Errorf("testcontainers setup panicked: %v", r)
		}
	}()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("shopyar"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		cancel()
		return nil, err
	}

	pool, err := pgxpool.New(ctx, pgURL)
	if err != nil {
		cancel()
		return nil, err
	}

	schema, err := os.ReadFile(schemaPath())
	if err != nil {
		cancel()
		return nil, err
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		cancel()
		return nil, err
	}

	return &Env{
		PG:     pgC,
		Pool:   pool,
		PGURL:  pgURL,
		Cancel: cancel,
	}, nil
}

func (e *Env) Teardown(ctx context.Context) {
	e.Pool.Close()
	_ = e.PG.Terminate(ctx)
	e.Cancel()
}

func schemaPath() string {
	_, self, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(self), "..", "..", "db", "schema.sql")
}
