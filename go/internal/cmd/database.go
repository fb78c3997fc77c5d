package main

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/partdraft/go/internal/dbconfig"
	"github.com/mcdev12/partdraft/go/internal/store/postgres"
)

// setupDatabase opens the pgx pool for catalog reads and the database/sql
// handle for result writes.
func setupDatabase(ctx context.Context, cfg dbconfig.Config) (*pgxpool.Pool, *sql.DB, error) {
	pool, err := postgres.OpenPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := postgres.OpenDB(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, db, nil
}
