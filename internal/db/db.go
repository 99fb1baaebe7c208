// Package db holds the hand-written pgx repositories and schema migrations.
package db

import (
	"context"
	"errors"
	"fmt"

	"planvision/internal/util"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type Queries struct {
	conn *pgxpool.Pool
}

func New(conn *pgxpool.Pool) *Queries {
	return &Queries{conn: conn}
}

// Connect opens the pool and applies pending migrations.
func Connect(ctx context.Context) (*pgxpool.Pool, error) {
	databaseURL := util.GetEnv("DATABASE_URL")

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(databaseURL); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func RunMigrations(databaseURL string) error {
	path := util.GetEnvString("MIGRATIONS_PATH", "internal/db/migrations")

	m, err := migrate.New("file://"+path, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
