package database

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens a pooled connection for driver ("postgres" or "sqlite3").
func Connect(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "postgres", "pgx":
		return sqlx.Connect("pgx", dsn)
	case "sqlite3", "sqlite":
		db, err := sqlx.Connect("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY
		// and keeps ":memory:" databases shared.
		db.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Migrate creates the alerting schema if it does not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts := postgresSchema
	if db.DriverName() == "sqlite3" {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
