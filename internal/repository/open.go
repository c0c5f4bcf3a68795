package repository

import (
	"context"
	"fmt"

	"github.com/coldchain/coldchain-monitor/internal/database"
)

// Open returns the Store selected by driver. "memory" needs no DSN and keeps
// nothing across restarts. SQL stores are migrated before use.
func Open(ctx context.Context, driver, dsn string) (Store, func() error, error) {
	if driver == "memory" {
		return NewMemory(), func() error { return nil }, nil
	}

	db, err := database.Connect(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return New(db), db.Close, nil
}
