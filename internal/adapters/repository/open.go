package repository

import (
	"context"
	"fmt"
)

// DriverMemory selects the in-memory backend.
const DriverMemory = "memory"

// Open returns the backend for driver. The in-memory backend ignores dsn and
// debug.
func Open(ctx context.Context, driver, dsn string, debug bool) (Backend, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemStore(ctx), nil
	case DriverPostgres, DriverSQLite:
		s, err := OpenBun(ctx, driver, dsn, debug)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%q: %w", driver, ErrUnknownDriver)
	}
}
