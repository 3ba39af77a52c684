package storage

import (
	"context"
	"errors"
	"strings"

	logx "teleecho/pkg/logx"
)

// Store is the connection repository used by the CLI.
type Store interface {
	// List returns connections in insertion order.
	List(ctx context.Context) ([]Connection, error)
	// Lookup finds a connection by name. An empty name returns the single
	// stored connection, or ErrAmbiguous when there are several.
	Lookup(ctx context.Context, name string) (Connection, error)
	// Add stores c; ErrExists if the name is taken.
	Add(ctx context.Context, c Connection) error
	// Remove deletes the named connection; ErrNotFound if absent.
	Remove(ctx context.Context, name string) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "none":
		return nil, ErrDisabled
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
