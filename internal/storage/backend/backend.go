// Package backend opens the configured ScanStore and applies its migrations.
package backend

import (
	"context"
	"fmt"
	"log"

	"perp-crowd-scanner/internal/storage"
	chstore "perp-crowd-scanner/internal/storage/clickhouse"
	"perp-crowd-scanner/internal/storage/memory"
	"perp-crowd-scanner/internal/storage/migrations"
	pgstore "perp-crowd-scanner/internal/storage/postgres"
)

// Backend names.
const (
	Memory     = "memory"
	Postgres   = "postgres"
	Clickhouse = "clickhouse"
)

// Options selects and locates the store.
type Options struct {
	Kind          string
	PostgresDSN   string
	ClickhouseDSN string
	Logger        *log.Logger
}

// Open returns the store and a cleanup func that releases its connections.
func Open(ctx context.Context, opts Options) (storage.ScanStore, func(), error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	switch opts.Kind {
	case Memory, "":
		logger.Printf("Using in-memory storage")
		return memory.NewScanStore(), func() {}, nil

	case Postgres:
		pool, err := pgstore.NewPool(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Printf("Using PostgreSQL storage")
		return pgstore.NewScanStore(pool), pool.Close, nil

	case Clickhouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.ClickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Printf("Using ClickHouse storage")
		return chstore.NewScanStore(conn), func() { conn.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", opts.Kind)
	}
}

// Persistent reports whether a backend keeps runs across processes.
func Persistent(kind string) bool {
	return kind == Postgres || kind == Clickhouse
}
