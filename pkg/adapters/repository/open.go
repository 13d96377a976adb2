// Package repository selects the storage backend named in the configuration.
package repository

import (
	"context"
	"fmt"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/gormstore"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// Open connects to cfg.DatabaseURL with the backend in cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config) (ports.Store, error) {
	var (
		store ports.Store
		err   error
	)
	switch cfg.StoreBackend {
	case config.BackendSQL, "":
		store, err = sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	case config.BackendGorm:
		store, err = gormstore.Open(cfg.DatabaseURL)
	case config.BackendPostgres:
		store, err = postgres.Open(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	return store, nil
}
