package main

import (
	"context"
	"fmt"

	"github.com/FranksOps/serprank/internal/config"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/FranksOps/serprank/internal/storage/csvbackend"
	"github.com/FranksOps/serprank/internal/storage/jsonbackend"
	"github.com/FranksOps/serprank/internal/storage/postgres"
	"github.com/FranksOps/serprank/internal/storage/sqlite"
)

func openBackend(ctx context.Context, cfg config.OutputConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Backend {
	case "json":
		b, err = jsonbackend.New(cfg.Path)
	case "csv":
		b, err = csvbackend.New(cfg.Path)
	case "sqlite":
		b, err = sqlite.New(cfg.Path)
	case "postgres":
		b, err = postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}
	return b, nil
}
