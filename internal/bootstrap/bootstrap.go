// Package bootstrap wires configuration into a ready service. The server and
// the CLI share it so both read the same store the same way.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/dialcodes/internal/config"
	"github.com/JonMunkholm/dialcodes/internal/core"
	"github.com/JonMunkholm/dialcodes/internal/kv"
)

// App is an opened store with the service on top of it.
type App struct {
	Service *core.Service
	Limiter *core.RenderLimiter
	Store   kv.Store
}

// Open connects to the configured store, loads the record set and builds
// the service. Close releases it.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	mode, err := core.ParsePayloadMode(cfg.Code.DefaultMode)
	if err != nil {
		return nil, err
	}

	store, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	records := core.NewRecordStore(store, cfg.Store.Key)
	if err := records.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}

	renderOpts := core.DefaultRenderOptions()
	renderOpts.Size = cfg.Code.Size
	renderOpts.Margin = cfg.Code.Margin

	limiter := core.NewRenderLimiter(cfg.Render.MaxConcurrent, cfg.Render.MaxWaitTime)
	svc := core.NewService(records, limiter.Wrap(core.NewQRRenderer()), core.ServiceConfig{
		BaseURL:     cfg.Code.BaseURL,
		DefaultMode: mode,
		Render:      renderOpts,
		PageSize:    cfg.UI.PageSize,
	})

	return &App{Service: svc, Limiter: limiter, Store: store}, nil
}

// Close closes open reviews and the store.
func (a *App) Close() error {
	a.Service.Close()
	return a.Store.Close()
}

// StoreInfo describes the store for humans, without credentials.
func StoreInfo(cfg *config.Config) string {
	switch cfg.Store.Driver {
	case kv.DriverSQLite:
		return "sqlite " + cfg.Store.DSN
	case kv.DriverPostgres:
		return "postgres"
	default:
		return cfg.Store.Driver
	}
}
