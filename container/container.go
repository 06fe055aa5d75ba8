package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cyl19970726/Code3/config"
	"github.com/cyl19970726/Code3/logger"
	"github.com/cyl19970726/Code3/metrics"
	"github.com/cyl19970726/Code3/services"
	storebounty "github.com/cyl19970726/Code3/storage/bounty"
)

// Container holds the dependencies shared by the store-backed commands.
type Container struct {
	Config  config.Config
	Logger  *slog.Logger
	Store   storebounty.Store
	Metrics *metrics.Metrics
	Hub     *services.EventHub

	BountyService *services.BountyService
	HealthService *services.HealthService
}

// NewContainer loads configuration from path (or the environment) and opens
// the configured store.
func NewContainer(ctx context.Context, path string) (*Container, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	store, err := storebounty.Open(ctx, storebounty.Options{
		Driver:     cfg.StoreDriver,
		PGDSN:      cfg.PGDSN,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	log.Info("store opened", "driver", cfg.StoreDriver)

	m := metrics.New()
	hub := services.NewEventHub()

	return &Container{
		Config:        cfg,
		Logger:        log,
		Store:         store,
		Metrics:       m,
		Hub:           hub,
		BountyService: services.NewBountyService(store, m, hub, log),
		HealthService: services.NewHealthService(cfg.StoreDriver),
	}, nil
}

// Close releases the store.
func (c *Container) Close() { c.Store.Close() }
