package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beaconsearch/beacon/internal/config"
	"github.com/beaconsearch/beacon/internal/logging"
	"github.com/beaconsearch/beacon/internal/query"
	"github.com/beaconsearch/beacon/internal/snapshot"
	"github.com/beaconsearch/beacon/internal/storage"
	"github.com/beaconsearch/beacon/pkg/objectstore"
)

// app holds what every command builds from the config.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  storage.Store
	close  func(context.Context) error
}

// loadApp reads the config and opens the store. Logs go to the command's
// error stream.
func loadApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewWithLevel(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel))

	store, closeFn, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: store, close: closeFn}, nil
}

// openStore returns the document store named by cfg. A memory store is
// seeded from the snapshot prefix when snapshots are enabled.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (storage.Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Storage.Type {
	case config.StorageMongo:
		mongo, err := storage.NewMongoStore(ctx, storage.MongoConfig{
			URI:      cfg.Storage.URI,
			Database: cfg.Storage.GetDatabase(),
			Timeout:  cfg.Storage.GetTimeout(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to mongo: %w", err)
		}
		logger.Info("connected to document store", "type", "mongo", "database", cfg.Storage.GetDatabase())
		return storage.NewInstrumentedStore(mongo), mongo.Close, nil

	default:
		mem := storage.NewMemoryStore()
		if cfg.Snapshot.Enabled {
			objects, err := openObjectStore(cfg)
			if err != nil {
				return nil, nil, err
			}
			reports, err := snapshot.NewLoader(objects, cfg.Snapshot.Prefix, logger).Load(ctx, mem)
			if err != nil {
				return nil, nil, fmt.Errorf("load snapshot: %w", err)
			}
			logger.Info("snapshot loaded", "collections", len(reports))
		}
		return storage.NewInstrumentedStore(mem), noop, nil
	}
}

func openObjectStore(cfg *config.Config) (objectstore.Store, error) {
	oc := cfg.Snapshot.ObjectStore
	store, err := objectstore.New(objectstore.Config{
		Type:      oc.Type,
		RootPath:  oc.RootPath,
		Endpoint:  oc.Endpoint,
		Bucket:    oc.Bucket,
		AccessKey: oc.AccessKey,
		SecretKey: oc.SecretKey,
		Region:    oc.Region,
		UseSSL:    oc.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	return store, nil
}

func (a *app) handler() *query.Handler {
	return query.NewHandler(a.store, a.logger, query.Options{
		Limits: query.Limits{
			DefaultLimit: a.cfg.Query.GetDefaultLimit(),
			MaxLimit:     a.cfg.Query.GetMaxLimit(),
		},
		ConcurrencyLimit: a.cfg.Query.GetConcurrencyLimit(),
		QueryTimeout:     a.cfg.Timeout.GetQueryTimeout(),
	})
}
