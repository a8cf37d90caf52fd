package cli

import (
	"context"
	"fmt"

	"github.com/ppiankov/claimstore/internal/cache"
	"github.com/ppiankov/claimstore/internal/logger"
	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/query"
	sbadger "github.com/ppiankov/claimstore/internal/storage/badger"
	"github.com/ppiankov/claimstore/internal/store"
)

// app holds the components a command works with
type app struct {
	cfg    *model.Config
	log    *logger.Logger
	db     *sbadger.DB
	gc     *sbadger.GCRunner
	repo   *store.Repository
	engine *query.Engine
}

// openApp loads the configuration and opens the repository. The caller
// must Close the app.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}

	db, err := sbadger.OpenDB(sbadger.ConfigFromModel(cfg.Store, log.With("component", "badger")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	repo, err := store.Open(ctx, db, cfg.Detector, store.WithLogger(log.With("component", "store")))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load store: %w", err)
	}

	gc := sbadger.NewGCRunner(db.DB, cfg.Store.GCInterval, 0.5, log.With("component", "gc"))
	gc.Start()

	if verbose {
		log.Info("store opened", "path", db.Path(), "entries", repo.Snapshot().Len())
	}

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		gc:     gc,
		repo:   repo,
		engine: query.New(repo, cache.New(cfg.Query.CacheTTL, cfg.Query.CacheCleanup)),
	}, nil
}

// Close stops background work and closes the database
func (a *app) Close() error {
	a.gc.Stop()
	err := a.db.Close()
	a.log.Sync()
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
