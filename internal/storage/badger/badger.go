// Package badger opens the embedded BadgerDB instance backing the claim store
// and runs its value log garbage collection.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ppiankov/claimstore/internal/logger"
	"github.com/ppiankov/claimstore/internal/model"
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal logs. Nil disables them.
	Logger *logger.Logger
}

// ConfigFromModel maps the store section of the claimstore config
func ConfigFromModel(cfg model.StoreConfig, log *logger.Logger) Config {
	return Config{
		Path:       cfg.Path,
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
		Logger:     log,
	}
}

// InMemoryConfig returns configuration for tests: no disk I/O, no fsync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Open creates and opens a BadgerDB instance. The caller must Close it.
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// GCRunner runs periodic value log garbage collection.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	log      *logger.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewGCRunner creates a runner; call Start to begin and Stop to halt.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, log *logger.Logger) *GCRunner {
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the GC loop. A non-positive interval makes it a no-op.
func (g *GCRunner) Start() {
	g.started = true
	if g.interval <= 0 || g.db.Opts().InMemory {
		close(g.doneCh)
		return
	}
	go g.loop()
}

func (g *GCRunner) loop() {
	defer close(g.doneCh)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.runOnce()
		}
	}
}

// runOnce collects until badger reports nothing left to rewrite
func (g *GCRunner) runOnce() {
	for {
		err := g.db.RunValueLogGC(g.ratio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
			g.log.Warn("value log gc failed", "error", err)
		}
		return
	}
}

// Stop halts the loop and waits for it to exit
func (g *GCRunner) Stop() {
	if !g.started {
		return
	}
	g.stopOnce.Do(func() { close(g.stopCh) })
	<-g.doneCh
}

// DB wraps a badger database with context-aware transaction helpers.
type DB struct {
	*badger.DB
	path     string
	inMemory bool
}

// OpenDB opens a database and wraps it.
func OpenDB(cfg Config) (*DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return &DB{DB: db, path: cfg.Path, inMemory: cfg.InMemory}, nil
}

// Path returns the data directory, empty for in-memory databases.
func (d *DB) Path() string {
	if d.inMemory {
		return ""
	}
	return d.path
}

// InMemory reports whether the database has no disk persistence.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// WithTxn runs fn inside a read-write transaction and commits it if fn
// succeeds. The context is only checked before the transaction starts.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}
