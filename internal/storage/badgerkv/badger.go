// Package badgerkv implements the blob store on an embedded BadgerDB.
// It is the default backend: no external service, one directory on disk.
package badgerkv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"readingflow/internal/storage"
)

// Config holds configuration for a BadgerDB instance
type Config struct {
	Path       string // directory for database files, ignored when InMemory
	InMemory   bool
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection. 0 disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64

	Logger *zap.Logger
}

// DefaultConfig returns production defaults for the given path
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for tests
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// zapLogger adapts zap to badger's Logger interface
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *zapLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *zapLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *zapLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// BadgerDB is a Storage backed by BadgerDB
type BadgerDB struct {
	db     *badger.DB
	logger *zap.Logger
	stopGC chan struct{}
	gcDone chan struct{}
}

// Open opens (creating if needed) a BadgerDB with the given configuration
func Open(cfg Config) (*BadgerDB, error) {
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

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(&zapLogger{sugar: logger.Named("badger").Sugar()})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	b := &BadgerDB{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		b.stopGC = make(chan struct{})
		b.gcDone = make(chan struct{})
		go b.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return b, nil
}

// DB exposes the underlying handle so other components (the offline cache)
// can share one database directory.
func (b *BadgerDB) DB() *badger.DB {
	return b.db
}

// Initialize is a no-op; badger needs no schema
func (b *BadgerDB) Initialize(ctx context.Context) error {
	return nil
}

// Get returns a copy of the value stored under key
func (b *BadgerDB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key
func (b *BadgerDB) Put(ctx context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (b *BadgerDB) Delete(ctx context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close stops garbage collection and closes the database
func (b *BadgerDB) Close() error {
	if b.stopGC != nil {
		close(b.stopGC)
		<-b.gcDone
		b.stopGC = nil
	}
	return b.db.Close()
}

func (b *BadgerDB) runGC(interval time.Duration, ratio float64) {
	defer close(b.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect
			if err := b.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.logger.Warn("Badger value log GC failed", zap.Error(err))
			}
		}
	}
}
