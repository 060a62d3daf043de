package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Entry is a cached response
type Entry struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// CacheProvider is the storage the worker keeps assets in.
// Match looks a request up the way Get looks up a key.
type CacheProvider interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, entry *Entry) error
	Match(ctx context.Context, r *http.Request) (*Entry, bool, error)
}

// RequestKey is the cache key for a request: its path, with "/" kept as is
func RequestKey(r *http.Request) string {
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// MemoryCache is a process-wide in-memory CacheProvider
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryCache creates an empty memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Entry)}
}

// Get returns the entry stored under key
func (c *MemoryCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	return entry, ok, nil
}

// Put stores entry under key
func (c *MemoryCache) Put(ctx context.Context, key string, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry
	return nil
}

// Match returns the entry for the request's path
func (c *MemoryCache) Match(ctx context.Context, r *http.Request) (*Entry, bool, error) {
	return c.Get(ctx, RequestKey(r))
}

// BadgerCache keeps entries in a shared BadgerDB under "<version>:<key>"
type BadgerCache struct {
	db      *badger.DB
	version string
}

// NewBadgerCache creates a cache namespaced by version
func NewBadgerCache(db *badger.DB, version string) *BadgerCache {
	return &BadgerCache{db: db, version: version}
}

func (c *BadgerCache) key(key string) []byte {
	return []byte("cache:" + c.version + ":" + key)
}

// Get returns the entry stored under key
func (c *BadgerCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return &entry, true, nil
}

// Put stores entry under key
func (c *BadgerCache) Put(ctx context.Context, key string, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.key(key), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// Match returns the entry for the request's path
func (c *BadgerCache) Match(ctx context.Context, r *http.Request) (*Entry, bool, error) {
	return c.Get(ctx, RequestKey(r))
}
