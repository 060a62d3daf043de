package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"readingflow/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseDB stores blobs in the app_state table.
// The table is a ReplacingMergeTree keyed by key and versioned by a
// nanosecond timestamp; reads pick the latest version with argMax so they
// don't depend on background merges. Deletes write a tombstone row.
type ClickHouseDB struct {
	conn clickhouse.Conn
	now  func() time.Time
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn, now: time.Now}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	// Tables are managed via migrations (see migrations/ directory)
	// This method is kept for interface compatibility
	return nil
}

// Get returns the latest non-deleted value for key
func (db *ClickHouseDB) Get(ctx context.Context, key string) ([]byte, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT argMax(value, version), argMax(deleted, version)
		FROM app_state
		WHERE key = ?
		GROUP BY key`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", key, err)
		}
		return nil, storage.ErrNotFound
	}

	var (
		value   string
		deleted uint8
	)
	if err := rows.Scan(&value, &deleted); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", key, err)
	}
	if deleted != 0 {
		return nil, storage.ErrNotFound
	}
	return []byte(value), nil
}

// Put inserts a new version of key
func (db *ClickHouseDB) Put(ctx context.Context, key string, value []byte) error {
	err := db.conn.Exec(ctx, `INSERT INTO app_state (key, value, version, deleted) VALUES (?, ?, ?, ?)`,
		key, string(value), uint64(db.now().UnixNano()), uint8(0))
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete writes a tombstone version for key
func (db *ClickHouseDB) Delete(ctx context.Context, key string) error {
	err := db.conn.Exec(ctx, `INSERT INTO app_state (key, value, version, deleted) VALUES (?, ?, ?, ?)`,
		key, "", uint64(db.now().UnixNano()), uint8(1))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
