package ch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"readingflow/internal/storage"
)

// runMigrations manually creates the app_state table
func runMigrations(ctx context.Context, db *ClickHouseDB) error {
	_ = db.conn.Exec(ctx, "DROP TABLE IF EXISTS app_state")

	return db.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS app_state (
			key String,
			value String,
			version UInt64,
			deleted UInt8
		) ENGINE = ReplacingMergeTree(version)
		ORDER BY key
	`)
}

// setupTestDB creates a test ClickHouse instance using testcontainers
func setupTestDB(t *testing.T) (*ClickHouseDB, func()) {
	if testing.Short() {
		t.Skip("skipping ClickHouse container test in short mode")
	}

	ctx := context.Background()

	// Start ClickHouse container
	clickhouseContainer, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword(""),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")

	// Get connection details
	host, err := clickhouseContainer.Host(ctx)
	require.NoError(t, err)

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	// Create database connection
	db, err := NewClickHouseDB(host, port.Int(), "default", "default", "", false)
	require.NoError(t, err, "Failed to connect to ClickHouse")

	// Run migrations manually (goose doesn't work well with ClickHouse)
	err = runMigrations(ctx, db)
	require.NoError(t, err, "Failed to run migrations")

	// Cleanup function
	cleanup := func() {
		db.Close()
		clickhouseContainer.Terminate(ctx)
	}

	return db, cleanup
}

// TestClickHouseDB_GetMissing tests reading an unknown key
func TestClickHouseDB_GetMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := db.Get(context.Background(), "leituraflow-data")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// TestClickHouseDB_PutGet tests that the newest version wins
func TestClickHouseDB_PutGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	db.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	require.NoError(t, db.Put(ctx, "leituraflow-data", []byte(`{"dailyGoal":20}`)))
	require.NoError(t, db.Put(ctx, "leituraflow-data", []byte(`{"dailyGoal":35}`)))

	value, err := db.Get(ctx, "leituraflow-data")
	require.NoError(t, err)
	assert.JSONEq(t, `{"dailyGoal":35}`, string(value))
}

// TestClickHouseDB_Delete tests that a tombstone hides earlier versions
func TestClickHouseDB_Delete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	db.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	require.NoError(t, db.Put(ctx, "k", []byte("v1")))
	require.NoError(t, db.Delete(ctx, "k"))

	_, err := db.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, db.Put(ctx, "k", []byte("v2")))
	value, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(value))
}
