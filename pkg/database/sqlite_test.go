package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Path: ":memory:"}.withDefaults()
	assert.Equal(t, defaultMaxOpenConns, cfg.MaxOpenConns)
	assert.Equal(t, defaultMaxOpenConns, cfg.MaxIdleConns)
	assert.Equal(t, defaultConnMaxLifetime, cfg.ConnMaxLifetime)

	cfg = Config{Path: ":memory:", MaxOpenConns: 1}.withDefaults()
	assert.Equal(t, 1, cfg.MaxOpenConns)
	assert.Equal(t, 1, cfg.MaxIdleConns)

	cfg = Config{Path: ":memory:", MaxOpenConns: 4, MaxIdleConns: 2, ConnMaxLifetime: time.Minute}.withDefaults()
	assert.Equal(t, 4, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxIdleConns)
	assert.Equal(t, time.Minute, cfg.ConnMaxLifetime)
}

// An in-memory database must survive across statements even when the
// caller leaves the pool fields at their zero values.
func TestNew_InMemorySchemaSurvivesAcrossStatements(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Path: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, NewMigrator(db, logger).RunMigrations())

	_, err = db.Exec(
		"INSERT INTO workflow_definitions (id, name, body, created_at) VALUES (?, ?, ?, ?)",
		"def-1", "expense approval", "{}", time.Now().UTC(),
	)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM workflow_definitions").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Path: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := NewMigrator(db, logger)
	require.NoError(t, m.RunMigrations())
	require.NoError(t, m.RunMigrations())

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, len(migrations), applied)
}
