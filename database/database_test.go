package database_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/karloscodes/lodge/database"
	_ "github.com/karloscodes/lodge/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openMemory(t *testing.T) (*database.Manager, *gorm.DB) {
	t.Helper()
	m, err := database.Open(database.DefaultConfig(":memory:"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	db, err := m.Connect(context.Background())
	require.NoError(t, err)
	return m, db
}

func TestLookup(t *testing.T) {
	d, err := database.Lookup("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
	assert.Contains(t, database.Drivers(), "sqlite")

	_, err = database.Lookup("oracle")
	assert.ErrorContains(t, err, `unknown driver "oracle"`)
}

func TestManager(t *testing.T) {
	m, db := openMemory(t)

	require.NoError(t, db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)").Error)
	require.NoError(t, db.Exec("INSERT INTO items (name) VALUES (?)", "a").Error)

	again, err := m.Connect(context.Background())
	require.NoError(t, err)
	var n int64
	require.NoError(t, again.Table("items").Count(&n).Error)
	assert.EqualValues(t, 1, n, "connections share the pool")

	assert.Equal(t, "sqlite", m.Driver().Name())
	require.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestConfigFromMap(t *testing.T) {
	cfg := database.ConfigFromMap(map[string]any{
		"driver":          "sqlite",
		"dsn":             "data/app.db",
		"busyTimeout":     "1000",
		"wal":             false,
		"connMaxLifetime": "1m",
	})
	assert.Equal(t, "data/app.db", cfg.DSN)
	assert.Equal(t, 1000, cfg.SQLite.BusyTimeout)
	assert.False(t, cfg.SQLite.EnableWAL)
	assert.Equal(t, time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 1, cfg.MaxOpenConns)

	pg := database.ConfigFromMap(map[string]any{"driver": "postgres", "sslMode": "disable"})
	assert.Equal(t, 25, pg.MaxOpenConns)
	assert.Equal(t, "disable", pg.Postgres.SSLMode)
}

func TestWrite(t *testing.T) {
	_, db := openMemory(t)
	require.NoError(t, db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)").Error)
	policy := database.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		err := database.Write(ctx, testLogger(), db, policy, func(tx *gorm.DB) error {
			return tx.Exec("INSERT INTO items (name) VALUES ('x')").Error
		})
		require.NoError(t, err)
	})

	t.Run("rolls back without retrying", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := database.Write(ctx, testLogger(), db, policy, func(tx *gorm.DB) error {
			calls++
			if err := tx.Exec("INSERT INTO items (name) VALUES ('y')").Error; err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)

		var n int64
		require.NoError(t, db.Table("items").Where("name = ?", "y").Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("retries busy errors", func(t *testing.T) {
		calls := 0
		err := database.Write(ctx, testLogger(), db, policy, func(tx *gorm.DB) error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		err := database.Write(ctx, testLogger(), db, policy, func(tx *gorm.DB) error {
			return errors.New("SQLITE_BUSY")
		})
		assert.ErrorContains(t, err, "after 3 attempts")
	})

	t.Run("stops on cancel", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		err := database.Write(cctx, testLogger(), db, policy, func(tx *gorm.DB) error {
			cancel()
			return errors.New("database is locked")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsBusy(t *testing.T) {
	assert.False(t, database.IsBusy(nil))
	assert.False(t, database.IsBusy(errors.New("constraint failed")))
	assert.True(t, database.IsBusy(errors.New("database is locked (5)")))
	assert.True(t, database.IsBusy(errors.New("SQLITE_BUSY: busy")))
}
