package database

import (
	"time"

	"github.com/spf13/cast"
)

// Config configures a Manager.
type Config struct {
	// Driver names a registered driver, e.g. "sqlite" or "postgres".
	Driver string

	// DSN is a file path for sqlite and a URL or key/value DSN for postgres.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// SlowThreshold marks queries logged as slow. Default: 200ms.
	SlowThreshold time.Duration

	SQLite   SQLiteOptions
	Postgres PostgresOptions
}

// SQLiteOptions apply to the sqlite driver only.
type SQLiteOptions struct {
	// BusyTimeout in milliseconds.
	BusyTimeout int
	EnableWAL   bool
	// TxImmediate takes the write lock at BEGIN, avoiding SQLITE_BUSY on
	// lock upgrades.
	TxImmediate bool
}

// PostgresOptions apply to the postgres driver only.
type PostgresOptions struct {
	SSLMode    string
	Timezone   string
	SearchPath string
}

// DefaultConfig returns a single-connection sqlite configuration for dsn.
func DefaultConfig(dsn string) *Config {
	return &Config{
		Driver:          "sqlite",
		DSN:             dsn,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 10 * time.Minute,
		SlowThreshold:   200 * time.Millisecond,
		SQLite: SQLiteOptions{
			BusyTimeout: 5000,
			EnableWAL:   true,
			TxImmediate: true,
		},
		Postgres: PostgresOptions{
			SSLMode:  "prefer",
			Timezone: "UTC",
		},
	}
}

// ConfigFromMap reads a configuration map such as the db.options registry
// key. Unknown keys are ignored; missing ones keep their defaults.
func ConfigFromMap(m map[string]any) *Config {
	cfg := DefaultConfig(cast.ToString(m["dsn"]))

	if v, ok := m["driver"]; ok {
		cfg.Driver = cast.ToString(v)
	}
	if cfg.Driver == "postgres" {
		cfg.MaxOpenConns, cfg.MaxIdleConns = 25, 5
	}
	if v, ok := m["maxOpenConns"]; ok {
		cfg.MaxOpenConns = cast.ToInt(v)
	}
	if v, ok := m["maxIdleConns"]; ok {
		cfg.MaxIdleConns = cast.ToInt(v)
	}
	if v, ok := m["connMaxLifetime"]; ok {
		cfg.ConnMaxLifetime = cast.ToDuration(v)
	}
	if v, ok := m["slowThreshold"]; ok {
		cfg.SlowThreshold = cast.ToDuration(v)
	}

	if v, ok := m["busyTimeout"]; ok {
		cfg.SQLite.BusyTimeout = cast.ToInt(v)
	}
	if v, ok := m["wal"]; ok {
		cfg.SQLite.EnableWAL = cast.ToBool(v)
	}
	if v, ok := m["txImmediate"]; ok {
		cfg.SQLite.TxImmediate = cast.ToBool(v)
	}

	if v, ok := m["sslMode"]; ok {
		cfg.Postgres.SSLMode = cast.ToString(v)
	}
	if v, ok := m["timezone"]; ok {
		cfg.Postgres.Timezone = cast.ToString(v)
	}
	if v, ok := m["searchPath"]; ok {
		cfg.Postgres.SearchPath = cast.ToString(v)
	}
	return cfg
}
