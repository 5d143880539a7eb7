package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Manager owns one lazily opened connection pool.
type Manager struct {
	driver Driver
	cfg    *Config
	logger *slog.Logger

	mu sync.Mutex
	db *gorm.DB
}

// NewManager creates a manager for driver. A nil cfg means DefaultConfig("").
func NewManager(driver Driver, cfg *Config, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{driver: driver, cfg: cfg, logger: logger}
}

// Open creates a manager for the driver named by cfg.Driver.
func Open(cfg *Config, logger *slog.Logger) (*Manager, error) {
	driver, err := Lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return NewManager(driver, cfg, logger), nil
}

// Driver returns the driver.
func (m *Manager) Driver() Driver { return m.driver }

// Connect opens the pool on first use and returns a fresh session bound to
// ctx.
func (m *Manager) Connect(ctx context.Context) (*gorm.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		db, err := m.open()
		if err != nil {
			return nil, err
		}
		m.db = db
	}
	return m.db.Session(&gorm.Session{Context: ctx}), nil
}

func (m *Manager) open() (*gorm.DB, error) {
	gormLog := NewGormLogger(m.logger.With(slog.String("component", "gorm")), m.cfg.SlowThreshold)

	db, err := gorm.Open(m.driver.Dialector(m.cfg.DSN, m.cfg), &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", m.driver.Name(), err)
	}

	if err := m.driver.AfterConnect(db, m.cfg, m.logger); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: access sql.DB: %w", err)
	}
	if m.cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(m.cfg.MaxOpenConns)
	}
	if m.cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(m.cfg.MaxIdleConns)
	}
	if m.cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	}

	m.logger.Info("database connection established",
		slog.String("driver", m.driver.Name()),
		slog.Int("max_open", m.cfg.MaxOpenConns),
	)
	return db, nil
}

// Close runs the driver cleanup and closes the pool. The manager can be
// connected again afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}

	if err := m.driver.BeforeClose(m.db, m.logger); err != nil {
		m.logger.Warn("driver cleanup failed", slog.Any("error", err))
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("database: access sql.DB: %w", err)
	}
	m.db = nil
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("database: close: %w", err)
	}

	m.logger.Info("database connection closed", slog.String("driver", m.driver.Name()))
	return nil
}
