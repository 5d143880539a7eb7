// Package sqlite registers the "sqlite" database driver.
package sqlite

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/karloscodes/lodge/database"
)

func init() {
	database.Register(Driver{})
}

// Driver implements database.Driver for SQLite.
type Driver struct{}

func (Driver) Name() string { return "sqlite" }

// Dialector opens dsn, asking for immediate transactions when configured.
func (Driver) Dialector(dsn string, cfg *database.Config) gorm.Dialector {
	if cfg.SQLite.TxImmediate && !strings.Contains(dsn, "_txlock=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_txlock=immediate"
	}
	return sqlite.Open(dsn)
}

// AfterConnect applies the pragmas.
func (Driver) AfterConnect(db *gorm.DB, cfg *database.Config, logger *slog.Logger) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.SQLite.BusyTimeout),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if cfg.SQLite.EnableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			logger.Error("failed to apply pragma", slog.String("pragma", pragma), slog.Any("error", err))
			return fmt.Errorf("sqlite: apply %s: %w", pragma, err)
		}
	}
	return nil
}

// BeforeClose runs a passive WAL checkpoint.
func (d Driver) BeforeClose(db *gorm.DB, logger *slog.Logger) error {
	logger.Debug("wal checkpoint before close")
	return Checkpoint(db, "PASSIVE")
}

// Checkpoint runs a WAL checkpoint. mode is PASSIVE, FULL, RESTART or
// TRUNCATE.
func Checkpoint(db *gorm.DB, mode string) error {
	switch mode {
	case "PASSIVE", "FULL", "RESTART", "TRUNCATE":
	default:
		return fmt.Errorf("sqlite: unknown checkpoint mode %q", mode)
	}
	return db.Exec("PRAGMA wal_checkpoint(" + mode + ")").Error
}

var _ database.Driver = Driver{}
