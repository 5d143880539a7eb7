// Package postgres registers the "postgres" database driver.
package postgres

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/karloscodes/lodge/database"
)

func init() {
	database.Register(Driver{})
}

// Driver implements database.Driver for PostgreSQL.
type Driver struct{}

func (Driver) Name() string { return "postgres" }

// Dialector appends sslmode and TimeZone to dsn unless it sets them.
func (Driver) Dialector(dsn string, cfg *database.Config) gorm.Dialector {
	return postgres.Open(ConfigureDSN(dsn, cfg))
}

// ConfigureDSN folds the postgres options into a URL or key/value DSN.
func ConfigureDSN(dsn string, cfg *database.Config) string {
	url := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")

	var params []string
	add := func(key, value string) {
		if value == "" || strings.Contains(dsn, key+"=") {
			return
		}
		params = append(params, key+"="+value)
	}
	add("sslmode", cfg.Postgres.SSLMode)
	add("TimeZone", cfg.Postgres.Timezone)
	if len(params) == 0 {
		return dsn
	}

	if !url {
		if dsn == "" {
			return strings.Join(params, " ")
		}
		return dsn + " " + strings.Join(params, " ")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// AfterConnect sets search_path when configured.
func (Driver) AfterConnect(db *gorm.DB, cfg *database.Config, logger *slog.Logger) error {
	if cfg.Postgres.SearchPath == "" {
		return nil
	}
	if err := db.Exec("SET search_path TO " + cfg.Postgres.SearchPath).Error; err != nil {
		logger.Error("failed to set search_path", slog.String("search_path", cfg.Postgres.SearchPath), slog.Any("error", err))
		return fmt.Errorf("postgres: set search_path: %w", err)
	}
	return nil
}

func (Driver) BeforeClose(*gorm.DB, *slog.Logger) error { return nil }

var _ database.Driver = Driver{}
