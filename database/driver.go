package database

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// Driver adapts one database engine to gorm. Drivers register themselves
// by name, usually from an init function in their package.
type Driver interface {
	Name() string

	// Dialector returns the gorm dialector for dsn, with any engine options
	// from cfg folded into the DSN.
	Dialector(dsn string, cfg *Config) gorm.Dialector

	// AfterConnect runs engine setup such as pragmas or search_path.
	AfterConnect(db *gorm.DB, cfg *Config, logger *slog.Logger) error

	// BeforeClose runs engine cleanup such as a WAL checkpoint.
	BeforeClose(db *gorm.DB, logger *slog.Logger) error
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// Register makes d available under d.Name(). Registering a name twice
// replaces the earlier driver.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[d.Name()] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("database: unknown driver %q (registered: %v)", name, driverNamesLocked())
	}
	return d, nil
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return driverNamesLocked()
}

func driverNamesLocked() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
