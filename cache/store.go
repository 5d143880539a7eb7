// Package cache provides the key/value stores behind the cache and session
// services: in memory, in a gorm database or in redis.
package cache

import (
	"context"
	"time"

	"github.com/spf13/cast"
)

// Store is a byte-oriented key/value cache with per-entry expiry.
type Store interface {
	// Read returns the value under key, false when missing or expired.
	Read(ctx context.Context, key string) ([]byte, bool)

	// Write stores value with the default TTL.
	Write(ctx context.Context, key string, value []byte) error

	// WriteWithTTL stores value with ttl. A ttl of zero or less uses the
	// default.
	WriteWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every key starting with prefix and returns how
	// many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	Clear(ctx context.Context) error
	Exist(ctx context.Context, key string) bool
	Stats(ctx context.Context) Stats

	// Close releases connections and background workers.
	Close() error
}

// Stats describes the contents of a store.
type Stats struct {
	Entries        int64         `json:"entries"`
	ExpiredEntries int64         `json:"expired_entries"`
	MaxEntries     int64         `json:"max_entries,omitempty"`
	TTL            time.Duration `json:"ttl"`
	Backend        string        `json:"backend"`
}

// Options configures a store.
type Options struct {
	// TTL is the default lifetime of an entry. Default: 2 weeks.
	TTL time.Duration

	// MaxEntries caps the number of entries, evicting the oldest first.
	// 0 means unlimited.
	MaxEntries int64

	// CleanupInterval is how often expired entries are purged. 0 disables
	// the background purge.
	CleanupInterval time.Duration

	// CleanupBatchSize caps how many entries one purge removes.
	CleanupBatchSize int

	// Prefix namespaces every key. Used by the redis store.
	Prefix string

	// Table names the table of the database store. Default: cache_entries.
	Table string
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		TTL:              14 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
		CleanupBatchSize: 100,
		Table:            "cache_entries",
	}
}

// Option mutates Options.
type Option func(*Options)

// WithTTL sets the default TTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) { o.TTL = ttl }
}

// WithMaxEntries sets the entry cap.
func WithMaxEntries(max int64) Option {
	return func(o *Options) { o.MaxEntries = max }
}

// WithCleanupInterval sets the purge interval.
func WithCleanupInterval(interval time.Duration) Option {
	return func(o *Options) { o.CleanupInterval = interval }
}

// WithCleanupBatchSize sets the purge batch size.
func WithCleanupBatchSize(size int) Option {
	return func(o *Options) { o.CleanupBatchSize = size }
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithTable sets the database store table.
func WithTable(table string) Option {
	return func(o *Options) { o.Table = table }
}

// OptionsFrom turns a configuration map (ttl, maxEntries, cleanupInterval,
// cleanupBatchSize, prefix, table) into options. Durations accept "10m" style
// strings or seconds.
func OptionsFrom(m map[string]any) []Option {
	var opts []Option
	if v, ok := m["ttl"]; ok {
		opts = append(opts, WithTTL(toDuration(v)))
	}
	if v, ok := m["maxEntries"]; ok {
		opts = append(opts, WithMaxEntries(cast.ToInt64(v)))
	}
	if v, ok := m["cleanupInterval"]; ok {
		opts = append(opts, WithCleanupInterval(toDuration(v)))
	}
	if v, ok := m["cleanupBatchSize"]; ok {
		opts = append(opts, WithCleanupBatchSize(cast.ToInt(v)))
	}
	if v, ok := m["prefix"]; ok {
		opts = append(opts, WithPrefix(cast.ToString(v)))
	}
	if v, ok := m["table"]; ok {
		opts = append(opts, WithTable(cast.ToString(v)))
	}
	return opts
}

func toDuration(v any) time.Duration {
	switch v.(type) {
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return time.Duration(cast.ToInt64(v)) * time.Second
	}
	return cast.ToDuration(v)
}

func applyOptions(opts ...Option) Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.CleanupBatchSize <= 0 {
		options.CleanupBatchSize = 100
	}
	return options
}

func (o Options) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return o.TTL
	}
	return ttl
}
