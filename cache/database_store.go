package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatabaseStore keeps entries in a gorm-managed table. Any gorm dialect
// works; the table is migrated on creation.
type DatabaseStore struct {
	db    *gorm.DB
	opts  Options
	table string

	stop     chan struct{}
	stopOnce sync.Once
}

// Entry is one cached row. Times are unix milliseconds.
type Entry struct {
	Key       string `gorm:"column:cache_key;primaryKey;size:255"`
	Value     []byte `gorm:"column:value"`
	ExpiresAt int64  `gorm:"column:expires_at;index"`
	CreatedAt int64  `gorm:"column:created_at;index;autoCreateTime:false"`
}

// NewDatabaseStore creates a store on db and migrates its table.
func NewDatabaseStore(db *gorm.DB, opts ...Option) (*DatabaseStore, error) {
	options := applyOptions(opts...)
	if options.Table == "" {
		options.Table = "cache_entries"
	}

	if err := db.Table(options.Table).AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("cache: migrate %s: %w", options.Table, err)
	}

	s := &DatabaseStore{
		db:    db,
		opts:  options,
		table: options.Table,
		stop:  make(chan struct{}),
	}
	if options.CleanupInterval > 0 {
		go s.purgeLoop()
	}
	return s, nil
}

func (s *DatabaseStore) query(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func (s *DatabaseStore) Read(ctx context.Context, key string) ([]byte, bool) {
	var e Entry
	err := s.query(ctx).
		Where("cache_key = ? AND expires_at > ?", key, time.Now().UnixMilli()).
		Take(&e).Error
	if err != nil {
		return nil, false
	}
	return e.Value, true
}

func (s *DatabaseStore) Write(ctx context.Context, key string, value []byte) error {
	return s.WriteWithTTL(ctx, key, value, 0)
}

// WriteWithTTL upserts the entry. An existing key keeps its creation time
// and therefore its place in the eviction order.
func (s *DatabaseStore) WriteWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now().UnixMilli()
	e := Entry{
		Key:       key,
		Value:     value,
		ExpiresAt: now + s.opts.ttl(ttl).Milliseconds(),
		CreatedAt: now,
	}

	err := s.query(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	return s.evict(ctx)
}

func (s *DatabaseStore) Delete(ctx context.Context, key string) error {
	return s.query(ctx).Where("cache_key = ?", key).Delete(&Entry{}).Error
}

func (s *DatabaseStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	res := s.query(ctx).Where("cache_key LIKE ?", prefix+"%").Delete(&Entry{})
	return int(res.RowsAffected), res.Error
}

func (s *DatabaseStore) Clear(ctx context.Context) error {
	return s.query(ctx).Where("1 = 1").Delete(&Entry{}).Error
}

func (s *DatabaseStore) Exist(ctx context.Context, key string) bool {
	var n int64
	s.query(ctx).
		Where("cache_key = ? AND expires_at > ?", key, time.Now().UnixMilli()).
		Count(&n)
	return n > 0
}

func (s *DatabaseStore) Stats(ctx context.Context) Stats {
	var total, expired int64
	s.query(ctx).Count(&total)
	s.query(ctx).Where("expires_at <= ?", time.Now().UnixMilli()).Count(&expired)

	return Stats{
		Entries:        total,
		ExpiredEntries: expired,
		MaxEntries:     s.opts.MaxEntries,
		TTL:            s.opts.TTL,
		Backend:        "database",
	}
}

// Close stops the background purge. The gorm connection belongs to the
// caller and stays open.
func (s *DatabaseStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// evict deletes the oldest rows beyond MaxEntries.
func (s *DatabaseStore) evict(ctx context.Context) error {
	if s.opts.MaxEntries <= 0 {
		return nil
	}

	var n int64
	if err := s.query(ctx).Count(&n).Error; err != nil {
		return err
	}
	excess := n - s.opts.MaxEntries
	if excess <= 0 {
		return nil
	}

	var keys []string
	err := s.query(ctx).
		Order("created_at ASC").
		Limit(int(excess)).
		Pluck("cache_key", &keys).Error
	if err != nil || len(keys) == 0 {
		return err
	}
	return s.query(ctx).Where("cache_key IN ?", keys).Delete(&Entry{}).Error
}

func (s *DatabaseStore) purgeLoop() {
	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.purge(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *DatabaseStore) purge(ctx context.Context) {
	var keys []string
	err := s.query(ctx).
		Where("expires_at <= ?", time.Now().UnixMilli()).
		Limit(s.opts.CleanupBatchSize).
		Pluck("cache_key", &keys).Error
	if err != nil || len(keys) == 0 {
		return
	}
	s.query(ctx).Where("cache_key IN ?", keys).Delete(&Entry{})
}
