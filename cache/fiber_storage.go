package cache

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// FiberStorage adapts a Store to fiber.Storage so fiber middleware such as
// the limiter can share the application cache.
type FiberStorage struct {
	store Store
}

var _ fiber.Storage = (*FiberStorage)(nil)

// NewFiberStorage wraps store.
func NewFiberStorage(store Store) *FiberStorage {
	return &FiberStorage{store: store}
}

// Get returns nil, nil for a missing key, as fiber expects.
func (f *FiberStorage) Get(key string) ([]byte, error) {
	v, ok := f.store.Read(context.Background(), key)
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (f *FiberStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return f.store.WriteWithTTL(context.Background(), key, val, exp)
}

func (f *FiberStorage) Delete(key string) error {
	return f.store.Delete(context.Background(), key)
}

func (f *FiberStorage) Reset() error {
	return f.store.Clear(context.Background())
}

func (f *FiberStorage) Close() error {
	return f.store.Close()
}
