package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Pool holds backends that outlive a request: cache stores, connection pools
// and log files. Each is opened once per key and closed by Pool.Close.
type Pool struct {
	mu    sync.Mutex
	items map[string]any
	order []string

	opening singleflight.Group
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{items: make(map[string]any)}
}

// Shared returns the value stored under key, opening it on first use.
// Concurrent callers for the same key share one open; open runs without the
// pool lock held, so it may itself call Shared for other keys.
func Shared[T any](p *Pool, key string, open func() (T, error)) (T, error) {
	var zero T

	if v, ok := p.lookup(key); ok {
		return pooled[T](key, v)
	}

	v, err, _ := p.opening.Do(key, func() (any, error) {
		if v, ok := p.lookup(key); ok {
			return v, nil
		}
		v, err := open()
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.items[key] = v
		p.order = append(p.order, key)
		p.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return pooled[T](key, v)
}

func (p *Pool) lookup(key string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.items[key]
	return v, ok
}

func pooled[T any](key string, v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var zero T
	return zero, fmt.Errorf("services: pooled %s is %T", key, v)
}

// Len returns the number of open backends.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Close closes every backend that has a Close method, newest first, and
// empties the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for i := len(p.order) - 1; i >= 0; i-- {
		key := p.order[i]
		if c, ok := p.items[key].(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("services: close %s: %w", key, err))
			}
		}
	}
	p.items = make(map[string]any)
	p.order = nil
	return errors.Join(errs...)
}

// poolKey identifies a backend by name and options. encoding/json sorts map
// keys, so equal options give equal keys.
func poolKey(name string, options map[string]any) string {
	raw, err := json.Marshal(options)
	if err != nil {
		return fmt.Sprintf("%s:%v", name, options)
	}
	return name + ":" + string(raw)
}
