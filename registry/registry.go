// Package registry holds the framework configuration as a tree addressed by
// dotted keys such as "router.controller.default".
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cast"
)

// Registry is a source-agnostic configuration store.
type Registry interface {
	// Get returns the value at key, or def when the key does not exist.
	Get(key string, def any) any
	Set(key string, value any)
	Exist(key string) bool
	Delete(key string)
}

// MapRegistry is an in-memory Registry. It is safe for concurrent use, since
// one registry serves every request of the process.
type MapRegistry struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewMapRegistry creates a registry seeded with data. Nested maps are copied.
func NewMapRegistry(data map[string]any) *MapRegistry {
	r := &MapRegistry{data: make(map[string]any)}
	for k, v := range data {
		r.data[k] = normalize(v)
	}
	return r
}

// Get returns the value at key. A key stored verbatim at the top level
// shadows the dotted walk.
func (r *MapRegistry) Get(key string, def any) any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := lookup(r.data, key); ok {
		return v
	}
	return def
}

// Set stores value at key, creating intermediate maps as needed.
func (r *MapRegistry) Set(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parts := strings.Split(key, ".")
	cur := r.data
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = normalize(value)
}

// Exist reports whether key is set.
func (r *MapRegistry) Exist(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := lookup(r.data, key)
	return ok
}

// Delete removes key. Missing keys are ignored.
func (r *MapRegistry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[key]; ok {
		delete(r.data, key)
		return
	}

	parts := strings.Split(key, ".")
	cur := r.data
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// merge copies a scope tree under name.
func (r *MapRegistry) merge(name string, tree map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = normalize(tree)
}

func lookup(data map[string]any, key string) (any, bool) {
	if v, ok := data[key]; ok {
		return v, true
	}

	var cur any = data
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// normalize turns map[any]any trees into map[string]any so dotted lookups
// work regardless of the decoder that produced them.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// String returns the value at key as a string.
func String(r Registry, key, def string) string {
	v := r.Get(key, nil)
	if v == nil {
		return def
	}
	return cast.ToString(v)
}

// Bool returns the value at key as a bool.
func Bool(r Registry, key string, def bool) bool {
	v := r.Get(key, nil)
	if v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns the value at key as an int.
func Int(r Registry, key string, def int) int {
	v := r.Get(key, nil)
	if v == nil {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// StringSlice returns the value at key as a list of strings. A single string
// becomes a one-element list.
func StringSlice(r Registry, key string) []string {
	switch v := r.Get(key, nil).(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return cast.ToStringSlice(v)
	}
}

// Map returns the value at key as a map, or an empty map.
func Map(r Registry, key string) map[string]any {
	m, err := cast.ToStringMapE(r.Get(key, nil))
	if err != nil || m == nil {
		return map[string]any{}
	}
	return m
}
