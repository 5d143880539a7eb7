package lodge

import (
	"sort"

	"github.com/spf13/cast"
)

// Bag is an insertion-ordered key-value map. Route attributes rely on the
// order when parameters are injected by position.
type Bag struct {
	keys   []string
	values map[string]any
}

// NewBag creates an empty bag.
func NewBag() *Bag {
	return &Bag{values: make(map[string]any)}
}

// BagOf creates a bag from m with keys in sorted order.
func BagOf(m map[string]any) *Bag {
	b := NewBag()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.Set(k, m[k])
	}
	return b
}

// Get returns the value stored under key.
func (b *Bag) Get(key string) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Value returns the value under key or def.
func (b *Bag) Value(key string, def any) any {
	if v, ok := b.values[key]; ok {
		return v
	}
	return def
}

// String returns the value under key as a string.
func (b *Bag) String(key string) string {
	return cast.ToString(b.values[key])
}

// Set stores value under key, keeping the original position of existing keys.
func (b *Bag) Set(key string, value any) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

// Has reports whether key is present.
func (b *Bag) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// Delete removes key.
func (b *Bag) Delete(key string) {
	if _, ok := b.values[key]; !ok {
		return
	}
	delete(b.values, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (b *Bag) Keys() []string {
	return append([]string(nil), b.keys...)
}

// Values returns the values in insertion order.
func (b *Bag) Values() []any {
	out := make([]any, len(b.keys))
	for i, k := range b.keys {
		out[i] = b.values[k]
	}
	return out
}

// All returns a copy of the contents.
func (b *Bag) All() map[string]any {
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (b *Bag) Len() int { return len(b.keys) }

// Merge copies every entry of other into b, overwriting existing keys.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		b.Set(k, other.values[k])
	}
}

// Replace discards the contents of b and copies other into it.
func (b *Bag) Replace(other *Bag) {
	b.keys = nil
	b.values = make(map[string]any)
	b.Merge(other)
}

// Clone returns an independent copy.
func (b *Bag) Clone() *Bag {
	c := NewBag()
	c.Merge(b)
	return c
}
