// Package container provides the dependency injection container the framework
// is built on. Every entry is keyed by a canonical name and is exactly one of an
// alias, a shared instance or a binding.
//
// A Container is created per request and is not safe for concurrent use.
package container

import (
	"fmt"
	"reflect"
	"strconv"
)

// Args carries extra constructor arguments keyed by parameter name.
// Numeric keys ("0", "1", ...) address parameters by position.
type Args map[string]any

// Positional returns Args addressing constructor parameters by position.
func Positional(values ...any) Args {
	args := make(Args, len(values))
	for i, v := range values {
		args[strconv.Itoa(i)] = v
	}
	return args
}

// Builder describes how a binding is constructed. It is one of Factory, Ref
// or *Constructor.
type Builder interface {
	builder()
}

// Factory builds a value with full access to the container.
type Factory func(c *Container, args Args) (any, error)

// Ref points a binding at another abstract name.
type Ref string

func (Factory) builder()      {}
func (Ref) builder()          {}
func (*Constructor) builder() {}

type entryKind uint8

const (
	bindingEntry entryKind = iota + 1
	instanceEntry
	aliasEntry
)

type entry struct {
	kind    entryKind
	target  string // alias
	builder Builder
	shared  bool
	value   any // instance, or the cached value of a shared binding
	built   bool
}

// Container maps abstract names to builders and shared instances.
type Container struct {
	entries   map[string]*entry
	resolving map[string]bool
	onBuilt   func(instance any)
}

// New creates an empty container.
func New() *Container {
	return &Container{
		entries:   make(map[string]*entry),
		resolving: make(map[string]bool),
	}
}

// SetBuiltHook installs a function called with every successfully built value.
func (c *Container) SetBuiltHook(fn func(instance any)) {
	c.onBuilt = fn
}

// Register binds name to builder. A nil builder binds the name to itself.
// Any instance or alias previously held under name is dropped.
func (c *Container) Register(name string, b Builder, shared bool) {
	if b == nil {
		b = Ref(name)
	}
	c.entries[name] = &entry{kind: bindingEntry, builder: b, shared: shared}
}

// RegisterAs binds canonical to builder and makes alias resolve to it.
func (c *Container) RegisterAs(canonical, alias string, b Builder, shared bool) {
	c.Register(canonical, b, shared)
	c.alias(canonical, alias)
}

// ShareInstance stores instance as the shared value for name.
func (c *Container) ShareInstance(name string, instance any) {
	c.entries[name] = &entry{kind: instanceEntry, value: instance}
}

// ShareInstanceAs stores instance under canonical and makes alias resolve to it.
func (c *Container) ShareInstanceAs(canonical, alias string, instance any) {
	c.ShareInstance(canonical, instance)
	c.alias(canonical, alias)
}

func (c *Container) alias(canonical, alias string) {
	if alias == "" || alias == canonical {
		return
	}
	c.entries[alias] = &entry{kind: aliasEntry, target: canonical}
}

// IsShared reports whether name holds an instance or a shared binding.
func (c *Container) IsShared(name string) bool {
	e := c.entries[c.canonical(name)]
	if e == nil {
		return false
	}
	return e.kind == instanceEntry || e.shared
}

// Has reports whether anything is registered under name.
func (c *Container) Has(name string) bool {
	_, ok := c.entries[c.canonical(name)]
	return ok
}

func (c *Container) canonical(name string) string {
	if e, ok := c.entries[name]; ok && e.kind == aliasEntry {
		return e.target
	}
	return name
}

// Get resolves name, building it when no shared value exists yet.
func (c *Container) Get(name string, args Args) (any, error) {
	name = c.canonical(name)

	e := c.entries[name]
	if e != nil && (e.kind == instanceEntry || e.built) {
		return e.value, nil
	}

	if c.resolving[name] {
		return nil, &InstantiationError{Name: name, Err: ErrCircular}
	}
	c.resolving[name] = true
	defer delete(c.resolving, name)

	var b Builder = Ref(name)
	if e != nil && e.builder != nil {
		b = e.builder
	}

	var (
		value any
		err   error
	)
	if ref, ok := b.(Ref); ok && string(ref) != name {
		value, err = c.Get(string(ref), args)
	} else {
		value, err = c.Build(b, args)
	}
	if err != nil {
		return nil, err
	}

	// The entry may have been replaced while building.
	if e != nil && e.shared && c.entries[name] == e {
		e.value = value
		e.built = true
	}
	return value, nil
}

// Build constructs a value from builder without consulting shared instances.
func (c *Container) Build(b Builder, args Args) (any, error) {
	var (
		value any
		err   error
	)

	switch b := b.(type) {
	case Factory:
		value, err = b(c, args)
	case *Constructor:
		value, err = b.invoke(c, args)
	case Ref:
		// A name can only be built through a builder registered for it.
		e := c.entries[c.canonical(string(b))]
		if e == nil || e.builder == nil {
			return nil, &InstantiationError{Name: string(b), Err: ErrNotInstantiable}
		}
		if _, self := e.builder.(Ref); self {
			return nil, &InstantiationError{Name: string(b), Err: ErrNotInstantiable}
		}
		return c.Build(e.builder, args)
	case nil:
		return nil, &InstantiationError{Name: "<nil>", Err: ErrNotInstantiable}
	default:
		return nil, &InstantiationError{Name: fmt.Sprintf("%T", b), Err: ErrNotInstantiable}
	}
	if err != nil {
		return nil, err
	}

	if c.onBuilt != nil {
		c.onBuilt(value)
	}
	return value, nil
}

// Resolve fetches name and asserts it to T. An empty name resolves KeyOf[T].
func Resolve[T any](c *Container, name string) (T, error) {
	var zero T
	if name == "" {
		name = KeyOf[T]()
	}
	v, err := c.Get(name, nil)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &InstantiationError{Name: name, Err: fmt.Errorf("resolved %T, want %s", v, reflect.TypeOf((*T)(nil)).Elem())}
	}
	return t, nil
}

// KeyOf returns the canonical name of type T. Pointers are keyed by their
// element type, so *Foo and Foo share a name.
func KeyOf[T any]() string {
	return typeKey(reflect.TypeOf((*T)(nil)).Elem())
}

// NameOf returns the canonical type name of v.
func NameOf(v any) string {
	if v == nil {
		return ""
	}
	return typeKey(reflect.TypeOf(v))
}

func typeKey(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
