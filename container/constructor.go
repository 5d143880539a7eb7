package container

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strconv"

	"github.com/spf13/cast"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Param describes one constructor parameter.
type Param struct {
	// Name matches a same-named entry in Args.
	Name string
	// Key overrides the abstract name resolved for class-like parameters.
	Key string

	def    any
	hasDef bool
}

// P returns a parameter descriptor named name.
func P(name string) Param {
	return Param{Name: name}
}

// Default sets the value used when nothing else can be bound.
func (p Param) Default(v any) Param {
	p.def = v
	p.hasDef = true
	return p
}

// From sets the abstract name resolved for the parameter.
func (p Param) From(key string) Param {
	p.Key = key
	return p
}

// HasDefault reports whether a default value was declared.
func (p Param) HasDefault() bool { return p.hasDef }

// DefaultValue returns the declared default.
func (p Param) DefaultValue() any { return p.def }

func (p Param) label(i int) string {
	if p.Name != "" {
		return p.Name
	}
	return "#" + strconv.Itoa(i)
}

// Constructor builds a value by calling a Go function. Parameters are bound
// from Args by name or position, class-like parameters are resolved from the
// container and everything else falls back to the declared default.
type Constructor struct {
	fn     reflect.Value
	params []Param
	errOut bool
}

// Ctor wraps fn, a func returning T or (T, error). It panics when fn has
// another shape, since that is a programming error at registration time.
func Ctor(fn any, params ...Param) *Constructor {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("container: Ctor expects a function, got %T", fn))
	}
	t := v.Type()
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		panic(fmt.Sprintf("container: constructor %s must return T or (T, error)", t))
	}
	if len(params) > t.NumIn() {
		panic(fmt.Sprintf("container: %d params declared for %s", len(params), t))
	}

	ps := make([]Param, t.NumIn())
	copy(ps, params)
	return &Constructor{fn: v, params: ps, errOut: t.NumOut() == 2}
}

// Name returns the function name, used in error messages.
func (k *Constructor) Name() string {
	if f := runtime.FuncForPC(k.fn.Pointer()); f != nil {
		return f.Name()
	}
	return k.fn.Type().String()
}

func (k *Constructor) invoke(c *Container, args Args) (any, error) {
	t := k.fn.Type()
	in := make([]reflect.Value, t.NumIn())
	for i, p := range k.params {
		v, err := k.bind(c, i, p, t.In(i), args)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}

	out := k.fn.Call(in)
	if k.errOut && !out[1].IsNil() {
		err := out[1].Interface().(error)
		var ie *InstantiationError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, &InstantiationError{Name: k.Name(), Err: err}
	}
	return out[0].Interface(), nil
}

func (k *Constructor) bind(c *Container, i int, p Param, pt reflect.Type, args Args) (reflect.Value, error) {
	if v, ok := lookup(args, i, p); ok {
		rv, err := Coerce(v, pt)
		if err != nil {
			return reflect.Value{}, &InstantiationError{Name: k.Name(), Param: p.label(i), Err: err}
		}
		return rv, nil
	}

	var cause error = ErrNoValue
	if classLike(pt) {
		key := p.Key
		if key == "" {
			key = typeKey(pt)
		}
		v, err := c.Get(key, nil)
		if err == nil {
			rv, cerr := Coerce(v, pt)
			if cerr == nil {
				return rv, nil
			}
			err = cerr
		}
		cause = err
	}

	if p.hasDef {
		rv, err := Coerce(p.def, pt)
		if err != nil {
			return reflect.Value{}, &InstantiationError{Name: k.Name(), Param: p.label(i), Err: err}
		}
		return rv, nil
	}
	return reflect.Value{}, &InstantiationError{Name: k.Name(), Param: p.label(i), Err: cause}
}

// lookup prefers the named argument, then the positional one.
func lookup(args Args, i int, p Param) (any, bool) {
	if args == nil {
		return nil, false
	}
	if p.Name != "" {
		if v, ok := args[p.Name]; ok {
			return v, true
		}
	}
	v, ok := args[strconv.Itoa(i)]
	return v, ok
}

func classLike(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Struct, reflect.Map, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// Coerce converts v to type t. Scalars go through spf13/cast so route
// attributes like "42" bind to int parameters.
func Coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	var (
		out any
		err error
	)
	switch t.Kind() {
	case reflect.String:
		out, err = cast.ToStringE(v)
	case reflect.Bool:
		out, err = cast.ToBoolE(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out, err = cast.ToInt64E(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out, err = cast.ToUint64E(v)
	case reflect.Float32, reflect.Float64:
		out, err = cast.ToFloat64E(v)
	default:
		if rv.Type().ConvertibleTo(t) {
			return rv.Convert(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
	}
	if err != nil {
		return reflect.Value{}, err
	}

	dst := reflect.New(t).Elem()
	switch n := out.(type) {
	case int64:
		if dst.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
	case uint64:
		if dst.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
	case float64:
		if dst.OverflowFloat(n) {
			return reflect.Value{}, fmt.Errorf("%g overflows %s", n, t)
		}
	}
	return reflect.ValueOf(out).Convert(t), nil
}
