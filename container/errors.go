package container

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInstantiable is returned when a name has no constructor or factory.
	ErrNotInstantiable = errors.New("not instantiable")

	// ErrCircular is returned when resolving a name requires itself.
	ErrCircular = errors.New("circular dependency")

	// ErrNoValue is returned when a scalar parameter has neither a value nor a default.
	ErrNoValue = errors.New("no value and no default")
)

// InstantiationError reports a failure to build or resolve a name.
type InstantiationError struct {
	Name  string
	Param string
	Err   error
}

func (e *InstantiationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("container: cannot instantiate %s: parameter %s: %v", e.Name, e.Param, e.Err)
	}
	return fmt.Sprintf("container: cannot instantiate %s: %v", e.Name, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }
