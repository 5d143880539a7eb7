package lodge

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/karloscodes/lodge/container"
)

// Service is a stateful collaborator with an explicit lifecycle:
// registered, then started (immediately or on first use when deferred), then
// stopped when the request ends.
type Service interface {
	ContextAware

	// Register declares the bindings the service provides.
	Register() error
	// Start opens the service. Calling it on a started service does nothing.
	Start() error
	// Stop closes the service. Calling it on a stopped service does nothing.
	Stop() error

	Deferred() bool
	Started() bool
}

// ServiceBase implements the bookkeeping part of Service. Embed it and call
// StartOnce and StopOnce from Start and Stop.
type ServiceBase struct {
	ctx      *Context
	deferred bool
	started  bool
}

// BindContext implements ContextAware.
func (b *ServiceBase) BindContext(ctx *Context) { b.ctx = ctx }

// Context returns the owning context.
func (b *ServiceBase) Context() *Context { return b.ctx }

// Deferred reports whether Start waits for the first use.
func (b *ServiceBase) Deferred() bool { return b.deferred }

// SetDeferred marks the service as deferred.
func (b *ServiceBase) SetDeferred(deferred bool) { b.deferred = deferred }

// Started reports whether the service is running.
func (b *ServiceBase) Started() bool { return b.started }

// StartOnce runs fn unless the service is already started.
func (b *ServiceBase) StartOnce(fn func() error) error {
	if b.started {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	b.started = true
	return nil
}

// StopOnce runs fn if the service is started.
func (b *ServiceBase) StopOnce(fn func() error) error {
	if !b.started {
		return nil
	}
	b.started = false
	return fn()
}

// Provide binds name to a shared factory that starts the service before
// handing out value. This is how deferred services start on first use.
func (b *ServiceBase) Provide(name string, start func() error, value func() any) {
	b.ctx.Register(name, container.Factory(func(*container.Container, container.Args) (any, error) {
		if err := start(); err != nil {
			return nil, err
		}
		return value(), nil
	}), true)
}

// RegisterService adds svc under name, or under its type name when name is
// empty. The service's Register hook runs and, unless the service is
// deferred, so does Start. A name registers at most one service.
func (c *Context) RegisterService(name string, svc Service) error {
	if name == "" {
		name = container.NameOf(svc)
	}
	if c.service(name) != nil {
		return nil
	}

	svc.BindContext(c)
	if err := svc.Register(); err != nil {
		return fmt.Errorf("service %s: register: %w", name, err)
	}
	c.services = append(c.services, &serviceSlot{name: name, service: svc})

	if !svc.Deferred() {
		if err := svc.Start(); err != nil {
			return fmt.Errorf("service %s: start: %w", name, err)
		}
	}
	return nil
}

// RegisterServiceName resolves name from the container and registers it.
func (c *Context) RegisterServiceName(name string) error {
	if c.service(name) != nil {
		return nil
	}
	v, err := c.Get(name, nil)
	if err != nil {
		return err
	}
	svc, ok := v.(Service)
	if !ok {
		return fmt.Errorf("service %s: %T does not implement Service", name, v)
	}
	return c.RegisterService(name, svc)
}

// GetService returns the service registered under name, starting it when it
// is not running yet. Unknown names return nil and no error.
func (c *Context) GetService(name string) (Service, error) {
	svc := c.service(name)
	if svc == nil {
		return nil, nil
	}
	if !svc.Started() {
		if err := svc.Start(); err != nil {
			return nil, fmt.Errorf("service %s: start: %w", name, err)
		}
	}
	return svc, nil
}

// ServiceNames returns the registered names in registration order.
func (c *Context) ServiceNames() []string {
	names := make([]string, len(c.services))
	for i, slot := range c.services {
		names[i] = slot.name
	}
	return names
}

// UnregisterServices stops every started service in reverse registration
// order and forgets all of them. Every service gets its Stop call even when
// an earlier one fails; the failures are joined.
func (c *Context) UnregisterServices() error {
	var errs []error
	for i := len(c.services) - 1; i >= 0; i-- {
		slot := c.services[i]
		if !slot.service.Started() {
			continue
		}
		if err := slot.service.Stop(); err != nil {
			c.logger.Warn("service stop failed", slog.String("service", slot.name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("service %s: stop: %w", slot.name, err))
		}
	}
	c.services = nil
	return errors.Join(errs...)
}

func (c *Context) service(name string) Service {
	for _, slot := range c.services {
		if slot.name == name {
			return slot.service
		}
	}
	return nil
}
