package lodge

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/lodge/container"
	"github.com/karloscodes/lodge/registry"
)

// Binding names the kernel registers in every Context.
const (
	NameRuleRouter   = "router.rule"
	NameActionRouter = "router.action"
	NameJSONRender   = "view.render.json"
	NameApp          = "app"
)

var headerRequestID = http.CanonicalHeaderKey(fiber.HeaderXRequestID)

// Bootstrap prepares a fresh Context, typically by registering controllers
// and services. It runs for every request.
type Bootstrap func(ctx *Context) error

// Observer is told about every handled request.
type Observer func(result DispatchResult, status int, elapsed time.Duration)

// Kernel turns requests into responses. It owns the process-wide registry
// and builds a new Context for every request.
type Kernel struct {
	registry   registry.Registry
	logger     *slog.Logger
	bootstraps []Bootstrap
	observers  []Observer
	catcher    Catcher
}

// KernelOption configures a Kernel.
type KernelOption func(*Kernel)

// WithBootstrap adds a bootstrap function.
func WithBootstrap(fn Bootstrap) KernelOption {
	return func(k *Kernel) { k.bootstraps = append(k.bootstraps, fn) }
}

// WithObserver adds a request observer.
func WithObserver(fn Observer) KernelOption {
	return func(k *Kernel) { k.observers = append(k.observers, fn) }
}

// WithCatcher replaces the default catcher.
func WithCatcher(c Catcher) KernelOption {
	return func(k *Kernel) { k.catcher = c }
}

// NewKernel creates a kernel serving the configuration in reg.
func NewKernel(reg registry.Registry, logger *slog.Logger, opts ...KernelOption) *Kernel {
	if reg == nil {
		reg = registry.NewMapRegistry(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	k := &Kernel{registry: reg, logger: logger}
	for _, opt := range opts {
		opt(k)
	}
	if k.catcher == nil {
		k.catcher = DefaultCatcher(logger, registry.Bool(reg, "app.debug", false))
	}
	return k
}

// Registry returns the process-wide registry.
func (k *Kernel) Registry() registry.Registry { return k.registry }

// NewContext builds and bootstraps the Context for one request. The Context
// is returned even when a bootstrap fails so it can still be torn down.
func (k *Kernel) NewContext(req *Request, resp *Response) (*Context, error) {
	logger := k.logger
	if id := req.Header().String(headerRequestID); id != "" {
		logger = logger.With(slog.String("request_id", id))
	}

	ctx := NewContext(k.registry, req, resp, logger)
	ctx.Register(NameRuleRouter, container.Ctor(NewRuleRouter), true)
	ctx.Register(NameActionRouter, container.Ctor(NewActionRouter), true)
	ctx.Register(NameView, container.Ctor(NewView), true)
	ctx.Register(NameJSONRender, container.Ctor(NewJSONRender), true)
	ctx.Register(NameApp, container.Ctor(NewApp), true)

	for _, boot := range k.bootstraps {
		if err := boot(ctx); err != nil {
			return ctx, fmt.Errorf("bootstrap: %w", err)
		}
	}
	return ctx, nil
}

// Handle runs req through the application named by app.class. Failures are
// rendered by the catcher; services started for the request are always
// stopped.
func (k *Kernel) Handle(req *Request) *Response {
	start := time.Now()

	resp := NewResponse()
	if by := registry.String(k.registry, "app.poweredBy", "lodge"); by != "" {
		resp.Header().Set(fiber.HeaderXPoweredBy, by)
	}

	ctx, err := k.NewContext(req, resp)
	var result DispatchResult
	if err == nil {
		result, err = k.run(ctx)
	}
	if stopErr := ctx.UnregisterServices(); err == nil {
		err = stopErr
	}
	if err != nil {
		k.catcher.Catch(ctx, err)
	}

	elapsed := time.Since(start)
	for _, observe := range k.observers {
		observe(result, resp.Status(), elapsed)
	}
	return resp
}

func (k *Kernel) run(ctx *Context) (result DispatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	name := registry.String(k.registry, "app.class", NameApp)
	v, err := ctx.Get(name, nil)
	if err != nil {
		return result, err
	}
	app, ok := v.(Lifecycle)
	if !ok {
		return result, fmt.Errorf("kernel: %s resolved %T, which is not a Lifecycle", name, v)
	}

	if reporter, ok := app.(interface{ Result() DispatchResult }); ok {
		defer func() { result = reporter.Result() }()
	}

	if err := app.Initialize(); err != nil {
		return result, err
	}
	return result, app.Run()
}

// Handler adapts the kernel to fiber.
func (k *Kernel) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := RequestFromFiber(c)
		if id, ok := c.Locals("requestid").(string); ok && id != "" && !req.Header().Has(headerRequestID) {
			req.Header().Set(headerRequestID, id)
		}
		return k.Handle(req).WriteTo(c)
	}
}
