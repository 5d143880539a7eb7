package lodge

import (
	"fmt"

	"github.com/karloscodes/lodge/registry"
)

// Lifecycle is what the binding named by app.class must resolve to.
type Lifecycle interface {
	Initialize() error
	Run() error
}

// AppHooks observe the phases of a request. Embed NopAppHooks to implement
// only some of them.
type AppHooks interface {
	OnCreate(app *App) error
	OnDispatched(app *App, result DispatchResult) error
	OnStart(app *App) error
	OnStop(app *App) error
}

// NopAppHooks implements AppHooks with no-ops.
type NopAppHooks struct{}

func (NopAppHooks) OnCreate(*App) error                     { return nil }
func (NopAppHooks) OnDispatched(*App, DispatchResult) error { return nil }
func (NopAppHooks) OnStart(*App) error                      { return nil }
func (NopAppHooks) OnStop(*App) error                       { return nil }

// App runs one request: it starts the configured services, dispatches the
// router and hands over to the resolved controller.
type App struct {
	ctx    *Context
	hooks  AppHooks
	router Router
	result DispatchResult
}

// NewApp creates an App without hooks.
func NewApp() *App {
	return &App{hooks: NopAppHooks{}}
}

// BindContext implements ContextAware.
func (a *App) BindContext(ctx *Context) { a.ctx = ctx }

// Context returns the request context.
func (a *App) Context() *Context { return a.ctx }

// SetHooks replaces the lifecycle hooks.
func (a *App) SetHooks(h AppHooks) {
	if h == nil {
		h = NopAppHooks{}
	}
	a.hooks = h
}

// Result returns the dispatch result, empty until Run dispatched.
func (a *App) Result() DispatchResult { return a.result }

// Initialize registers the services listed in app.services and runs
// OnCreate.
func (a *App) Initialize() error {
	for _, name := range registry.StringSlice(a.ctx.Registry(), "app.services") {
		if err := a.ctx.RegisterServiceName(name); err != nil {
			return err
		}
	}
	return a.hooks.OnCreate(a)
}

// Router resolves the router named by router.class and shares it as
// "router" for the rest of the request.
func (a *App) Router() (Router, error) {
	if a.router != nil {
		return a.router, nil
	}

	name := registry.String(a.ctx.Registry(), "router.class", "router.rule")
	v, err := a.ctx.Get(name, nil)
	if err != nil {
		return nil, err
	}
	router, ok := v.(Router)
	if !ok {
		return nil, fmt.Errorf("app: %s resolved %T, which is not a Router", name, v)
	}
	a.ctx.ShareInstance(NameRouter, router)
	a.router = router
	return router, nil
}

// Run dispatches the request and runs the resolved controller.
func (a *App) Run() error {
	router, err := a.Router()
	if err != nil {
		return err
	}
	if err := router.Dispatch(); err != nil {
		return err
	}
	a.result = router.Result()

	if err := a.hooks.OnDispatched(a, a.result); err != nil {
		return err
	}

	if a.result.Controller == "" {
		return notFound("no controller dispatched for %s", a.ctx.Request().Path())
	}
	if !a.ctx.Has(a.result.Controller) {
		return notFound("controller %s not found", a.result.Controller)
	}
	return a.control()
}

func (a *App) control() error {
	v, err := a.ctx.Get(a.result.Controller, nil)
	if err != nil {
		return err
	}
	ctrl, ok := v.(Controller)
	if !ok {
		return fmt.Errorf("app: %s resolved %T, which is not a Controller", a.result.Controller, v)
	}

	if err := InitializeController(a.ctx, ctrl, a.result.Method); err != nil {
		return err
	}
	if err := a.hooks.OnStart(a); err != nil {
		return err
	}
	if err := RunController(a.ctx, ctrl, a.result.Method); err != nil {
		return err
	}
	return a.hooks.OnStop(a)
}
