package lodge

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/karloscodes/lodge/container"
	"github.com/karloscodes/lodge/registry"
)

// Controller is implemented by request handlers. Embed ControllerBase to get
// one; any other exported method with no results or a single error result
// is an action.
type Controller interface {
	ContextAware
	Base() *ControllerBase
}

// Optional controller hooks. Each runs around the action named by method.
type (
	CreateHook interface {
		OnCreate(method string) error
	}
	StartHook interface {
		OnStart(method string) error
	}
	RenderHook interface {
		OnRender(template string, opts RenderOptions) error
	}
	StopHook interface {
		OnStop(method string) error
	}
)

// ActionParams describes the parameters of an action so they can be bound
// from route attributes. Parameters without a descriptor bind nothing and
// need a default.
type ActionParams interface {
	ActionParams(method string) []container.Param
}

// ControllerBase carries the per-request state every controller needs.
type ControllerBase struct {
	ctx      *Context
	self     Controller
	view     *View
	template string
	running  string
}

// BindContext implements ContextAware.
func (b *ControllerBase) BindContext(ctx *Context) { b.ctx = ctx }

// Base implements Controller.
func (b *ControllerBase) Base() *ControllerBase { return b }

// Context returns the request context.
func (b *ControllerBase) Context() *Context { return b.ctx }

// View returns the view, available once the controller is initialized.
func (b *ControllerBase) View() *View { return b.view }

// Running returns the action currently executing.
func (b *ControllerBase) Running() string { return b.running }

// Assign sets a view variable.
func (b *ControllerBase) Assign(name string, value any) { b.view.Assign(name, value) }

// AssignAll sets several view variables.
func (b *ControllerBase) AssignAll(values map[string]any) { b.view.AssignAll(values) }

// SetTemplate overrides the template Render uses.
func (b *ControllerBase) SetTemplate(template string) { b.template = template }

// Template returns the explicit template or the one derived from the
// dispatched controller and method.
func (b *ControllerBase) Template() string {
	if b.template != "" {
		return b.template
	}
	v, err := b.ctx.Get(NameRouter, nil)
	if err != nil {
		return ""
	}
	router, ok := v.(Router)
	if !ok {
		return ""
	}
	res := router.Result()

	pieces := strings.Split(res.OriginalController, "/")
	for i, p := range pieces {
		pieces[i] = snakeCase(p)
	}
	return strings.Join(pieces, "/") + "/" + snakeCase(res.OriginalMethod)
}

// Render renders template, or the default template when empty, through the
// view.
func (b *ControllerBase) Render(template string, opts RenderOptions) error {
	if template == "" {
		template = b.Template()
	}
	if opts == nil {
		opts = RenderOptions{}
	}
	if h, ok := b.self.(RenderHook); ok {
		if err := h.OnRender(template, opts); err != nil {
			return err
		}
	}
	return b.view.Render(template, opts)
}

// Methods of ControllerBase and the hooks are never actions.
var reservedMethods = func() map[string]bool {
	names := map[string]bool{
		"OnCreate":     true,
		"OnStart":      true,
		"OnRender":     true,
		"OnStop":       true,
		"ActionParams": true,
	}
	t := reflect.TypeOf((*ControllerBase)(nil))
	for i := 0; i < t.NumMethod(); i++ {
		names[t.Method(i).Name] = true
	}
	return names
}()

// lookupAction returns the bound action method when name is callable.
func lookupAction(ctrl Controller, name string) (reflect.Value, bool) {
	if name == "" || reservedMethods[name] {
		return reflect.Value{}, false
	}
	m := reflect.ValueOf(ctrl).MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, false
	}
	t := m.Type()
	if t.IsVariadic() {
		return reflect.Value{}, false
	}
	switch {
	case t.NumOut() == 0:
	case t.NumOut() == 1 && t.Out(0) == errorType:
	default:
		return reflect.Value{}, false
	}
	return m, true
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// InitializeController attaches the view and runs OnCreate. It fails with a
// NotFoundError when the controller has no such action.
func InitializeController(ctx *Context, ctrl Controller, method string) error {
	base := ctrl.Base()
	base.self = ctrl
	if base.ctx == nil {
		base.ctx = ctx
	}

	viewName := registry.String(ctx.Registry(), "view.class", NameView)
	view, err := container.Resolve[*View](ctx.Container, viewName)
	if err != nil {
		return fmt.Errorf("controller: resolve view: %w", err)
	}
	base.view = view

	if h, ok := ctrl.(CreateHook); ok {
		if err := h.OnCreate(method); err != nil {
			return err
		}
	}

	if method == "" {
		return notFound("no method dispatched for %T", ctrl)
	}
	if _, ok := lookupAction(ctrl, method); !ok {
		return notFound("method %s not found in %T", method, ctrl)
	}
	return nil
}

// RunController invokes method on an initialized controller between
// OnStart and OnStop.
func RunController(ctx *Context, ctrl Controller, method string) error {
	base := ctrl.Base()
	base.running = method
	defer func() { base.running = "" }()

	if h, ok := ctrl.(StartHook); ok {
		if err := h.OnStart(method); err != nil {
			return err
		}
	}

	// OnStart may have changed what is callable.
	action, ok := lookupAction(ctrl, method)
	if !ok {
		return notFound("method %s is not available in %T", method, ctrl)
	}

	args, err := actionArguments(ctx, ctrl, method, action.Type())
	if err != nil {
		return err
	}

	out := action.Call(args)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}

	if h, ok := ctrl.(StopHook); ok {
		return h.OnStop(method)
	}
	return nil
}

// actionArguments binds the action parameters from the request attributes
// when router.parameter.inject.enable is set, by name or, with
// router.parameter.inject.way "order", in capture order.
func actionArguments(ctx *Context, ctrl Controller, method string, t reflect.Type) ([]reflect.Value, error) {
	n := t.NumIn()
	if n == 0 {
		return nil, nil
	}

	params := make([]container.Param, n)
	if ap, ok := ctrl.(ActionParams); ok {
		copy(params, ap.ActionParams(method))
	}

	reg := ctx.Registry()
	inject := registry.Bool(reg, "router.parameter.inject.enable", false)
	byOrder := registry.String(reg, "router.parameter.inject.way", "name") == "order"

	attrs := ctx.Request().Attributes()
	queue := attrs.Values()

	args := make([]reflect.Value, n)
	for i, p := range params {
		var (
			v     any
			found bool
		)
		if inject {
			switch {
			case byOrder && len(queue) > 0:
				v, found = queue[0], true
				queue = queue[1:]
			case !byOrder && p.Name != "":
				v, found = attrs.Get(p.Name)
			}
		}
		if !found && p.HasDefault() {
			v, found = p.DefaultValue(), true
		}
		if !found {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, &MissingParameterError{Name: name}
		}

		rv, err := container.Coerce(v, t.In(i))
		if err != nil {
			return nil, notFound("parameter %s of %s: %v", p.Name, method, err)
		}
		args[i] = rv
	}
	return args, nil
}
