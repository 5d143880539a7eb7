package lodge

import (
	"strings"

	"github.com/karloscodes/lodge/registry"
)

// RouterState is the dispatch state of a router.
type RouterState int

const (
	StateIdle RouterState = iota
	StateDispatching
	StateResolved
)

func (s RouterState) String() string {
	switch s {
	case StateDispatching:
		return "dispatching"
	case StateResolved:
		return "resolved"
	default:
		return "idle"
	}
}

// DispatchResult is what a router resolved for the current request.
type DispatchResult struct {
	// Controller is the fully decorated container name of the controller,
	// e.g. "app/controller/GreetingController".
	Controller string
	// Method is the decorated Go method name, e.g. "SayHello".
	Method string

	// OriginalController and OriginalMethod are the names before decoration.
	OriginalController string
	OriginalMethod     string

	// Attributes holds the parameters captured by the matching rule.
	Attributes *Bag
}

// Router resolves the current request to a controller and method.
type Router interface {
	Dispatch() error
	Result() DispatchResult
	State() RouterState
}

// RouterBase holds the state shared by router implementations.
type RouterBase struct {
	ctx    *Context
	state  RouterState
	result DispatchResult
}

// BindContext implements ContextAware.
func (r *RouterBase) BindContext(ctx *Context) { r.ctx = ctx }

// Context returns the owning context.
func (r *RouterBase) Context() *Context { return r.ctx }

// State returns the dispatch state.
func (r *RouterBase) State() RouterState { return r.state }

// Result returns the last dispatch result.
func (r *RouterBase) Result() DispatchResult { return r.result }

// Begin clears any previous result and enters the dispatching state.
func (r *RouterBase) Begin() {
	r.result = DispatchResult{Attributes: NewBag()}
	r.state = StateDispatching
}

// SetResult applies the configured defaults and decoration to the raw
// controller and method names and resolves the router.
func (r *RouterBase) SetResult(controller, method string, attrs *Bag) {
	reg := r.ctx.Registry()

	if controller == "" {
		controller = registry.String(reg, "router.controller.default", "Home")
	}
	if method == "" {
		method = registry.String(reg, "router.method.default", "index")
	}

	r.result.OriginalController = controller
	r.result.OriginalMethod = method

	if controller != "" {
		r.result.Controller = r.ctx.ControllerName(controller)
	}

	if method != "" {
		prefix := registry.String(reg, "router.method.prefix", "")
		postfix := registry.String(reg, "router.method.postfix", "")
		// Only exported methods can be invoked.
		r.result.Method = upperFirst(prefix + method + postfix)
	}

	if attrs != nil {
		r.result.Attributes = attrs.Clone()
	}
	r.state = StateResolved
}

// ControllerName decorates a short controller name such as "Greeting" into
// the container name the routers resolve, "app/controller/GreetingController"
// with the default settings.
func (c *Context) ControllerName(short string) string {
	reg := c.Registry()

	var parts []string
	if pkg := c.PackageName(); pkg != "" {
		parts = append(parts, pkg)
	}
	if ns := registry.String(reg, "router.controller.namespace", "controller"); ns != "" {
		parts = append(parts, ns)
	}
	parts = append(parts, short+registry.String(reg, "router.controller.postfix", "Controller"))
	return strings.Join(parts, "/")
}

// splitTarget splits "Admin/User/edit" into controller "Admin/User" and
// method "edit".
func splitTarget(target string) (controller, method string) {
	target = strings.Trim(target, "/")
	if target == "" {
		return "", ""
	}
	i := strings.LastIndex(target, "/")
	if i < 0 {
		return "", target
	}
	return target[:i], target[i+1:]
}
