package lodge

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/karloscodes/lodge/container"
	"github.com/karloscodes/lodge/registry"
)

// Names under which every Context shares its request-scoped objects.
const (
	NameContext  = "context"
	NameRegistry = "registry"
	NameRequest  = "request"
	NameResponse = "response"
	NameLogger   = "logger"
	NameRouter   = "router"
	NameView     = "view"
)

// ContextAware is implemented by values that want a reference to the Context
// that built them.
type ContextAware interface {
	BindContext(ctx *Context)
}

// Context is the per-request container. On top of the bindings it carries the
// registry, the request and response, resolved directories and the services
// started for the request.
type Context struct {
	*container.Container

	registry registry.Registry
	logger   *slog.Logger
	request  *Request
	response *Response

	services []*serviceSlot
	dirs     map[string]string
}

type serviceSlot struct {
	name    string
	service Service
}

// NewContext creates a Context for one request.
func NewContext(reg registry.Registry, req *Request, resp *Response, logger *slog.Logger) *Context {
	if reg == nil {
		reg = registry.NewMapRegistry(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if req == nil {
		req = NewRequest("GET", "/")
	}
	if resp == nil {
		resp = NewResponse()
	}

	ctx := &Context{
		Container: container.New(),
		registry:  reg,
		logger:    logger,
		request:   req,
		response:  resp,
		dirs:      make(map[string]string),
	}
	ctx.SetBuiltHook(ctx.bind)

	ctx.ShareInstanceAs(container.KeyOf[*Context](), NameContext, ctx)
	ctx.ShareInstanceAs(container.KeyOf[registry.Registry](), NameRegistry, reg)
	ctx.ShareInstanceAs(container.KeyOf[*Request](), NameRequest, req)
	ctx.ShareInstanceAs(container.KeyOf[*Response](), NameResponse, resp)
	ctx.ShareInstanceAs(container.KeyOf[*slog.Logger](), NameLogger, logger)
	return ctx
}

func (c *Context) bind(v any) {
	if aware, ok := v.(ContextAware); ok {
		aware.BindContext(c)
	}
}

// Registry returns the configuration registry.
func (c *Context) Registry() registry.Registry { return c.registry }

// Request returns the current request.
func (c *Context) Request() *Request { return c.request }

// Response returns the current response.
func (c *Context) Response() *Response { return c.response }

// Logger returns the request logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Debug reports whether app.debug is enabled.
func (c *Context) Debug() bool {
	return registry.Bool(c.registry, "app.debug", false)
}

// PackageName returns app.package, the prefix of controller names.
func (c *Context) PackageName() string {
	return registry.String(c.registry, "app.package", "app")
}

// Dir resolves the directory called name. It reads app.directory.<name>,
// falling back to <base>/<name>; relative paths are taken from the base
// directory. Results are memoized for the life of the Context.
func (c *Context) Dir(name string) string {
	if dir, ok := c.dirs[name]; ok {
		return dir
	}

	var dir string
	if name == "base" {
		dir = registry.String(c.registry, "app.root", "")
		if dir == "" {
			dir, _ = os.Getwd()
		}
	} else {
		dir = registry.String(c.registry, "app.directory."+name, "")
		switch {
		case dir == "":
			dir = filepath.Join(c.BaseDir(), name)
		case !filepath.IsAbs(dir):
			dir = filepath.Join(c.BaseDir(), dir)
		}
	}

	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	c.dirs[name] = dir
	return dir
}

// BaseDir returns the application root.
func (c *Context) BaseDir() string { return c.Dir("base") }

// PublicDir returns the public assets directory.
func (c *Context) PublicDir() string { return c.Dir("public") }

// CacheDir returns the cache directory.
func (c *Context) CacheDir() string { return c.Dir("cache") }

// TemplateDir returns the template directory.
func (c *Context) TemplateDir() string { return c.Dir("template") }

// StorageDir returns the storage directory.
func (c *Context) StorageDir() string { return c.Dir("storage") }
