// Package inertia renders Inertia.js pages through petaki/inertia-go. The
// template name is the page component; view variables become its props.
package inertia

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	inertiago "github.com/petaki/inertia-go"
	"github.com/spf13/cast"

	"github.com/karloscodes/lodge"
	"github.com/karloscodes/lodge/container"
)

// Name is the binding Install registers; set view.render.class to it.
const Name = "view.render.inertia"

// Render implements lodge.Render.
type Render struct {
	ctx     *lodge.Context
	shared  map[string]any
	inertia *inertiago.Inertia
}

// New creates a render. Shared props are sent with every page.
func New(shared map[string]any) *Render {
	return &Render{shared: shared}
}

// Install returns a bootstrap binding Name.
func Install(shared map[string]any) lodge.Bootstrap {
	return func(ctx *lodge.Context) error {
		ctx.Register(Name, container.Factory(func(*container.Container, container.Args) (any, error) {
			return New(shared), nil
		}), true)
		return nil
	}
}

// BindContext implements lodge.ContextAware.
func (r *Render) BindContext(ctx *lodge.Context) { r.ctx = ctx }

// Prepare reads the options: rootTemplate (required, relative to the
// template directory), url and version (default "1").
func (r *Render) Prepare(options map[string]any) error {
	root := cast.ToString(options["rootTemplate"])
	if root == "" {
		return &lodge.ConfigurationError{Key: "view.render.options.rootTemplate"}
	}
	if !filepath.IsAbs(root) && r.ctx != nil {
		root = filepath.Join(r.ctx.TemplateDir(), root)
	}

	version := cast.ToString(options["version"])
	if version == "" {
		version = "1"
	}

	r.inertia = inertiago.New(cast.ToString(options["url"]), root, version)
	for k, v := range r.shared {
		r.inertia.Share(k, v)
	}
	return nil
}

// Render answers Inertia visits with the page as JSON and first loads with
// the root template. The theme is not used.
func (r *Render) Render(w io.Writer, component, _ string, vars map[string]any, _ lodge.RenderOptions) error {
	if r.inertia == nil {
		return fmt.Errorf("inertia: render used before Prepare")
	}
	if r.ctx == nil {
		return fmt.Errorf("inertia: render has no context")
	}

	rw, ok := w.(http.ResponseWriter)
	if !ok {
		rw = &writer{Writer: w, header: make(http.Header)}
	}

	props := make(map[string]any, len(vars))
	for k, v := range vars {
		props[k] = v
	}
	return r.inertia.Render(rw, httpRequest(r.ctx.Request()), component, props)
}

// ContentType returns text/html. Inertia visits switch it to JSON.
func (r *Render) ContentType() string { return fiber.MIMETextHTML }

func httpRequest(req *lodge.Request) *http.Request {
	u := &url.URL{Path: req.Path()}
	if req.Query().Len() > 0 {
		q := url.Values{}
		for _, k := range req.Query().Keys() {
			q.Set(k, req.Query().String(k))
		}
		u.RawQuery = q.Encode()
	}

	hr := &http.Request{
		Method:     req.Method(),
		URL:        u,
		RequestURI: u.RequestURI(),
		Header:     make(http.Header),
	}
	for _, k := range req.Header().Keys() {
		hr.Header.Set(k, req.Header().String(k))
	}
	return hr
}

type writer struct {
	io.Writer
	header http.Header
}

func (w *writer) Header() http.Header { return w.header }
func (w *writer) WriteHeader(int)     {}

var _ lodge.Render = (*Render)(nil)
