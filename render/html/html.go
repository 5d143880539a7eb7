// Package html renders views with html/template through
// gofiber/template/html. Templates live under <template dir>/<theme>/ and
// fall back to the default theme.
package html

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/spf13/cast"

	"github.com/karloscodes/lodge"
	"github.com/karloscodes/lodge/container"
)

// Name is the binding Install registers; set view.render.class to it.
const Name = "view.render.html"

// DefaultTheme is tried when a template is missing from the active theme.
const DefaultTheme = "default"

// Engines caches one parsed engine per directory and extension so templates
// are parsed once per process.
type Engines struct {
	mu      sync.Mutex
	engines map[string]*html.Engine
}

// NewEngines creates an empty cache.
func NewEngines() *Engines {
	return &Engines{engines: make(map[string]*html.Engine)}
}

func (e *Engines) get(dir, ext string, reload bool, funcs map[string]any) (*html.Engine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := dir + "|" + ext
	if engine, ok := e.engines[key]; ok {
		return engine, nil
	}

	engine := html.New(dir, ext)
	engine.Reload(reload)
	for name, fn := range funcs {
		engine.AddFunc(name, fn)
	}
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("html: load %s: %w", dir, err)
	}
	e.engines[key] = engine
	return engine, nil
}

// Render implements lodge.Render.
type Render struct {
	ctx     *lodge.Context
	engines *Engines
	funcs   map[string]any

	engine *html.Engine
	layout string
}

// New creates a render sharing engines. Funcs are added to every engine it
// creates.
func New(engines *Engines, funcs map[string]any) *Render {
	if engines == nil {
		engines = NewEngines()
	}
	return &Render{engines: engines, funcs: funcs}
}

// Install returns a bootstrap binding Name to a Render over one engine
// cache.
func Install(funcs map[string]any) lodge.Bootstrap {
	engines := NewEngines()
	return func(ctx *lodge.Context) error {
		ctx.Register(Name, container.Factory(func(*container.Container, container.Args) (any, error) {
			return New(engines, funcs), nil
		}), true)
		return nil
	}
}

// BindContext implements lodge.ContextAware.
func (r *Render) BindContext(ctx *lodge.Context) { r.ctx = ctx }

// Prepare reads the options: directory (default: the template directory),
// extension (default .html), layout and reload.
func (r *Render) Prepare(options map[string]any) error {
	dir := cast.ToString(options["directory"])
	switch {
	case dir == "" && r.ctx != nil:
		dir = r.ctx.TemplateDir()
	case dir != "" && !filepath.IsAbs(dir) && r.ctx != nil:
		dir = filepath.Join(r.ctx.BaseDir(), dir)
	}
	if dir == "" {
		return fmt.Errorf("html: no template directory")
	}

	ext := cast.ToString(options["extension"])
	if ext == "" {
		ext = ".html"
	}

	engine, err := r.engines.get(dir, ext, cast.ToBool(options["reload"]), r.funcs)
	if err != nil {
		return err
	}
	r.engine = engine
	r.layout = cast.ToString(options["layout"])
	return nil
}

// Render executes <theme>/<template>, or <default>/<template> when the theme
// lacks it. A "layout" option overrides the configured layout.
func (r *Render) Render(w io.Writer, template, theme string, vars map[string]any, opts lodge.RenderOptions) error {
	if r.engine == nil {
		return fmt.Errorf("html: render used before Prepare")
	}

	name, err := r.resolve(template, theme)
	if err != nil {
		return err
	}

	layout := r.layout
	if v, ok := opts["layout"]; ok {
		layout = cast.ToString(v)
	}
	if layout != "" {
		return r.engine.Render(w, name, vars, layout)
	}
	return r.engine.Render(w, name, vars)
}

func (r *Render) resolve(template, theme string) (string, error) {
	candidates := []string{template}
	if theme != "" {
		candidates = []string{theme + "/" + template}
		if theme != DefaultTheme {
			candidates = append(candidates, DefaultTheme+"/"+template)
		}
	}
	for _, name := range candidates {
		if r.engine.Templates != nil && r.engine.Templates.Lookup(name) != nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("html: template %s not found in theme %q", template, theme)
}

// ContentType returns text/html.
func (r *Render) ContentType() string { return fiber.MIMETextHTML }

var _ lodge.Render = (*Render)(nil)
