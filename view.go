package lodge

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/lodge/registry"
)

// View collects template variables and renders them into the response with
// the render named by view.render.class.
type View struct {
	ctx    *Context
	vars   map[string]any
	theme  string
	render Render
}

// NewView creates an empty view.
func NewView() *View {
	return &View{vars: make(map[string]any)}
}

// BindContext implements ContextAware.
func (v *View) BindContext(ctx *Context) { v.ctx = ctx }

// Assign sets a template variable.
func (v *View) Assign(name string, value any) { v.vars[name] = value }

// AssignAll sets several template variables.
func (v *View) AssignAll(values map[string]any) {
	for k, val := range values {
		v.vars[k] = val
	}
}

// Get returns a template variable.
func (v *View) Get(name string) any { return v.vars[name] }

// Vars returns the template variables.
func (v *View) Vars() map[string]any { return v.vars }

// Theme returns the theme, view.theme by default.
func (v *View) Theme() string {
	if v.theme == "" {
		return registry.String(v.ctx.Registry(), "view.theme", "default")
	}
	return v.theme
}

// SetTheme overrides the configured theme.
func (v *View) SetTheme(theme string) { v.theme = theme }

// Renderer resolves and prepares the configured render.
func (v *View) Renderer() (Render, error) {
	if v.render != nil {
		return v.render, nil
	}

	reg := v.ctx.Registry()
	name := registry.String(reg, "view.render.class", "view.render.json")
	obj, err := v.ctx.Get(name, nil)
	if err != nil {
		return nil, err
	}
	r, ok := obj.(Render)
	if !ok {
		return nil, fmt.Errorf("view: %s resolved %T, which is not a Render", name, obj)
	}
	if err := r.Prepare(registry.Map(reg, "view.render.options")); err != nil {
		return nil, fmt.Errorf("view: prepare %s: %w", name, err)
	}
	v.render = r
	return r, nil
}

// Render writes the content type and cache headers, then the rendered
// template, into the response.
func (v *View) Render(template string, opts RenderOptions) error {
	r, err := v.Renderer()
	if err != nil {
		return err
	}

	reg := v.ctx.Registry()
	resp := v.ctx.Response()

	contentType := registry.String(reg, "view.response.contentType", r.ContentType())
	if ct, ok := opts["contentType"].(string); ok && ct != "" {
		contentType = ct
	}
	if charset := registry.String(reg, "view.response.charset", "utf-8"); charset != "" {
		contentType += "; charset=" + charset
	}
	resp.Header().Set(fiber.HeaderContentType, contentType)

	if cc := registry.String(reg, "view.response.cacheControl", ""); cc != "" {
		resp.Header().Set(fiber.HeaderCacheControl, cc)
	}

	return r.Render(resp, template, v.Theme(), v.vars, opts)
}
