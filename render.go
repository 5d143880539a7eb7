package lodge

import (
	"encoding/json"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

// RenderOptions are per-call options handed to a Render. Controllers may
// adjust them in OnRender.
type RenderOptions map[string]any

// Render turns a template name and variables into a response body.
type Render interface {
	// Prepare receives view.render.options once, before the first Render.
	Prepare(options map[string]any) error
	Render(w io.Writer, template, theme string, vars map[string]any, opts RenderOptions) error
	ContentType() string
}

// JSONRender writes the view variables as a JSON document. The template name
// is ignored.
type JSONRender struct {
	indent string
}

// NewJSONRender creates a JSON render.
func NewJSONRender() *JSONRender {
	return &JSONRender{}
}

// Prepare reads the "indent" option.
func (r *JSONRender) Prepare(options map[string]any) error {
	r.indent = cast.ToString(options["indent"])
	return nil
}

// Render encodes vars. A "data" option replaces the variables entirely.
func (r *JSONRender) Render(w io.Writer, _, _ string, vars map[string]any, opts RenderOptions) error {
	var payload any = vars
	if data, ok := opts["data"]; ok {
		payload = data
	}

	enc := json.NewEncoder(w)
	if r.indent != "" {
		enc.SetIndent("", r.indent)
	}
	return enc.Encode(payload)
}

// ContentType returns application/json.
func (r *JSONRender) ContentType() string { return fiber.MIMEApplicationJSON }
