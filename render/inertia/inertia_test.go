package inertia

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/lodge"
	"github.com/karloscodes/lodge/container"
	"github.com/karloscodes/lodge/registry"
)

func newView(t *testing.T, req *lodge.Request) (*lodge.View, *lodge.Context) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.html"), []byte(`<div id="app"></div>`), 0o644))

	reg := registry.NewMapRegistry(map[string]any{
		"app": map[string]any{"directory": map[string]any{"template": dir}},
		"view": map[string]any{"render": map[string]any{
			"class":   Name,
			"options": map[string]any{"rootTemplate": "app.html", "version": "abc"},
		}},
	})
	k := lodge.NewKernel(reg, slog.New(slog.NewTextHandler(io.Discard, nil)), lodge.WithBootstrap(Install(map[string]any{"app": "lodge"})))
	ctx, err := k.NewContext(req, nil)
	require.NoError(t, err)

	view, err := container.Resolve[*lodge.View](ctx.Container, lodge.NameView)
	require.NoError(t, err)
	return view, ctx
}

func TestInertiaVisitGetsJSON(t *testing.T) {
	req := lodge.NewRequest("GET", "/users/7")
	req.Header().Set("X-Inertia", "true")
	view, ctx := newView(t, req)

	view.Assign("name", "ada")
	require.NoError(t, view.Render("Users/Show", nil))

	resp := ctx.Response()
	assert.Contains(t, resp.Header().Get(fiber.HeaderContentType), "application/json")
	assert.Equal(t, "true", resp.Header().Get("X-Inertia"))

	var page map[string]any
	require.NoError(t, json.Unmarshal(resp.Body(), &page))
	assert.Equal(t, "Users/Show", page["component"])
	assert.Equal(t, "abc", page["version"])
	props, ok := page["props"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada", props["name"])
	assert.Equal(t, "lodge", props["app"])
}

func TestFirstLoadUsesRootTemplate(t *testing.T) {
	view, ctx := newView(t, lodge.NewRequest("GET", "/users/7"))
	require.NoError(t, view.Render("Users/Show", nil))
	assert.Contains(t, string(ctx.Response().Body()), `<div id="app">`)
}

func TestPrepareRequiresRootTemplate(t *testing.T) {
	var cfgErr *lodge.ConfigurationError
	assert.ErrorAs(t, New(nil).Prepare(map[string]any{}), &cfgErr)
}
