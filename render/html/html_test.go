package html

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/lodge"
)

func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

func prepared(t *testing.T, options map[string]any) *Render {
	t.Helper()
	r := New(nil, map[string]any{"upper": strings.ToUpper})
	require.NoError(t, r.Prepare(options))
	return r
}

func TestRenderThemeFallback(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"default/user/show.html": `user {{.name}}`,
		"default/home/index.html": `default home`,
		"dark/home/index.html":    `dark home`,
	})
	r := prepared(t, map[string]any{"directory": dir})

	tests := []struct {
		template, theme, want string
	}{
		{"home/index", "dark", "dark home"},
		{"home/index", "default", "default home"},
		{"user/show", "dark", "user &lt;b&gt;"},
	}
	for _, tt := range tests {
		t.Run(tt.theme+"/"+tt.template, func(t *testing.T) {
			var buf bytes.Buffer
			err := r.Render(&buf, tt.template, tt.theme, map[string]any{"name": "<b>"}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}

	var buf bytes.Buffer
	err := r.Render(&buf, "missing/page", "dark", nil, nil)
	assert.ErrorContains(t, err, "not found")
}

func TestRenderLayoutAndFuncs(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"default/layouts/main.html": `<main>{{embed}}</main>`,
		"default/post/show.html":    `{{upper .title}}`,
	})
	r := prepared(t, map[string]any{"directory": dir, "layout": "default/layouts/main"})

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "post/show", "default", map[string]any{"title": "hi"}, nil))
	assert.Equal(t, "<main>HI</main>", buf.String())

	buf.Reset()
	require.NoError(t, r.Render(&buf, "post/show", "default", map[string]any{"title": "hi"}, lodge.RenderOptions{"layout": ""}))
	assert.Equal(t, "HI", buf.String())
}

func TestEnginesAreShared(t *testing.T) {
	dir := writeTemplates(t, map[string]string{"default/a.html": `a`})
	engines := NewEngines()

	r1 := New(engines, nil)
	r2 := New(engines, nil)
	require.NoError(t, r1.Prepare(map[string]any{"directory": dir}))
	require.NoError(t, r2.Prepare(map[string]any{"directory": dir}))
	assert.Same(t, r1.engine, r2.engine)
}

func TestPrepareRequiresDirectory(t *testing.T) {
	r := New(nil, nil)
	assert.Error(t, r.Prepare(nil))

	var buf bytes.Buffer
	assert.Error(t, r.Render(&buf, "a", "", nil, nil))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/html", New(nil, nil).ContentType())
}
