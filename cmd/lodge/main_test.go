package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routesYAML = `rules:
  "user/:id\\d/edit": { controller: User, action: edit }
  "post/[:page]": post/list
`

func setupApp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "router.yaml"), []byte(routesYAML), 0o644))

	t.Setenv("LODGECLI_ENV", "test")
	t.Setenv("LODGECLI_ROOT", dir)
	t.Setenv("LODGECLI_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("LODGECLI_LOGS_DIR", filepath.Join(dir, "logs"))
	appName = "lodgecli"
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--app", "lodgecli"))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRoutesCommand(t *testing.T) {
	setupApp(t)
	out := run(t, "routes")

	assert.Contains(t, out, "PATTERN")
	assert.Contains(t, out, `user/:id\d/edit`)
	assert.Contains(t, out, "post/[:page]")
}

func TestDispatchCommand(t *testing.T) {
	setupApp(t)

	out := run(t, "dispatch", "/user/42/edit")
	assert.Contains(t, out, "UserController")
	assert.Contains(t, out, "Edit")
	assert.Contains(t, out, "attribute   id = 42")
	assert.Contains(t, out, `rule        user/:id\d/edit`)

	out = run(t, "dispatch", "/nowhere/at/all")
	assert.Contains(t, out, "no rule matched")
	assert.Contains(t, out, "HomeController")
}
