package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileRegistry is a MapRegistry loaded from scope files. The file
// <dir>/app.yaml provides every key below "app.", router.toml every key below
// "router." and so on.
type FileRegistry struct {
	*MapRegistry
	dir    string
	scopes []string
}

var decoders = map[string]func([]byte, *map[string]any) error{
	".yaml": func(b []byte, out *map[string]any) error { return yaml.Unmarshal(b, out) },
	".yml":  func(b []byte, out *map[string]any) error { return yaml.Unmarshal(b, out) },
	".toml": func(b []byte, out *map[string]any) error { return toml.Unmarshal(b, out) },
	".json": func(b []byte, out *map[string]any) error { return json.Unmarshal(b, out) },
}

// NewFileRegistry loads every supported scope file found in dir.
func NewFileRegistry(dir string) (*FileRegistry, error) {
	r := &FileRegistry{MapRegistry: NewMapRegistry(nil), dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := decoders[ext]; !ok {
			continue
		}
		if err := r.Load(filepath.Join(dir, name)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load reads a single scope file. The scope is the file name without its
// extension; an existing scope is replaced.
func (r *FileRegistry) Load(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return fmt.Errorf("registry: unsupported format %q", ext)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("registry: read %s: %w", path, err)
	}

	tree := map[string]any{}
	if err := decode(raw, &tree); err != nil {
		return fmt.Errorf("registry: decode %s: %w", path, err)
	}

	scope := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	r.merge(scope, tree)
	r.scopes = append(r.scopes, scope)
	return nil
}

// Scopes returns the loaded scope names in load order.
func (r *FileRegistry) Scopes() []string {
	return append([]string(nil), r.scopes...)
}

// Dir returns the directory the registry was loaded from.
func (r *FileRegistry) Dir() string { return r.dir }
