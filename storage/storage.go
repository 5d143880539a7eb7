// Package storage keeps named items in buckets on an afero filesystem.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cast"
)

// ErrNotExist is returned for missing buckets and items.
var ErrNotExist = fs.ErrNotExist

// Info describes a stored item.
type Info struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modify_time"`
}

// Storage is the interface the storage service hands out.
type Storage interface {
	ListBuckets() ([]string, error)
	ListItems(bucket string, skip, limit int) ([]string, error)
	Info(bucket, name string) (Info, error)
	Read(bucket, name string) ([]byte, error)
	Write(bucket, name string, data []byte) error
	Append(bucket, name string, data []byte) error
	Exist(bucket, name string) bool
	Delete(bucket, name string) error
	Flush(bucket string) error
	Close() error
}

// FileStorage stores each bucket as a directory and each item as a file.
type FileStorage struct {
	fs  afero.Fs
	dir string
}

// NewFileStorage roots a storage at dir on fsys, creating the directory.
func NewFileStorage(fsys afero.Fs, dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.New("storage: directory is required")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: directory %s can not be written: %w", dir, err)
	}
	return &FileStorage{fs: fsys, dir: filepath.Clean(dir)}, nil
}

// Open creates a FileStorage on the OS filesystem from an options map. The
// "directory" option overrides dir.
func Open(dir string, options map[string]any) (*FileStorage, error) {
	if v, ok := options["directory"]; ok && cast.ToString(v) != "" {
		dir = cast.ToString(v)
	}
	return NewFileStorage(afero.NewOsFs(), dir)
}

// Directory returns the root directory.
func (s *FileStorage) Directory() string { return s.dir }

// itemPath flattens separators in name so an item can't escape its bucket.
func (s *FileStorage) itemPath(bucket, name string) string {
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	return filepath.Join(s.bucketPath(bucket), name)
}

func (s *FileStorage) bucketPath(bucket string) string {
	return filepath.Join(s.dir, filepath.Base(filepath.Clean("/"+bucket)))
}

// ListBuckets returns the bucket names, sorted.
func (s *FileStorage) ListBuckets() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list buckets: %w", err)
	}
	var buckets []string
	for _, e := range entries {
		if e.IsDir() {
			buckets = append(buckets, e.Name())
		}
	}
	return buckets, nil
}

// ListItems returns the item names of bucket, sorted, skipping the first
// skip and returning at most limit (0 means all).
func (s *FileStorage) ListItems(bucket string, skip, limit int) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.bucketPath(bucket))
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", bucket, err)
	}

	var items []string
	for _, e := range entries {
		if e.Mode().IsRegular() {
			items = append(items, e.Name())
		}
	}
	sort.Strings(items)

	if skip >= len(items) {
		return []string{}, nil
	}
	items = items[max(skip, 0):]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

// Info stats an item.
func (s *FileStorage) Info(bucket, name string) (Info, error) {
	fi, err := s.fs.Stat(s.itemPath(bucket, name))
	if err != nil {
		return Info{}, fmt.Errorf("storage: info %s/%s: %w", bucket, name, err)
	}
	if !fi.Mode().IsRegular() {
		return Info{}, fmt.Errorf("storage: info %s/%s: %w", bucket, name, ErrNotExist)
	}
	return Info{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Read returns an item's content.
func (s *FileStorage) Read(bucket, name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.itemPath(bucket, name))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s/%s: %w", bucket, name, err)
	}
	return data, nil
}

// Write replaces an item, creating the bucket as needed.
func (s *FileStorage) Write(bucket, name string, data []byte) error {
	if err := s.fs.MkdirAll(s.bucketPath(bucket), 0o755); err != nil {
		return fmt.Errorf("storage: create bucket %s: %w", bucket, err)
	}
	if err := afero.WriteFile(s.fs, s.itemPath(bucket, name), data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s/%s: %w", bucket, name, err)
	}
	return nil
}

// Append adds data to the end of an item, creating it as needed.
func (s *FileStorage) Append(bucket, name string, data []byte) error {
	if err := s.fs.MkdirAll(s.bucketPath(bucket), 0o755); err != nil {
		return fmt.Errorf("storage: create bucket %s: %w", bucket, err)
	}
	f, err := s.fs.OpenFile(s.itemPath(bucket, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: append %s/%s: %w", bucket, name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("storage: append %s/%s: %w", bucket, name, err)
	}
	return f.Close()
}

// Exist reports whether an item exists.
func (s *FileStorage) Exist(bucket, name string) bool {
	fi, err := s.fs.Stat(s.itemPath(bucket, name))
	return err == nil && fi.Mode().IsRegular()
}

// Delete removes an item.
func (s *FileStorage) Delete(bucket, name string) error {
	if !s.Exist(bucket, name) {
		return fmt.Errorf("storage: delete %s/%s: %w", bucket, name, ErrNotExist)
	}
	if err := s.fs.Remove(s.itemPath(bucket, name)); err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", bucket, name, err)
	}
	return nil
}

// Flush removes every item of bucket and keeps the bucket.
func (s *FileStorage) Flush(bucket string) error {
	items, err := s.ListItems(bucket, 0, 0)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.fs.Remove(filepath.Join(s.bucketPath(bucket), item)); err != nil {
			return fmt.Errorf("storage: flush %s: %w", bucket, err)
		}
	}
	return nil
}

// Close does nothing; files are not held open.
func (s *FileStorage) Close() error { return nil }

var _ Storage = (*FileStorage)(nil)
