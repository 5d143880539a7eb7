// Package services provides the deferred backend services: cache, database,
// session, storage and a file logger channel.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karloscodes/lodge"
	"github.com/karloscodes/lodge/cache"
	"github.com/karloscodes/lodge/container"
	"github.com/karloscodes/lodge/database"
	"github.com/karloscodes/lodge/registry"
	"github.com/karloscodes/lodge/session"
	"github.com/karloscodes/lodge/storage"
)

// Names the services provide.
const (
	NameCache         = "cache"
	NameDB            = "db"
	NameSession       = "session"
	NameStorage       = "storage"
	NameLoggerChannel = "logger.channel"
)

// backendService is a deferred service whose value comes from the Backend
// named by <key>.class, opened with <key>.options.
type backendService[T any] struct {
	lodge.ServiceBase

	key          string
	provides     string
	defaultClass string
	stop         func(ctx *lodge.Context, v T) error

	class   string
	options map[string]any
	value   T
}

func newBackendService[T any](key, provides, defaultClass string) backendService[T] {
	s := backendService[T]{key: key, provides: provides, defaultClass: defaultClass}
	s.SetDeferred(true)
	return s
}

// Register reads the configuration and binds the provided name.
func (s *backendService[T]) Register() error {
	reg := s.Context().Registry()
	s.class = registry.String(reg, s.key+".class", s.defaultClass)
	if s.class == "" {
		return &lodge.ConfigurationError{Key: s.key + ".class"}
	}
	s.options = registry.Map(reg, s.key+".options")
	s.Provide(s.provides, s.Start, func() any { return s.value })
	return nil
}

// Start opens the backend.
func (s *backendService[T]) Start() error {
	return s.StartOnce(func() error {
		ctx := s.Context()
		b, err := container.Resolve[Backend[T]](ctx.Container, s.class)
		if err != nil {
			return fmt.Errorf("%s.class %s: %w", s.key, s.class, err)
		}
		v, err := b.Open(ctx, s.options)
		if err != nil {
			return err
		}
		s.value = v
		return nil
	})
}

// Stop releases the request's hold on the backend. Pooled backends stay
// open for the next request.
func (s *backendService[T]) Stop() error {
	return s.StopOnce(func() error {
		var zero T
		v := s.value
		s.value = zero
		if s.stop != nil {
			return s.stop(s.Context(), v)
		}
		return nil
	})
}

// Class returns the backend name read from the registry.
func (s *backendService[T]) Class() string { return s.class }

// CacheService provides "cache", a cache.Store.
type CacheService struct {
	backendService[cache.Store]
}

// NewCacheService reads cache.class and cache.options.
func NewCacheService() *CacheService {
	return &CacheService{newBackendService[cache.Store]("cache", NameCache, "")}
}

// Store returns the store once the service started.
func (s *CacheService) Store() cache.Store { return s.value }

// DbService provides "db", a database.Gateway.
type DbService struct {
	backendService[*database.Gateway]
}

// NewDbService reads db.class and db.options.
func NewDbService() *DbService {
	return &DbService{newBackendService[*database.Gateway]("db", NameDB, "")}
}

// Gateway returns the gateway once the service started.
func (s *DbService) Gateway() *database.Gateway { return s.value }

// SessionService provides "session". session.class defaults to
// session.store. Stopping commits the session and sets its cookie.
type SessionService struct {
	backendService[*session.Session]
}

// NewSessionService reads session.class and session.options.
func NewSessionService() *SessionService {
	s := &SessionService{newBackendService[*session.Session]("session", NameSession, NameSessionStore)}
	s.stop = commitSession
	return s
}

// Session returns the session once the service started.
func (s *SessionService) Session() *session.Session { return s.value }

func commitSession(ctx *lodge.Context, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	if err := sess.Commit(context.Background()); err != nil {
		return err
	}
	if cookie := sess.Cookie(); cookie != nil {
		ctx.Response().SetCookie(cookie)
	}
	return nil
}

// StorageService provides "storage", a storage.Storage.
type StorageService struct {
	backendService[storage.Storage]
}

// NewStorageService reads storage.class and storage.options.
func NewStorageService() *StorageService {
	s := &StorageService{newBackendService[storage.Storage]("storage", NameStorage, "")}
	s.stop = func(_ *lodge.Context, st storage.Storage) error {
		if st == nil {
			return nil
		}
		return st.Close()
	}
	return s
}

// Storage returns the storage once the service started.
func (s *StorageService) Storage() storage.Storage { return s.value }

// LoggerService provides "logger.channel", an extra *slog.Logger writing to
// its own rotated file.
type LoggerService struct {
	backendService[*slog.Logger]
}

// NewLoggerService reads logger.class and logger.options.
func NewLoggerService() *LoggerService {
	return &LoggerService{newBackendService[*slog.Logger]("logger", NameLoggerChannel, "")}
}

// Logger returns the channel once the service started.
func (s *LoggerService) Logger() *slog.Logger { return s.value }

var (
	_ lodge.Service = (*CacheService)(nil)
	_ lodge.Service = (*DbService)(nil)
	_ lodge.Service = (*SessionService)(nil)
	_ lodge.Service = (*StorageService)(nil)
	_ lodge.Service = (*LoggerService)(nil)
)
