package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cast"
	"gorm.io/gorm"

	"github.com/karloscodes/lodge"
	"github.com/karloscodes/lodge/cache"
	"github.com/karloscodes/lodge/container"
	"github.com/karloscodes/lodge/database"
	"github.com/karloscodes/lodge/session"
	"github.com/karloscodes/lodge/storage"

	_ "github.com/karloscodes/lodge/postgres"
	_ "github.com/karloscodes/lodge/sqlite"
)

// Backend names registered by Install. A service's <key>.class names one of
// these, or any other binding resolving to a Backend of the right type.
const (
	NameMemoryCache   = "cache.memory"
	NameDatabaseCache = "cache.database"
	NameRedisCache    = "cache.redis"
	NameGormDB        = "db.gorm"
	NameSessionStore  = "session.store"
	NameFileStorage   = "storage.file"
	NameFileLogger    = "logger.file"
)

// Service names registered by Install, for use in app.services.
const (
	NameCacheService   = "service.cache"
	NameDbService      = "service.db"
	NameSessionService = "service.session"
	NameStorageService = "service.storage"
	NameLoggerService  = "service.logger"
)

// Backend opens the value a service provides from the service's options.
type Backend[T any] interface {
	Open(ctx *lodge.Context, options map[string]any) (T, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc[T any] func(ctx *lodge.Context, options map[string]any) (T, error)

// Open implements Backend.
func (f BackendFunc[T]) Open(ctx *lodge.Context, options map[string]any) (T, error) {
	return f(ctx, options)
}

// Install returns a bootstrap registering the backends and services in every
// Context. Backends that hold connections or goroutines live in pool.
func Install(pool *Pool) lodge.Bootstrap {
	return func(ctx *lodge.Context) error {
		backend := func(name string, v any) {
			ctx.Register(name, container.Factory(func(*container.Container, container.Args) (any, error) {
				return v, nil
			}), true)
		}

		backend(NameMemoryCache, BackendFunc[cache.Store](func(_ *lodge.Context, options map[string]any) (cache.Store, error) {
			return Shared(pool, poolKey(NameMemoryCache, options), func() (cache.Store, error) {
				return cache.NewMemoryStore(cache.OptionsFrom(options)...), nil
			})
		}))
		backend(NameDatabaseCache, BackendFunc[cache.Store](func(c *lodge.Context, options map[string]any) (cache.Store, error) {
			return Shared(pool, poolKey(NameDatabaseCache, options), func() (cache.Store, error) {
				db, err := openDB(c, pool, options)
				if err != nil {
					return nil, err
				}
				return cache.NewDatabaseStore(db, cache.OptionsFrom(options)...)
			})
		}))
		backend(NameRedisCache, BackendFunc[cache.Store](func(c *lodge.Context, options map[string]any) (cache.Store, error) {
			return Shared(pool, poolKey(NameRedisCache, options), func() (cache.Store, error) {
				addr := cast.ToString(options["addr"])
				if addr == "" {
					addr = "localhost:6379"
				}
				return cache.DialRedis(context.Background(), addr,
					cast.ToString(options["password"]), cast.ToInt(options["db"]),
					cache.OptionsFrom(options)...)
			})
		}))

		backend(NameGormDB, BackendFunc[*database.Gateway](func(c *lodge.Context, options map[string]any) (*database.Gateway, error) {
			db, err := openDB(c, pool, options)
			if err != nil {
				return nil, err
			}
			return database.NewGateway(db, c.Logger()), nil
		}))

		backend(NameSessionStore, BackendFunc[*session.Session](func(c *lodge.Context, options map[string]any) (*session.Session, error) {
			store, err := sessionStore(c, pool, options)
			if err != nil {
				return nil, err
			}
			opts := session.OptionsFrom(options)
			return session.Load(context.Background(), store, c.Request().Cookies().String(opts.CookieName), opts)
		}))

		backend(NameFileStorage, BackendFunc[storage.Storage](func(c *lodge.Context, options map[string]any) (storage.Storage, error) {
			return storage.Open(c.StorageDir(), options)
		}))

		backend(NameFileLogger, BackendFunc[*slog.Logger](func(c *lodge.Context, options map[string]any) (*slog.Logger, error) {
			path := cast.ToString(options["path"])
			if path == "" {
				path = filepath.Join(c.Dir("log"), "channel.log")
			}
			fl, err := Shared(pool, "logger.file:"+path, func() (*fileLogger, error) {
				return openFileLogger(path, options)
			})
			if err != nil {
				return nil, err
			}
			return fl.logger, nil
		}))

		ctx.Register(NameCacheService, container.Ctor(NewCacheService), false)
		ctx.Register(NameDbService, container.Ctor(NewDbService), false)
		ctx.Register(NameSessionService, container.Ctor(NewSessionService), false)
		ctx.Register(NameStorageService, container.Ctor(NewStorageService), false)
		ctx.Register(NameLoggerService, container.Ctor(NewLoggerService), false)
		return nil
	}
}

// openDB returns a session on the pooled connection described by options.
func openDB(c *lodge.Context, pool *Pool, options map[string]any) (*gorm.DB, error) {
	cfg := database.ConfigFromMap(options)
	if cfg.DSN == "" {
		return nil, &lodge.ConfigurationError{Key: "dsn"}
	}
	m, err := Shared(pool, "db:"+cfg.Driver+":"+cfg.DSN, func() (*database.Manager, error) {
		return database.Open(cfg, c.Logger().With(slog.String("component", "database")))
	})
	if err != nil {
		return nil, err
	}
	return m.Connect(context.Background())
}

// sessionStore picks the cache behind sessions: the backend named by the
// "store" option, else the running cache service, else a pooled memory
// store.
func sessionStore(c *lodge.Context, pool *Pool, options map[string]any) (cache.Store, error) {
	if name := cast.ToString(options["store"]); name != "" {
		b, err := container.Resolve[Backend[cache.Store]](c.Container, name)
		if err != nil {
			return nil, fmt.Errorf("session store %s: %w", name, err)
		}
		return b.Open(c, cast.ToStringMap(options["storeOptions"]))
	}
	if c.Has(NameCache) {
		return container.Resolve[cache.Store](c.Container, NameCache)
	}
	return Shared(pool, "session.memory", func() (cache.Store, error) {
		return cache.NewMemoryStore(), nil
	})
}

// fileLogger keeps the rotator of a pooled logger so the pool can close it.
type fileLogger struct {
	logger *slog.Logger
	closer io.Closer
}

func (f *fileLogger) Close() error { return f.closer.Close() }

func openFileLogger(path string, options map[string]any) (*fileLogger, error) {
	level := lodge.ParseLevel(cast.ToString(options["level"]))
	logger, closer, err := lodge.NewFileLogger(path, level,
		cast.ToInt(options["maxSizeMB"]), cast.ToInt(options["maxBackups"]), cast.ToInt(options["maxAgeDays"]))
	if err != nil {
		return nil, fmt.Errorf("logger %s: %w", path, err)
	}
	return &fileLogger{logger: logger, closer: closer}, nil
}
