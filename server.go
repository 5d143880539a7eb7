package lodge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/karloscodes/lodge/metrics"
	lodgemiddleware "github.com/karloscodes/lodge/middleware"
	"github.com/karloscodes/lodge/registry"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Kernel handles every request no other route claims. Required.
	Kernel *Kernel
	Logger *slog.Logger

	Port           string
	Concurrency    int
	ProxyHeader    string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// StaticDirectory is served under StaticPrefix when set.
	StaticDirectory string
	StaticPrefix    string

	EnableRequestID     bool
	EnableRecover       bool
	EnableHelmet        bool
	EnableCompress      bool
	EnableRequestLogger bool
	ReferrerPolicy      string

	// SecFetchSite, when non-empty, lists the Sec-Fetch-Site values
	// accepted on state-changing requests; others get 403.
	SecFetchSite []string

	// RateLimit is the number of requests allowed per client and window.
	// 0 disables the limiter.
	RateLimit        int
	RateLimitWindow  time.Duration
	RateLimitStorage fiber.Storage

	// Metrics are recorded for every kernel request and served at
	// MetricsPath when both are set.
	Metrics     *metrics.Collector
	MetricsPath string

	// Mount registers extra routes ahead of the kernel.
	Mount func(r fiber.Router)
}

// DefaultServerConfig returns the defaults: every middleware on, no rate
// limit, metrics at /metrics once a collector is set.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:                "8080",
		Concurrency:         256 * 1024,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		StaticPrefix:        "/assets",
		EnableRequestID:     true,
		EnableRecover:       true,
		EnableHelmet:        true,
		EnableCompress:      true,
		EnableRequestLogger: true,
		RateLimitWindow:     time.Second,
		MetricsPath:         "/metrics",
	}
}

// ServerConfigFromRegistry applies the server.* and metrics.path keys on top
// of the defaults.
func ServerConfigFromRegistry(reg registry.Registry) *ServerConfig {
	cfg := DefaultServerConfig()
	cfg.Port = registry.String(reg, "server.port", cfg.Port)
	cfg.ProxyHeader = registry.String(reg, "server.proxyHeader", "")
	cfg.TrustedProxies = registry.StringSlice(reg, "server.trustedProxies")
	cfg.StaticDirectory = registry.String(reg, "server.static.directory", "")
	cfg.StaticPrefix = registry.String(reg, "server.static.prefix", cfg.StaticPrefix)
	cfg.EnableRequestID = registry.Bool(reg, "server.requestId", cfg.EnableRequestID)
	cfg.EnableRecover = registry.Bool(reg, "server.recover", cfg.EnableRecover)
	cfg.EnableHelmet = registry.Bool(reg, "server.helmet", cfg.EnableHelmet)
	cfg.EnableCompress = registry.Bool(reg, "server.compress", cfg.EnableCompress)
	cfg.EnableRequestLogger = registry.Bool(reg, "server.requestLogger", cfg.EnableRequestLogger)
	cfg.ReferrerPolicy = registry.String(reg, "server.referrerPolicy", "")
	cfg.SecFetchSite = registry.StringSlice(reg, "server.secFetchSite")
	cfg.RateLimit = registry.Int(reg, "server.rateLimit.max", 0)
	if secs := registry.Int(reg, "server.rateLimit.window", 0); secs > 0 {
		cfg.RateLimitWindow = time.Duration(secs) * time.Second
	}
	if secs := registry.Int(reg, "server.readTimeout", 0); secs > 0 {
		cfg.ReadTimeout = time.Duration(secs) * time.Second
	}
	if secs := registry.Int(reg, "server.writeTimeout", 0); secs > 0 {
		cfg.WriteTimeout = time.Duration(secs) * time.Second
	}
	cfg.MetricsPath = registry.String(reg, "metrics.path", cfg.MetricsPath)
	return cfg
}

// Server is the fiber application in front of the kernel.
type Server struct {
	app *fiber.App
	cfg *ServerConfig
}

// NewServer builds the fiber app: global middleware, /_health, metrics,
// static files, mounted routes and finally the kernel as catch-all.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lodge: server config is required")
	}
	if cfg.Kernel == nil {
		return nil, fmt.Errorf("lodge: kernel is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = cfg.Kernel.logger
	}

	fiberCfg := fiber.Config{
		DisableDefaultDate:    true,
		DisableStartupMessage: true,
		Concurrency:           cfg.Concurrency,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          fallbackErrorHandler(cfg.Logger),
	}
	if cfg.ProxyHeader != "" {
		fiberCfg.ProxyHeader = cfg.ProxyHeader
	}
	if len(cfg.TrustedProxies) > 0 {
		fiberCfg.EnableTrustedProxyCheck = true
		fiberCfg.TrustedProxies = cfg.TrustedProxies
	}

	s := &Server{app: fiber.New(fiberCfg), cfg: cfg}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	if s.cfg.EnableRequestID {
		s.app.Use(requestid.New())
	}
	if s.cfg.EnableRecover {
		s.app.Use(lodgemiddleware.Recover(s.cfg.Logger))
	}
	if s.cfg.EnableHelmet {
		s.app.Use(lodgemiddleware.Helmet(s.cfg.ReferrerPolicy))
	}
	if s.cfg.EnableCompress {
		s.app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	}
	if s.cfg.EnableRequestLogger {
		skip := []string{"/_health"}
		if s.cfg.Metrics != nil && s.cfg.MetricsPath != "" {
			skip = append(skip, s.cfg.MetricsPath)
		}
		s.app.Use(lodgemiddleware.RequestLogger(s.cfg.Logger, skip...))
	}
	if len(s.cfg.SecFetchSite) > 0 {
		s.app.Use(lodgemiddleware.SecFetchSite(lodgemiddleware.SecFetchConfig{Allowed: s.cfg.SecFetchSite}))
	}
	if s.cfg.RateLimit > 0 {
		s.app.Use(lodgemiddleware.RateLimiter(
			lodgemiddleware.WithMax(s.cfg.RateLimit),
			lodgemiddleware.WithDuration(s.cfg.RateLimitWindow),
			lodgemiddleware.WithStorage(s.cfg.RateLimitStorage),
			lodgemiddleware.WithSkip(func(c *fiber.Ctx) bool { return c.Path() == "/_health" }),
		))
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/_health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if m := s.cfg.Metrics; m != nil && s.cfg.MetricsPath != "" {
		s.app.Get(s.cfg.MetricsPath, adaptor.HTTPHandler(m.Handler()))
		s.cfg.Kernel.observers = append(s.cfg.Kernel.observers, func(res DispatchResult, status int, elapsed time.Duration) {
			m.Observe(res.Controller, res.Method, status, elapsed)
		})
	}

	if s.cfg.StaticDirectory != "" {
		s.app.Static(s.cfg.StaticPrefix, s.cfg.StaticDirectory, fiber.Static{
			Compress:      true,
			ByteRange:     true,
			CacheDuration: 24 * time.Hour,
		})
	}

	if s.cfg.Mount != nil {
		s.cfg.Mount(s.app)
	}

	s.app.All("/*", s.cfg.Kernel.Handler())
}

// App returns the fiber app, mainly for tests via App().Test.
func (s *Server) App() *fiber.App { return s.app }

// Addr returns the listen address.
func (s *Server) Addr() string { return ":" + s.cfg.Port }

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.cfg.Logger.Info("server started", slog.String("addr", s.Addr()))
	return s.app.Listen(s.Addr())
}

// Shutdown stops accepting connections and waits for in-flight requests,
// up to the deadline of ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// fallbackErrorHandler renders errors raised outside the kernel, such as
// panics caught by the recover middleware or static file failures.
func fallbackErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusOf(err)

		logger.Error("request error",
			slog.Any("error", err),
			slog.Int("status", code),
			slog.String("path", c.Path()),
			slog.String("method", c.Method()),
		)

		if c.Accepts(fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
			return c.Status(code).JSON(fiber.Map{"error": ErrorCodeName(code)})
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Status(code).SendString(errorHTML(code, ErrorCodeName(code), ""))
	}
}
