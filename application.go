package lodge

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/karloscodes/lodge/registry"
)

// Application ties the process together: registry, logger, kernel and
// server.
type Application struct {
	Registry registry.Registry
	Logger   *slog.Logger
	Kernel   *Kernel
	Server   *Server

	cleanup []func() error
}

// ApplicationOptions configure NewApplication.
type ApplicationOptions struct {
	Registry registry.Registry
	// Logger defaults to NewLogger over the registry's log.* keys.
	Logger *slog.Logger

	// KernelOptions are passed to NewKernel.
	KernelOptions []KernelOption

	// ServerConfig defaults to ServerConfigFromRegistry. Its Kernel and
	// Logger are filled in.
	ServerConfig *ServerConfig

	// Cleanup runs after the server stopped, in order. Use it to close
	// process-wide backends.
	Cleanup []func() error
}

// NewApplication builds the kernel and server.
func NewApplication(opts ApplicationOptions) (*Application, error) {
	reg := opts.Registry
	if reg == nil {
		reg = registry.NewMapRegistry(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(LogConfigFromRegistry(reg))
	}

	kernel := NewKernel(reg, logger, opts.KernelOptions...)

	serverCfg := opts.ServerConfig
	if serverCfg == nil {
		serverCfg = ServerConfigFromRegistry(reg)
	}
	serverCfg.Kernel = kernel
	serverCfg.Logger = logger

	server, err := NewServer(serverCfg)
	if err != nil {
		return nil, err
	}

	return &Application{
		Registry: reg,
		Logger:   logger,
		Kernel:   kernel,
		Server:   server,
		cleanup:  opts.Cleanup,
	}, nil
}

// Run serves until SIGINT or SIGTERM and then shuts down gracefully within
// 10 seconds.
func (a *Application) Run() error {
	return a.RunWithTimeout(10 * time.Second)
}

// RunWithTimeout serves until a termination signal and shuts down within
// timeout.
func (a *Application) RunWithTimeout(timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx, timeout)
}

// Serve runs the server until ctx is done or the listener fails.
func (a *Application) Serve(ctx context.Context, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down gracefully")

		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.Server.Shutdown(sctx); err != nil {
			a.Logger.Error("graceful shutdown failed", slog.Any("error", err))
			return err
		}
		a.Logger.Info("shutdown complete")
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	errs := []error{err}
	for _, fn := range a.cleanup {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}
