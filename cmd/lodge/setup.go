package main

import (
	"log/slog"

	"github.com/karloscodes/lodge"
	"github.com/karloscodes/lodge/config"
	"github.com/karloscodes/lodge/registry"
	"github.com/karloscodes/lodge/render/html"
	"github.com/karloscodes/lodge/render/inertia"
	"github.com/karloscodes/lodge/services"
)

// environment is what every command needs: settings, the registry built from
// them and a kernel with the standard bootstraps.
type environment struct {
	cfg    *config.Config
	reg    registry.Registry
	logger *slog.Logger
	pool   *services.Pool
	opts   []lodge.KernelOption
}

func loadEnvironment() (*environment, error) {
	cfg, err := config.Load(appName)
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	logger := lodge.NewLogger(lodge.LogConfigFromRegistry(reg))
	pool := services.NewPool()

	return &environment{
		cfg:    cfg,
		reg:    reg,
		logger: logger,
		pool:   pool,
		opts: []lodge.KernelOption{
			lodge.WithBootstrap(services.Install(pool)),
			lodge.WithBootstrap(html.Install(nil)),
			lodge.WithBootstrap(inertia.Install(nil)),
		},
	}, nil
}

func (e *environment) kernel() *lodge.Kernel {
	return lodge.NewKernel(e.reg, e.logger, e.opts...)
}
