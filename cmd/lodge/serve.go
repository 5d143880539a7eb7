package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/karloscodes/lodge"
	"github.com/karloscodes/lodge/cache"
	"github.com/karloscodes/lodge/metrics"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Serve requests through the kernel until SIGINT or SIGTERM, then shut down gracefully.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (overrides configuration)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	serverCfg := lodge.ServerConfigFromRegistry(env.reg)
	if servePort != "" {
		serverCfg.Port = servePort
	}
	if env.cfg.MetricsEnabled {
		serverCfg.Metrics = metrics.New(env.cfg.AppName)
	}

	cleanup := []func() error{env.pool.Close}
	if serverCfg.RateLimit > 0 {
		limits := cache.NewMemoryStore(cache.WithCleanupInterval(serverCfg.RateLimitWindow))
		serverCfg.RateLimitStorage = cache.NewFiberStorage(limits)
		cleanup = append(cleanup, limits.Close)
	}

	app, err := lodge.NewApplication(lodge.ApplicationOptions{
		Registry:      env.reg,
		Logger:        env.logger,
		KernelOptions: env.opts,
		ServerConfig:  serverCfg,
		Cleanup:       cleanup,
	})
	if err != nil {
		return err
	}

	env.logger.Info("starting",
		slog.String("app", env.cfg.AppName),
		slog.String("env", env.cfg.Environment),
		slog.String("addr", app.Server.Addr()),
	)
	return app.RunWithTimeout(env.cfg.ShutdownTimeout())
}
