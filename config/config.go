// Package config loads process settings with viper and turns them into the
// registry the framework reads.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/karloscodes/lodge/registry"
)

// Environment names.
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// Config holds the settings needed before any registry exists: where the
// registry lives, how to log and how to serve.
type Config struct {
	AppName     string `mapstructure:"appname"`
	Environment string `mapstructure:"environment"`
	Port        string `mapstructure:"port"`
	Debug       bool   `mapstructure:"debug"`

	// RegistryDirectory holds the <scope>.{yaml,toml,json} registry files.
	RegistryDirectory string `mapstructure:"registrydirectory"`
	// RootDirectory becomes app.root when the registry does not set it.
	RootDirectory string `mapstructure:"rootdirectory"`

	LogLevel       string `mapstructure:"loglevel"`
	LogsDirectory  string `mapstructure:"logsdirectory"`
	LogsMaxSizeMB  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeDays int    `mapstructure:"logsmaxageindays"`

	MetricsEnabled  bool   `mapstructure:"metricsenabled"`
	MetricsPath     string `mapstructure:"metricspath"`
	ShutdownSeconds int    `mapstructure:"shutdowntimeoutseconds"`

	envPrefix string
}

// Load reads .env, then <APP>_* environment variables, over the defaults.
// Load("shop") reads SHOP_ENV, SHOP_PORT and so on.
func Load(appName string) (*Config, error) {
	v := viper.New()

	appName = strings.ToLower(strings.TrimSpace(appName))
	if appName == "" {
		appName = "app"
	}
	prefix := strings.ToUpper(appName)

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	setDefaults(v, appName)
	v.SetEnvPrefix(prefix)
	if err := bindEnvVars(v, prefix); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	cfg := &Config{envPrefix: prefix}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, appName string) {
	v.SetDefault("appname", appName)
	v.SetDefault("environment", Production)
	v.SetDefault("port", "8080")
	v.SetDefault("debug", false)

	v.SetDefault("registrydirectory", "config")
	v.SetDefault("rootdirectory", "")

	v.SetDefault("loglevel", "")
	v.SetDefault("logsdirectory", "storage/logs")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)

	v.SetDefault("metricsenabled", true)
	v.SetDefault("metricspath", "/metrics")
	v.SetDefault("shutdowntimeoutseconds", 10)
}

func bindEnvVars(v *viper.Viper, prefix string) error {
	binds := map[string]string{
		"environment":            "_ENV",
		"port":                   "_PORT",
		"debug":                  "_DEBUG",
		"registrydirectory":      "_CONFIG_DIR",
		"rootdirectory":          "_ROOT",
		"loglevel":               "_LOG_LEVEL",
		"logsdirectory":          "_LOGS_DIR",
		"metricsenabled":         "_METRICS",
		"shutdowntimeoutseconds": "_SHUTDOWN_TIMEOUT",
	}
	var errs []error
	for key, suffix := range binds {
		errs = append(errs, v.BindEnv(key, prefix+suffix))
	}
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	var problems []string

	switch c.Environment {
	case Development, Production, Test:
	default:
		problems = append(problems, fmt.Sprintf("invalid %s_ENV value %q", c.envPrefix, c.Environment))
	}
	if c.Port == "" {
		problems = append(problems, fmt.Sprintf("%s_PORT must not be empty", c.envPrefix))
	}
	if c.ShutdownSeconds <= 0 {
		c.ShutdownSeconds = 10
	}

	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Environment == Development }
func (c *Config) IsProduction() bool  { return c.Environment == Production }
func (c *Config) IsTest() bool        { return c.Environment == Test }

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

// Registry loads the registry files from RegistryDirectory, or starts empty
// when the directory does not exist, and overlays the process settings.
// app.env, app.debug and app.name always come from c; app.root and the log
// keys only fill gaps left by the files.
func (c *Config) Registry() (registry.Registry, error) {
	var reg registry.Registry
	if info, err := os.Stat(c.RegistryDirectory); err == nil && info.IsDir() {
		fr, err := registry.NewFileRegistry(c.RegistryDirectory)
		if err != nil {
			return nil, err
		}
		reg = fr
	} else {
		reg = registry.NewMapRegistry(nil)
	}

	c.Apply(reg)
	return reg, nil
}

// Apply overlays the process settings onto reg.
func (c *Config) Apply(reg registry.Registry) {
	reg.Set("app.env", c.Environment)
	reg.Set("app.debug", c.Debug)
	reg.Set("app.name", c.AppName)

	fill := func(key string, value any) {
		if !reg.Exist(key) {
			reg.Set(key, value)
		}
	}
	if c.RootDirectory != "" {
		fill("app.root", c.RootDirectory)
	}
	if c.LogLevel != "" {
		fill("log.level", c.LogLevel)
	}
	fill("log.directory", c.LogsDirectory)
	fill("log.maxSizeMB", c.LogsMaxSizeMB)
	fill("log.maxBackups", c.LogsMaxBackups)
	fill("log.maxAgeDays", c.LogsMaxAgeDays)
	fill("server.port", c.Port)
	fill("metrics.enabled", c.MetricsEnabled)
	fill("metrics.path", c.MetricsPath)
}
