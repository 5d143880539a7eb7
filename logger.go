package lodge

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/karloscodes/lodge/registry"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	// Environment selects the handler: colored text in development and
	// test, JSON everywhere else.
	Environment string

	// Level is the minimum level. LOG_LEVEL overrides it; the default is
	// info in development and test and error otherwise.
	Level string

	// Directory receives the rotating log file in production. Defaults to
	// "logs".
	Directory string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// AppName names the log file. Defaults to "app".
	AppName string
}

// LogConfigFromRegistry reads the log.* and app.env keys.
func LogConfigFromRegistry(reg registry.Registry) *LogConfig {
	return &LogConfig{
		Environment: registry.String(reg, "app.env", "production"),
		Level:       registry.String(reg, "log.level", ""),
		Directory:   registry.String(reg, "log.directory", ""),
		MaxSizeMB:   registry.Int(reg, "log.maxSizeMB", 0),
		MaxBackups:  registry.Int(reg, "log.maxBackups", 0),
		MaxAgeDays:  registry.Int(reg, "log.maxAgeDays", 0),
		AppName:     registry.String(reg, "app.name", ""),
	}
}

func (c *LogConfig) development() bool {
	return c.Environment == "development" || c.Environment == "test"
}

// NewLogger creates the process logger.
//
// Development and test log colored text to stdout. Production logs JSON to
// stdout and to a lumberjack-rotated file.
func NewLogger(cfg *LogConfig) *slog.Logger {
	if cfg == nil {
		cfg = &LogConfig{}
	}

	level := cfg.level()
	if cfg.development() {
		return slog.New(newColorHandler(os.Stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: level == slog.LevelDebug,
		}))
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}
	w, err := cfg.rotator()
	if err != nil {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, w), opts))
}

// NewFileLogger logs JSON to a rotating file only. It backs log channels
// that should not reach stdout.
func NewFileLogger(path string, level slog.Level, maxSizeMB, maxBackups, maxAgeDays int) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	w := newRotator(path, maxSizeMB, maxBackups, maxAgeDays)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), w, nil
}

func (c *LogConfig) rotator() (*lumberjack.Logger, error) {
	dir := c.Directory
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := c.AppName
	if name == "" {
		name = "app"
	}
	return newRotator(filepath.Join(dir, name+".log"), c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays), nil
}

func newRotator(path string, maxSizeMB, maxBackups, maxAgeDays int) *lumberjack.Logger {
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 28
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}

func (c *LogConfig) level() slog.Level {
	s := c.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		s = env
	}
	if s == "" {
		if c.development() {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	return ParseLevel(s)
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// colorHandler prints "15:04:05 LEVEL message key=value" lines with ANSI
// colors.
type colorHandler struct {
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
	group string
}

func newColorHandler(w io.Writer, opts *slog.HandlerOptions) *colorHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &colorHandler{w: w, level: level}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return colorRed
	case l >= slog.LevelWarn:
		return colorYellow
	case l >= slog.LevelInfo:
		return colorBlue
	default:
		return colorGray
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder
	buf.WriteString(colorGray + r.Time.Format("15:04:05") + colorReset + " ")
	buf.WriteString(levelColor(r.Level) + r.Level.String() + colorReset + " ")
	buf.WriteString(r.Message)

	write := func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		buf.WriteString(" " + colorGray + key + "=" + colorReset + a.Value.String())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)

	buf.WriteByte('\n')
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}
