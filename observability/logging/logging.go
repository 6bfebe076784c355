package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig enables a rotating log file next to stdout.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type options struct {
	level  slog.Level
	file   *FileConfig
	writer io.Writer
}

// Option customises Setup.
type Option func(*options)

// WithLevel sets the minimum level emitted.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithFile additionally writes logs to a lumberjack-rotated file.
func WithFile(cfg FileConfig) Option {
	return func(o *options) {
		if strings.TrimSpace(cfg.Path) == "" {
			return
		}
		o.file = &cfg
	}
}

// WithWriter replaces stdout as the primary sink.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// ParseLevel maps a textual level to slog, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided.
func Setup(service, env string, opts ...Option) *slog.Logger {
	o := options{level: slog.LevelInfo, writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	out := o.writer
	if o.file != nil {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   o.file.Path,
			MaxSize:    o.file.MaxSizeMB,
			MaxBackups: o.file.MaxBackups,
			MaxAge:     o.file.MaxAgeDays,
			Compress:   o.file.Compress,
		})
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		AddSource: false,
		Level:     o.level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			}
			if attr.Key == slog.LevelKey {
				level := strings.ToUpper(attr.Value.String())
				return slog.String("severity", level)
			}
			if attr.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
