// Package logger configures slog for state machine processes and carries
// logging attributes (subsystem, machine name, arbitrary key-values) through
// context.Context.
package logger

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Used to tag every log line with the part of the system that produced it.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex serializes ConfigureLoggingWithOptions, which mutates global state.
var configMutex sync.Mutex //nolint:gochecknoglobals

type contextKey string

// Options is used to configure logging.
type Options struct {
	Subsystem   string
	JSON        bool
	MinLevel    slog.Level
	LegacyLevel slog.Level
	Output      io.Writer

	// Handler, when set, replaces the text/JSON handler (for example an
	// OpenTelemetry bridge). Annotated errors are still expanded.
	Handler slog.Handler
}

// ConfigureLoggingWithOptions installs a default slog logger built from opts
// and redirects the legacy log package into it. It returns the new default logger.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handler := opts.Handler
	if handler == nil {
		handlerOpts := &slog.HandlerOptions{Level: opts.MinLevel}

		if opts.JSON {
			handler = slog.NewJSONHandler(opts.Output, handlerOpts)
		} else {
			handler = slog.NewTextHandler(opts.Output, handlerOpts)
		}
	}

	handler = &slogErrorLogger{inner: handler}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Third party packages may still use the log package.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, opts.LegacyLevel)

	subsystem.Store(opts.Subsystem)

	return logger
}

// Settings is the environment-configurable subset of Options.
type Settings struct {
	JSON  bool       `env:"LOG_JSON"  envDefault:"false"`
	Level slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

// ConfigureLogging installs the default logger for app, writing to stderr.
// A non-nil handler (typically the OpenTelemetry bridge) receives records instead.
func ConfigureLogging(ctx context.Context, app string, settings Settings, handler slog.Handler) *slog.Logger {
	logger := ConfigureLoggingWithOptions(Options{
		Subsystem:   app,
		JSON:        settings.JSON,
		MinLevel:    settings.Level,
		LegacyLevel: slog.LevelInfo,
		Output:      os.Stderr,
		Handler:     handler,
	})

	From(ctx, logger).Debug("logging configured", "json", settings.JSON, "level", settings.Level.String())

	return logger
}

// WithSubsystem overrides the subsystem name for loggers obtained from ctx.
func WithSubsystem(ctx context.Context, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("subsystem"), name)
}

// GetSubsystem returns the subsystem from ctx, falling back to the configured default.
func GetSubsystem(ctx context.Context) string { //nolint:contextcheck
	if ctx == nil {
		ctx = context.Background()
	}

	if name, ok := ctx.Value(contextKey("subsystem")).(string); ok && name != "" {
		return name
	}

	if name, ok := subsystem.Load().(string); ok {
		return name
	}

	return ""
}

// WithMachine tags loggers obtained from ctx with a state machine name.
func WithMachine(ctx context.Context, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("machine"), name)
}

// GetMachine returns the state machine name stored in ctx.
func GetMachine(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	name, ok := ctx.Value(contextKey("machine")).(string)

	return name, ok && name != ""
}

// WithMuted suppresses all output from loggers obtained from ctx.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("mute"), muted)
}

func isMuted(ctx context.Context) bool {
	if ctx == nil {
		return false
	}

	muted, ok := ctx.Value(contextKey("mute")).(bool)

	return ok && muted
}

// With returns a new context carrying extra key-value pairs that every
// logger obtained from it will include.
func With(ctx context.Context, values ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(values) == 0 {
		return ctx
	}

	existing := getValues(ctx)

	vals := make([]any, 0, len(existing)+len(values))
	vals = append(vals, existing...)
	vals = append(vals, values...)

	return context.WithValue(ctx, contextKey("loggerValues"), vals)
}

func getValues(ctx context.Context) []any {
	vals, _ := ctx.Value(contextKey("loggerValues")).([]any)

	return vals
}

// nullHandler discards everything; it backs muted loggers.
type nullHandler struct{}

func (n *nullHandler) Enabled(_ context.Context, _ slog.Level) bool { return false }

func (n *nullHandler) Handle(_ context.Context, _ slog.Record) error { return nil }

func (n *nullHandler) WithAttrs(_ []slog.Attr) slog.Handler { return n }

func (n *nullHandler) WithGroup(_ string) slog.Handler { return n }

var nullLogger = slog.New(&nullHandler{})

// Get returns the default logger enriched with whatever the (optional)
// context carries: subsystem, machine name and values added with With.
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := context.Background()

	for _, c := range ctx {
		if c != nil {
			realCtx = c

			break
		}
	}

	return From(realCtx, slog.Default())
}

// From enriches base with the attributes carried by ctx. Tests use it to
// route context attributes into a per-test logger.
func From(ctx context.Context, base *slog.Logger) *slog.Logger {
	if isMuted(ctx) {
		return nullLogger
	}

	if base == nil {
		base = slog.Default()
	}

	logger := base

	if name := GetSubsystem(ctx); name != "" {
		logger = logger.With("subsystem", name)
	}

	if machine, ok := GetMachine(ctx); ok {
		logger = logger.With("machine", machine)
	}

	if vals := getValues(ctx); len(vals) > 0 {
		logger = logger.With(vals...)
	}

	return logger
}
