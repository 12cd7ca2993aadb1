package statemachine

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	id               string
	logger           Logger
	metrics          bool
	tracing          bool
	errorOnFailed    bool
	errorOnSameState bool
	historyEnabled   bool
	historyCapacity  int
}

func defaultEngineOptions() engineOptions {
	return engineOptions{
		metrics: true,
		tracing: true,
	}
}

// WithID overrides the generated engine identifier.
func WithID(id string) Option {
	return func(o *engineOptions) {
		o.id = id
	}
}

// WithLogger sets the logger used for transition and action hooks.
// Engines do not log unless a logger is configured.
func WithLogger(logger Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithMetrics enables or disables Prometheus metrics. Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(o *engineOptions) {
		o.metrics = enabled
	}
}

// WithTracing enables or disables OpenTelemetry spans. Enabled by default;
// spans are no-ops unless a tracer provider is installed.
func WithTracing(enabled bool) Option {
	return func(o *engineOptions) {
		o.tracing = enabled
	}
}

// WithErrorOnFailedTransition makes Post return ErrNoTransition instead of
// false when no transition is registered.
func WithErrorOnFailedTransition(enabled bool) Option {
	return func(o *engineOptions) {
		o.errorOnFailed = enabled
	}
}

// WithErrorOnSameStateTransition makes Post return ErrSameStateTransition
// instead of false when a stimulus maps the current state onto itself.
func WithErrorOnSameStateTransition(enabled bool) Option {
	return func(o *engineOptions) {
		o.errorOnSameState = enabled
	}
}

// WithHistory enables history recording. A capacity of zero keeps the
// history unbounded; a positive capacity bounds it.
func WithHistory(capacity int) Option {
	return func(o *engineOptions) {
		o.historyEnabled = true
		o.historyCapacity = capacity
	}
}
