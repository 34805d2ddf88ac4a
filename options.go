package pulse

import (
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	logger     *slog.Logger
	version    string
	dbPath     string
	store      Store
	inference  InferenceService
	notifier   Notifier
	hooks      []AgentHook
	now        func() time.Time
	background time.Duration
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithDatabasePath overrides the sqlite path from config
// (PULSE_DB_PATH env var). Ignored when WithStore is also given.
func WithDatabasePath(path string) Option {
	return func(o *resolvedOptions) { o.dbPath = path }
}

// WithStore replaces the built-in sqlite record store.
func WithStore(s Store) Option {
	return func(o *resolvedOptions) { o.store = s }
}

// WithInference replaces the built-in HTTP inference client. The
// replacement owns its own retry and degradation policy.
func WithInference(svc InferenceService) Option {
	return func(o *resolvedOptions) { o.inference = svc }
}

// WithNotifier replaces the default log-only notification dispatcher.
func WithNotifier(n Notifier) Option {
	return func(o *resolvedOptions) { o.notifier = n }
}

// WithAgentHook registers a run observer. Multiple hooks may be
// registered; all receive every settled run.
func WithAgentHook(h AgentHook) Option {
	return func(o *resolvedOptions) { o.hooks = append(o.hooks, h) }
}

// WithClock replaces the wall clock. Test seam: trigger thresholds,
// record timestamps, and the background budget all read this clock.
// Cache entry expiry does not; it runs against real time.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.now = now }
}

// WithBackgroundBudget overrides the background pass wall-clock ceiling
// from config (PULSE_BACKGROUND_BUDGET env var).
func WithBackgroundBudget(budget time.Duration) Option {
	return func(o *resolvedOptions) { o.background = budget }
}
