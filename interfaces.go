package pulse

import (
	"context"
	"time"
)

// Store is the durable key-value record store the core reads and
// writes. Keys are domain-scoped strings; values are opaque JSON blobs.
// Each call is atomic at single-key granularity only; the core never
// needs transactions. When provided via WithStore, replaces the
// built-in sqlite store (e.g. to bridge to a platform persistence
// layer).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}

// InferenceService performs paid completion calls. When provided via
// WithInference, replaces the built-in HTTP client (rate limiter,
// circuit breaker, and backoff included); the replacement owns its own
// degradation policy.
type InferenceService interface {
	Complete(ctx context.Context, req InferenceRequest) (InferenceResponse, error)
}

// Notifier delivers user-facing notifications. Fire-and-forget: the
// core never observes delivery. The default logs notifications instead
// of delivering them.
type Notifier interface {
	Send(ctx context.Context, title, body string, metadata map[string]any) error
}

// AgentHook observes settled agent runs. Hooks run synchronously after
// each run settles and must not block. Failures are ignored.
type AgentHook interface {
	OnAgentRun(ctx context.Context, result AgentRunResult)
}

// Agent is the contract for externally supplied agents registered via
// App.RegisterAgent. Built-in domain agents use a richer internal
// contract; external agents receive only a context and report a result.
type Agent interface {
	// ID is the stable identifier used for registration and targeted
	// execution.
	ID() string
	// Name is the human-readable display name.
	Name() string
	// MaxRuntime is the per-invocation wall-clock budget; runs
	// exceeding it are abandoned with zero cost charged.
	MaxRuntime() time.Duration
	// CostPerRun is the nominal cost reported in status projections.
	CostPerRun() float64
	// Run performs one bounded unit of work. The context is cancelled
	// when the runtime budget expires.
	Run(ctx context.Context) (AgentOutcome, error)
}

// AgentOutcome is what an external agent returns on completion.
type AgentOutcome struct {
	Data map[string]any
	// Cost is the monetary cost actually incurred by this run.
	Cost float64
}
