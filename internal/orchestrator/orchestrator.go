// Package orchestrator is the central nervous system of the agent
// layer: it owns the agent registry, drains the event bus in priority
// order, enforces one-invocation-per-agent, runs the budgeted
// background pass, and aggregates cost and usage metrics.
//
// All registry and queue mutation funnels through a single consumer
// goroutine plus short mutex-guarded sections, preserving the
// single-flight drain invariant under Go's real concurrency.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/bus"
	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/trigger"
)

// Defaults for the background budget: the hosting OS grants roughly
// 25-30s per background opportunity; stopping 5s short keeps the
// process from being killed mid-run.
const (
	DefaultBackgroundBudget = 25 * time.Second
	DefaultSafetyMargin     = 5 * time.Second
)

// ErrUnknownAgent is returned by targeted execution for ids that were
// never registered (or were unregistered).
var ErrUnknownAgent = fmt.Errorf("orchestrator: unknown agent")

// Hook observes settled agent runs. Hooks run synchronously after the
// run settles and must not block; failures are the hook's problem.
type Hook func(ctx context.Context, res agent.Result)

// Config tunes the orchestrator.
type Config struct {
	EventCapacity    int
	MessageCapacity  int
	BackgroundBudget time.Duration
	SafetyMargin     time.Duration
}

func (c *Config) normalize() {
	if c.BackgroundBudget <= 0 {
		c.BackgroundBudget = DefaultBackgroundBudget
	}
	if c.SafetyMargin <= 0 {
		c.SafetyMargin = DefaultSafetyMargin
	}
}

type registration struct {
	runner     *agent.Runner
	eventTypes map[string]bool
	active     bool
}

// Orchestrator coordinates all registered agents. Construct with New,
// then Start; producers call EnqueueEvent from any goroutine.
type Orchestrator struct {
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	events    *bus.EventQueue
	messages  *bus.MessageQueue
	evaluator *trigger.Evaluator
	hooks     []Hook

	mu       sync.Mutex
	agents   map[string]*registration
	order    []string // registration order, for deterministic iteration
	draining bool     // single-flight latch for drain passes

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	loopWG   sync.WaitGroup

	metrics metrics
}

// New creates an orchestrator. The evaluator may be nil when no
// triggers are installed; now is a test seam (nil means time.Now).
func New(cfg Config, evaluator *trigger.Evaluator, logger *slog.Logger, now func() time.Time) *Orchestrator {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	o := &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		now:       now,
		events:    bus.NewEventQueue(cfg.EventCapacity),
		messages:  bus.NewMessageQueue(cfg.MessageCapacity),
		evaluator: evaluator,
		agents:    make(map[string]*registration),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	return o
}

// AddHook registers a run observer. Not safe to call after Start.
func (o *Orchestrator) AddHook(h Hook) {
	o.hooks = append(o.hooks, h)
}

// Register adds an agent with its subscribed event types and marks it
// active. Registering an id twice replaces the previous subscription
// but keeps accounting, matching one-construction-per-session
// semantics.
func (o *Orchestrator) Register(task agent.Task, eventTypes []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}
	if reg, ok := o.agents[task.ID()]; ok {
		reg.eventTypes = types
		reg.active = true
		return
	}
	o.agents[task.ID()] = &registration{
		runner:     agent.NewRunner(task, o.logger, o.now),
		eventTypes: types,
		active:     true,
	}
	o.order = append(o.order, task.ID())
	o.logger.Info("agent registered", "agent", task.ID(), "event_types", eventTypes)
}

// Unregister marks an agent inactive and removes it from the routing
// table. In-flight work is not interrupted; its result is still
// accounted.
func (o *Orchestrator) Unregister(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if reg, ok := o.agents[id]; ok {
		reg.active = false
		reg.eventTypes = map[string]bool{}
		o.logger.Info("agent unregistered", "agent", id)
	}
}

// Start launches the consumer goroutine and registers metrics.
// Call Stop (or cancel ctx) to shut down.
func (o *Orchestrator) Start(ctx context.Context) {
	o.registerMetrics()
	o.loopWG.Add(1)
	go o.consume(ctx)
}

// Stop shuts the consumer down and waits for the in-flight pass to
// settle. Safe to call multiple times.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.done) })
	o.loopWG.Wait()
}

// EnqueueEvent appends an event to the bus (oldest entries are evicted
// on overflow) and wakes the consumer.
func (o *Orchestrator) EnqueueEvent(ev model.Event) {
	o.events.Enqueue(ev)
	o.metrics.addEnqueued(1)
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// EnqueueMessage appends an agent-to-agent message. Delivery happens on
// the next pass where the recipient is idle.
func (o *Orchestrator) EnqueueMessage(msg model.Message) {
	o.messages.Enqueue(msg)
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// consume is the single consumer loop: every wake-up coalesces into at
// most one drain pass.
func (o *Orchestrator) consume(ctx context.Context) {
	defer o.loopWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.done:
			return
		case <-o.wake:
			o.Drain(ctx)
		}
	}
}

// ExecuteAgent invokes one agent directly, bypassing event matching.
// Used by foreground flows. The idle precondition and timeout race
// still apply; pending messages for the agent are delivered with the
// invocation.
func (o *Orchestrator) ExecuteAgent(ctx context.Context, id string) (agent.Result, error) {
	o.mu.Lock()
	reg, ok := o.agents[id]
	o.mu.Unlock()
	if !ok {
		return agent.Result{}, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}

	inv := &agent.Invocation{Messages: o.messages.TakeFor(id)}
	res := reg.runner.Run(ctx, inv)
	if res.Error == agent.ErrAlreadyProcessing {
		o.requeueMessages(inv.Messages)
	}
	o.settle(ctx, res)
	return res, nil
}

// requeueMessages returns undelivered messages to the bus. A busy
// rejection happens after the recipient's messages were already taken,
// so they must go back for the next pass where the agent is idle.
func (o *Orchestrator) requeueMessages(msgs []model.Message) {
	for _, m := range msgs {
		o.messages.Enqueue(m)
	}
}

// settle records a finished run: fans out emitted messages, updates
// metrics, and notifies hooks.
func (o *Orchestrator) settle(ctx context.Context, res agent.Result) {
	for _, msg := range res.Messages {
		o.EnqueueMessage(msg)
	}
	o.metrics.recordRun(ctx, res)
	for _, h := range o.hooks {
		h(ctx, res)
	}
}

// runnerIfIdle returns the runner for id when it is active and idle.
func (o *Orchestrator) runnerIfIdle(id string) *agent.Runner {
	o.mu.Lock()
	defer o.mu.Unlock()
	reg, ok := o.agents[id]
	if !ok || !reg.active || !reg.runner.Idle() {
		return nil
	}
	return reg.runner
}
