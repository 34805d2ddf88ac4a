// Package agent defines the contract for one unit of autonomous,
// possibly paid, possibly slow work, and the Runner that wraps every
// task with a state machine, a timeout race, and cost accounting.
package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/halcyon-health/pulse/internal/model"
)

// State is the runtime state of an agent. Exactly one state holds at
// any time; Processing never overlaps with another run of the same
// agent (the Runner enforces this, and the orchestrator additionally
// checks idleness before dispatch).
type State string

const (
	StateIdle           State = "idle"
	StateProcessing     State = "processing"
	StateWaitingForData State = "waiting_for_data"
	StateCompleted      State = "completed"
	StateError          State = "error"
)

// Task is the domain-specific body of an agent. Implementations must
// tolerate abandonment: when the Runner's timeout fires, the task's
// context is cancelled and its eventual result is discarded, so any
// store write after a slow external call must be guarded with
// Invocation.StillCurrent.
type Task interface {
	// ID is the stable agent identifier used for registration,
	// message routing, and targeted execution.
	ID() string
	// Name is the human-readable display name.
	Name() string
	// MaxRuntime is the per-invocation wall-clock budget.
	MaxRuntime() time.Duration
	// CostPerRun is the nominal monetary cost of one invocation,
	// reported in status projections. Actual charged cost comes from
	// the Outcome (a cache hit costs nothing).
	CostPerRun() float64
	// Execute performs one bounded unit of work.
	Execute(ctx context.Context, inv *Invocation) (*Outcome, error)
}

// Invocation carries the inputs of one run plus the fencing epoch that
// guards late writes from abandoned runs.
type Invocation struct {
	// Event is the event that matched this agent, nil for targeted or
	// background execution.
	Event *model.Event
	// Messages are the pending messages addressed to this agent,
	// urgent-first.
	Messages []model.Message

	epoch  int64
	runner *Runner
}

// StillCurrent reports whether this invocation is still the live run of
// its agent. It returns false once the Runner has abandoned the run on
// timeout; task bodies must check it before committing side effects
// that follow a slow external call.
func (inv *Invocation) StillCurrent() bool {
	if inv.runner == nil {
		return true
	}
	return inv.runner.epochValid(inv.epoch)
}

// Outcome is what a task body returns on completion.
type Outcome struct {
	// Data is the structured result surfaced to the caller.
	Data map[string]any
	// Cost is the monetary cost actually incurred (zero on cache hit
	// or deterministic fallback).
	Cost float64
	// Messages are agent-to-agent notifications to fan out after the
	// run settles.
	Messages []model.Message
	// NeedsData marks the run as starved: the agent parks in
	// WaitingForData instead of Completed until more records arrive.
	NeedsData bool
}

// Result is the settled outcome of one Run call.
type Result struct {
	AgentID string         `json:"agent_id"`
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Cost    float64        `json:"cost"`
	Runtime time.Duration  `json:"runtime"`
	// Messages emitted by the task, for the orchestrator to enqueue.
	Messages []model.Message `json:"-"`
}

// Error strings for the two non-exceptional failure modes. These are
// results, not Go errors: a busy rejection or timeout is a normal
// unsuccessful outcome.
const (
	ErrAlreadyProcessing = "already processing"
	ErrExceededRuntime   = "exceeded max runtime"
)

// Runner wraps a Task with the agent state machine. All mutable state
// is guarded by mu; Run itself is safe to call from any goroutine, but
// only one invocation at a time ever reaches the task body.
type Runner struct {
	task   Task
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	lastRun  time.Time
	cost     float64
	runs     int64
	epoch    int64 // increments on every accepted run
	minEpoch int64 // runs below this were abandoned; their writes are fenced
}

// NewRunner wraps task. The now func is a test seam; pass nil for
// time.Now.
func NewRunner(task Task, logger *slog.Logger, now func() time.Time) *Runner {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		task:   task,
		logger: logger.With("agent", task.ID()),
		now:    now,
		state:  StateIdle,
	}
}

// Task returns the wrapped task.
func (r *Runner) Task() Task { return r.task }

// ID returns the wrapped task's identifier.
func (r *Runner) ID() string { return r.task.ID() }

// Idle reports whether the agent can accept a new invocation.
// Completed, Error, and WaitingForData are all dispatchable states;
// only Processing blocks.
func (r *Runner) Idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != StateProcessing
}

// State returns the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// TotalCost returns the cumulative charged cost across all runs.
func (r *Runner) TotalCost() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cost
}

// Runs returns the number of completed (charged) runs.
func (r *Runner) Runs() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

// LastRun returns the completion time of the most recent charged run.
func (r *Runner) LastRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

func (r *Runner) epochValid(epoch int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return epoch >= r.minEpoch
}

// Run executes one invocation of the task under the timeout race.
//
// Preconditions and transitions:
//   - not Idle: immediate unsuccessful Result, no state change, no cost;
//   - task completes in time: Completed (or WaitingForData), cost
//     charged, run counted;
//   - timer fires first: Error, zero cost, the task's eventual result
//     is discarded and its epoch fenced;
//   - task returns an error: Error, zero cost.
func (r *Runner) Run(ctx context.Context, inv *Invocation) Result {
	r.mu.Lock()
	if r.state == StateProcessing {
		r.mu.Unlock()
		return Result{AgentID: r.task.ID(), Success: false, Error: ErrAlreadyProcessing}
	}
	r.state = StateProcessing
	r.epoch++
	epoch := r.epoch
	r.mu.Unlock()

	if inv == nil {
		inv = &Invocation{}
	}
	inv.epoch = epoch
	inv.runner = r

	start := r.now()
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type settled struct {
		outcome *Outcome
		err     error
	}
	done := make(chan settled, 1) // buffered so an abandoned task can exit

	go func() {
		outcome, err := r.task.Execute(taskCtx, inv)
		done <- settled{outcome, err}
	}()

	timer := time.NewTimer(r.task.MaxRuntime())
	defer timer.Stop()

	select {
	case s := <-done:
		runtime := r.now().Sub(start)
		if s.err != nil {
			r.finish(StateError, 0, false)
			r.logger.Warn("agent run failed", "error", s.err, "runtime", runtime)
			return Result{AgentID: r.task.ID(), Success: false, Error: s.err.Error(), Runtime: runtime}
		}
		outcome := s.outcome
		if outcome == nil {
			outcome = &Outcome{}
		}
		next := StateCompleted
		if outcome.NeedsData {
			next = StateWaitingForData
		}
		r.finish(next, outcome.Cost, true)
		r.logger.Debug("agent run completed", "cost", outcome.Cost, "runtime", runtime, "state", next)
		return Result{
			AgentID:  r.task.ID(),
			Success:  true,
			Data:     outcome.Data,
			Cost:     outcome.Cost,
			Runtime:  runtime,
			Messages: outcome.Messages,
		}

	case <-timer.C:
		// Abandon the task: cancel its context, fence its epoch so a
		// completed-but-discarded external call cannot write back, and
		// do not charge the caller for aborted work.
		cancel()
		r.mu.Lock()
		r.state = StateError
		r.minEpoch = epoch + 1
		r.mu.Unlock()
		runtime := r.now().Sub(start)
		r.logger.Warn("agent run exceeded max runtime", "max_runtime", r.task.MaxRuntime())
		return Result{AgentID: r.task.ID(), Success: false, Error: ErrExceededRuntime, Runtime: runtime}

	case <-ctx.Done():
		cancel()
		r.mu.Lock()
		r.state = StateError
		r.minEpoch = epoch + 1
		r.mu.Unlock()
		return Result{AgentID: r.task.ID(), Success: false, Error: ctx.Err().Error(), Runtime: r.now().Sub(start)}
	}
}

func (r *Runner) finish(next State, cost float64, charged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = next
	if charged {
		r.cost += cost
		r.runs++
		r.lastRun = r.now()
	}
}
