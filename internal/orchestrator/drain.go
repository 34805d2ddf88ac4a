package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/model"
)

// Drain runs one priority-ordered dispatch pass over the queued events.
// Overlapping calls coalesce: the latch makes concurrent Drain calls
// no-ops while a pass is in flight, and the caller that lost the race
// simply returns (its events will be seen by the running pass or the
// next wake-up).
func (o *Orchestrator) Drain(ctx context.Context) {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return
	}
	o.draining = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.draining = false
		o.mu.Unlock()
	}()

	events := o.events.TakeAll() // already urgent-first, stable within tiers
	if len(events) == 0 {
		return
	}
	o.metrics.addDrainPass()

	// Match events to idle subscribers in strict priority order. An
	// agent claimed for an earlier event in this pass is skipped for
	// later ones. Events are never queued per agent; a busy agent
	// simply misses them.
	type invocation struct {
		runner *agent.Runner
		inv    *agent.Invocation
	}
	var batch []invocation
	claimed := make(map[string]bool)

	for i := range events {
		ev := &events[i]
		for _, id := range o.subscribersOf(ev.Type) {
			if claimed[id] {
				continue
			}
			runner := o.runnerIfIdle(id)
			if runner == nil {
				continue
			}
			claimed[id] = true
			batch = append(batch, invocation{
				runner: runner,
				inv: &agent.Invocation{
					Event:    ev,
					Messages: o.messages.TakeFor(id),
				},
			})
		}
	}

	if len(batch) == 0 {
		return
	}

	// Best-effort fan-out/fan-in: every invocation settles on its own,
	// a failure in one never aborts or rolls back the others. Run
	// returns failures as results, so the group never sees an error.
	results := make([]agent.Result, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range batch {
		i, b := i, b
		g.Go(func() error {
			results[i] = b.runner.Run(gctx, b.inv)
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		if res.Error == agent.ErrAlreadyProcessing {
			// A targeted run claimed the agent between the idle check
			// and Run. Its messages were taken but never seen; hold
			// them for the next pass.
			o.requeueMessages(batch[i].inv.Messages)
		}
		o.settle(ctx, res)
		if !res.Success {
			o.logger.Warn("agent run unsuccessful", "agent", res.AgentID, "error", res.Error)
		}
	}
}

// subscribersOf returns the ids of active agents subscribed to
// eventType, in registration order.
func (o *Orchestrator) subscribersOf(eventType string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var ids []string
	for _, id := range o.order {
		reg := o.agents[id]
		if reg.active && reg.eventTypes[eventType] {
			ids = append(ids, id)
		}
	}
	return ids
}

// EvaluateTriggers runs one trigger-evaluation pass and enqueues every
// synthesized event. Returns the events for observability.
func (o *Orchestrator) EvaluateTriggers(ctx context.Context) []model.Event {
	if o.evaluator == nil {
		return nil
	}
	events := o.evaluator.Evaluate(ctx, o.now())
	for _, ev := range events {
		o.EnqueueEvent(ev)
	}
	return events
}
