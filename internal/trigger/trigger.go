// Package trigger decides, per domain, whether autonomous
// re-engagement is warranted. Predicates are pure checks over locally
// stored records; no inference call is ever made here.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/halcyon-health/pulse/internal/model"
)

// Firing is a predicate's verdict. Priority overrides the trigger's
// default when non-empty (escalation raises it); Payload rides on the
// synthesized event.
type Firing struct {
	Fire     bool
	Priority model.Priority
	Payload  map[string]any
}

// Predicate evaluates one trigger against the current records.
// lastChecked is the previous evaluation time; predicates use it to
// avoid re-firing on consecutive passes where that matters.
type Predicate func(ctx context.Context, now, lastChecked time.Time) (Firing, error)

// Definition pairs a trigger's static description with its predicate
// and the event type it synthesizes.
type Definition struct {
	Trigger   model.Trigger
	EventType string
	Predicate Predicate
}

// Evaluator owns the installed triggers and runs evaluation passes.
// Triggers live for the process lifetime; only LastChecked mutates.
type Evaluator struct {
	logger *slog.Logger

	mu   sync.Mutex
	defs []*Definition
}

// NewEvaluator creates an evaluator with no triggers installed.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Register installs a trigger. Registration order is evaluation order.
func (e *Evaluator) Register(def Definition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := def
	e.defs = append(e.defs, &d)
}

// SetActive flips a trigger's active flag. Unknown ids are ignored.
func (e *Evaluator) SetActive(id string, active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.defs {
		if d.Trigger.ID == id {
			d.Trigger.Active = active
		}
	}
}

// Triggers returns a snapshot of the installed triggers.
func (e *Evaluator) Triggers() []model.Trigger {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Trigger, len(e.defs))
	for i, d := range e.defs {
		out[i] = d.Trigger
	}
	return out
}

// Evaluate runs one pass over all active triggers and returns the
// synthesized events. A firing trigger's LastChecked is reset before
// its event is returned, so it cannot re-fire from the same pass.
// Predicate errors are logged and skipped; one broken predicate must
// not starve the others.
func (e *Evaluator) Evaluate(ctx context.Context, now time.Time) []model.Event {
	e.mu.Lock()
	defs := make([]*Definition, len(e.defs))
	copy(defs, e.defs)
	e.mu.Unlock()

	var events []model.Event
	for _, d := range defs {
		e.mu.Lock()
		active := d.Trigger.Active
		lastChecked := d.Trigger.LastChecked
		e.mu.Unlock()
		if !active {
			continue
		}

		firing, err := d.Predicate(ctx, now, lastChecked)
		if err != nil {
			e.logger.Warn("trigger predicate failed", "trigger", d.Trigger.ID, "error", err)
			continue
		}
		if !firing.Fire {
			continue
		}

		// Reset last-checked before emitting; this is what prevents
		// an immediate re-fire.
		e.mu.Lock()
		d.Trigger.LastChecked = now
		e.mu.Unlock()

		priority := d.Trigger.Priority
		if firing.Priority != "" {
			priority = firing.Priority
		}
		payload := firing.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		payload["trigger_id"] = d.Trigger.ID
		payload["domain"] = d.Trigger.Domain

		ev := model.NewEvent(d.EventType, priority, payload)
		ev.CreatedAt = now
		events = append(events, ev)
		e.logger.Info("trigger fired", "trigger", d.Trigger.ID, "event_type", d.EventType, "priority", priority)
	}
	return events
}
