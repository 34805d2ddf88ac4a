package orchestrator

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/telemetry"
)

// metrics holds the orchestrator's OTEL instruments plus the local
// counters backing the observable gauges. Instruments are nil until
// registerMetrics runs; the record helpers tolerate that.
type metrics struct {
	enqueued    atomic.Int64
	drainPasses atomic.Int64
	budgetStops atomic.Int64

	runs metric.Int64Counter
	cost metric.Float64Counter
}

func (m *metrics) addEnqueued(n int64) { m.enqueued.Add(n) }
func (m *metrics) addDrainPass()       { m.drainPasses.Add(1) }
func (m *metrics) addBudgetStop()      { m.budgetStops.Add(1) }

func (m *metrics) recordRun(ctx context.Context, res agent.Result) {
	if m.runs == nil {
		return
	}
	outcome := "success"
	if !res.Success {
		switch res.Error {
		case agent.ErrAlreadyProcessing:
			outcome = "busy"
		case agent.ErrExceededRuntime:
			outcome = "timeout"
		default:
			outcome = "error"
		}
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", res.AgentID),
		attribute.String("outcome", outcome),
	))
	if res.Cost > 0 {
		m.cost.Add(ctx, res.Cost, metric.WithAttributes(attribute.String("agent", res.AgentID)))
	}
}

// registerMetrics registers OTEL instruments for orchestrator health.
// Called from Start() after the global meter provider is initialized.
func (o *Orchestrator) registerMetrics() {
	meter := telemetry.Meter("pulse/orchestrator")

	o.metrics.runs, _ = meter.Int64Counter("pulse.agent.runs",
		metric.WithDescription("Agent invocations by outcome"))
	o.metrics.cost, _ = meter.Float64Counter("pulse.agent.cost",
		metric.WithDescription("Cumulative charged inference cost"))

	_, _ = meter.Int64ObservableGauge("pulse.bus.pending_events",
		metric.WithDescription("Events waiting for the next drain pass"),
		metric.WithInt64Callback(func(_ context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(o.events.Len()))
			return nil
		}),
	)
	_, _ = meter.Int64ObservableGauge("pulse.bus.dropped_total",
		metric.WithDescription("Events and messages evicted on queue overflow"),
		metric.WithInt64Callback(func(_ context.Context, ob metric.Int64Observer) error {
			ob.Observe(o.events.Dropped() + o.messages.Dropped())
			return nil
		}),
	)
	_, _ = meter.Int64ObservableGauge("pulse.orchestrator.drain_passes",
		metric.WithDescription("Completed drain passes"),
		metric.WithInt64Callback(func(_ context.Context, ob metric.Int64Observer) error {
			ob.Observe(o.metrics.drainPasses.Load())
			return nil
		}),
	)
	_, _ = meter.Int64ObservableGauge("pulse.orchestrator.budget_stops",
		metric.WithDescription("Background passes halted at the wall-clock budget"),
		metric.WithInt64Callback(func(_ context.Context, ob metric.Int64Observer) error {
			ob.Observe(o.metrics.budgetStops.Load())
			return nil
		}),
	)
}
