package orchestrator

import (
	"context"
	"time"

	"github.com/halcyon-health/pulse/internal/agent"
)

// BackgroundReport summarizes one budgeted background pass.
type BackgroundReport struct {
	AgentsRun      int           `json:"agents_run"`
	AgentsSkipped  int           `json:"agents_skipped"`
	TriggersFired  int           `json:"triggers_fired"`
	Elapsed        time.Duration `json:"elapsed"`
	BudgetExceeded bool          `json:"budget_exceeded"`
}

// RunBackgroundPass performs one periodic, OS-budgeted pass: evaluate
// triggers, drain whatever that enqueued, then walk the idle active
// agents sequentially (not fanned out, so a tight external wall-clock
// ceiling stays controllable), stopping as soon as elapsed time crosses
// budget minus the safety margin. Correctness here is "do as much
// useful work as the budget allows, never exceed it", not "finish
// everything".
func (o *Orchestrator) RunBackgroundPass(ctx context.Context) BackgroundReport {
	start := o.now()
	budget := o.cfg.BackgroundBudget - o.cfg.SafetyMargin

	report := BackgroundReport{}
	report.TriggersFired = len(o.EvaluateTriggers(ctx))
	o.Drain(ctx)

	o.mu.Lock()
	order := make([]string, len(o.order))
	copy(order, o.order)
	o.mu.Unlock()

	for i, id := range order {
		if o.now().Sub(start) >= budget {
			report.BudgetExceeded = true
			report.AgentsSkipped = len(order) - i
			o.metrics.addBudgetStop()
			o.logger.Info("background pass stopped at budget",
				"elapsed", o.now().Sub(start), "skipped", report.AgentsSkipped)
			break
		}

		runner := o.runnerIfIdle(id)
		if runner == nil {
			continue
		}
		inv := &agent.Invocation{Messages: o.messages.TakeFor(id)}
		res := runner.Run(ctx, inv)
		if res.Error == agent.ErrAlreadyProcessing {
			o.requeueMessages(inv.Messages)
			continue
		}
		o.settle(ctx, res)
		report.AgentsRun++
	}

	report.Elapsed = o.now().Sub(start)
	return report
}
