package orchestrator

import (
	"time"

	"github.com/halcyon-health/pulse/internal/agent"
)

// AgentStatus is a read-only projection of one agent's runtime state
// and accounting.
type AgentStatus struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	State      agent.State   `json:"state"`
	Active     bool          `json:"active"`
	LastRun    time.Time     `json:"last_run"`
	TotalCost  float64       `json:"total_cost"`
	Runs       int64         `json:"runs"`
	CostPerRun float64       `json:"cost_per_run"`
	MaxRuntime time.Duration `json:"max_runtime"`
}

// SystemStatus is a read-only projection over the whole orchestrator.
// It is recomputed on every call, never mutated directly.
type SystemStatus struct {
	TotalAgents      int     `json:"total_agents"`
	ActiveAgents     int     `json:"active_agents"`
	IdleAgents       int     `json:"idle_agents"`
	ProcessingAgents int     `json:"processing_agents"`
	PendingEvents    int     `json:"pending_events"`
	PendingMessages  int     `json:"pending_messages"`
	DroppedEvents    int64   `json:"dropped_events"`
	TotalCost        float64 `json:"total_cost"`
}

// Status computes the current system status.
func (o *Orchestrator) Status() SystemStatus {
	o.mu.Lock()
	regs := make([]*registration, 0, len(o.agents))
	for _, reg := range o.agents {
		regs = append(regs, reg)
	}
	o.mu.Unlock()

	st := SystemStatus{
		TotalAgents:     len(regs),
		PendingEvents:   o.events.Len(),
		PendingMessages: o.messages.Len(),
		DroppedEvents:   o.events.Dropped() + o.messages.Dropped(),
	}
	for _, reg := range regs {
		if reg.active {
			st.ActiveAgents++
		}
		if reg.runner.State() == agent.StateProcessing {
			st.ProcessingAgents++
		} else {
			st.IdleAgents++
		}
		st.TotalCost += reg.runner.TotalCost()
	}
	return st
}

// AgentStatuses returns per-agent projections in registration order.
func (o *Orchestrator) AgentStatuses() []AgentStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]AgentStatus, 0, len(o.order))
	for _, id := range o.order {
		reg := o.agents[id]
		task := reg.runner.Task()
		out = append(out, AgentStatus{
			ID:         id,
			Name:       task.Name(),
			State:      reg.runner.State(),
			Active:     reg.active,
			LastRun:    reg.runner.LastRun(),
			TotalCost:  reg.runner.TotalCost(),
			Runs:       reg.runner.Runs(),
			CostPerRun: task.CostPerRun(),
			MaxRuntime: task.MaxRuntime(),
		})
	}
	return out
}

// TotalCost sums cumulative charged cost across all registered agents.
func (o *Orchestrator) TotalCost() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	var total float64
	for _, reg := range o.agents {
		total += reg.runner.TotalCost()
	}
	return total
}
