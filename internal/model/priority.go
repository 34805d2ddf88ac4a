// Package model defines the core domain types shared across the
// orchestration layer: events, messages, triggers, and journal records.
package model

// Priority orders events and messages within a drain pass.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// PriorityRank returns the numeric rank of a priority (higher = sooner).
// Only relative ordering matters; the bus sorts by >= comparison.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Escalate returns the next priority tier up, capped at urgent.
// Used when an unacknowledged follow-up is re-issued after the grace period.
func Escalate(p Priority) Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}
