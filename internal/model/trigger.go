package model

import "time"

// Trigger identifiers installed at orchestrator initialization.
const (
	TriggerInactivity         = "inactivity"
	TriggerSignificantPattern = "significant_pattern"
	TriggerFollowUpEscalation = "follow_up_escalation"
)

// Trigger is a domain predicate that, when true, synthesizes an event
// for autonomous re-engagement. Triggers live for the process lifetime;
// only LastChecked mutates, and it must be reset before (or as part of)
// emitting the corresponding event so the trigger cannot re-fire on the
// very next evaluation pass.
type Trigger struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	Condition   string    `json:"condition"` // human-readable description, not evaluated
	Priority    Priority  `json:"priority"`
	Active      bool      `json:"active"`
	LastChecked time.Time `json:"last_checked"`
}
