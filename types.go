package pulse

import (
	"time"
)

// Priority orders events and messages within a drain pass.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Severity grades a symptom entry.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Event types the presentation layer may emit. Custom types are allowed
// as long as some agent subscribes to them.
const (
	EventNewSymptomLog      = "new_symptom_log"
	EventAnalysisRequested  = "analysis_requested"
	EventInactivityDetected = "inactivity_detected"
	EventSignificantPattern = "significant_pattern"
	EventFollowUpDue        = "follow_up_due"
)

// Identifiers of the built-in domain agents.
const (
	AgentSymptomAnalysis  = "symptom_analysis"
	AgentPatternDetection = "pattern_detection"
	AgentRecommendation   = "recommendation"
	AgentFollowUp         = "follow_up"
)

// Event is a work request broadcast to subscribed agents by type.
// ID and timestamp are assigned when the event enters the bus.
type Event struct {
	Type     string
	Priority Priority
	Payload  map[string]any
}

// AgentRunResult is the settled outcome of one agent invocation.
type AgentRunResult struct {
	AgentID string
	Success bool
	Data    map[string]any
	Error   string
	Cost    float64
	Runtime time.Duration
}

// AgentStatus is a read-only projection of one agent's runtime state
// and accounting.
type AgentStatus struct {
	ID         string
	Name       string
	State      string
	Active     bool
	LastRun    time.Time
	TotalCost  float64
	Runs       int64
	CostPerRun float64
	MaxRuntime time.Duration
}

// SystemStatus is a read-only projection over the whole orchestrator.
type SystemStatus struct {
	TotalAgents      int
	ActiveAgents     int
	IdleAgents       int
	ProcessingAgents int
	PendingEvents    int
	PendingMessages  int
	DroppedEvents    int64
	TotalCost        float64
}

// BackgroundReport summarizes one budgeted background pass.
type BackgroundReport struct {
	AgentsRun      int
	AgentsSkipped  int
	TriggersFired  int
	Elapsed        time.Duration
	BudgetExceeded bool
}

// Recommendation is the public projection of a persisted
// recommendation record.
type Recommendation struct {
	ID          string
	Title       string
	Body        string
	Category    string
	Priority    Priority
	ActionItems []string
	Status      string
	CreatedAt   time.Time
}

// InferenceRequest is one completion call to the inference service.
type InferenceRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// InferenceResponse is the service's reply. Text is free-form and
// expected to parse as JSON per the calling agent's schema; Cost is the
// monetary charge for this call.
type InferenceResponse struct {
	Text   string
	Cost   float64
	Tokens int
}
