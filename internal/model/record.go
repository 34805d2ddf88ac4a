package model

import (
	"time"

	"github.com/google/uuid"
)

// Store keys for journal record collections. The record store is a flat
// KV namespace; each key holds the JSON-encoded slice of records for
// one collection.
const (
	KeySymptomLogs     = "symptom_logs"
	KeyPatternAnalyses = "pattern_analyses"
	KeyRecommendations = "recommendations"
	KeyFollowUps       = "follow_ups"
)

// Severity grades a symptom log.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// SeverityRank returns the numeric rank of a severity (higher = worse).
func SeverityRank(s Severity) int {
	switch s {
	case SeveritySevere:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMild:
		return 1
	default:
		return 0
	}
}

// SymptomLog is one user journal entry. Logs are append-only within the
// cache TTL window; the fingerprint approximation in the cache package
// depends on that.
type SymptomLog struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Keywords    []string  `json:"keywords,omitempty"`
	LoggedAt    time.Time `json:"logged_at"`
}

// Trend describes the direction of a detected pattern over time.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendWorsening Trend = "worsening"
)

// PatternAnalysis is the output of the pattern-detection agent over a
// window of symptom logs.
type PatternAnalysis struct {
	ID          uuid.UUID `json:"id"`
	Summary     string    `json:"summary"`
	Keyword     string    `json:"keyword"`
	Occurrences int       `json:"occurrences"`
	Severity    Severity  `json:"severity"`
	Trend       Trend     `json:"trend"`
	Significant bool      `json:"significant"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
}

// RecommendationStatus is the lifecycle state of a recommendation.
// Only active recommendations participate in title deduplication.
type RecommendationStatus string

const (
	RecommendationActive    RecommendationStatus = "active"
	RecommendationCompleted RecommendationStatus = "completed"
	RecommendationCancelled RecommendationStatus = "cancelled"
)

// Recommendation is a user-facing suggestion produced by the
// recommendation agent.
type Recommendation struct {
	ID          uuid.UUID            `json:"id"`
	Title       string               `json:"title"`
	Body        string               `json:"body"`
	Category    string               `json:"category"`
	Priority    Priority             `json:"priority"`
	ActionItems []string             `json:"action_items,omitempty"`
	Status      RecommendationStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Active reports whether the recommendation still counts for dedup.
func (r Recommendation) Active() bool {
	return r.Status == RecommendationActive
}

// FollowUp records a proactive re-engagement sent to the user. An
// unacknowledged follow-up past the grace period is re-issued at
// elevated priority by the trigger evaluator.
type FollowUp struct {
	ID             uuid.UUID  `json:"id"`
	TriggerID      string     `json:"trigger_id"`
	PatternID      uuid.UUID  `json:"pattern_id,omitempty"`
	Reason         string     `json:"reason"`
	Priority       Priority   `json:"priority"`
	SentAt         time.Time  `json:"sent_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	Escalated      bool       `json:"escalated"`
}
