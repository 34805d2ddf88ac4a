package model

import (
	"time"

	"github.com/google/uuid"
)

// Well-known event types emitted by the presentation layer and triggers.
// Agents subscribe by type string; custom types are allowed.
const (
	EventNewSymptomLog      = "new_symptom_log"
	EventAnalysisRequested  = "analysis_requested"
	EventInactivityDetected = "inactivity_detected"
	EventSignificantPattern = "significant_pattern"
	EventFollowUpDue        = "follow_up_due"
)

// Well-known message types exchanged between agents.
const (
	MessagePatternSignificant  = "pattern_significant"
	MessageRecommendationStale = "recommendation_stale"
)

// Event is a work request broadcast to all agents subscribed to its type.
// Events are ephemeral: consumed at most once by the drain pass that
// picks them up, then discarded.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEvent creates an event with a fresh ID and the current timestamp.
func NewEvent(eventType string, priority Priority, payload map[string]any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payload,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
}

// Message is a targeted notification from one agent to a specific other
// agent. Same bounded-queue discipline as events, but delivery is keyed
// by recipient: messages for a busy recipient are held until a later
// pass finds it idle.
type Message struct {
	ID        uuid.UUID      `json:"id"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewMessage creates a message with a fresh ID and the current timestamp.
func NewMessage(sender, recipient, msgType string, priority Priority, payload map[string]any) Message {
	return Message{
		ID:        uuid.New(),
		Sender:    sender,
		Recipient: recipient,
		Type:      msgType,
		Payload:   payload,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
}
