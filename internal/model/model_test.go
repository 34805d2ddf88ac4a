package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPriorityRank_Ordering(t *testing.T) {
	assert.Greater(t, PriorityRank(PriorityUrgent), PriorityRank(PriorityHigh))
	assert.Greater(t, PriorityRank(PriorityHigh), PriorityRank(PriorityMedium))
	assert.Greater(t, PriorityRank(PriorityMedium), PriorityRank(PriorityLow))
	assert.Greater(t, PriorityRank(PriorityLow), PriorityRank(Priority("bogus")))
}

func TestEscalate(t *testing.T) {
	assert.Equal(t, PriorityMedium, Escalate(PriorityLow))
	assert.Equal(t, PriorityHigh, Escalate(PriorityMedium))
	assert.Equal(t, PriorityUrgent, Escalate(PriorityHigh))
	assert.Equal(t, PriorityUrgent, Escalate(PriorityUrgent), "urgent is the cap")
}

func TestSeverityRank_Ordering(t *testing.T) {
	assert.Greater(t, SeverityRank(SeveritySevere), SeverityRank(SeverityModerate))
	assert.Greater(t, SeverityRank(SeverityModerate), SeverityRank(SeverityMild))
	assert.Zero(t, SeverityRank(Severity("unknown")))
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(EventNewSymptomLog, PriorityHigh, map[string]any{"log_id": "x"})

	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.Equal(t, EventNewSymptomLog, ev.Type)
	assert.Equal(t, PriorityHigh, ev.Priority)
	assert.Equal(t, "x", ev.Payload["log_id"])
	assert.False(t, ev.CreatedAt.IsZero())

	other := NewEvent(EventNewSymptomLog, PriorityHigh, nil)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("pattern_detection", "follow_up", MessagePatternSignificant, PriorityUrgent, nil)

	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Equal(t, "pattern_detection", msg.Sender)
	assert.Equal(t, "follow_up", msg.Recipient)
	assert.Equal(t, MessagePatternSignificant, msg.Type)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestRecommendation_Active(t *testing.T) {
	assert.True(t, Recommendation{Status: RecommendationActive}.Active())
	assert.False(t, Recommendation{Status: RecommendationCompleted}.Active())
	assert.False(t, Recommendation{Status: RecommendationCancelled}.Active())
}
