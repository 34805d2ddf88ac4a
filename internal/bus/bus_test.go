package bus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-health/pulse/internal/model"
)

func TestEventQueue_PriorityOrdering(t *testing.T) {
	q := NewEventQueue(10)

	q.Enqueue(model.NewEvent("a", model.PriorityUrgent, nil))
	q.Enqueue(model.NewEvent("b", model.PriorityLow, nil))
	q.Enqueue(model.NewEvent("c", model.PriorityHigh, nil))
	q.Enqueue(model.NewEvent("d", model.PriorityMedium, nil))

	events := q.TakeAll()
	require.Len(t, events, 4)
	assert.Equal(t, "a", events[0].Type)
	assert.Equal(t, "c", events[1].Type)
	assert.Equal(t, "d", events[2].Type)
	assert.Equal(t, "b", events[3].Type)

	// Queue is empty after a take.
	assert.Zero(t, q.Len())
	assert.Empty(t, q.TakeAll())
}

func TestEventQueue_StableWithinTier(t *testing.T) {
	q := NewEventQueue(10)
	for i := 0; i < 5; i++ {
		q.Enqueue(model.NewEvent(fmt.Sprintf("ev-%d", i), model.PriorityMedium, nil))
	}

	events := q.TakeAll()
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, fmt.Sprintf("ev-%d", i), ev.Type, "insertion order must hold within a tier")
	}
}

func TestEventQueue_OverflowDropsOldest(t *testing.T) {
	const capacity = 3
	q := NewEventQueue(capacity)

	for i := 0; i < capacity+1; i++ {
		q.Enqueue(model.NewEvent(fmt.Sprintf("ev-%d", i), model.PriorityMedium, nil))
	}

	assert.Equal(t, capacity, q.Len())
	assert.Equal(t, int64(1), q.Dropped())

	events := q.TakeAll()
	require.Len(t, events, capacity)
	assert.Equal(t, "ev-1", events[0].Type, "oldest event must have been evicted")
}

func TestMessageQueue_TakeForRetainsOthers(t *testing.T) {
	q := NewMessageQueue(10)

	q.Enqueue(model.NewMessage("a", "x", "t1", model.PriorityLow, nil))
	q.Enqueue(model.NewMessage("a", "y", "t2", model.PriorityHigh, nil))
	q.Enqueue(model.NewMessage("b", "x", "t3", model.PriorityUrgent, nil))

	forX := q.TakeFor("x")
	require.Len(t, forX, 2)
	assert.Equal(t, "t3", forX[0].Type, "urgent message first")
	assert.Equal(t, "t1", forX[1].Type)

	// y's message is still queued.
	assert.Equal(t, 1, q.Len())
	forY := q.TakeFor("y")
	require.Len(t, forY, 1)
	assert.Equal(t, "t2", forY[0].Type)
}

func TestMessageQueue_OverflowDropsOldest(t *testing.T) {
	q := NewMessageQueue(2)

	q.Enqueue(model.NewMessage("a", "x", "t1", model.PriorityLow, nil))
	q.Enqueue(model.NewMessage("a", "x", "t2", model.PriorityLow, nil))
	q.Enqueue(model.NewMessage("a", "x", "t3", model.PriorityLow, nil))

	assert.Equal(t, int64(1), q.Dropped())
	msgs := q.TakeFor("x")
	require.Len(t, msgs, 2)
	assert.Equal(t, "t2", msgs[0].Type)
	assert.Equal(t, "t3", msgs[1].Type)
}

func TestQueue_DefaultCapacity(t *testing.T) {
	q := NewEventQueue(0)
	for i := 0; i < DefaultCapacity+5; i++ {
		q.Enqueue(model.NewEvent("ev", model.PriorityLow, nil))
	}
	assert.Equal(t, DefaultCapacity, q.Len())
}
