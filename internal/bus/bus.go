// Package bus provides the bounded, priority-ordered in-memory queues
// that connect event producers to the orchestrator's drain loop.
//
// Both queues favor liveness over completeness: on overflow the oldest
// entries are evicted silently. Drops are observable only through the
// Dropped counters, which the orchestrator exports as metrics.
package bus

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/halcyon-health/pulse/internal/model"
)

// DefaultCapacity bounds each queue when no explicit capacity is given.
const DefaultCapacity = 100

// EventQueue is a bounded drop-oldest queue of broadcast events.
// Safe for concurrent use: producers enqueue from any goroutine while
// the single orchestrator consumer drains.
type EventQueue struct {
	mu       sync.Mutex
	events   []model.Event
	capacity int

	dropped atomic.Int64
}

// NewEventQueue creates a queue holding at most capacity events.
// Non-positive capacities fall back to DefaultCapacity.
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventQueue{capacity: capacity}
}

// Enqueue appends an event, evicting the oldest entries if the queue
// would exceed its capacity.
func (q *EventQueue) Enqueue(ev model.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append(q.events, ev)
	if over := len(q.events) - q.capacity; over > 0 {
		q.events = append([]model.Event(nil), q.events[over:]...)
		q.dropped.Add(int64(over))
	}
}

// TakeAll removes and returns every queued event, sorted urgent-first
// and stable on insertion order within a priority tier.
func (q *EventQueue) TakeAll() []model.Event {
	q.mu.Lock()
	taken := q.events
	q.events = nil
	q.mu.Unlock()

	sort.SliceStable(taken, func(i, j int) bool {
		return model.PriorityRank(taken[i].Priority) > model.PriorityRank(taken[j].Priority)
	})
	return taken
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns the total number of events evicted on overflow.
func (q *EventQueue) Dropped() int64 {
	return q.dropped.Load()
}

// MessageQueue is a bounded drop-oldest queue of targeted agent-to-agent
// messages. Unlike events, messages are taken per recipient: messages
// for a busy recipient stay queued until a later pass finds it idle.
type MessageQueue struct {
	mu       sync.Mutex
	messages []model.Message
	capacity int

	dropped atomic.Int64
}

// NewMessageQueue creates a queue holding at most capacity messages.
// Non-positive capacities fall back to DefaultCapacity.
func NewMessageQueue(capacity int) *MessageQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageQueue{capacity: capacity}
}

// Enqueue appends a message, evicting the oldest entries if the queue
// would exceed its capacity.
func (q *MessageQueue) Enqueue(msg model.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.messages = append(q.messages, msg)
	if over := len(q.messages) - q.capacity; over > 0 {
		q.messages = append([]model.Message(nil), q.messages[over:]...)
		q.dropped.Add(int64(over))
	}
}

// TakeFor removes and returns all messages addressed to recipient,
// sorted urgent-first, stable on insertion order within a tier.
// Messages for other recipients are retained.
func (q *MessageQueue) TakeFor(recipient string) []model.Message {
	q.mu.Lock()
	var taken, kept []model.Message
	for _, m := range q.messages {
		if m.Recipient == recipient {
			taken = append(taken, m)
		} else {
			kept = append(kept, m)
		}
	}
	q.messages = kept
	q.mu.Unlock()

	sort.SliceStable(taken, func(i, j int) bool {
		return model.PriorityRank(taken[i].Priority) > model.PriorityRank(taken[j].Priority)
	})
	return taken
}

// Len returns the number of pending messages across all recipients.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Dropped returns the total number of messages evicted on overflow.
func (q *MessageQueue) Dropped() int64 {
	return q.dropped.Load()
}
