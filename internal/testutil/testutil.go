// Package testutil provides shared test doubles: a manually advanced
// clock and a scripted inference service. Both are deliberately tiny;
// tests drive time and inference output explicitly instead of sleeping
// against real services.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/halcyon-health/pulse/internal/inference"
)

// Clock is a manually advanced clock. Pass Clock.Now wherever a
// now-func seam exists.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now returns the current frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// FakeInference is a scripted inference.Service. Responses are returned
// in order; when the script runs out, the last response repeats. A
// non-nil Err wins over any response.
type FakeInference struct {
	mu        sync.Mutex
	Responses []inference.Response
	Err       error
	// Delay simulates a slow service; the wait respects ctx.
	Delay time.Duration

	calls int
}

// Complete pops the next scripted response.
func (f *FakeInference) Complete(ctx context.Context, _ inference.Request) (inference.Response, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return inference.Response{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return inference.Response{}, f.Err
	}
	if len(f.Responses) == 0 {
		return inference.Response{Text: "{}", Cost: 0}, nil
	}
	resp := f.Responses[0]
	if len(f.Responses) > 1 {
		f.Responses = f.Responses[1:]
	}
	return resp, nil
}

// Calls returns how many times Complete ran.
func (f *FakeInference) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// RecordingNotifier captures sent notifications.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Notification
}

// Notification is one captured send.
type Notification struct {
	Title    string
	Body     string
	Metadata map[string]any
}

// Send records the notification.
func (n *RecordingNotifier) Send(_ context.Context, title, body string, metadata map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Notification{Title: title, Body: body, Metadata: metadata})
	return nil
}

// Count returns how many notifications were sent.
func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Sent)
}
