// Package notify defines the user-facing notification dispatcher
// contract. Delivery is fire-and-forget: the core never observes a
// receipt, and a failed send is logged, not retried.
package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers a notification to the user.
type Notifier interface {
	Send(ctx context.Context, title, body string, metadata map[string]any) error
}

// LogNotifier writes notifications to the log. It is the default when
// no platform dispatcher is wired in (tests, headless runs).
type LogNotifier struct {
	Logger *slog.Logger
}

// Send logs the notification at info level.
func (n LogNotifier) Send(_ context.Context, title, body string, metadata map[string]any) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "title", title, "body", body, "metadata", metadata)
	return nil
}
