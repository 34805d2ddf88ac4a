package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier_Send(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := n.Send(context.Background(), "Pattern worth a look", "Recurring pattern detected: migraine",
		map[string]any{"pattern_id": "abc"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Pattern worth a look")
	assert.Contains(t, out, "migraine")
}

func TestLogNotifier_NilLoggerUsesDefault(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Send(context.Background(), "t", "b", nil))
}
