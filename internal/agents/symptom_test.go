package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/inference"
	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/store"
)

func TestSymptomAnalysis_ClassifiesLatestLog(t *testing.T) {
	h := newHarness()
	h.inference.Responses = []inference.Response{
		{Text: `{"keywords":["migraine","nausea"],"severity":"moderate"}`, Cost: 0.01},
	}
	log := symptomLog("throbbing headache with nausea", model.SeverityMild, testNow.Add(-time.Hour))
	h.seedLogs(t, log)

	a := NewSymptomAnalysis(h.deps())
	out, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)

	assert.Equal(t, 0.01, out.Cost)
	assert.Equal(t, []string{"migraine", "nausea"}, out.Data["keywords"])

	var stored []model.SymptomLog
	_, err = store.GetJSON(context.Background(), h.store, model.KeySymptomLogs, &stored)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, []string{"migraine", "nausea"}, stored[0].Keywords)
	assert.Equal(t, model.SeverityModerate, stored[0].Severity)
}

func TestSymptomAnalysis_CacheHitCostsNothing(t *testing.T) {
	h := newHarness()
	h.inference.Responses = []inference.Response{
		{Text: `{"keywords":["migraine"],"severity":"mild"}`, Cost: 0.01},
	}
	h.seedLogs(t, symptomLog("headache again", model.SeverityMild, testNow.Add(-time.Hour)))

	a := NewSymptomAnalysis(h.deps())
	first, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)
	assert.Equal(t, 0.01, first.Cost)

	second, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)
	assert.Zero(t, second.Cost, "identical inputs within TTL must not be re-billed")
	assert.Equal(t, 1, h.inference.Calls(), "cache hit must skip the service entirely")
}

func TestSymptomAnalysis_MalformedResponseFallsBack(t *testing.T) {
	h := newHarness()
	h.inference.Responses = []inference.Response{
		{Text: "I am not structured output, sorry.", Cost: 0.01},
	}
	h.seedLogs(t, symptomLog("Persistent migraine after screen time", model.SeverityModerate, testNow.Add(-time.Hour)))

	a := NewSymptomAnalysis(h.deps())
	out, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err, "a garbage response degrades, never errors")

	// Deterministic extraction: lowercase words of five+ letters.
	assert.Equal(t, []any{"persistent", "migraine", "after", "screen"}, anySlice(out.Data["keywords"]))
	assert.Equal(t, 0.01, out.Cost, "the call still happened and still cost money")
}

func TestSymptomAnalysis_ServiceDownCostsNothing(t *testing.T) {
	h := newHarness()
	h.inference.Err = inference.ErrUnavailable
	h.seedLogs(t, symptomLog("ongoing fatigue", model.SeverityMild, testNow.Add(-time.Hour)))

	a := NewSymptomAnalysis(h.deps())
	out, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)
	assert.Zero(t, out.Cost)
	assert.Equal(t, "fatigue", anySlice(out.Data["keywords"])[0])
}

func TestSymptomAnalysis_SevereEmitsFollowUpMessage(t *testing.T) {
	h := newHarness()
	h.inference.Responses = []inference.Response{
		{Text: `{"keywords":["chest","pressure"],"severity":"severe"}`, Cost: 0.01},
	}
	h.seedLogs(t, symptomLog("chest pressure when climbing stairs", model.SeverityModerate, testNow.Add(-time.Hour)))

	a := NewSymptomAnalysis(h.deps())
	out, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)

	require.Len(t, out.Messages, 1)
	assert.Equal(t, FollowUpID, out.Messages[0].Recipient)
	assert.Equal(t, model.PriorityHigh, out.Messages[0].Priority)
}

func TestSymptomAnalysis_NoLogsNeedsData(t *testing.T) {
	h := newHarness()
	a := NewSymptomAnalysis(h.deps())

	out, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)
	assert.True(t, out.NeedsData)
	assert.Zero(t, h.inference.Calls())
}

func TestSymptomAnalysis_OldLogsOutsideWindow(t *testing.T) {
	h := newHarness()
	h.seedLogs(t, symptomLog("ancient history", model.SeverityMild, testNow.Add(-60*24*time.Hour)))

	a := NewSymptomAnalysis(h.deps())
	out, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)
	assert.True(t, out.NeedsData)
}

// anySlice normalizes Data values that may be []string or []any.
func anySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	default:
		return nil
	}
}
