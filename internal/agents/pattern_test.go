package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/inference"
	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/store"
)

func patternText(keyword string, occurrences int, severity, trend string) string {
	return fmt.Sprintf(`{"patterns":[{"keyword":%q,"occurrences":%d,"severity":%q,"trend":%q,"summary":"recurring %s"}]}`,
		keyword, occurrences, severity, trend, keyword)
}

func TestPatternDetection_PersistsAnalyses(t *testing.T) {
	h := newHarness()
	h.inference.Responses = []inference.Response{
		{Text: patternText("migraine", 2, "moderate", "stable"), Cost: 0.02},
	}
	h.seedLogs(t,
		symptomLog("migraine", model.SeverityModerate, testNow.Add(-48*time.Hour)),
		symptomLog("migraine again", model.SeverityModerate, testNow.Add(-24*time.Hour)),
	)

	a := NewPatternDetection(h.deps())
	out, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)
	assert.Equal(t, 0.02, out.Cost)
	assert.Equal(t, 1, out.Data["patterns"])
	assert.Equal(t, 0, out.Data["significant"], "2 occurrences, moderate, stable: not significant")
	assert.Empty(t, out.Messages)

	var stored []model.PatternAnalysis
	_, err = store.GetJSON(context.Background(), h.store, model.KeyPatternAnalyses, &stored)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "migraine", stored[0].Keyword)
	assert.False(t, stored[0].Significant)
}

func TestPatternDetection_SignificanceThresholds(t *testing.T) {
	cases := []struct {
		name        string
		response    string
		significant bool
	}{
		{"over occurrence threshold", patternText("migraine", 4, "mild", "stable"), true},
		{"at occurrence threshold", patternText("migraine", 3, "mild", "stable"), false},
		{"severe", patternText("migraine", 1, "severe", "stable"), true},
		{"worsening", patternText("migraine", 1, "mild", "worsening"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.inference.Responses = []inference.Response{{Text: tc.response, Cost: 0.02}}
			h.seedLogs(t,
				symptomLog("migraine", model.SeverityMild, testNow.Add(-48*time.Hour)),
				symptomLog("migraine", model.SeverityMild, testNow.Add(-24*time.Hour)),
			)

			a := NewPatternDetection(h.deps())
			out, err := a.Execute(context.Background(), &agent.Invocation{})
			require.NoError(t, err)

			if tc.significant {
				assert.Equal(t, 1, out.Data["significant"])
				require.Len(t, out.Messages, 1)
				assert.Equal(t, FollowUpID, out.Messages[0].Recipient)
				assert.Equal(t, model.MessagePatternSignificant, out.Messages[0].Type)
			} else {
				assert.Equal(t, 0, out.Data["significant"])
				assert.Empty(t, out.Messages)
			}
		})
	}
}

func TestPatternDetection_RedetectionKeepsID(t *testing.T) {
	h := newHarness()
	h.inference.Responses = []inference.Response{
		{Text: patternText("migraine", 4, "moderate", "stable"), Cost: 0.02},
		{Text: patternText("Migraine", 5, "moderate", "worsening"), Cost: 0.02},
	}
	h.seedLogs(t,
		symptomLog("migraine", model.SeverityModerate, testNow.Add(-48*time.Hour)),
		symptomLog("migraine", model.SeverityModerate, testNow.Add(-24*time.Hour)),
	)

	a := NewPatternDetection(h.deps())
	ctx := context.Background()
	_, err := a.Execute(ctx, &agent.Invocation{})
	require.NoError(t, err)

	var first []model.PatternAnalysis
	_, err = store.GetJSON(ctx, h.store, model.KeyPatternAnalyses, &first)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A new log changes the fingerprint, forcing a fresh detection.
	h.seedLogs(t,
		symptomLog("migraine", model.SeverityModerate, testNow.Add(-48*time.Hour)),
		symptomLog("migraine", model.SeverityModerate, testNow.Add(-24*time.Hour)),
		symptomLog("migraine", model.SeverityModerate, testNow.Add(-time.Hour)),
	)
	_, err = a.Execute(ctx, &agent.Invocation{})
	require.NoError(t, err)

	var second []model.PatternAnalysis
	_, err = store.GetJSON(ctx, h.store, model.KeyPatternAnalyses, &second)
	require.NoError(t, err)
	require.Len(t, second, 1, "same keyword updates in place, case-insensitively")
	assert.Equal(t, first[0].ID, second[0].ID, "stable ID keeps follow-up coverage intact")
	assert.Equal(t, 5, second[0].Occurrences)
}

func TestPatternDetection_FallbackCountsKeywords(t *testing.T) {
	h := newHarness()
	h.inference.Err = inference.ErrUnavailable
	h.seedLogs(t,
		symptomLog("bad night", model.SeverityMild, testNow.Add(-72*time.Hour), "insomnia"),
		symptomLog("worse night", model.SeverityModerate, testNow.Add(-48*time.Hour), "insomnia"),
		symptomLog("unrelated", model.SeverityMild, testNow.Add(-24*time.Hour), "headache"),
	)

	a := NewPatternDetection(h.deps())
	out, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)
	assert.Zero(t, out.Cost)
	assert.Equal(t, 1, out.Data["patterns"], "only keywords recurring twice count")

	var stored []model.PatternAnalysis
	_, err = store.GetJSON(context.Background(), h.store, model.KeyPatternAnalyses, &stored)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "insomnia", stored[0].Keyword)
	assert.Equal(t, 2, stored[0].Occurrences)
	assert.Equal(t, model.SeverityModerate, stored[0].Severity, "worst severity across entries wins")
	assert.Equal(t, model.TrendStable, stored[0].Trend)
}

func TestPatternDetection_TooFewLogsNeedsData(t *testing.T) {
	h := newHarness()
	h.seedLogs(t, symptomLog("one entry", model.SeverityMild, testNow.Add(-time.Hour)))

	a := NewPatternDetection(h.deps())
	out, err := a.Execute(context.Background(), &agent.Invocation{})
	require.NoError(t, err)
	assert.True(t, out.NeedsData)
	assert.Zero(t, h.inference.Calls())
}

func TestPatternDetection_CacheHit(t *testing.T) {
	h := newHarness()
	h.inference.Responses = []inference.Response{
		{Text: patternText("migraine", 4, "moderate", "stable"), Cost: 0.02},
	}
	h.seedLogs(t,
		symptomLog("migraine", model.SeverityModerate, testNow.Add(-48*time.Hour)),
		symptomLog("migraine", model.SeverityModerate, testNow.Add(-24*time.Hour)),
	)

	a := NewPatternDetection(h.deps())
	ctx := context.Background()
	_, err := a.Execute(ctx, &agent.Invocation{})
	require.NoError(t, err)

	out, err := a.Execute(ctx, &agent.Invocation{})
	require.NoError(t, err)
	assert.Zero(t, out.Cost)
	assert.Equal(t, 1, h.inference.Calls())
}
