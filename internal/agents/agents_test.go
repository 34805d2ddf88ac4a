package agents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-health/pulse/internal/cache"
	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/store"
	"github.com/halcyon-health/pulse/internal/testutil"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// harness bundles the collaborators a domain agent test needs.
type harness struct {
	store     *store.Memory
	inference *testutil.FakeInference
	notifier  *testutil.RecordingNotifier
	clock     *testutil.Clock
}

func newHarness() *harness {
	return &harness{
		store:     store.NewMemory(),
		inference: &testutil.FakeInference{},
		notifier:  &testutil.RecordingNotifier{},
		clock:     testutil.NewClock(testNow),
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Store:     h.store,
		Inference: h.inference,
		Cache:     cache.New(time.Hour),
		Notifier:  h.notifier,
		Now:       h.clock.Now,
	}
}

func (h *harness) seedLogs(t *testing.T, logs ...model.SymptomLog) {
	t.Helper()
	require.NoError(t, store.SetJSON(context.Background(), h.store, model.KeySymptomLogs, logs))
}

func (h *harness) seedAnalyses(t *testing.T, analyses ...model.PatternAnalysis) {
	t.Helper()
	require.NoError(t, store.SetJSON(context.Background(), h.store, model.KeyPatternAnalyses, analyses))
}

func symptomLog(desc string, severity model.Severity, loggedAt time.Time, keywords ...string) model.SymptomLog {
	return model.SymptomLog{
		ID:          uuid.New(),
		Description: desc,
		Severity:    severity,
		Keywords:    keywords,
		LoggedAt:    loggedAt,
	}
}
