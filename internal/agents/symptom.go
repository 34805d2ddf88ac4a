package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/cache"
	"github.com/halcyon-health/pulse/internal/inference"
	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/store"
)

const symptomPrompt = `You are a health journaling assistant. Classify the symptom entry below.
Respond with JSON only: {"keywords": ["..."], "severity": "mild|moderate|severe"}

Entry: %s`

// symptomResponse is the expected inference output schema.
type symptomResponse struct {
	Keywords []string       `json:"keywords"`
	Severity model.Severity `json:"severity"`
}

// SymptomAnalysis classifies new journal entries: extracts keywords and
// grades severity. Severe entries fan out a message to the follow-up
// agent.
type SymptomAnalysis struct {
	deps       Deps
	model      string
	maxRuntime time.Duration
	costPerRun float64
	window     time.Duration
	ttl        time.Duration
}

// NewSymptomAnalysis creates the symptom analysis agent.
func NewSymptomAnalysis(deps Deps) *SymptomAnalysis {
	deps.normalize()
	return &SymptomAnalysis{
		deps:       deps,
		model:      "journal-classify-1",
		maxRuntime: 15 * time.Second,
		costPerRun: 0.01,
		window:     14 * 24 * time.Hour,
		ttl:        24 * time.Hour,
	}
}

func (a *SymptomAnalysis) ID() string                { return SymptomAnalysisID }
func (a *SymptomAnalysis) Name() string              { return "Symptom Analysis" }
func (a *SymptomAnalysis) MaxRuntime() time.Duration { return a.maxRuntime }
func (a *SymptomAnalysis) CostPerRun() float64       { return a.costPerRun }

// Execute classifies the most recent unclassified symptom log.
func (a *SymptomAnalysis) Execute(ctx context.Context, inv *agent.Invocation) (*agent.Outcome, error) {
	now := a.deps.Now()

	var logs []model.SymptomLog
	if _, err := store.GetJSON(ctx, a.deps.Store, model.KeySymptomLogs, &logs); err != nil {
		return nil, err
	}
	window := recentWindow(logs, func(l model.SymptomLog) time.Time { return l.LoggedAt }, now, a.window, 20)
	if len(window) == 0 {
		return &agent.Outcome{NeedsData: true, Data: map[string]any{"reason": "no recent symptom logs"}}, nil
	}
	latest := window[len(window)-1]

	inputs := []cache.Input{{ID: latest.ID, At: latest.LoggedAt}}
	fp := cache.Fingerprint(SymptomAnalysisID, inputs)
	if hit, ok := a.deps.Cache.Lookup(fp); ok {
		if parsed, ok := hit.(symptomResponse); ok {
			return a.apply(ctx, inv, logs, latest, parsed, 0)
		}
	}

	parsed, cost := a.classify(ctx, latest)
	a.deps.Cache.Store(fp, parsed, a.ttl)
	return a.apply(ctx, inv, logs, latest, parsed, cost)
}

// classify calls the inference service, degrading to a deterministic
// keyword extraction when the service or its output is unusable.
func (a *SymptomAnalysis) classify(ctx context.Context, log model.SymptomLog) (symptomResponse, float64) {
	resp, err := a.deps.Inference.Complete(ctx, inference.Request{
		Model:       a.model,
		Prompt:      fmt.Sprintf(symptomPrompt, log.Description),
		MaxTokens:   256,
		Temperature: 0.1,
	})
	if err != nil {
		if !errors.Is(err, inference.ErrRateLimited) && !errors.Is(err, inference.ErrUnavailable) {
			a.deps.Logger.Warn("symptom classification failed", "error", err)
		}
		return a.fallback(log), 0
	}

	var parsed symptomResponse
	if err := inference.DecodeStrict(resp.Text, &parsed); err != nil {
		a.deps.Logger.Warn("symptom classification unparseable, using fallback", "error", err)
		return a.fallback(log), resp.Cost
	}
	if model.SeverityRank(parsed.Severity) == 0 {
		parsed.Severity = log.Severity
	}
	return parsed, resp.Cost
}

// fallback extracts keywords deterministically: lowercase words of five
// or more letters, first four distinct. Severity is left as the user
// graded it.
func (a *SymptomAnalysis) fallback(log model.SymptomLog) symptomResponse {
	seen := make(map[string]bool)
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(log.Description)) {
		w = strings.Trim(w, ".,;:!?()")
		if len(w) < 5 || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) == 4 {
			break
		}
	}
	return symptomResponse{Keywords: keywords, Severity: log.Severity}
}

func (a *SymptomAnalysis) apply(ctx context.Context, inv *agent.Invocation, logs []model.SymptomLog, latest model.SymptomLog, parsed symptomResponse, cost float64) (*agent.Outcome, error) {
	// The inference call may have outlived a timeout abandonment; a
	// stale run must not write back.
	if !inv.StillCurrent() {
		return nil, errors.New("agents: symptom analysis superseded, discarding result")
	}

	for i := range logs {
		if logs[i].ID == latest.ID {
			logs[i].Keywords = parsed.Keywords
			logs[i].Severity = parsed.Severity
			break
		}
	}
	if err := store.SetJSON(ctx, a.deps.Store, model.KeySymptomLogs, logs); err != nil {
		return nil, err
	}

	outcome := &agent.Outcome{
		Cost: cost,
		Data: map[string]any{
			"log_id":   latest.ID.String(),
			"keywords": parsed.Keywords,
			"severity": string(parsed.Severity),
		},
	}
	if parsed.Severity == model.SeveritySevere {
		outcome.Messages = append(outcome.Messages, model.NewMessage(
			SymptomAnalysisID, FollowUpID, model.MessagePatternSignificant, model.PriorityHigh,
			map[string]any{"log_id": latest.ID.String(), "severity": string(model.SeveritySevere)},
		))
	}
	return outcome, nil
}
