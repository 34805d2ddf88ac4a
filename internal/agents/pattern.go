package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/cache"
	"github.com/halcyon-health/pulse/internal/inference"
	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/store"
)

const patternPrompt = `You are a health journaling assistant. Find recurring symptom patterns
in the entries below. Respond with JSON only:
{"patterns": [{"keyword": "...", "occurrences": N, "severity": "mild|moderate|severe",
"trend": "improving|stable|worsening", "summary": "..."}]}

Entries:
%s`

// Significance thresholds. A pattern crossing any of them warrants a
// follow-up.
const (
	significantOccurrences = 3 // strictly more than this
)

type patternResponse struct {
	Patterns []patternItem `json:"patterns"`
}

type patternItem struct {
	Keyword     string         `json:"keyword"`
	Occurrences int            `json:"occurrences"`
	Severity    model.Severity `json:"severity"`
	Trend       model.Trend    `json:"trend"`
	Summary     string         `json:"summary"`
}

// PatternDetection looks for recurring symptoms across the recent
// journal window. Significant patterns fan out to the follow-up agent.
type PatternDetection struct {
	deps       Deps
	model      string
	maxRuntime time.Duration
	costPerRun float64
	window     time.Duration
	maxLogs    int
	ttl        time.Duration
}

// NewPatternDetection creates the pattern detection agent. Its cache
// TTL is shorter than the other agents' because new journal entries
// shift pattern occurrence counts quickly.
func NewPatternDetection(deps Deps) *PatternDetection {
	deps.normalize()
	return &PatternDetection{
		deps:       deps,
		model:      "journal-analyze-1",
		maxRuntime: 20 * time.Second,
		costPerRun: 0.02,
		window:     30 * 24 * time.Hour,
		maxLogs:    50,
		ttl:        12 * time.Hour,
	}
}

func (a *PatternDetection) ID() string                { return PatternDetectionID }
func (a *PatternDetection) Name() string              { return "Pattern Detection" }
func (a *PatternDetection) MaxRuntime() time.Duration { return a.maxRuntime }
func (a *PatternDetection) CostPerRun() float64       { return a.costPerRun }

// Execute analyzes the recent journal window for recurring patterns.
func (a *PatternDetection) Execute(ctx context.Context, inv *agent.Invocation) (*agent.Outcome, error) {
	now := a.deps.Now()

	var logs []model.SymptomLog
	if _, err := store.GetJSON(ctx, a.deps.Store, model.KeySymptomLogs, &logs); err != nil {
		return nil, err
	}
	window := recentWindow(logs, func(l model.SymptomLog) time.Time { return l.LoggedAt }, now, a.window, a.maxLogs)
	if len(window) < 2 {
		return &agent.Outcome{NeedsData: true, Data: map[string]any{"reason": "not enough logs for pattern detection"}}, nil
	}

	inputs := make([]cache.Input, len(window))
	for i, l := range window {
		inputs[i] = cache.Input{ID: l.ID, At: l.LoggedAt}
	}
	fp := cache.Fingerprint(PatternDetectionID, inputs)
	if hit, ok := a.deps.Cache.Lookup(fp); ok {
		if parsed, ok := hit.(patternResponse); ok {
			return a.apply(ctx, inv, parsed, now, 0)
		}
	}

	parsed, cost := a.detect(ctx, window)
	a.deps.Cache.Store(fp, parsed, a.ttl)
	return a.apply(ctx, inv, parsed, now, cost)
}

func (a *PatternDetection) detect(ctx context.Context, window []model.SymptomLog) (patternResponse, float64) {
	var sb strings.Builder
	for _, l := range window {
		fmt.Fprintf(&sb, "- [%s] (%s) %s\n", l.LoggedAt.Format("2006-01-02"), l.Severity, l.Description)
	}

	resp, err := a.deps.Inference.Complete(ctx, inference.Request{
		Model:       a.model,
		Prompt:      fmt.Sprintf(patternPrompt, sb.String()),
		MaxTokens:   512,
		Temperature: 0.2,
	})
	if err != nil {
		a.deps.Logger.Warn("pattern detection degraded to keyword counting", "error", err)
		return a.fallback(window), 0
	}

	var parsed patternResponse
	if err := inference.DecodeStrict(resp.Text, &parsed); err != nil {
		a.deps.Logger.Warn("pattern response unparseable, using fallback", "error", err)
		return a.fallback(window), resp.Cost
	}
	return parsed, resp.Cost
}

// fallback counts keyword recurrence across the window without any
// inference call. Trend is reported stable; a deterministic count has
// no basis for direction.
func (a *PatternDetection) fallback(window []model.SymptomLog) patternResponse {
	type tally struct {
		count    int
		severity model.Severity
	}
	counts := make(map[string]*tally)
	for _, l := range window {
		for _, kw := range l.Keywords {
			kw = strings.ToLower(kw)
			t, ok := counts[kw]
			if !ok {
				t = &tally{}
				counts[kw] = t
			}
			t.count++
			if model.SeverityRank(l.Severity) > model.SeverityRank(t.severity) {
				t.severity = l.Severity
			}
		}
	}

	var out patternResponse
	for kw, t := range counts {
		if t.count < 2 {
			continue
		}
		out.Patterns = append(out.Patterns, patternItem{
			Keyword:     kw,
			Occurrences: t.count,
			Severity:    t.severity,
			Trend:       model.TrendStable,
			Summary:     fmt.Sprintf("%q appeared in %d recent entries", kw, t.count),
		})
	}
	return out
}

func significant(p patternItem) bool {
	return p.Occurrences > significantOccurrences ||
		p.Severity == model.SeveritySevere ||
		p.Trend == model.TrendWorsening
}

func (a *PatternDetection) apply(ctx context.Context, inv *agent.Invocation, parsed patternResponse, now time.Time, cost float64) (*agent.Outcome, error) {
	if !inv.StillCurrent() {
		return nil, errors.New("agents: pattern detection superseded, discarding result")
	}

	var existing []model.PatternAnalysis
	if _, err := store.GetJSON(ctx, a.deps.Store, model.KeyPatternAnalyses, &existing); err != nil {
		return nil, err
	}
	byKeyword := make(map[string]int, len(existing))
	for i, e := range existing {
		byKeyword[strings.ToLower(e.Keyword)] = i
	}

	outcome := &agent.Outcome{Cost: cost, Data: map[string]any{"patterns": len(parsed.Patterns)}}
	significantCount := 0
	for _, p := range parsed.Patterns {
		analysis := model.PatternAnalysis{
			ID:          uuid.New(),
			Summary:     p.Summary,
			Keyword:     p.Keyword,
			Occurrences: p.Occurrences,
			Severity:    p.Severity,
			Trend:       p.Trend,
			Significant: significant(p),
			AnalyzedAt:  now,
		}
		// One analysis per keyword: re-detection updates in place but
		// keeps the original ID so follow-up coverage tracking holds.
		// An unchanged analysis also keeps its timestamp, so downstream
		// fingerprints stay stable across replayed results.
		if i, ok := byKeyword[strings.ToLower(p.Keyword)]; ok {
			prev := existing[i]
			analysis.ID = prev.ID
			if prev.Occurrences == analysis.Occurrences && prev.Severity == analysis.Severity &&
				prev.Trend == analysis.Trend && prev.Summary == analysis.Summary {
				analysis.AnalyzedAt = prev.AnalyzedAt
			}
			existing[i] = analysis
		} else {
			existing = append(existing, analysis)
		}

		if analysis.Significant {
			significantCount++
			outcome.Messages = append(outcome.Messages, model.NewMessage(
				PatternDetectionID, FollowUpID, model.MessagePatternSignificant, model.PriorityHigh,
				map[string]any{
					"pattern_id": analysis.ID.String(),
					"keyword":    analysis.Keyword,
					"summary":    analysis.Summary,
				},
			))
		}
	}
	if err := store.SetJSON(ctx, a.deps.Store, model.KeyPatternAnalyses, existing); err != nil {
		return nil, err
	}
	outcome.Data["significant"] = significantCount
	return outcome, nil
}
