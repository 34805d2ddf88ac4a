package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/cache"
	"github.com/halcyon-health/pulse/internal/inference"
	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/store"
)

const recommendationPrompt = `You are a health journaling assistant. Given the detected symptom
patterns below, suggest concrete lifestyle recommendations. Respond with JSON only:
{"recommendations": [{"title": "...", "body": "...", "category": "sleep|exercise|diet|stress|medical|general",
"priority": "low|medium|high|urgent", "action_items": ["..."]}]}

Patterns:
%s`

// maxActiveRecommendations bounds user-facing volume: only the top
// scored candidates of each generation pass are persisted.
const maxActiveRecommendations = 3

// categoryWeights bias ranking toward categories with higher expected
// impact for journaling users.
var categoryWeights = map[string]int{
	"medical":  4,
	"sleep":    3,
	"stress":   3,
	"exercise": 2,
	"diet":     2,
	"general":  1,
}

type recommendationResponse struct {
	Recommendations []recommendationItem `json:"recommendations"`
}

type recommendationItem struct {
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Category    string         `json:"category"`
	Priority    model.Priority `json:"priority"`
	ActionItems []string       `json:"action_items"`
}

// Recommendation turns significant patterns into a small, ranked set of
// user-facing suggestions, deduplicated by title against the active
// ones.
type Recommendation struct {
	deps       Deps
	model      string
	maxRuntime time.Duration
	costPerRun float64
	ttl        time.Duration
}

// NewRecommendation creates the recommendation agent.
func NewRecommendation(deps Deps) *Recommendation {
	deps.normalize()
	return &Recommendation{
		deps:       deps,
		model:      "journal-recommend-1",
		maxRuntime: 20 * time.Second,
		costPerRun: 0.02,
		ttl:        24 * time.Hour,
	}
}

func (a *Recommendation) ID() string                { return RecommendationID }
func (a *Recommendation) Name() string              { return "Recommendation" }
func (a *Recommendation) MaxRuntime() time.Duration { return a.maxRuntime }
func (a *Recommendation) CostPerRun() float64       { return a.costPerRun }

// Execute generates recommendations from the currently significant
// patterns.
func (a *Recommendation) Execute(ctx context.Context, inv *agent.Invocation) (*agent.Outcome, error) {
	now := a.deps.Now()

	var analyses []model.PatternAnalysis
	if _, err := store.GetJSON(ctx, a.deps.Store, model.KeyPatternAnalyses, &analyses); err != nil {
		return nil, err
	}
	var significant []model.PatternAnalysis
	for _, p := range analyses {
		if p.Significant {
			significant = append(significant, p)
		}
	}
	if len(significant) == 0 {
		return &agent.Outcome{NeedsData: true, Data: map[string]any{"reason": "no significant patterns"}}, nil
	}

	inputs := make([]cache.Input, len(significant))
	for i, p := range significant {
		inputs[i] = cache.Input{ID: p.ID, At: p.AnalyzedAt}
	}
	fp := cache.Fingerprint(RecommendationID, inputs)
	if hit, ok := a.deps.Cache.Lookup(fp); ok {
		if parsed, ok := hit.(recommendationResponse); ok {
			return a.apply(ctx, inv, parsed, now, 0)
		}
	}

	parsed, cost := a.generate(ctx, significant)
	a.deps.Cache.Store(fp, parsed, a.ttl)
	return a.apply(ctx, inv, parsed, now, cost)
}

func (a *Recommendation) generate(ctx context.Context, patterns []model.PatternAnalysis) (recommendationResponse, float64) {
	var sb strings.Builder
	for _, p := range patterns {
		fmt.Fprintf(&sb, "- %s: %d occurrences, %s, trend %s\n", p.Keyword, p.Occurrences, p.Severity, p.Trend)
	}

	resp, err := a.deps.Inference.Complete(ctx, inference.Request{
		Model:       a.model,
		Prompt:      fmt.Sprintf(recommendationPrompt, sb.String()),
		MaxTokens:   768,
		Temperature: 0.4,
	})
	if err != nil {
		a.deps.Logger.Warn("recommendation generation degraded to template", "error", err)
		return a.fallback(patterns), 0
	}

	var parsed recommendationResponse
	if err := inference.DecodeStrict(resp.Text, &parsed); err != nil {
		a.deps.Logger.Warn("recommendation response unparseable, using fallback", "error", err)
		return a.fallback(patterns), resp.Cost
	}
	return parsed, resp.Cost
}

// fallback produces one templated tracking suggestion for the worst
// pattern. Deliberately conservative: no medical advice without the
// inference service.
func (a *Recommendation) fallback(patterns []model.PatternAnalysis) recommendationResponse {
	worst := patterns[0]
	for _, p := range patterns[1:] {
		if model.SeverityRank(p.Severity) > model.SeverityRank(worst.Severity) ||
			(model.SeverityRank(p.Severity) == model.SeverityRank(worst.Severity) && p.Occurrences > worst.Occurrences) {
			worst = p
		}
	}
	return recommendationResponse{Recommendations: []recommendationItem{{
		Title:    fmt.Sprintf("Keep tracking %q", worst.Keyword),
		Body:     fmt.Sprintf("%q has recurred %d times recently. Detailed entries help spot what drives it.", worst.Keyword, worst.Occurrences),
		Category: "general",
		Priority: model.PriorityMedium,
		ActionItems: []string{
			"Note time of day and context in each entry",
			"Log severity consistently",
		},
	}}}
}

// score ranks a candidate: priority tier dominates, then category
// weight, then concreteness (number of action items).
func score(item recommendationItem) int {
	return model.PriorityRank(item.Priority)*3 + categoryWeights[item.Category] + len(item.ActionItems)
}

func (a *Recommendation) apply(ctx context.Context, inv *agent.Invocation, parsed recommendationResponse, now time.Time, cost float64) (*agent.Outcome, error) {
	if !inv.StillCurrent() {
		return nil, errors.New("agents: recommendation generation superseded, discarding result")
	}

	var existing []model.Recommendation
	if _, err := store.GetJSON(ctx, a.deps.Store, model.KeyRecommendations, &existing); err != nil {
		return nil, err
	}
	activeTitles := make(map[string]bool)
	for _, r := range existing {
		if r.Active() {
			activeTitles[strings.ToLower(r.Title)] = true
		}
	}

	// Dedup against active records, then rank and keep the top K.
	var candidates []recommendationItem
	for _, item := range parsed.Recommendations {
		if item.Title == "" || activeTitles[strings.ToLower(item.Title)] {
			continue
		}
		candidates = append(candidates, item)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return score(candidates[i]) > score(candidates[j])
	})
	if len(candidates) > maxActiveRecommendations {
		candidates = candidates[:maxActiveRecommendations]
	}

	for _, item := range candidates {
		existing = append(existing, model.Recommendation{
			ID:          uuid.New(),
			Title:       item.Title,
			Body:        item.Body,
			Category:    item.Category,
			Priority:    item.Priority,
			ActionItems: item.ActionItems,
			Status:      model.RecommendationActive,
			CreatedAt:   now,
		})
	}
	if len(candidates) > 0 {
		if err := store.SetJSON(ctx, a.deps.Store, model.KeyRecommendations, existing); err != nil {
			return nil, err
		}
	}

	return &agent.Outcome{
		Cost: cost,
		Data: map[string]any{
			"generated": len(parsed.Recommendations),
			"persisted": len(candidates),
		},
	}, nil
}
