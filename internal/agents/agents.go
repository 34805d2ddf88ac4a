// Package agents holds the concrete domain agents built on the
// agent.Task contract: symptom analysis, pattern detection,
// recommendation generation, and follow-up monitoring.
//
// Every costed agent follows the same shape: fetch a bounded recent
// window of records, check the result cache, on miss call the inference
// service, parse its response defensively (malformed output degrades to
// a deterministic fallback, never an escaping error), write results
// back, and emit a message downstream when the result is significant.
package agents

import (
	"log/slog"
	"time"

	"github.com/halcyon-health/pulse/internal/cache"
	"github.com/halcyon-health/pulse/internal/inference"
	"github.com/halcyon-health/pulse/internal/notify"
	"github.com/halcyon-health/pulse/internal/store"
)

// Agent identifiers, used for registration and message routing.
const (
	SymptomAnalysisID  = "symptom_analysis"
	PatternDetectionID = "pattern_detection"
	RecommendationID   = "recommendation"
	FollowUpID         = "follow_up"
)

// Deps are the collaborators shared by all domain agents.
type Deps struct {
	Store     store.Store
	Inference inference.Service
	Cache     *cache.Cache
	Notifier  notify.Notifier
	Logger    *slog.Logger
	// Now is a test seam; nil means time.Now.
	Now func() time.Time
}

func (d *Deps) normalize() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Cache == nil {
		d.Cache = cache.New(cache.DefaultTTL)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notifier == nil {
		d.Notifier = notify.LogNotifier{Logger: d.Logger}
	}
}

// recentWindow returns at most limit entries of items whose timestamp
// (per the at func) falls within span of now, newest last.
func recentWindow[T any](items []T, at func(T) time.Time, now time.Time, span time.Duration, limit int) []T {
	cutoff := now.Add(-span)
	var out []T
	for _, it := range items {
		if at(it).After(cutoff) {
			out = append(out, it)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
