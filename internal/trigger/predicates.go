package trigger

import (
	"context"
	"time"

	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/store"
)

// Defaults for the built-in triggers.
const (
	// DefaultInactivityThreshold is how long without a journal entry
	// before the user is nudged.
	DefaultInactivityThreshold = 3 * 24 * time.Hour
	// DefaultEscalationGrace is how long an unacknowledged follow-up
	// waits before being re-issued at elevated priority.
	DefaultEscalationGrace = 2 * 24 * time.Hour
)

// Inactivity fires when no symptom log exists within threshold of now.
// It holds off while a previous firing is younger than the threshold,
// so the user is nudged at most once per quiet period.
func Inactivity(s store.Store, threshold time.Duration) Predicate {
	return func(ctx context.Context, now, lastChecked time.Time) (Firing, error) {
		if !lastChecked.IsZero() && now.Sub(lastChecked) < threshold {
			return Firing{}, nil
		}

		var logs []model.SymptomLog
		if _, err := store.GetJSON(ctx, s, model.KeySymptomLogs, &logs); err != nil {
			return Firing{}, err
		}

		var latest time.Time
		for _, l := range logs {
			if l.LoggedAt.After(latest) {
				latest = l.LoggedAt
			}
		}
		if latest.IsZero() {
			// Never logged at all: nothing to re-engage about yet.
			return Firing{}, nil
		}
		if now.Sub(latest) < threshold {
			return Firing{}, nil
		}
		return Firing{
			Fire: true,
			Payload: map[string]any{
				"days_since_last_log": int(now.Sub(latest).Hours() / 24),
			},
		}, nil
	}
}

// SignificantPattern fires when a significant pattern analysis exists
// that no follow-up has been sent for yet. The follow-up agent records
// a FollowUp per pattern, which makes this predicate self-quenching.
func SignificantPattern(s store.Store) Predicate {
	return func(ctx context.Context, now, _ time.Time) (Firing, error) {
		var analyses []model.PatternAnalysis
		if _, err := store.GetJSON(ctx, s, model.KeyPatternAnalyses, &analyses); err != nil {
			return Firing{}, err
		}
		var followUps []model.FollowUp
		if _, err := store.GetJSON(ctx, s, model.KeyFollowUps, &followUps); err != nil {
			return Firing{}, err
		}

		covered := make(map[string]bool, len(followUps))
		for _, f := range followUps {
			covered[f.PatternID.String()] = true
		}
		for _, a := range analyses {
			if a.Significant && !covered[a.ID.String()] {
				return Firing{
					Fire: true,
					Payload: map[string]any{
						"pattern_id": a.ID.String(),
						"keyword":    a.Keyword,
					},
				}, nil
			}
		}
		return Firing{}, nil
	}
}

// FollowUpEscalation fires when a follow-up has gone unacknowledged for
// longer than grace. The re-issued event carries the follow-up's
// priority raised one tier (capped at urgent). This is the system's only
// retry-like behavior, and it is time-based, not count-based. The
// follow-up agent marks the record escalated, quenching the predicate.
func FollowUpEscalation(s store.Store, grace time.Duration) Predicate {
	return func(ctx context.Context, now, _ time.Time) (Firing, error) {
		var followUps []model.FollowUp
		if _, err := store.GetJSON(ctx, s, model.KeyFollowUps, &followUps); err != nil {
			return Firing{}, err
		}
		for _, f := range followUps {
			if f.Acknowledged || f.Escalated {
				continue
			}
			if now.Sub(f.SentAt) < grace {
				continue
			}
			return Firing{
				Fire:     true,
				Priority: model.Escalate(f.Priority),
				Payload: map[string]any{
					"follow_up_id": f.ID.String(),
					"reason":       f.Reason,
				},
			}, nil
		}
		return Firing{}, nil
	}
}
