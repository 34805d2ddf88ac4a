package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/store"
)

// FollowUp decides when to proactively re-engage the user. It is the
// only domain agent that never calls the inference service: every
// decision is a predicate over local records, so it is free and fast.
type FollowUp struct {
	deps       Deps
	maxRuntime time.Duration
}

// NewFollowUp creates the follow-up agent.
func NewFollowUp(deps Deps) *FollowUp {
	deps.normalize()
	return &FollowUp{
		deps:       deps,
		maxRuntime: 5 * time.Second,
	}
}

func (a *FollowUp) ID() string                { return FollowUpID }
func (a *FollowUp) Name() string              { return "Follow-up Monitor" }
func (a *FollowUp) MaxRuntime() time.Duration { return a.maxRuntime }
func (a *FollowUp) CostPerRun() float64       { return 0 }

// Execute handles the triggering event plus any pending messages from
// sibling agents. Each significant pattern yields exactly one follow-up
// record and one notification; repeats only happen through explicit
// escalation.
func (a *FollowUp) Execute(ctx context.Context, inv *agent.Invocation) (*agent.Outcome, error) {
	now := a.deps.Now()

	var followUps []model.FollowUp
	if _, err := store.GetJSON(ctx, a.deps.Store, model.KeyFollowUps, &followUps); err != nil {
		return nil, err
	}

	sent := 0
	dirty := false

	handle := func(kind string, payload map[string]any, priority model.Priority) error {
		switch kind {
		case model.EventSignificantPattern, model.MessagePatternSignificant:
			// Pattern alerts carry a pattern_id, severe-entry alerts a
			// log_id. Either way the source record id keys the
			// one-notification guarantee.
			sourceID, _ := uuid.Parse(str(payload, "pattern_id"))
			if sourceID == uuid.Nil {
				sourceID, _ = uuid.Parse(str(payload, "log_id"))
			}
			if sourceID != uuid.Nil && hasFollowUpFor(followUps, sourceID) {
				return nil
			}
			keyword := str(payload, "keyword")
			reason := fmt.Sprintf("Recurring pattern detected: %s", keyword)
			if keyword == "" {
				reason = "A severe symptom entry needs your attention"
			}
			f := model.FollowUp{
				ID:        uuid.New(),
				TriggerID: model.TriggerSignificantPattern,
				PatternID: sourceID,
				Reason:    reason,
				Priority:  priority,
				SentAt:    now,
			}
			if err := a.deps.Notifier.Send(ctx, "Pattern worth a look", reason, payload); err != nil {
				a.deps.Logger.Warn("follow-up notification failed", "error", err)
			}
			followUps = append(followUps, f)
			sent++
			dirty = true

		case model.EventInactivityDetected:
			for _, f := range followUps {
				if f.TriggerID == model.TriggerInactivity && !f.Acknowledged {
					return nil // an open nudge already exists
				}
			}
			reason := "No journal entries recently. A quick check-in keeps your patterns accurate"
			f := model.FollowUp{
				ID:        uuid.New(),
				TriggerID: model.TriggerInactivity,
				Reason:    reason,
				Priority:  priority,
				SentAt:    now,
			}
			if err := a.deps.Notifier.Send(ctx, "How are you feeling?", reason, payload); err != nil {
				a.deps.Logger.Warn("follow-up notification failed", "error", err)
			}
			followUps = append(followUps, f)
			sent++
			dirty = true

		case model.EventFollowUpDue:
			id, err := uuid.Parse(str(payload, "follow_up_id"))
			if err != nil {
				return fmt.Errorf("agents: follow-up escalation without id: %w", err)
			}
			for i := range followUps {
				if followUps[i].ID != id || followUps[i].Escalated {
					continue
				}
				followUps[i].Escalated = true
				followUps[i].Priority = priority
				if err := a.deps.Notifier.Send(ctx, "Still worth a look", followUps[i].Reason,
					map[string]any{"follow_up_id": id.String(), "escalated": true}); err != nil {
					a.deps.Logger.Warn("follow-up notification failed", "error", err)
				}
				sent++
				dirty = true
			}
		}
		return nil
	}

	if inv.Event != nil {
		if err := handle(inv.Event.Type, inv.Event.Payload, inv.Event.Priority); err != nil {
			return nil, err
		}
	}
	for _, msg := range inv.Messages {
		if err := handle(msg.Type, msg.Payload, msg.Priority); err != nil {
			return nil, err
		}
	}

	if dirty {
		if !inv.StillCurrent() {
			return nil, fmt.Errorf("agents: follow-up run superseded, discarding result")
		}
		if err := store.SetJSON(ctx, a.deps.Store, model.KeyFollowUps, followUps); err != nil {
			return nil, err
		}
	}

	return &agent.Outcome{Data: map[string]any{"notifications_sent": sent}}, nil
}

func hasFollowUpFor(followUps []model.FollowUp, patternID uuid.UUID) bool {
	for _, f := range followUps {
		if f.PatternID == patternID {
			return true
		}
	}
	return false
}

func str(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}
