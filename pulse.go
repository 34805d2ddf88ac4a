// Package pulse is the public API for embedding the Pulse agent
// orchestration core, the autonomous analysis layer of a single-user
// health-journaling application.
//
// The presentation layer constructs one App per session and drives it
// through a handful of calls:
//
//	app, err := pulse.New(
//	    pulse.WithLogger(logger),
//	    pulse.WithNotifier(pushBridge),
//	)
//	if err != nil { ... }
//	if err := app.Initialize(ctx); err != nil { ... }
//	defer app.Shutdown(ctx)
//
//	app.LogSymptom(ctx, "dull headache since lunch", pulse.SeverityModerate)
//	app.ExecuteBackgroundTask(ctx) // from the OS background hook
//
// The import graph enforces a strict no-cycle rule: pulse (root)
// imports internal/*, but internal/* never imports pulse. Public types
// are standalone structs; the adapters between the two sides live here
// because this is the only file that sees both.
package pulse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/halcyon-health/pulse/internal/agent"
	"github.com/halcyon-health/pulse/internal/agents"
	"github.com/halcyon-health/pulse/internal/cache"
	"github.com/halcyon-health/pulse/internal/config"
	"github.com/halcyon-health/pulse/internal/inference"
	"github.com/halcyon-health/pulse/internal/model"
	"github.com/halcyon-health/pulse/internal/orchestrator"
	"github.com/halcyon-health/pulse/internal/ratelimit"
	"github.com/halcyon-health/pulse/internal/store"
	"github.com/halcyon-health/pulse/internal/telemetry"
	"github.com/halcyon-health/pulse/internal/trigger"
)

// App is the orchestration core lifecycle. Construct with New, start
// with Initialize, stop with Shutdown. App has no public fields.
type App struct {
	cfg          config.Config
	logger       *slog.Logger
	st           store.Store
	sqlite       *store.SQLite // nil when a custom store is injected
	limiter      ratelimit.Limiter
	orch         *orchestrator.Orchestrator
	cancelLoop   context.CancelFunc
	otelShutdown telemetry.Shutdown
	now          func() time.Time
	version      string
}

// New builds the orchestration core: record store, inference client,
// result cache, trigger evaluator, and the four domain agents, all
// wired into one orchestrator. It does NOT start any goroutines; call
// Initialize.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := o.now
	if now == nil {
		now = time.Now
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	// Load .env if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	if o.background > 0 {
		cfg.BackgroundBudget = o.background
	}

	logger.Info("pulse starting", "version", version)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	app := &App{
		cfg:          cfg,
		logger:       logger,
		otelShutdown: otelShutdown,
		now:          now,
		version:      version,
	}

	// Record store: injected, or the on-device sqlite database.
	if o.store != nil {
		app.st = o.store
	} else {
		sq, err := store.OpenSQLite(context.Background(), cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		app.sqlite = sq
		app.st = sq
	}

	// Inference service: injected, or the built-in HTTP client behind
	// a local token bucket.
	var svc inference.Service
	if o.inference != nil {
		svc = inferenceAdapter{o.inference}
		app.limiter = ratelimit.NoopLimiter{}
	} else {
		if cfg.InferenceRate > 0 {
			app.limiter = ratelimit.NewMemoryLimiter(cfg.InferenceRate, cfg.InferenceBurst)
		} else {
			app.limiter = ratelimit.NoopLimiter{}
		}
		svc = inference.NewClient(cfg.InferenceURL, cfg.InferenceAPIKey, app.limiter, logger)
	}

	// Triggers for autonomous re-engagement.
	evaluator := trigger.NewEvaluator(logger)
	evaluator.Register(trigger.Definition{
		Trigger: model.Trigger{
			ID:        model.TriggerInactivity,
			Domain:    "journal",
			Condition: fmt.Sprintf("no symptom log in %s", cfg.InactivityThreshold),
			Priority:  model.PriorityMedium,
			Active:    true,
		},
		EventType: model.EventInactivityDetected,
		Predicate: trigger.Inactivity(app.st, cfg.InactivityThreshold),
	})
	evaluator.Register(trigger.Definition{
		Trigger: model.Trigger{
			ID:        model.TriggerSignificantPattern,
			Domain:    "patterns",
			Condition: "significant pattern without a follow-up",
			Priority:  model.PriorityHigh,
			Active:    true,
		},
		EventType: model.EventSignificantPattern,
		Predicate: trigger.SignificantPattern(app.st),
	})
	evaluator.Register(trigger.Definition{
		Trigger: model.Trigger{
			ID:        model.TriggerFollowUpEscalation,
			Domain:    "follow_ups",
			Condition: fmt.Sprintf("follow-up unacknowledged for %s", cfg.EscalationGrace),
			Priority:  model.PriorityHigh,
			Active:    true,
		},
		EventType: model.EventFollowUpDue,
		Predicate: trigger.FollowUpEscalation(app.st, cfg.EscalationGrace),
	})

	app.orch = orchestrator.New(orchestrator.Config{
		EventCapacity:    cfg.EventCapacity,
		MessageCapacity:  cfg.MessageCapacity,
		BackgroundBudget: cfg.BackgroundBudget,
		SafetyMargin:     cfg.SafetyMargin,
	}, evaluator, logger, now)

	for _, h := range o.hooks {
		app.orch.AddHook(hookAdapter(h))
	}

	// Domain agents.
	deps := agents.Deps{
		Store:     app.st,
		Inference: svc,
		Cache:     cache.New(cache.DefaultTTL),
		Notifier:  o.notifier,
		Logger:    logger,
		Now:       now,
	}
	app.orch.Register(agents.NewSymptomAnalysis(deps),
		[]string{model.EventNewSymptomLog, model.EventAnalysisRequested})
	app.orch.Register(agents.NewPatternDetection(deps),
		[]string{model.EventNewSymptomLog, model.EventAnalysisRequested})
	app.orch.Register(agents.NewRecommendation(deps),
		[]string{model.EventSignificantPattern, model.EventAnalysisRequested})
	app.orch.Register(agents.NewFollowUp(deps),
		[]string{model.EventSignificantPattern, model.EventInactivityDetected, model.EventFollowUpDue})

	return app, nil
}

// Initialize starts the bus consumer. Events enqueued before Initialize
// are retained and drained on the first pass.
func (a *App) Initialize(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelLoop = cancel
	a.orch.Start(loopCtx)
	a.logger.Info("pulse initialized")
	return nil
}

// Shutdown stops the consumer, waits for the in-flight pass, and
// releases resources. In-flight agent runs settle before return.
func (a *App) Shutdown(ctx context.Context) error {
	a.orch.Stop()
	if a.cancelLoop != nil {
		a.cancelLoop()
	}
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			return fmt.Errorf("telemetry shutdown: %w", err)
		}
	}
	a.logger.Info("pulse stopped")
	return nil
}

// RegisterAgent adds an externally supplied agent subscribed to the
// given event types.
func (a *App) RegisterAgent(ag Agent, eventTypes []string) {
	a.orch.Register(externalTask{ag}, eventTypes)
}

// UnregisterAgent marks an agent inactive and removes it from event
// routing. In-flight work is not interrupted.
func (a *App) UnregisterAgent(id string) {
	a.orch.Unregister(id)
}

// TriggerEvent enqueues an event for the next drain pass. On queue
// overflow the oldest pending events are evicted.
func (a *App) TriggerEvent(ev Event) {
	priority := model.Priority(ev.Priority)
	if model.PriorityRank(priority) == 0 {
		priority = model.PriorityMedium
	}
	a.orch.EnqueueEvent(model.NewEvent(ev.Type, priority, ev.Payload))
}

// ExecuteAgent invokes one agent directly, bypassing event matching.
// The idle precondition and timeout race still apply.
func (a *App) ExecuteAgent(ctx context.Context, id string) (AgentRunResult, error) {
	res, err := a.orch.ExecuteAgent(ctx, id)
	if err != nil {
		return AgentRunResult{}, err
	}
	return toPublicResult(res), nil
}

// ExecuteBackgroundTask runs one budgeted background pass: trigger
// evaluation, a drain, then sequential agent runs until the wall-clock
// budget (minus the safety margin) is spent.
func (a *App) ExecuteBackgroundTask(ctx context.Context) BackgroundReport {
	r := a.orch.RunBackgroundPass(ctx)
	return BackgroundReport{
		AgentsRun:      r.AgentsRun,
		AgentsSkipped:  r.AgentsSkipped,
		TriggersFired:  r.TriggersFired,
		Elapsed:        r.Elapsed,
		BudgetExceeded: r.BudgetExceeded,
	}
}

// SystemStatus reports agent counts, queue depth, and aggregate cost.
func (a *App) SystemStatus() SystemStatus {
	st := a.orch.Status()
	return SystemStatus{
		TotalAgents:      st.TotalAgents,
		ActiveAgents:     st.ActiveAgents,
		IdleAgents:       st.IdleAgents,
		ProcessingAgents: st.ProcessingAgents,
		PendingEvents:    st.PendingEvents,
		PendingMessages:  st.PendingMessages,
		DroppedEvents:    st.DroppedEvents,
		TotalCost:        st.TotalCost,
	}
}

// AllAgentStatus reports per-agent projections in registration order.
func (a *App) AllAgentStatus() []AgentStatus {
	sts := a.orch.AgentStatuses()
	out := make([]AgentStatus, len(sts))
	for i, st := range sts {
		out[i] = AgentStatus{
			ID:         st.ID,
			Name:       st.Name,
			State:      string(st.State),
			Active:     st.Active,
			LastRun:    st.LastRun,
			TotalCost:  st.TotalCost,
			Runs:       st.Runs,
			CostPerRun: st.CostPerRun,
			MaxRuntime: st.MaxRuntime,
		}
	}
	return out
}

// TotalCost sums cumulative charged inference cost across all agents.
func (a *App) TotalCost() float64 {
	return a.orch.TotalCost()
}

// LogSymptom appends a journal entry and emits the new_symptom_log
// event so the analysis agents pick it up. Returns the entry id.
func (a *App) LogSymptom(ctx context.Context, description string, severity Severity) (string, error) {
	sev := model.Severity(severity)
	if model.SeverityRank(sev) == 0 {
		sev = model.SeverityModerate
	}

	var logs []model.SymptomLog
	if _, err := store.GetJSON(ctx, a.st, model.KeySymptomLogs, &logs); err != nil {
		return "", err
	}
	entry := model.SymptomLog{
		ID:          uuid.New(),
		Description: description,
		Severity:    sev,
		LoggedAt:    a.now().UTC(),
	}
	logs = append(logs, entry)
	if err := store.SetJSON(ctx, a.st, model.KeySymptomLogs, logs); err != nil {
		return "", err
	}

	a.orch.EnqueueEvent(model.NewEvent(model.EventNewSymptomLog, model.PriorityMedium,
		map[string]any{"log_id": entry.ID.String()}))
	return entry.ID.String(), nil
}

// ActiveRecommendations returns the currently active recommendations.
func (a *App) ActiveRecommendations(ctx context.Context) ([]Recommendation, error) {
	var recs []model.Recommendation
	if _, err := store.GetJSON(ctx, a.st, model.KeyRecommendations, &recs); err != nil {
		return nil, err
	}
	var out []Recommendation
	for _, r := range recs {
		if !r.Active() {
			continue
		}
		out = append(out, Recommendation{
			ID:          r.ID.String(),
			Title:       r.Title,
			Body:        r.Body,
			Category:    r.Category,
			Priority:    Priority(r.Priority),
			ActionItems: r.ActionItems,
			Status:      string(r.Status),
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

// AcknowledgeFollowUp marks a follow-up acknowledged, stopping any
// future escalation for it.
func (a *App) AcknowledgeFollowUp(ctx context.Context, id string) error {
	fid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("parse follow-up id: %w", err)
	}
	var followUps []model.FollowUp
	if _, err := store.GetJSON(ctx, a.st, model.KeyFollowUps, &followUps); err != nil {
		return err
	}
	for i := range followUps {
		if followUps[i].ID == fid {
			now := a.now().UTC()
			followUps[i].Acknowledged = true
			followUps[i].AcknowledgedAt = &now
			return store.SetJSON(ctx, a.st, model.KeyFollowUps, followUps)
		}
	}
	return fmt.Errorf("follow-up %s not found", id)
}

// inferenceAdapter bridges a public InferenceService into the internal
// contract.
type inferenceAdapter struct {
	svc InferenceService
}

func (ad inferenceAdapter) Complete(ctx context.Context, req inference.Request) (inference.Response, error) {
	resp, err := ad.svc.Complete(ctx, InferenceRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return inference.Response{}, err
	}
	return inference.Response{Text: resp.Text, Cost: resp.Cost, Tokens: resp.Tokens}, nil
}

// externalTask bridges a public Agent into the internal task contract.
type externalTask struct {
	ag Agent
}

func (t externalTask) ID() string                { return t.ag.ID() }
func (t externalTask) Name() string              { return t.ag.Name() }
func (t externalTask) MaxRuntime() time.Duration { return t.ag.MaxRuntime() }
func (t externalTask) CostPerRun() float64       { return t.ag.CostPerRun() }

func (t externalTask) Execute(ctx context.Context, _ *agent.Invocation) (*agent.Outcome, error) {
	out, err := t.ag.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &agent.Outcome{Data: out.Data, Cost: out.Cost}, nil
}

func hookAdapter(h AgentHook) orchestrator.Hook {
	return func(ctx context.Context, res agent.Result) {
		h.OnAgentRun(ctx, toPublicResult(res))
	}
}

func toPublicResult(res agent.Result) AgentRunResult {
	return AgentRunResult{
		AgentID: res.AgentID,
		Success: res.Success,
		Data:    res.Data,
		Error:   res.Error,
		Cost:    res.Cost,
		Runtime: res.Runtime,
	}
}
