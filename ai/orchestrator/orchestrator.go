package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/minseo-dev/libra/ai/agent"
	"github.com/minseo-dev/libra/ai/core/llm"
	"github.com/minseo-dev/libra/ai/metrics"
	"github.com/minseo-dev/libra/store"
)

// AgentCaller is the outbound tool/agent boundary.
type AgentCaller interface {
	PlanAndRun(ctx context.Context, payload *agent.Payload) (*agent.Result, error)
}

// ChatStore is the narrow store surface the orchestrator consumes.
type ChatStore interface {
	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)
	ListChatMessages(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error)
	GetConversationSummary(ctx context.Context, find *store.FindConversationSummary) (*store.ConversationSummary, error)
}

// Orchestrator is the dependency-injected entry point. It holds no mutable
// state; every collaborator is bound once at construction.
type Orchestrator struct {
	llm          llm.Service
	agent        AgentCaller
	store        ChatStore
	metrics      *metrics.PrometheusExporter
	cfg          Config
	agentEnabled bool
}

// Options configures construction. Metrics may be nil.
type Options struct {
	LLM          llm.Service
	Agent        AgentCaller
	Store        ChatStore
	Metrics      *metrics.PrometheusExporter
	Config       Config
	AgentEnabled bool
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg.MaxTasks <= 0 {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		llm:          opts.LLM,
		agent:        opts.Agent,
		store:        opts.Store,
		metrics:      opts.Metrics,
		cfg:          cfg,
		agentEnabled: opts.AgentEnabled && opts.Agent != nil,
	}
}

// Handle routes one request end to end and returns the answer with routing
// metadata. It never returns a user-visible raw error: failures degrade to
// polite fallback sentences on an error route.
func (o *Orchestrator) Handle(ctx context.Context, in *Input) (*Output, error) {
	intent := Classify(in.Query, in.UserID != "")
	slog.Info("orchestrator: intent classified",
		"user_id", in.UserID,
		"conversation_id", in.ConversationID,
		"kind", intent.Kind,
		"reason", intent.Reason,
		"slots", len(intent.UserSlots),
		"calc", intent.WantsCalculation,
		"external", intent.ExternalEntities,
	)

	// Self-metric override: a logged-in user asking about their own known
	// metric goes straight to the personal-data path, regardless of how the
	// broader classification or compound heuristic would route it.
	if in.UserID != "" {
		slots := ExtractSlotsLight(in.Query)
		if slots.Owner == OwnerSelf && metricLabels[slots.Metric] != "" {
			slog.Info("orchestrator: self-metric override", "metric", slots.Metric)
			body, _, err := o.answerPersonalData(ctx, in.UserID, in.Query, in.Overrides)
			if err != nil {
				return o.failedOutput(intent), nil
			}
			return &Output{
				Answer: body,
				Route:  RoutePersonalData,
				Metadata: map[string]any{
					"intent":   intentMeta(intent),
					"override": "self_metric",
				},
			}, nil
		}
	}

	// Compound plan path.
	if o.agentEnabled && ShouldUseGraph(in.Query, o.cfg) {
		if out, ok := o.handleGraph(ctx, in, intent); ok {
			return out, nil
		}
		// Plan failure falls through to the single-clause path.
	}

	switch intent.Kind {
	case IntentGuestChat:
		body, err := o.answerGuestChat(ctx, in.Query, in.Overrides)
		if err != nil {
			return o.failedOutput(intent), nil
		}
		return &Output{Answer: body, Route: RouteGuestChat, Metadata: map[string]any{"intent": intentMeta(intent)}}, nil

	case IntentPersonalData:
		body, _, err := o.answerPersonalData(ctx, in.UserID, in.Query, in.Overrides)
		if err != nil {
			return o.failedOutput(intent), nil
		}
		return &Output{Answer: body, Route: RoutePersonalData, Metadata: map[string]any{"intent": intentMeta(intent)}}, nil

	case IntentGeneralChat:
		body, err := o.answerUserChat(ctx, in, in.Query, in.Overrides)
		if err != nil {
			return o.failedOutput(intent), nil
		}
		return &Output{Answer: body, Route: RouteGeneralChat, Metadata: map[string]any{"intent": intentMeta(intent)}}, nil
	}

	return o.handleExternalTool(ctx, in, intent), nil
}

// handleGraph plans and runs the compound path. The second return value is
// false when planning or execution could not produce an answer, in which
// case the caller falls back to single-clause handling.
func (o *Orchestrator) handleGraph(ctx context.Context, in *Input, intent Intent) (*Output, bool) {
	tasks := PlanTasks(in.Query, in.UserID, o.cfg)
	if len(tasks) == 0 {
		return nil, false
	}
	if o.metrics != nil {
		o.metrics.RecordPlan(len(tasks))
	}

	agentHeavy := false
	for _, t := range tasks {
		if t.Executor == ExecutorRetrieval {
			agentHeavy = true
			break
		}
	}
	opts := scaledOptions(in.Overrides, len(tasks), agentHeavy)

	results := o.runPlan(ctx, in, tasks, opts)
	answer := Compose(results)

	executors := make([]string, len(tasks))
	for i, t := range tasks {
		executors[i] = string(t.Executor)
	}
	slog.Info("orchestrator: graph path completed",
		"task_count", len(tasks),
		"executors", executors,
	)

	return &Output{
		Answer: answer,
		Route:  RouteGraph,
		Metadata: map[string]any{
			"intent": intentMeta(intent),
			"graph": map[string]any{
				"task_count": len(tasks),
				"executors":  executors,
			},
		},
	}, true
}

// handleExternalTool serves the single-clause needs_external_tool path.
func (o *Orchestrator) handleExternalTool(ctx context.Context, in *Input, intent Intent) *Output {
	meta := map[string]any{"intent": intentMeta(intent)}

	if !o.agentEnabled {
		slog.Info("orchestrator: agent disabled, apologizing")
		return &Output{Answer: msgAgentFailed, Route: RouteAgentDisabled, Metadata: meta}
	}

	payload := MakeAgentPayload(intent, in.Query, in.UserID, in.ConversationID)
	result, err := o.callAgent(ctx, payload)
	if err != nil {
		slog.Error("orchestrator: agent call failed", "error", err)
		return &Output{Answer: msgAgentFailed, Route: RouteAgentCallFailed, Metadata: meta}
	}

	switch result.Kind {
	case agent.KindMatches:
		vars := o.lookupPromptVars(ctx, in.UserID)
		answer, err := o.synthesizeFromMatches(ctx, in.Query, result.Matches, in.Overrides, vars)
		if err != nil {
			return &Output{Answer: msgAgentFailed, Route: RouteAgentCallFailed, Metadata: meta}
		}
		return &Output{Answer: answer, Route: RouteRetrievalSynthesis, Metadata: meta}

	case agent.KindStructured:
		text, _ := renderStructuredMetric(result.Structured, ExtractSlotsLight(in.Query))
		return &Output{Answer: text, Route: RouteRetrievalStructured, Metadata: meta}

	case agent.KindText:
		return &Output{Answer: result.Text, Route: RouteAgentText, Metadata: meta}
	}

	return &Output{Answer: msgNothingFound, Route: RouteRetrievalEmpty, Metadata: meta}
}

func (o *Orchestrator) failedOutput(intent Intent) *Output {
	return &Output{
		Answer:   msgTaskFailed,
		Route:    RouteAgentCallFailed,
		Metadata: map[string]any{"intent": intentMeta(intent)},
	}
}

func (o *Orchestrator) callAgent(ctx context.Context, payload *agent.Payload) (*agent.Result, error) {
	start := time.Now()
	result, err := o.agent.PlanAndRun(ctx, payload)
	if o.metrics != nil {
		errType := ""
		if err != nil {
			errType = "call_failed"
		}
		o.metrics.RecordAgentCall(time.Since(start), err == nil, errType)
	}
	return result, err
}

func (o *Orchestrator) recordLLM(stats *llm.CallStats) {
	if o.metrics == nil || stats == nil {
		return
	}
	o.metrics.RecordLLMTokens("default", "prompt", stats.PromptTokens)
	o.metrics.RecordLLMTokens("default", "completion", stats.CompletionTokens)
}

// intentMeta flattens an Intent for response metadata.
func intentMeta(intent Intent) map[string]any {
	slots := make([]map[string]any, 0, len(intent.UserSlots))
	for _, s := range intent.UserSlots {
		slots = append(slots, map[string]any{
			"metric": string(s.Metric),
			"grade":  s.Grade,
			"owner":  string(s.Owner),
		})
	}
	return map[string]any{
		"kind":              string(intent.Kind),
		"reason":            intent.Reason,
		"capability_hints":  intent.CapabilityHints,
		"user_slots":        slots,
		"wants_calculation": intent.WantsCalculation,
		"external_entities": intent.ExternalEntities,
	}
}
