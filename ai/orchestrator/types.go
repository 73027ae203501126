// Package orchestrator routes free-text requests to the right answering
// strategy: it classifies intent, segments compound questions, plans a
// dependency-aware task list, executes it, and composes one reply.
package orchestrator

import (
	"github.com/minseo-dev/libra/ai/core/llm"
)

// IntentKind is the coarse classification of one clause.
type IntentKind string

const (
	IntentGuestChat         IntentKind = "guest_chat"
	IntentPersonalData      IntentKind = "personal_data"
	IntentGeneralChat       IntentKind = "general_chat"
	IntentNeedsExternalTool IntentKind = "needs_external_tool"
)

// Owner marks whose data a slot refers to.
type Owner string

const (
	OwnerSelf  Owner = "self"
	OwnerOther Owner = "other"
)

// Metric is a canonical user-data metric name.
type Metric string

const (
	MetricPurchaseCost Metric = "purchase_cost"
	MetricLoans        Metric = "loans"
	MetricVisits       Metric = "visits"
	MetricScore        Metric = "score"
	MetricBudget       Metric = "budget"
)

// VarKey returns the short variable key a metric exposes to later tasks.
func (m Metric) VarKey() string {
	switch m {
	case MetricPurchaseCost:
		return "cps"
	case MetricLoans:
		return "lps"
	case MetricVisits:
		return "vps"
	case MetricScore:
		return "score"
	case MetricBudget:
		return "budget"
	}
	return string(m)
}

// UserDataSlot is one concrete fact the user is asking about.
type UserDataSlot struct {
	Metric Metric
	Grade  int // 1..4, 0 when absent
	Owner  Owner
}

// Intent is the classification result for one clause. It is produced once
// and never mutated; re-classification builds a new Intent.
type Intent struct {
	Kind             IntentKind
	Reason           string
	CapabilityHints  []string
	UserSlots        []UserDataSlot
	WantsCalculation bool
	ExternalEntities []string
	RAGGroupHint     string
}

// Slots is the light per-clause slot extraction consumed by the selector
// and planner.
type Slots struct {
	Owner  Owner  // self, other, or empty when unclear
	Entity string // external university name, if any
	Year   int
	Grade  int
	Metric string // short key: cps, lps, vps, score, budget
	Mode   string // data or guide
	Ref    string // same_year, previous_task, or empty
}

// ExecutorKind selects the answering strategy for a task.
type ExecutorKind string

const (
	ExecutorPersonalData ExecutorKind = "personal_data"
	ExecutorRetrieval    ExecutorKind = "retrieval"
	ExecutorGeneralChat  ExecutorKind = "general_chat"
	ExecutorCalculator   ExecutorKind = "calculator"
)

// Task is one planned unit of work. Deps may only reference earlier tasks
// in the same plan.
type Task struct {
	ID       string
	Text     string
	Intent   Intent
	Executor ExecutorKind
	Deps     []string
	Slots    Slots
}

// TaskResult carries a task's rendered output plus the numeric facts it
// exposes to later tasks. Variables never hold free text.
type TaskResult struct {
	ID        string
	Executor  ExecutorKind
	Output    string
	Variables map[string]float64
}

// Input is the request envelope for one orchestration.
type Input struct {
	Query          string
	UserID         string // empty for anonymous requests
	ConversationID int64
	Overrides      *llm.GenOptions
	FirstTurn      bool
}

// Output is the response envelope.
type Output struct {
	Answer   string
	Route    string
	Metadata map[string]any
}

// Route values returned in Output.Route.
const (
	RouteGuestChat           = "guest_chat"
	RoutePersonalData        = "personal_data"
	RouteGeneralChat         = "general_chat"
	RouteGraph               = "graph"
	RouteRetrievalSynthesis  = "retrieval_synthesis"
	RouteRetrievalStructured = "retrieval_structured"
	RouteRetrievalEmpty      = "retrieval_empty"
	RouteAgentText           = "agent_text"
	RouteAgentDisabled       = "agent_disabled"
	RouteAgentCallFailed     = "agent_call_failed"
)

// Config holds the tunable pipeline thresholds. The compound-vs-simple
// heuristics are approximate, so they stay configuration rather than
// constants.
type Config struct {
	// Segmentation
	MinSplitLen        int // shortest clause worth splitting, in runes
	MaxTasks           int // hard cap on tasks per request
	StructuralTokenMin int // page/field token hits needed before a connective split
	LongQueryLen       int // length at which comma enumeration counts as compound

	// Conversation context
	ContextTurns int // history turns fetched for general chat

	// Retrieval synthesis
	MaxSnippets       int
	SnippetCharBudget int
}

// DefaultConfig returns the tuned thresholds.
func DefaultConfig() Config {
	return Config{
		MinSplitLen:        14,
		MaxTasks:           8,
		StructuralTokenMin: 2,
		LongQueryLen:       18,
		ContextTurns:       6,
		MaxSnippets:        5,
		SnippetCharBudget:  1400,
	}
}
