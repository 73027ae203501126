package orchestrator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/minseo-dev/libra/ai/agent"
	"github.com/minseo-dev/libra/ai/core/llm"
)

// PlanTasks segments the request and builds one task per clause: classify,
// extract light slots, pick an executor. A reference marker in a clause's
// slots records a dependency on the immediately preceding task, so every
// dependency points backwards and single-pass execution is safe.
func PlanTasks(query, userID string, cfg Config) []Task {
	loggedIn := userID != ""
	clauses := SplitCompound(query, cfg)

	tasks := make([]Task, 0, len(clauses))
	for i, clause := range clauses {
		intent := Classify(clause, loggedIn)
		slots := ExtractSlotsLight(clause)
		executor := PickExecutor(intent, clause, loggedIn, slots)
		tasks = append(tasks, Task{
			ID:       fmt.Sprintf("T%d", i+1),
			Text:     clause,
			Intent:   intent,
			Executor: executor,
			Slots:    slots,
		})
	}

	for i := range tasks {
		ref := tasks[i].Slots.Ref
		if (ref == "same_year" || ref == "previous_task") && i > 0 {
			tasks[i].Deps = append(tasks[i].Deps, tasks[i-1].ID)
		}
	}

	executors := make([]string, len(tasks))
	for i, t := range tasks {
		executors[i] = string(t.Executor)
	}
	slog.Info("planner: plan built",
		"task_count", len(tasks),
		"executors", strings.Join(executors, ","),
	)
	return tasks
}

// MakeAgentPayload assembles the plan-and-run request for one clause. For
// external university data with a logged-in user, retrieval hints give way
// to the structured metric tool.
func MakeAgentPayload(intent Intent, query, userID string, convID int64) *agent.Payload {
	payload := &agent.Payload{
		Query:            query,
		UserID:           userID,
		ConvID:           convID,
		Locale:           "ko-KR",
		Hints:            append([]string(nil), intent.CapabilityHints...),
		WantsCalculation: intent.WantsCalculation,
		ExternalEntities: intent.ExternalEntities,
	}

	for _, s := range intent.UserSlots {
		payload.Slots = append(payload.Slots, agent.Slot{
			Metric: string(s.Metric),
			Grade:  s.Grade,
			Owner:  string(s.Owner),
		})
	}

	if intent.RAGGroupHint != "" {
		payload.RAG = &agent.RAGHint{GroupHint: intent.RAGGroupHint, TopK: 5}
	}

	if userID != "" && len(intent.ExternalEntities) > 0 {
		// Drop retrieval hints so they do not compete with the metric tool.
		hints := payload.Hints[:0]
		for _, h := range payload.Hints {
			if !strings.HasPrefix(h, "rag_") {
				hints = append(hints, h)
			}
		}
		payload.Hints = appendUnique(hints, "oracle_univ_data")

		payload.ToolSuggestions = []agent.ToolSuggestion{{
			Tool: "oracle.query_university_metric",
			Args: map[string]any{
				"university": intent.ExternalEntities[0],
			},
		}}
	}

	return payload
}

func appendUnique(hints []string, hint string) []string {
	for _, h := range hints {
		if h == hint {
			return hints
		}
	}
	return append(hints, hint)
}

// scaledOptions widens the generation token budget for compound plans:
// each extra task earns more room, agent-heavy plans a little more still.
// The budget is capped so a degenerate eight-task plan cannot explode.
func scaledOptions(base *llm.GenOptions, taskCount int, agentHeavy bool) *llm.GenOptions {
	opts := generationDefaults(base)
	if taskCount <= 1 && !agentHeavy {
		return opts
	}

	budget := opts.MaxNewTokens
	if taskCount > 1 {
		budget += (taskCount - 1) * opts.MaxNewTokens / 2
	}
	if agentHeavy {
		budget += opts.MaxNewTokens / 2
	}
	if maxBudget := opts.MaxNewTokens * 3; budget > maxBudget {
		budget = maxBudget
	}
	opts.MaxNewTokens = budget
	return opts
}
