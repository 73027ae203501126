package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/minseo-dev/libra/ai/agent"
	"github.com/minseo-dev/libra/ai/core/llm"
	"github.com/minseo-dev/libra/store"
)

// runPlan executes tasks strictly in plan order. Dependencies always point
// backwards, so a single forward pass suffices. One failing task never
// aborts the rest: failures become task-local messages.
func (o *Orchestrator) runPlan(ctx context.Context, in *Input, tasks []Task, opts *llm.GenOptions) []TaskResult {
	results := make([]TaskResult, 0, len(tasks))
	for _, t := range tasks {
		start := time.Now()
		res, err := o.runTask(ctx, in, t, results, opts)
		if err != nil {
			slog.Error("runner: task failed",
				"task_id", t.ID,
				"executor", t.Executor,
				"error", err,
			)
			res = TaskResult{
				ID:        t.ID,
				Executor:  t.Executor,
				Output:    msgTaskFailed,
				Variables: map[string]float64{},
			}
		}
		if o.metrics != nil {
			o.metrics.RecordTask(string(t.Executor), time.Since(start), err == nil)
		}
		results = append(results, res)
	}
	return results
}

func (o *Orchestrator) runTask(ctx context.Context, in *Input, t Task, resultsSoFar []TaskResult, opts *llm.GenOptions) (TaskResult, error) {
	switch t.Executor {
	case ExecutorPersonalData:
		return o.runPersonalDataTask(ctx, in, t, opts)
	case ExecutorRetrieval:
		return o.runRetrievalTask(ctx, in, t, resultsSoFar, opts)
	case ExecutorCalculator:
		return o.runCalculatorTask(t, resultsSoFar), nil
	default:
		return o.runGeneralChatTask(ctx, in, t, opts)
	}
}

// --- personal data ---

func (o *Orchestrator) runPersonalDataTask(ctx context.Context, in *Input, t Task, opts *llm.GenOptions) (TaskResult, error) {
	body, _, err := o.answerPersonalData(ctx, in.UserID, t.Text, opts)
	if err != nil {
		return TaskResult{}, err
	}

	vars := map[string]float64{}
	if t.Slots.Grade > 0 {
		vars["grade"] = float64(t.Slots.Grade)
	}
	harvestOutputVariables(body, t.Slots, vars)

	return TaskResult{ID: t.ID, Executor: ExecutorPersonalData, Output: body, Variables: vars}, nil
}

// answerPersonalData resolves the user's own stored facts. A single stored
// value (the affiliation) is answered directly; anything else delegates
// phrasing to the model, constrained to the resolved facts only.
func (o *Orchestrator) answerPersonalData(ctx context.Context, userID, text string, opts *llm.GenOptions) (string, promptVars, error) {
	user, err := o.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return "", promptVars{}, err
	}

	name, affiliation := "사용자", "미상"
	if user != nil {
		if user.Name != "" {
			name = user.Name
		}
		if user.Affiliation != "" {
			affiliation = user.Affiliation
		}
	}
	salutation := salutationFor(name)
	if override := extractAffiliationOverride(text); override != "" {
		affiliation = override
	}
	vars := promptVars{userName: name, salutation: salutation, affiliation: affiliation}

	if isAffiliation(text) && !looksLikeGuide(text) {
		return fmt.Sprintf("%s회원님의 소속 대학은 %s입니다.", salutation, affiliation), vars, nil
	}

	factsRule := fmt.Sprintf(
		"아래 확인된 사용자 정보만 근거로 답하라. 이름: %s, 소속: %s. "+
			"확인되지 않은 수치는 추측하지 말고 '정확히 알지 못합니다'라고 답하라.",
		name, affiliation,
	)

	messages := baseMessages(vars)
	messages = append(messages, llm.SystemPrompt(factsRule))
	messages = append(messages, llm.SystemPrompt(conciseRule))
	messages = append(messages, llm.UserMessage(text))

	genOpts := generationDefaults(opts)
	body, stats, err := o.llm.Chat(ctx, messages, genOpts)
	if err != nil {
		return "", vars, err
	}
	o.recordLLM(stats)
	if body = applyOutputPolicy(body, genOpts); body == "" {
		body = msgNoAnswer
	}
	return body, vars, nil
}

// --- retrieval ---

func (o *Orchestrator) runRetrievalTask(ctx context.Context, in *Input, t Task, resultsSoFar []TaskResult, opts *llm.GenOptions) (TaskResult, error) {
	slots := t.Slots
	isOtherData := slots.Owner == OwnerOther && slots.Entity != "" && slots.Mode == "data"

	// External university data first tries the structured metric tool.
	if isOtherData {
		res, err := o.queryUniversityMetric(ctx, in, t, resultsSoFar)
		if err == nil && res != nil {
			return *res, nil
		}
		if err != nil {
			slog.Warn("runner: metric tool fell back to retrieval", "task_id", t.ID, "error", err)
		}
	}

	hint := "rag_general"
	if slots.Mode == "guide" {
		hint = "rag_service_guide"
	}
	payload := MakeAgentPayload(t.Intent, t.Text, in.UserID, in.ConversationID)
	payload.Hints = appendUnique(payload.Hints, hint)

	result, err := o.callAgent(ctx, payload)
	if err != nil {
		return TaskResult{}, err
	}

	switch result.Kind {
	case agent.KindText:
		return TaskResult{ID: t.ID, Executor: ExecutorRetrieval, Output: result.Text, Variables: map[string]float64{}}, nil

	case agent.KindStructured:
		text, vars := renderStructuredMetric(result.Structured, slots)
		return TaskResult{ID: t.ID, Executor: ExecutorRetrieval, Output: text, Variables: vars}, nil

	case agent.KindMatches:
		vars := o.lookupPromptVars(ctx, in.UserID)
		answer, err := o.synthesizeFromMatches(ctx, t.Text, result.Matches, opts, vars)
		if err != nil {
			return TaskResult{}, err
		}
		return TaskResult{ID: t.ID, Executor: ExecutorRetrieval, Output: answer, Variables: map[string]float64{}}, nil
	}

	return TaskResult{ID: t.ID, Executor: ExecutorRetrieval, Output: msgNothingFound, Variables: map[string]float64{}}, nil
}

// queryUniversityMetric asks the agent to resolve another university's
// metric through the structured tool. A missing year borrows the most
// recent year exposed by earlier tasks.
func (o *Orchestrator) queryUniversityMetric(ctx context.Context, in *Input, t Task, resultsSoFar []TaskResult) (*TaskResult, error) {
	slots := t.Slots

	year := slots.Year
	if year == 0 {
		for i := len(resultsSoFar) - 1; i >= 0; i-- {
			if y, ok := resultsSoFar[i].Variables["year"]; ok {
				year = int(y)
				break
			}
		}
	}

	metric := slots.Metric
	if metric == "" {
		metric = "cps"
	}

	args := map[string]any{
		"university": slots.Entity,
		"metric":     strings.ToUpper(metric),
	}
	if year > 0 {
		args["year"] = year
	}

	payload := &agent.Payload{
		Query:  t.Text,
		UserID: in.UserID,
		ConvID: in.ConversationID,
		Locale: "ko-KR",
		Hints:  []string{"oracle_univ_data"},
		ToolSuggestions: []agent.ToolSuggestion{{
			Tool: "oracle.query_university_metric",
			Args: args,
		}},
	}
	for _, s := range t.Intent.UserSlots {
		payload.Slots = append(payload.Slots, agent.Slot{
			Metric: string(s.Metric),
			Grade:  s.Grade,
			Owner:  string(s.Owner),
		})
	}

	result, err := o.callAgent(ctx, payload)
	if err != nil {
		return nil, err
	}
	if result.Kind != agent.KindStructured {
		return nil, nil
	}

	text, vars := renderStructuredMetric(result.Structured, slots)
	return &TaskResult{ID: t.ID, Executor: ExecutorRetrieval, Output: text, Variables: vars}, nil
}

// --- general chat ---

func (o *Orchestrator) runGeneralChatTask(ctx context.Context, in *Input, t Task, opts *llm.GenOptions) (TaskResult, error) {
	var body string
	var err error
	if in.UserID != "" {
		body, err = o.answerUserChat(ctx, in, t.Text, opts)
	} else {
		body, err = o.answerGuestChat(ctx, t.Text, opts)
	}
	if err != nil {
		return TaskResult{}, err
	}
	return TaskResult{ID: t.ID, Executor: ExecutorGeneralChat, Output: body, Variables: map[string]float64{}}, nil
}

func (o *Orchestrator) answerGuestChat(ctx context.Context, text string, opts *llm.GenOptions) (string, error) {
	messages := baseMessages(guestVars())
	messages = append(messages,
		llm.SystemPrompt(generalKnowledgeHint),
		llm.SystemPrompt(guestSafetyRule),
		llm.SystemPrompt(conciseRule),
		llm.UserMessage(text),
	)

	genOpts := generationDefaults(opts)
	body, stats, err := o.llm.Chat(ctx, messages, genOpts)
	if err != nil {
		return "", err
	}
	o.recordLLM(stats)
	return applyOutputPolicy(body, genOpts), nil
}

// answerUserChat handles logged-in general chat: persona with salutation,
// the rolling conversation summary, and only the most recent prior turn.
func (o *Orchestrator) answerUserChat(ctx context.Context, in *Input, text string, opts *llm.GenOptions) (string, error) {
	vars := o.lookupPromptVars(ctx, in.UserID)
	if override := extractAffiliationOverride(text); override != "" {
		vars.affiliation = override
	}

	messages := baseMessages(vars)
	messages = append(messages, llm.SystemPrompt(generalKnowledgeHint))
	messages = append(messages, llm.SystemPrompt(focusRule))

	if in.ConversationID > 0 {
		if summary := o.latestSummary(ctx, in.ConversationID); summary != "" {
			messages = append(messages, llm.SystemPrompt("[이전 대화 요약] "+summary))
		}
		if recent := o.recentTurn(ctx, in.ConversationID); recent != nil {
			messages = append(messages, *recent)
		}
	}

	messages = append(messages, llm.SystemPrompt(conciseRule))
	messages = append(messages, llm.UserMessage(text))

	genOpts := generationDefaults(opts)
	body, stats, err := o.llm.Chat(ctx, messages, genOpts)
	if err != nil {
		return "", err
	}
	o.recordLLM(stats)
	return applyOutputPolicy(body, genOpts), nil
}

// recentTurn fetches trimmed history and returns the most recent complete
// prior turn. A trailing user message is the current question echoed by the
// store and is dropped.
func (o *Orchestrator) recentTurn(ctx context.Context, conversationID int64) *llm.Message {
	limit := o.cfg.ContextTurns + 2
	hist, err := o.store.ListChatMessages(ctx, &store.FindChatMessage{
		ConversationID: &conversationID,
		Limit:          &limit,
	})
	if err != nil {
		slog.Warn("runner: history fetch failed", "conversation_id", conversationID, "error", err)
		return nil
	}
	if len(hist) > 0 && hist[len(hist)-1].Role == store.MessageRoleUser {
		hist = hist[:len(hist)-1]
	}
	if len(hist) == 0 {
		return nil
	}

	recent := hist[len(hist)-1]
	if recent.Role != store.MessageRoleUser && recent.Role != store.MessageRoleAssistant {
		return nil
	}
	content := recent.Content
	if runes := []rune(content); len(runes) > 300 {
		content = string(runes[:300])
	}
	return &llm.Message{Role: string(recent.Role), Content: content}
}

func (o *Orchestrator) latestSummary(ctx context.Context, conversationID int64) string {
	summary, err := o.store.GetConversationSummary(ctx, &store.FindConversationSummary{
		ConversationID: &conversationID,
	})
	if err != nil {
		slog.Warn("runner: summary fetch failed", "conversation_id", conversationID, "error", err)
		return ""
	}
	if summary == nil {
		return ""
	}
	return summary.Summary
}

// lookupPromptVars resolves persona variables, degrading to the guest
// persona on any store trouble.
func (o *Orchestrator) lookupPromptVars(ctx context.Context, userID string) promptVars {
	if userID == "" {
		return guestVars()
	}
	user, err := o.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil || user == nil {
		return promptVars{userName: "사용자"}
	}
	return promptVars{
		userName:    user.Name,
		salutation:  salutationFor(user.Name),
		affiliation: user.Affiliation,
	}
}

// --- calculator ---

// runCalculatorTask evaluates an arithmetic expression over the numeric
// variables exposed by earlier tasks, keyed as {taskID}_{var}.
func (o *Orchestrator) runCalculatorTask(t Task, resultsSoFar []TaskResult) TaskResult {
	env := map[string]float64{}
	for _, r := range resultsSoFar {
		for k, v := range r.Variables {
			env[r.ID+"_"+k] = v
		}
	}

	val, out, ok := EvaluateExpression(t.Text, env)
	vars := map[string]float64{}
	if ok {
		vars["value"] = val
	}
	return TaskResult{ID: t.ID, Executor: ExecutorCalculator, Output: out, Variables: vars}
}

// --- variable propagation ---

// harvestOutputVariables best-effort-parses a task's rendered output for a
// four-digit year and a leading numeric quantity, so the next task's
// same_year or previous_task dependency can reuse them.
func harvestOutputVariables(output string, slots Slots, vars map[string]float64) {
	if m := yearRe.FindStringSubmatch(output); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			vars["year"] = float64(y)
		}
	}
	if v, ok := parseLeadingNumber(output); ok {
		if _, known := metricLabels[slots.Metric]; known {
			vars[slots.Metric] = v
		}
	}
}

// parseLeadingNumber finds the first number in the text, tolerating comma
// grouping.
func parseLeadingNumber(text string) (float64, bool) {
	m := numRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
