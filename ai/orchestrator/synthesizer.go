package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/minseo-dev/libra/ai/agent"
	"github.com/minseo-dev/libra/ai/core/llm"
)

// formatSnippets renders the top retrieval matches as a system context
// block. Items past maxItems or the combined character budget are dropped.
func formatSnippets(matches []agent.Match, maxItems, maxChars int) string {
	if maxItems <= 0 {
		maxItems = 5
	}
	if maxChars <= 0 {
		maxChars = 1400
	}
	if len(matches) > maxItems {
		matches = matches[:maxItems]
	}

	lines := []string{"[USAGE GUIDE SNIPPETS]"}
	used := 0
	for i, m := range matches {
		txt := strings.TrimSpace(m.Text)
		if txt == "" {
			continue
		}
		head := fmt.Sprintf("- #%d", i+1)
		switch {
		case m.Page > 0:
			head = fmt.Sprintf("- #%d (p.%d)", i+1, m.Page)
		case m.Source != "":
			head = fmt.Sprintf("- #%d (%s)", i+1, m.Source)
		}
		chunk := head + " " + txt
		if used+len(chunk) > maxChars {
			break
		}
		lines = append(lines, chunk)
		used += len(chunk)
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// synthesizeFromMatches produces a grounded answer: the model may only use
// the supplied snippets and must say it does not know otherwise.
func (o *Orchestrator) synthesizeFromMatches(ctx context.Context, query string, matches []agent.Match, overrides *llm.GenOptions, vars promptVars) (string, error) {
	messages := baseMessages(vars)
	messages = append(messages, llm.SystemPrompt(groundingRule))

	if snippets := formatSnippets(matches, o.cfg.MaxSnippets, o.cfg.SnippetCharBudget); snippets != "" {
		messages = append(messages, llm.SystemPrompt(snippets))
	}
	if guide := topicGuideFor(query); guide != "" {
		messages = append(messages, llm.SystemPrompt(guide))
	}
	messages = append(messages, llm.SystemPrompt(conciseRule))
	messages = append(messages, llm.UserMessage(query))

	opts := generationDefaults(overrides)
	body, stats, err := o.llm.Chat(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	o.recordLLM(stats)
	return applyOutputPolicy(body, opts), nil
}

// renderStructuredMetric turns a resolved metric value into the canonical
// sentence and exposes its numeric facts for later tasks.
func renderStructuredMetric(m *agent.StructuredMetric, slots Slots) (string, map[string]float64) {
	label := metricLabels[strings.ToLower(m.Metric)]
	if label == "" {
		label = m.Metric
	}
	if label == "" {
		label = "지표"
	}
	university := m.University
	if university == "" {
		university = slots.Entity
	}

	text := fmt.Sprintf("%d년 %s의 %s 값은 %s%s입니다.", m.Year, university, label, m.Value, m.Unit)

	vars := map[string]float64{}
	if m.Year > 0 {
		vars["year"] = float64(m.Year)
	}
	if v, ok := parseLeadingNumber(m.Value); ok {
		key := strings.ToLower(m.Metric)
		if _, known := metricLabels[key]; !known {
			key = slots.Metric
		}
		if _, known := metricLabels[key]; known {
			vars[key] = v
		}
	}
	return text, vars
}
