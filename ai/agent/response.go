package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind discriminates agent result variants.
type Kind int

const (
	// KindEmpty means the agent returned nothing usable.
	KindEmpty Kind = iota
	// KindMatches carries ranked retrieval snippets.
	KindMatches
	// KindStructured carries a single structured metric value.
	KindStructured
	// KindText carries a plain text answer.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindMatches:
		return "matches"
	case KindStructured:
		return "structured"
	case KindText:
		return "text"
	default:
		return "empty"
	}
}

// Match is one retrieval snippet with optional provenance. Page is the
// document page the snippet came from, 0 when unknown.
type Match struct {
	Text   string
	Source string
	Page   int
	Score  float64
}

// StructuredMetric is a single resolved metric value.
type StructuredMetric struct {
	Value      string
	Unit       string
	Year       int
	University string
	Metric     string
}

// Result is the parsed agent response. Exactly one variant is populated,
// selected by Kind.
type Result struct {
	Kind       Kind
	Matches    []Match
	Structured *StructuredMetric
	Text       string
}

// ParseResult extracts a usable answer from whatever shape the agent sent.
// Agent builds vary, so several envelope layouts are accepted; anything
// unrecognized degrades to KindEmpty rather than an error.
func ParseResult(raw []byte) *Result {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		// Not JSON at all. A bare non-empty body still counts as text.
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return &Result{Kind: KindEmpty}
		}
		return &Result{Kind: KindText, Text: text}
	}
	return extract(root, 0)
}

// extract walks one level of an envelope. Depth is bounded so a
// self-referential payload cannot recurse forever.
func extract(node any, depth int) *Result {
	if depth > 4 {
		return &Result{Kind: KindEmpty}
	}

	switch v := node.(type) {
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return &Result{Kind: KindEmpty}
		}
		return &Result{Kind: KindText, Text: text}

	case []any:
		if matches := snippetList(v); len(matches) > 0 {
			return &Result{Kind: KindMatches, Matches: matches}
		}
		return &Result{Kind: KindEmpty}

	case map[string]any:
		return extractObject(v, depth)
	}

	return &Result{Kind: KindEmpty}
}

func extractObject(obj map[string]any, depth int) *Result {
	// Direct snippet lists. "matches" is the retrieval tool's own shape,
	// "context_snippets" the pre-formatted variant.
	for _, key := range []string{"matches", "context_snippets"} {
		if items, ok := obj[key].([]any); ok {
			if matches := snippetList(items); len(matches) > 0 {
				return &Result{Kind: KindMatches, Matches: matches}
			}
		}
	}

	// Chroma-style parallel arrays.
	if matches := chromaMatches(obj); len(matches) > 0 {
		return &Result{Kind: KindMatches, Matches: matches}
	}

	// Structured metric value.
	if m := structuredMetric(obj); m != nil {
		return &Result{Kind: KindStructured, Structured: m}
	}

	// Nested envelopes, most specific first.
	for _, key := range []string{"rag", "data", "result", "tool_result"} {
		inner, ok := obj[key]
		if !ok || inner == nil {
			continue
		}
		if r := extract(inner, depth+1); r.Kind != KindEmpty {
			return r
		}
	}

	// Plain answer text under common keys.
	for _, key := range []string{"answer", "text", "message", "content"} {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return &Result{Kind: KindText, Text: strings.TrimSpace(s)}
		}
	}

	return &Result{Kind: KindEmpty}
}

// snippetList accepts a list of strings or of objects carrying text under
// common keys, skipping anything blank.
func snippetList(items []any) []Match {
	matches := make([]Match, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if text := strings.TrimSpace(v); text != "" {
				matches = append(matches, Match{Text: text})
			}
		case map[string]any:
			m := Match{}
			for _, key := range []string{"text", "snippet", "content", "page_content"} {
				if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
					m.Text = strings.TrimSpace(s)
					break
				}
			}
			if m.Text == "" {
				continue
			}
			if s, ok := v["source"].(string); ok {
				m.Source = s
			}
			if meta, ok := v["meta"].(map[string]any); ok {
				if pg, ok := meta["page"].(float64); ok {
					m.Page = int(pg)
				}
				if s, ok := meta["source"].(string); ok && m.Source == "" {
					m.Source = s
				}
			}
			if f, ok := v["score"].(float64); ok {
				m.Score = f
			}
			matches = append(matches, m)
		}
	}
	return matches
}

// chromaMatches handles the raw vector store shape: documents, metadatas,
// and distances are parallel arrays, each wrapped one level deep.
func chromaMatches(obj map[string]any) []Match {
	docs := innerList(obj["documents"])
	if len(docs) == 0 {
		return nil
	}
	metas := innerList(obj["metadatas"])
	dists := innerList(obj["distances"])

	matches := make([]Match, 0, len(docs))
	for i, doc := range docs {
		text, ok := doc.(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		m := Match{Text: strings.TrimSpace(text)}
		if i < len(metas) {
			if meta, ok := metas[i].(map[string]any); ok {
				if s, ok := meta["source"].(string); ok {
					m.Source = s
				}
				if pg, ok := meta["page"].(float64); ok {
					m.Page = int(pg)
				}
			}
		}
		if i < len(dists) {
			if d, ok := dists[i].(float64); ok {
				// Distance, not similarity. Flip so larger is better.
				m.Score = 1 - d
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// innerList unwraps either [[...]] or [...].
func innerList(v any) []any {
	outer, ok := v.([]any)
	if !ok || len(outer) == 0 {
		return nil
	}
	if inner, ok := outer[0].([]any); ok {
		return inner
	}
	return outer
}

// structuredMetric recognizes an object carrying a single metric value.
func structuredMetric(obj map[string]any) *StructuredMetric {
	raw, ok := obj["value"]
	if !ok || raw == nil {
		return nil
	}

	m := &StructuredMetric{}
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		m.Value = strings.TrimSpace(v)
	case float64:
		m.Value = formatNumber(v)
	default:
		return nil
	}

	if s, ok := obj["unit"].(string); ok {
		m.Unit = s
	}
	if y, ok := obj["year"].(float64); ok {
		m.Year = int(y)
	}
	if s, ok := obj["university"].(string); ok {
		m.University = s
	}
	if s, ok := obj["metric"].(string); ok {
		m.Metric = s
	}
	return m
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
