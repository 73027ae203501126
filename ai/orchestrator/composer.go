package orchestrator

import "strings"

// Compose merges task outputs into the final reply: empty outputs are
// dropped, a single output is returned verbatim, multiple outputs become
// bullet lines in original task order. No re-ranking, no deduplication.
func Compose(results []TaskResult) string {
	var chunks []string
	for _, r := range results {
		if c := strings.TrimSpace(r.Output); c != "" {
			chunks = append(chunks, c)
		}
	}

	switch len(chunks) {
	case 0:
		return msgNoAnswer
	case 1:
		return chunks[0]
	}

	lines := make([]string, len(chunks))
	for i, c := range chunks {
		lines[i] = "- " + c
	}
	return strings.Join(lines, "\n")
}
