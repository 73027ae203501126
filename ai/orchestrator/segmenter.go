package orchestrator

import (
	"regexp"
	"strings"
)

// SplitCompound breaks a possibly compound request into independently
// answerable clauses, capped at cfg.MaxTasks. Segmenting an already-single
// clause returns exactly that clause.
func SplitCompound(query string, cfg Config) []string {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}

	// First pass: terminal question punctuation.
	var parts []string
	for _, p := range qsepRe.Split(q, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = []string{q}
	}

	// Second pass: connective splits, only when the segment names at least
	// StructuralTokenMin pages or fields and carries a connective or comma.
	var out []string
	for _, p := range parts {
		pn := norm(p)
		tokenHits := 0
		for _, name := range pageTokensNorm {
			if strings.Contains(pn, name) {
				tokenHits++
			}
		}
		for _, name := range fieldTokensNorm {
			if strings.Contains(pn, name) {
				tokenHits++
			}
		}
		hasAnd := containsAny(p, andTokens) || strings.Contains(p, ",")
		needsSplit := hasAnd && tokenHits >= cfg.StructuralTokenMin

		if !needsSplit || len([]rune(p)) < cfg.MinSplitLen {
			out = append(out, p)
			continue
		}

		tmp := strings.ReplaceAll(p, ",", " | ")
		for _, tok := range andTokens {
			re := regexp.MustCompile(`\s*` + regexp.QuoteMeta(tok) + `\s*`)
			tmp = re.ReplaceAllString(tmp, "|")
		}

		// A trailing action suffix applies to every sub-clause, so each
		// stands alone ("...수정" on the last chunk belongs to all).
		tail := ""
		if m := tailRe.FindStringSubmatch(p); m != nil {
			tail = m[1]
		}

		for _, c := range strings.Split(tmp, "|") {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if tail != "" && !strings.Contains(c, tail) {
				c = c + " " + tail
			}
			out = append(out, strings.TrimSpace(c))
		}
	}

	if len(out) == 0 {
		return []string{q}
	}
	if len(out) > cfg.MaxTasks {
		out = out[:cfg.MaxTasks]
	}
	return out
}

// ShouldUseGraph decides whether a request warrants the compound plan path:
// two or more sentences, a connective plus two structural tokens, or a long
// query with enumeration marks.
func ShouldUseGraph(query string, cfg Config) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}

	sentences := 0
	for _, p := range sentSepRe.Split(q, -1) {
		if strings.TrimSpace(p) != "" {
			sentences++
		}
	}
	if sentences >= 2 {
		return true
	}

	if containsAny(q, graphAndTokens) {
		hits := 0
		for _, t := range graphFieldTokens {
			if strings.Contains(q, t) {
				hits++
			}
			if hits >= 2 {
				return true
			}
		}
		for _, t := range graphPageTokens {
			if strings.Contains(q, t) {
				hits++
			}
			if hits >= 2 {
				return true
			}
		}
	}

	if len([]rune(q)) >= cfg.LongQueryLen &&
		(strings.Contains(q, ",") || strings.Contains(q, " 및 ") || strings.Contains(q, " 그리고 ")) {
		return true
	}

	return false
}
