package orchestrator

import (
	"strconv"
	"strings"
)

// ExtractSlotsLight pulls the coarse per-clause slots the selector and
// planner need, without running the full classifier. It is deliberately
// shallow: first metric, first grade, first year, first named university.
func ExtractSlotsLight(text string) Slots {
	q := strings.TrimSpace(text)
	s := Slots{Mode: "data"}
	if q == "" {
		return s
	}

	if metrics := normalizeMetrics(q); len(metrics) > 0 {
		s.Metric = metrics[0].VarKey()
	}
	if grades := extractGrades(q); len(grades) > 0 {
		s.Grade = grades[0]
	}
	if m := yearRe.FindStringSubmatch(q); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			s.Year = y
		}
	}
	if univs := extractUniversities(q); len(univs) > 0 {
		s.Entity = univs[0]
	}

	switch {
	case containsAny(q, selfTokens):
		s.Owner = OwnerSelf
	case s.Entity != "":
		s.Owner = OwnerOther
	case s.Metric != "" && s.Grade > 0:
		// Implied self: a metric and a grade with no external entity.
		s.Owner = OwnerSelf
	}

	if hasAnyNormed(q, guideTokensNorm) || hasAnyNormed(q, editTokensNorm) {
		s.Mode = "guide"
	}

	switch {
	case containsAny(q, sameYearTokens):
		s.Ref = "same_year"
	case containsAny(q, prevTaskTokens):
		s.Ref = "previous_task"
	}

	return s
}
