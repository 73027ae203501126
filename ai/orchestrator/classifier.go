package orchestrator

import "strings"

// clauseFeatures is everything the classification rules look at, extracted
// once per clause.
type clauseFeatures struct {
	text         string
	loggedIn     bool
	metrics      []Metric
	grades       []int
	universities []string
	wantsCalc    bool
	hasConj      bool
	explicitSelf bool
	impliedSelf  bool
	slots        []UserDataSlot
}

func (f *clauseFeatures) isSelf() bool {
	return f.explicitSelf || f.impliedSelf
}

// classifyRule is one (predicate, outcome) pair of the ordered cascade.
// Keeping rules in a table makes each independently testable and
// reorderable.
type classifyRule struct {
	name    string
	match   func(f *clauseFeatures) bool
	outcome func(f *clauseFeatures) Intent
}

var classifyRules = []classifyRule{
	{
		name: "usage_guide",
		match: func(f *clauseFeatures) bool {
			return detectUsageGuide(f.text)
		},
		outcome: func(f *clauseFeatures) Intent {
			return Intent{
				Kind:            IntentNeedsExternalTool,
				Reason:          "usage_guide",
				CapabilityHints: []string{"rag_search"},
				RAGGroupHint:    groupHintForUsage(f.text),
			}
		},
	},
	{
		name: "guest",
		match: func(f *clauseFeatures) bool {
			return !f.loggedIn
		},
		outcome: func(f *clauseFeatures) Intent {
			return Intent{Kind: IntentGuestChat, Reason: "no user session"}
		},
	},
	{
		name: "self_external",
		match: func(f *clauseFeatures) bool {
			return f.isSelf() && len(f.universities) > 0
		},
		outcome: func(f *clauseFeatures) Intent {
			return Intent{
				Kind:             IntentNeedsExternalTool,
				Reason:           "self data + external entity",
				CapabilityHints:  []string{"oracle_fetch", "data_service_fetch", "calculator"},
				UserSlots:        f.slots,
				WantsCalculation: true,
				ExternalEntities: f.universities,
			}
		},
	},
	{
		name: "self_multi_or_calc",
		match: func(f *clauseFeatures) bool {
			return f.isSelf() && (len(f.slots) >= 2 || f.wantsCalc || f.hasConj)
		},
		outcome: func(f *clauseFeatures) Intent {
			return Intent{
				Kind:             IntentNeedsExternalTool,
				Reason:           "multi-slot or calculation",
				CapabilityHints:  []string{"oracle_fetch", "calculator"},
				UserSlots:        f.slots,
				WantsCalculation: true,
			}
		},
	},
	{
		name: "self_single",
		match: func(f *clauseFeatures) bool {
			return f.isSelf() && len(f.slots) == 1 && !f.wantsCalc
		},
		outcome: func(f *clauseFeatures) Intent {
			return Intent{
				Kind:      IntentPersonalData,
				Reason:    "single self metric",
				UserSlots: f.slots,
			}
		},
	},
	{
		name: "external_entity",
		match: func(f *clauseFeatures) bool {
			return len(f.universities) > 0
		},
		outcome: func(f *clauseFeatures) Intent {
			return Intent{
				Kind:             IntentNeedsExternalTool,
				Reason:           "external entity present",
				CapabilityHints:  []string{"data_service_fetch", "rag_search", "calculator"},
				UserSlots:        f.slots,
				WantsCalculation: f.wantsCalc || f.hasConj,
				ExternalEntities: f.universities,
			}
		},
	},
	{
		name: "metric_owner_unclear",
		match: func(f *clauseFeatures) bool {
			return len(f.metrics) > 0
		},
		outcome: func(f *clauseFeatures) Intent {
			return Intent{
				Kind:             IntentGeneralChat,
				Reason:           "metric mentioned, owner unclear",
				UserSlots:        f.slots,
				WantsCalculation: f.wantsCalc,
			}
		},
	},
	{
		name: "general",
		match: func(f *clauseFeatures) bool {
			return true
		},
		outcome: func(f *clauseFeatures) Intent {
			return Intent{
				Kind:             IntentGeneralChat,
				Reason:           "general",
				WantsCalculation: f.wantsCalc,
			}
		},
	},
}

// Classify maps one clause plus login state to an Intent. It is a pure
// function: no I/O, deterministic, and it never fails. Ambiguity always
// degrades to general chat.
func Classify(query string, loggedIn bool) Intent {
	f := extractFeatures(query, loggedIn)
	for _, rule := range classifyRules {
		if rule.match(f) {
			return rule.outcome(f)
		}
	}
	// Unreachable: the last rule always matches.
	return Intent{Kind: IntentGeneralChat, Reason: "general"}
}

func extractFeatures(query string, loggedIn bool) *clauseFeatures {
	q := strings.TrimSpace(query)

	f := &clauseFeatures{
		text:         q,
		loggedIn:     loggedIn,
		metrics:      normalizeMetrics(q),
		grades:       extractGrades(q),
		universities: extractUniversities(q),
		wantsCalc:    containsAny(q, calcTriggers),
		hasConj:      containsAny(q, conjTokens),
		explicitSelf: containsAny(q, selfTokens),
	}
	// Self is implied when no external university appears and a metric and
	// a grade are both mentioned.
	f.impliedSelf = !f.explicitSelf && len(f.universities) == 0 &&
		len(f.metrics) > 0 && len(f.grades) > 0

	owner := OwnerOther
	if f.isSelf() {
		owner = OwnerSelf
	}
	if len(f.grades) > 0 {
		for _, g := range f.grades {
			for _, m := range f.metrics {
				f.slots = append(f.slots, UserDataSlot{Metric: m, Grade: g, Owner: owner})
			}
		}
	} else {
		for _, m := range f.metrics {
			f.slots = append(f.slots, UserDataSlot{Metric: m, Owner: owner})
		}
	}
	return f
}
