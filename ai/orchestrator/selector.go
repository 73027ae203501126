package orchestrator

import "strings"

// looksLikeGuide reports a navigation question about a known page.
func looksLikeGuide(text string) bool {
	return hasAnyNormed(text, guideTokensNorm) && hasAnyNormed(text, pageTokensNorm)
}

// looksLikeEditGuide reports a how-to question about editing or saving.
func looksLikeEditGuide(text string) bool {
	return hasAnyNormed(text, editTokensNorm)
}

// isAffiliation reports a question about the user's own institution.
func isAffiliation(text string) bool {
	t := norm(text)
	if strings.Contains(t, "소속대학") {
		return true
	}
	return (strings.Contains(text, "내") || strings.Contains(text, "나의")) &&
		(strings.Contains(text, "대학") || strings.Contains(text, "대학교"))
}

// PickExecutor maps a clause, its intent, and its slots to an answering
// strategy. Decision order matters: affiliation and personal-data checks
// come before guide detection so "내 소속대학 알려줘" stays local.
func PickExecutor(intent Intent, text string, loggedIn bool, slots Slots) ExecutorKind {
	if loggedIn && isAffiliation(text) && !looksLikeGuide(text) {
		return ExecutorPersonalData
	}

	if loggedIn && intent.Kind == IntentPersonalData {
		return ExecutorPersonalData
	}

	if intent.Kind == IntentNeedsExternalTool && strings.Contains(intent.Reason, "guide") {
		return ExecutorRetrieval
	}

	if looksLikeGuide(text) || looksLikeEditGuide(text) {
		return ExecutorRetrieval
	}

	// Another party's data resolves through the agent's structured metric
	// tool before falling back to document retrieval.
	if slots.Owner == OwnerOther && slots.Entity != "" {
		return ExecutorRetrieval
	}

	if intent.WantsCalculation {
		return ExecutorCalculator
	}

	if intent.Kind == IntentNeedsExternalTool {
		return ExecutorRetrieval
	}

	return ExecutorGeneralChat
}
