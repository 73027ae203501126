package orchestrator

import (
	"fmt"
	"strings"

	"github.com/minseo-dev/libra/ai/core/llm"
)

// Prompt fragments shared by every chat path. The persona is rendered with
// per-request variables (name, salutation, affiliation).
const (
	personaTemplate = "너는 대학 도서관 학습분석 서비스의 챗봇이다. " +
		"%s%s 사용자를 돕는다. 사용자 소속: %s. " +
		"항상 한국어 존댓말로 답하라."

	generalKnowledgeHint = "도서관 이용, 학습 데이터, 서비스 기능에 대한 질문을 우선적으로 다룬다."

	conciseRule = "불필요한 배경설명 없이 간결하게 답하라."

	guestSafetyRule = "정확히 알지 못하는 내용은 추측하지 말고 '잘 모르겠습니다'라고 답하라. " +
		"특히 전문적이거나 최신 정보가 필요한 질문에는 신중하게 답하라."

	focusRule = "현재 질문에만 정확히 답하고 확실하지 않으면 '잘 모르겠습니다'라고 답하라."

	groundingRule = "아래 문서 스니펫만 근거로, 질문에 정확히 답하라. " +
		"스니펫에 없는 정보는 추측하지 말고 '정확히 알지 못합니다'라고 답하라. " +
		"불필요한 배경설명 없이 간결하게."
)

// Topic phrasing guides injected when the clause matches a known how-to
// topic. Keyword tables are checked in order; first hit wins.
var topicGuides = []struct {
	keywords []string
	guide    string
}{
	{
		keywords: []string{"회원가입", "가입"},
		guide:    "회원가입 절차는 단계 순서대로 번호를 붙여 안내하라.",
	},
	{
		keywords: []string{"수정", "변경", "편집", "회원정보", "개인정보", "프로필"},
		guide:    "정보 수정 방법은 메뉴 경로부터 안내하고, 저장 버튼까지의 순서를 설명하라.",
	},
}

func topicGuideFor(query string) string {
	for _, tg := range topicGuides {
		if containsAny(query, tg.keywords) {
			return tg.guide
		}
	}
	return ""
}

// User-facing fallback strings. These are complete polite sentences; raw
// error text never reaches the end user.
const (
	msgTaskFailed       = "요청 처리 중 오류가 발생했습니다. 다시 시도해주세요."
	msgInsufficientData = "계산에 필요한 값이 부족합니다."
	msgNoAnswer         = "답변을 생성할 수 없습니다."
	msgAgentFailed      = "기능에 문제가 있습니다. 잠시 후 다시 시도해주세요!"
	msgNothingFound     = "관련 정보를 찾지 못했습니다."
)

const guestName = "게스트"

// promptVars carries per-request persona variables.
type promptVars struct {
	userName    string
	salutation  string
	affiliation string
}

func guestVars() promptVars {
	return promptVars{userName: guestName}
}

func baseMessages(v promptVars) []llm.Message {
	persona := fmt.Sprintf(personaTemplate, v.salutation, v.userName, v.affiliation)
	return []llm.Message{llm.SystemPrompt(persona)}
}

func salutationFor(name string) string {
	if name == "" || name == guestName {
		return ""
	}
	return name + "님, "
}

// extractAffiliationOverride returns a university named in the message. A
// mention overrides the stored affiliation for the current prompt only.
func extractAffiliationOverride(text string) string {
	if univs := extractUniversities(text); len(univs) > 0 {
		return univs[0]
	}
	return ""
}

// generationDefaults fills unset generation parameters with the tuned
// defaults. The caller's overrides win where present.
func generationDefaults(overrides *llm.GenOptions) *llm.GenOptions {
	opts := llm.GenOptions{}
	if overrides != nil {
		opts = *overrides
	}
	if opts.MaxNewTokens <= 0 {
		opts.MaxNewTokens = 180
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	if opts.TopP <= 0 {
		opts.TopP = 0.9
	}
	if opts.TopK <= 0 {
		opts.TopK = 40
	}
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = 3
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 300
	}
	return &opts
}

// applyOutputPolicy trims generated text to the sentence, character, and
// line limits, then appends the forced suffix to each line when one is set.
func applyOutputPolicy(text string, opts *llm.GenOptions) string {
	if text == "" || opts == nil {
		return text
	}

	if opts.MaxSentences > 0 {
		text = trimSentences(text, opts.MaxSentences)
	}

	if opts.MaxChars > 0 {
		runes := []rune(text)
		if len(runes) > opts.MaxChars {
			text = strings.TrimSpace(string(runes[:opts.MaxChars]))
		}
	}

	if opts.MaxLines > 0 {
		var lines []string
		for _, ln := range strings.Split(text, "\n") {
			if ln = strings.TrimSpace(ln); ln != "" {
				lines = append(lines, ln)
			}
		}
		if len(lines) > opts.MaxLines {
			lines = lines[:opts.MaxLines]
		}
		text = strings.Join(lines, "\n")
	}

	if opts.ForceSuffix != "" {
		lines := strings.Split(text, "\n")
		for i, ln := range lines {
			if !strings.HasSuffix(ln, opts.ForceSuffix) {
				lines[i] = strings.TrimRight(ln, " ") + " " + opts.ForceSuffix
			}
		}
		text = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	return text
}

// trimSentences keeps the first n sentences, treating Korean sentence
// endings and terminal punctuation as boundaries.
func trimSentences(text string, n int) string {
	count := 0
	runes := []rune(text)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' || r == '！' || r == '？' {
			count++
			if count >= n {
				return strings.TrimSpace(string(runes[:i+1]))
			}
		}
	}
	return text
}
