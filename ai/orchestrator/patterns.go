package orchestrator

import (
	"regexp"
	"strings"
)

// Keyword and pattern tables for Korean library-analytics queries. All
// tables are package-level and precompiled; matching stays allocation-light
// on the hot path.

// metricAliases maps surface forms to canonical metrics. Order is the
// report order of extracted metrics.
var metricAliases = []struct {
	canon   Metric
	aliases []string
}{
	{MetricPurchaseCost, []string{"자료구입비", "구입비", "구입 비용", "cps", "CPS"}},
	{MetricLoans, []string{"대출", "대출건수", "대출 건수", "LPS", "lps"}},
	{MetricVisits, []string{"방문수", "방문 수", "방문횟수", "방문 횟수", "출입", "출입 수", "VPS", "vps", "도서관 방문", "도서관 방문수"}},
	{MetricScore, []string{"점수", "예측점수", "예측 점수", "스코어", "score", "SCR_EST", "scr_est"}},
	{MetricBudget, []string{"예산", "도서 예산", "도서예산"}},
}

// metricLabels renders a metric for user-facing sentences.
var metricLabels = map[string]string{
	"cps":    "자료구입비",
	"lps":    "대출건수",
	"vps":    "방문수",
	"score":  "예측점수",
	"budget": "예산",
}

// calcTriggers signal arithmetic or multi-value requests.
var calcTriggers = []string{
	"차이", "증감", "증감률", "증가율", "퍼센트", "%", "비율", "비교",
	"+", "-", "*", "/", "합", "합계", "합하면", "합치면", "더하면", "더해", "더해줘", "더하기",
	"각각", "둘다", "둘 다",
}

// conjTokens are connectives hinting at multiple slots in one clause.
var conjTokens = []string{"와", "과", "하고", "및", "랑", "그리고"}

var selfTokens = []string{"내", "나의", "제가", "내가"}

// guideKeywords mark service-usage and navigation questions. Bare metric
// words stay out of this table: a metric mention alone is a data question,
// not a navigation one.
var guideKeywords = []string{
	"이용법", "사용법", "사용 방법", "이용 방법", "어떻게 써", "어떻게 사용",
	"어디서", "어디에서", "어디로 이동", "어디로 가", "어디로 들어가", "어디로 가면",
	"페이지", "화면", "메뉴", "탭", "버튼", "경로",
	"개인정보", "개인 정보", "회원정보", "회원 정보", "프로필", "비밀번호",
	"회원가입", "가입", "로그인", "로그 아웃", "마이페이지", "마이 페이지",
}

// defaultGuideGroup is the retrieval collection for usage-guide questions.
const defaultGuideGroup = "서비스이용가이드"

// Segmentation token tables.
var (
	andTokens = []string{"그리고", "및", "하고", "랑", "이랑", "또", "과", "와"}

	pageNames = []string{
		"학습환경 분석", "발전도 분석", "마이페이지", "내정보", "내 정보",
		"학습환경분석", "발전도분석",
	}
	fieldTokens = []string{"소속대학", "소속 대학", "자료구입비", "CPS", "대출건수", "LPS", "방문수", "VPS", "예측점수", "점수"}
	editTokens  = []string{"수정", "변경", "편집", "업데이트", "입력", "저장", "하는 법", "방법"}
	guideTokens = []string{"어디", "어디서", "경로", "페이지", "버튼", "탭", "어떻게"}
)

// Compound-vs-simple heuristic tables. Spaced forms avoid matching inside
// longer words.
var (
	graphFieldTokens = []string{
		"소속대학", "소속 대학",
		"자료구입비", "자료 구입비",
		"예측점수", "점수",
		"학년", "4학년", "3학년", "2학년", "1학년",
	}
	graphPageTokens = []string{
		"학습환경 분석", "발전도 분석", "마이페이지", "내정보", "내 정보", "설정", "대시보드", "메뉴", "페이지",
	}
	graphAndTokens = []string{" 과 ", " 와 ", " 및 ", " 그리고 ", " 하고 ", " 랑 ", " 이랑 ", ", "}
)

// Reference tokens for inter-task dependencies.
var (
	sameYearTokens = []string{"같은 해", "같은해", "같은 년도", "같은 연도", "동일 연도", "그 해"}
	prevTaskTokens = []string{"방금", "아까", "이전 결과", "위 결과", "그 값"}
)

var (
	gradeRe = regexp.MustCompile(`([1-4])\s*학년`)
	univRe  = regexp.MustCompile(`([가-힣A-Za-z]+대학교)`)
	yearRe  = regexp.MustCompile(`(\d{4})\s*년`)
	numRe   = regexp.MustCompile(`(-?\d[\d,]*)`)

	// Terminal punctuation for first-pass sentence splitting.
	qsepRe = regexp.MustCompile(`[?？！]\s*`)
	// Sentence boundaries for the compound heuristic.
	sentSepRe = regexp.MustCompile(`[?.!？！]\s+`)
	// Trailing action suffix re-attached to each sub-clause after a split.
	tailRe = regexp.MustCompile(`(하는 법|방법|수정|변경|편집|업데이트|입력|저장)\s*$`)

	spaceRe   = regexp.MustCompile(`\s+`)
	nonWordRe = regexp.MustCompile(`[^0-9A-Za-z_가-힣]`)
)

// indefiniteUniv filters question words that the university pattern would
// otherwise capture ("어느 대학교" is not a university name).
var indefiniteUniv = map[string]bool{
	"어느대학교": true,
	"무슨대학교": true,
	"어떤대학교": true,
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// norm collapses whitespace and strips punctuation so token matching
// survives spacing variants ("내 정보" vs "내정보").
func norm(s string) string {
	if s == "" {
		return ""
	}
	s = spaceRe.ReplaceAllString(s, "")
	return nonWordRe.ReplaceAllString(s, "")
}

var (
	pageTokensNorm  = normAll(pageNames)
	fieldTokensNorm = normAll(fieldTokens)
	editTokensNorm  = normAll(editTokens)
	guideTokensNorm = normAll(guideTokens)
)

func normAll(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if n := norm(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func hasAnyNormed(text string, tokensNorm []string) bool {
	tn := norm(text)
	for _, tok := range tokensNorm {
		if strings.Contains(tn, tok) {
			return true
		}
	}
	return false
}

// normalizeMetrics returns canonical metrics mentioned in the text, in
// table order, without duplicates.
func normalizeMetrics(text string) []Metric {
	var hits []Metric
	for _, entry := range metricAliases {
		if containsAny(text, entry.aliases) {
			hits = append(hits, entry.canon)
		}
	}
	return hits
}

func extractGrades(text string) []int {
	var grades []int
	for _, m := range gradeRe.FindAllStringSubmatch(text, -1) {
		grades = append(grades, int(m[1][0]-'0'))
	}
	return grades
}

// extractUniversities returns named universities, excluding indefinite
// question forms.
func extractUniversities(text string) []string {
	var univs []string
	seen := map[string]bool{}
	for _, m := range univRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if indefiniteUniv[norm(name)] || seen[name] {
			continue
		}
		seen[name] = true
		univs = append(univs, name)
	}
	return univs
}

// detectUsageGuide reports whether the clause asks how to use or navigate
// the service.
func detectUsageGuide(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}
	return containsAny(q, guideKeywords)
}

// groupHintForUsage names the guide document collection for a usage
// question. A single collection serves all guide content today.
func groupHintForUsage(string) string {
	return defaultGuideGroup
}
