package agent

import (
	"math"
	"testing"
)

func TestParseResultTextShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare non-json body", "그냥 문장입니다", "그냥 문장입니다"},
		{"json string", `"따옴표 답변"`, "따옴표 답변"},
		{"answer key", `{"answer":"답변입니다"}`, "답변입니다"},
		{"message key", `{"message":"메시지입니다"}`, "메시지입니다"},
		{"nested result envelope", `{"result":{"text":"중첩 답변"}}`, "중첩 답변"},
		{"nested tool_result", `{"tool_result":{"content":"도구 답변"}}`, "도구 답변"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseResult([]byte(tt.raw))
			if r.Kind != KindText {
				t.Fatalf("kind = %s, want text", r.Kind)
			}
			if r.Text != tt.want {
				t.Errorf("text = %q, want %q", r.Text, tt.want)
			}
		})
	}
}

func TestParseResultSnippets(t *testing.T) {
	raw := `{"context_snippets":[
		"문자열 스니펫",
		{"text":"객체 스니펫","source":"guide.md","score":0.8},
		{"page_content":"랭체인 스니펫"},
		{"source":"no-text.md"},
		"  "
	]}`

	r := ParseResult([]byte(raw))
	if r.Kind != KindMatches {
		t.Fatalf("kind = %s, want matches", r.Kind)
	}
	if len(r.Matches) != 3 {
		t.Fatalf("got %d matches, want 3 (blank and textless entries skipped)", len(r.Matches))
	}
	if r.Matches[0].Text != "문자열 스니펫" {
		t.Errorf("match 0 = %+v", r.Matches[0])
	}
	if r.Matches[1].Source != "guide.md" || r.Matches[1].Score != 0.8 {
		t.Errorf("match 1 = %+v", r.Matches[1])
	}
	if r.Matches[2].Text != "랭체인 스니펫" {
		t.Errorf("match 2 = %+v", r.Matches[2])
	}
}

// The retrieval tool's own envelope is {"ok":true,"rag":{"matches":[...]}}
// with each match shaped {text, meta, score}. Flat and data-wrapped forms
// of the same list occur too; all must normalize.
func TestParseResultMatchesShapes(t *testing.T) {
	match := `{"text":"대출 연장은 마이페이지에서 합니다.","meta":{"page":3,"source":"manual.pdf"},"score":0.9}`
	tests := []struct {
		name string
		raw  string
	}{
		{"flat matches", `{"matches":[` + match + `]}`},
		{"rag envelope", `{"ok":true,"rag":{"matches":[` + match + `]}}`},
		{"data rag envelope", `{"data":{"rag":{"matches":[` + match + `]}}}`},
		{"result envelope", `{"result":{"matches":[` + match + `]}}`},
		{"tool_result envelope", `{"tool_result":{"matches":[` + match + `]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseResult([]byte(tt.raw))
			if r.Kind != KindMatches {
				t.Fatalf("kind = %s, want matches", r.Kind)
			}
			if len(r.Matches) != 1 {
				t.Fatalf("got %d matches, want 1", len(r.Matches))
			}
			m := r.Matches[0]
			if m.Text != "대출 연장은 마이페이지에서 합니다." {
				t.Errorf("text = %q", m.Text)
			}
			if m.Page != 3 {
				t.Errorf("page = %d, want 3", m.Page)
			}
			if m.Source != "manual.pdf" {
				t.Errorf("source = %q, want manual.pdf", m.Source)
			}
			if m.Score != 0.9 {
				t.Errorf("score = %v, want 0.9", m.Score)
			}
		})
	}
}

func TestParseResultMatchTopLevelSourceWins(t *testing.T) {
	raw := `{"matches":[{"text":"본문","source":"guide.md","meta":{"source":"other.md","page":2}}]}`
	r := ParseResult([]byte(raw))
	if r.Kind != KindMatches || len(r.Matches) != 1 {
		t.Fatalf("result = %+v, want one match", r)
	}
	if r.Matches[0].Source != "guide.md" {
		t.Errorf("source = %q, want the explicit top-level value", r.Matches[0].Source)
	}
	if r.Matches[0].Page != 2 {
		t.Errorf("page = %d, want 2", r.Matches[0].Page)
	}
}

func TestParseResultChromaShape(t *testing.T) {
	raw := `{"documents":[["첫 문서","둘째 문서"]],
		"metadatas":[[{"source":"a.md"},{"source":"b.md"}]],
		"distances":[[0.1,0.4]]}`

	r := ParseResult([]byte(raw))
	if r.Kind != KindMatches {
		t.Fatalf("kind = %s, want matches", r.Kind)
	}
	if len(r.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(r.Matches))
	}
	if r.Matches[0].Source != "a.md" {
		t.Errorf("match 0 source = %q", r.Matches[0].Source)
	}
	if math.Abs(r.Matches[0].Score-0.9) > 1e-9 {
		t.Errorf("match 0 score = %v, want distance flipped to 0.9", r.Matches[0].Score)
	}
}

func TestParseResultChromaFlatArrays(t *testing.T) {
	raw := `{"documents":["문서 하나"],"distances":[0.25]}`

	r := ParseResult([]byte(raw))
	if r.Kind != KindMatches || len(r.Matches) != 1 {
		t.Fatalf("result = %+v, want one match", r)
	}
	if math.Abs(r.Matches[0].Score-0.75) > 1e-9 {
		t.Errorf("score = %v, want 0.75", r.Matches[0].Score)
	}
}

func TestParseResultStructured(t *testing.T) {
	raw := `{"data":{"value":1200,"unit":"원","year":2023,"university":"서울대학교","metric":"CPS"}}`

	r := ParseResult([]byte(raw))
	if r.Kind != KindStructured {
		t.Fatalf("kind = %s, want structured", r.Kind)
	}
	m := r.Structured
	if m.Value != "1200" || m.Unit != "원" || m.Year != 2023 || m.University != "서울대학교" || m.Metric != "CPS" {
		t.Errorf("structured = %+v", m)
	}
}

func TestParseResultStructuredStringValue(t *testing.T) {
	r := ParseResult([]byte(`{"value":" 3.5 ","metric":"score"}`))
	if r.Kind != KindStructured || r.Structured.Value != "3.5" {
		t.Errorf("result = %+v", r)
	}
}

func TestParseResultEmptyAndGarbage(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"{}",
		"[]",
		"null",
		`{"value":null}`,
		`{"answer":""}`,
		`{"matches":[]}`,
		`{"rag":{"matches":[]}}`,
		`{"documents":[[]]}`,
		`{"data":{"result":{"rag":{}}}}`,
	}
	for _, raw := range cases {
		r := ParseResult([]byte(raw))
		if r.Kind != KindEmpty {
			t.Errorf("ParseResult(%q).Kind = %s, want empty", raw, r.Kind)
		}
	}
}

func TestParseResultDeepNestingBounded(t *testing.T) {
	raw := `{"data":{"data":{"data":{"data":{"data":{"data":{"answer":"너무 깊음"}}}}}}}`
	r := ParseResult([]byte(raw))
	if r.Kind != KindEmpty {
		t.Errorf("kind = %s, want empty past the depth bound", r.Kind)
	}
}

func TestFormatNumber(t *testing.T) {
	if got := formatNumber(1200); got != "1200" {
		t.Errorf("formatNumber(1200) = %q", got)
	}
	if got := formatNumber(3.5); got != "3.5" {
		t.Errorf("formatNumber(3.5) = %q", got)
	}
}
