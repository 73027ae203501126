package orchestrator

import (
	"reflect"
	"testing"
)

func TestSplitCompoundSingleClauseIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	tests := []string{
		"내 예측점수 알려줘",
		"오늘 날씨 어때",
		"마이페이지",
	}
	for _, q := range tests {
		got := SplitCompound(q, cfg)
		if !reflect.DeepEqual(got, []string{q}) {
			t.Errorf("SplitCompound(%q) = %v, want the clause unchanged", q, got)
		}
	}
}

func TestSplitCompoundOnConnective(t *testing.T) {
	got := SplitCompound("내 4학년 자료구입비와 3학년 대출건수 알려줘", DefaultConfig())
	want := []string{"내 4학년 자료구입비", "3학년 대출건수 알려줘"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSplitCompoundOnPunctuation(t *testing.T) {
	got := SplitCompound("내 점수 알려줘? 그리고 날씨도 알려줘", DefaultConfig())
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 clauses", got)
	}
	if got[0] != "내 점수 알려줘" {
		t.Errorf("first clause = %q", got[0])
	}
}

func TestSplitCompoundTailReattachment(t *testing.T) {
	got := SplitCompound("소속대학 정보와 자료구입비 입력값 수정", DefaultConfig())
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 clauses", got)
	}
	for _, clause := range got {
		if !containsAny(clause, []string{"수정"}) {
			t.Errorf("clause %q lost the trailing action suffix", clause)
		}
	}
}

func TestSplitCompoundShortClauseNeverSplit(t *testing.T) {
	// Connective plus two field tokens, but below the minimum length.
	q := "점수와 대출건수"
	got := SplitCompound(q, DefaultConfig())
	if !reflect.DeepEqual(got, []string{q}) {
		t.Errorf("short clause was split: %v", got)
	}
}

func TestSplitCompoundCapsTaskCount(t *testing.T) {
	cfg := DefaultConfig()
	q := "점수 알려줘? 대출 알려줘? 방문수 알려줘? 자료구입비 알려줘? 점수? 대출? 방문수? 자료구입비? 예산? 소속대학?"
	got := SplitCompound(q, cfg)
	if len(got) > cfg.MaxTasks {
		t.Errorf("got %d clauses, cap is %d", len(got), cfg.MaxTasks)
	}
}

func TestSplitCompoundEmpty(t *testing.T) {
	if got := SplitCompound("   ", DefaultConfig()); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestShouldUseGraph(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"single short question", "내 점수 알려줘", false},
		{"two sentences", "내 점수 알려줘? 그리고 발전도 분석은 어디에 있어?", true},
		{"connective with two field tokens", "자료구입비 과 예측점수 비교해줘", true},
		{"long query with comma", "학습환경 분석이 궁금하고, 발전도 분석도 궁금합니다", true},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldUseGraph(tt.query, cfg); got != tt.want {
				t.Errorf("ShouldUseGraph(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}
