package orchestrator

import (
	"reflect"
	"testing"
)

func TestClassifyUsageGuide(t *testing.T) {
	tests := []string{
		"서비스 이용가이드 어디서 봐?",
		"마이페이지 사용법 알려줘",
		"비밀번호 변경은 어떻게 해?",
	}
	for _, query := range tests {
		intent := Classify(query, true)
		if intent.Kind != IntentNeedsExternalTool {
			t.Errorf("Classify(%q) kind = %s, want %s", query, intent.Kind, IntentNeedsExternalTool)
		}
		if intent.Reason != "usage_guide" {
			t.Errorf("Classify(%q) reason = %s, want usage_guide", query, intent.Reason)
		}
		if intent.RAGGroupHint == "" {
			t.Errorf("Classify(%q) expected a retrieval group hint", query)
		}
	}
}

func TestClassifyGuest(t *testing.T) {
	intent := Classify("안녕하세요", false)
	if intent.Kind != IntentGuestChat {
		t.Errorf("kind = %s, want %s", intent.Kind, IntentGuestChat)
	}
}

func TestClassifyDecisionTable(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		loggedIn  bool
		wantKind  IntentKind
		wantCalc  bool
		wantSlots int
	}{
		{
			name:      "self with external entity",
			query:     "내 자료구입비를 서울대학교와 비교해줘",
			loggedIn:  true,
			wantKind:  IntentNeedsExternalTool,
			wantCalc:  true,
			wantSlots: 1,
		},
		{
			name:      "self multi slot",
			query:     "내 3학년 자료구입비 점수 차이 알려줘",
			loggedIn:  true,
			wantKind:  IntentNeedsExternalTool,
			wantCalc:  true,
			wantSlots: 2,
		},
		{
			name:      "self single metric",
			query:     "내 예측점수 알려줘",
			loggedIn:  true,
			wantKind:  IntentPersonalData,
			wantSlots: 1,
		},
		{
			name:      "implied self metric plus grade",
			query:     "3학년 예측점수 알려줘",
			loggedIn:  true,
			wantKind:  IntentPersonalData,
			wantSlots: 1,
		},
		{
			name:     "external entity only",
			query:    "연세대학교 상황이 궁금해",
			loggedIn: true,
			wantKind: IntentNeedsExternalTool,
		},
		{
			name:      "metric owner unclear",
			query:     "예측점수가 뭐야",
			loggedIn:  true,
			wantKind:  IntentGeneralChat,
			wantSlots: 1,
		},
		{
			name:     "general chat",
			query:    "오늘 날씨 어때",
			loggedIn: true,
			wantKind: IntentGeneralChat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := Classify(tt.query, tt.loggedIn)
			if intent.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s (reason=%s)", intent.Kind, tt.wantKind, intent.Reason)
			}
			if intent.WantsCalculation != tt.wantCalc {
				t.Errorf("wants_calculation = %v, want %v", intent.WantsCalculation, tt.wantCalc)
			}
			if len(intent.UserSlots) != tt.wantSlots {
				t.Errorf("slots = %d, want %d", len(intent.UserSlots), tt.wantSlots)
			}
		})
	}
}

// A clause with both a first-person marker and an external university must
// classify as self plus external entity, never as plain personal data.
func TestClassifySelfVsOtherPrecedence(t *testing.T) {
	intent := Classify("내 점수를 고려대학교 점수와 비교해줘", true)
	if intent.Kind != IntentNeedsExternalTool {
		t.Fatalf("kind = %s, want %s", intent.Kind, IntentNeedsExternalTool)
	}
	if intent.Reason != "self data + external entity" {
		t.Errorf("reason = %q, want self data + external entity", intent.Reason)
	}
	if len(intent.ExternalEntities) != 1 || intent.ExternalEntities[0] != "고려대학교" {
		t.Errorf("external entities = %v", intent.ExternalEntities)
	}
}

func TestClassifyDeterminism(t *testing.T) {
	const query = "내 4학년 자료구입비와 3학년 대출건수 알려줘"
	first := Classify(query, true)
	for i := 0; i < 5; i++ {
		if got := Classify(query, true); !reflect.DeepEqual(got, first) {
			t.Fatalf("classification is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestClassifyIndefiniteUniversityExcluded(t *testing.T) {
	intent := Classify("어느 대학교가 제일 좋아?", true)
	if len(intent.ExternalEntities) != 0 {
		t.Errorf("indefinite university form extracted as entity: %v", intent.ExternalEntities)
	}
}

func TestClassifyNeverPanicsOnEmpty(t *testing.T) {
	for _, q := range []string{"", "   ", "???"} {
		intent := Classify(q, true)
		if intent.Kind == "" {
			t.Errorf("Classify(%q) returned empty kind", q)
		}
	}
}
