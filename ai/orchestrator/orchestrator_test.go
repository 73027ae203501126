package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minseo-dev/libra/ai/agent"
	"github.com/minseo-dev/libra/ai/core/llm"
	"github.com/minseo-dev/libra/store"
)

type fakeLLM struct {
	reply        string
	err          error
	calls        int
	lastMessages []llm.Message
}

func (f *fakeLLM) Chat(_ context.Context, messages []llm.Message, _ *llm.GenOptions) (string, *llm.CallStats, error) {
	f.calls++
	f.lastMessages = messages
	if f.err != nil {
		return "", nil, f.err
	}
	return f.reply, &llm.CallStats{}, nil
}

func (f *fakeLLM) Warmup(context.Context) {}

type fakeAgent struct {
	result   *agent.Result
	err      error
	payloads []*agent.Payload
}

func (f *fakeAgent) PlanAndRun(_ context.Context, payload *agent.Payload) (*agent.Result, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeStore struct {
	user     *store.User
	messages []*store.ChatMessage
	summary  *store.ConversationSummary
	userErr  error
}

func (f *fakeStore) GetUser(context.Context, *store.FindUser) (*store.User, error) {
	return f.user, f.userErr
}

func (f *fakeStore) ListChatMessages(context.Context, *store.FindChatMessage) ([]*store.ChatMessage, error) {
	return f.messages, nil
}

func (f *fakeStore) GetConversationSummary(context.Context, *store.FindConversationSummary) (*store.ConversationSummary, error) {
	return f.summary, nil
}

func testUser() *store.User {
	return &store.User{ID: "u1", Name: "민서", Affiliation: "한국대학교"}
}

func newTestOrchestrator(l llm.Service, a AgentCaller, s ChatStore) *Orchestrator {
	return New(Options{
		LLM:          l,
		Agent:        a,
		Store:        s,
		Config:       DefaultConfig(),
		AgentEnabled: a != nil,
	})
}

func TestHandleSelfMetricOverride(t *testing.T) {
	mock := &fakeLLM{reply: "민서님의 예측점수는 87점입니다."}
	o := newTestOrchestrator(mock, nil, &fakeStore{user: testUser()})

	out, err := o.Handle(context.Background(), &Input{Query: "내 예측점수 알려줘", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, RoutePersonalData, out.Route)
	assert.Equal(t, "민서님의 예측점수는 87점입니다.", out.Answer)
	assert.Equal(t, "self_metric", out.Metadata["override"])
	assert.Equal(t, 1, mock.calls)
}

func TestAnswerPersonalDataAffiliationDirect(t *testing.T) {
	mock := &fakeLLM{reply: "모델이 답할 일이 없습니다."}
	o := newTestOrchestrator(mock, nil, &fakeStore{user: testUser()})

	body, vars, err := o.answerPersonalData(context.Background(), "u1", "내 소속대학 알려줘", nil)
	require.NoError(t, err)

	assert.Equal(t, "민서님, 회원님의 소속 대학은 한국대학교입니다.", body)
	assert.Equal(t, "한국대학교", vars.affiliation)
	assert.Equal(t, 0, mock.calls, "affiliation answers must not call the model")
}

func TestAnswerPersonalDataAffiliationOverride(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{}, nil, &fakeStore{user: testUser()})

	body, _, err := o.answerPersonalData(context.Background(), "u1", "나의 소속대학이 연세대학교 맞아?", nil)
	require.NoError(t, err)
	assert.Contains(t, body, "연세대학교")
}

func TestHandleGuestChat(t *testing.T) {
	mock := &fakeLLM{reply: "안녕하세요! 무엇을 도와드릴까요?"}
	o := newTestOrchestrator(mock, nil, &fakeStore{})

	out, err := o.Handle(context.Background(), &Input{Query: "안녕하세요"})
	require.NoError(t, err)

	assert.Equal(t, RouteGuestChat, out.Route)
	assert.Equal(t, "안녕하세요! 무엇을 도와드릴까요?", out.Answer)

	var persona string
	for _, m := range mock.lastMessages {
		if m.Role == "system" && strings.Contains(m.Content, guestName) {
			persona = m.Content
		}
	}
	assert.NotEmpty(t, persona, "guest persona must be in the system prompt")
}

func TestHandleLLMFailureDegrades(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{err: errors.New("upstream down")}, nil, &fakeStore{})

	out, err := o.Handle(context.Background(), &Input{Query: "안녕하세요"})
	require.NoError(t, err, "failures must degrade, not propagate")

	assert.Equal(t, msgTaskFailed, out.Answer)
	assert.Equal(t, RouteAgentCallFailed, out.Route)
}

func TestHandleAgentDisabled(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{}, nil, &fakeStore{user: testUser()})

	out, err := o.Handle(context.Background(), &Input{Query: "서울대학교 자료구입비 알려줘", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, RouteAgentDisabled, out.Route)
	assert.Equal(t, msgAgentFailed, out.Answer)
}

func TestHandleAgentCallFailed(t *testing.T) {
	a := &fakeAgent{err: errors.New("connection refused")}
	o := newTestOrchestrator(&fakeLLM{}, a, &fakeStore{user: testUser()})

	out, err := o.Handle(context.Background(), &Input{Query: "서울대학교 자료구입비 알려줘", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, RouteAgentCallFailed, out.Route)
	assert.Equal(t, msgAgentFailed, out.Answer)
}

func TestHandleRetrievalEmpty(t *testing.T) {
	a := &fakeAgent{result: &agent.Result{Kind: agent.KindEmpty}}
	o := newTestOrchestrator(&fakeLLM{}, a, &fakeStore{user: testUser()})

	out, err := o.Handle(context.Background(), &Input{Query: "서울대학교 자료구입비 알려줘", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, RouteRetrievalEmpty, out.Route)
	assert.Equal(t, msgNothingFound, out.Answer)
}

func TestHandleStructuredMetric(t *testing.T) {
	a := &fakeAgent{result: &agent.Result{
		Kind: agent.KindStructured,
		Structured: &agent.StructuredMetric{
			Value:      "1,200",
			Unit:       "원",
			Year:       2023,
			University: "서울대학교",
			Metric:     "CPS",
		},
	}}
	o := newTestOrchestrator(&fakeLLM{}, a, &fakeStore{user: testUser()})

	out, err := o.Handle(context.Background(), &Input{Query: "서울대학교 자료구입비 알려줘", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, RouteRetrievalStructured, out.Route)
	assert.Equal(t, "2023년 서울대학교의 자료구입비 값은 1,200원입니다.", out.Answer)
}

func TestHandleRetrievalSynthesis(t *testing.T) {
	a := &fakeAgent{result: &agent.Result{
		Kind: agent.KindMatches,
		Matches: []agent.Match{
			{Text: "회원가입은 메인 페이지에서 시작합니다.", Source: "guide.md", Score: 0.92},
		},
	}}
	mock := &fakeLLM{reply: "회원가입은 메인 페이지의 가입 버튼에서 시작하시면 됩니다."}
	o := newTestOrchestrator(mock, a, &fakeStore{user: testUser()})

	out, err := o.Handle(context.Background(), &Input{Query: "회원가입은 어디서 해?", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, RouteRetrievalSynthesis, out.Route)
	assert.Equal(t, mock.reply, out.Answer)

	var snippets bool
	for _, m := range mock.lastMessages {
		if strings.Contains(m.Content, "[USAGE GUIDE SNIPPETS]") {
			snippets = true
		}
	}
	assert.True(t, snippets, "retrieved snippets must reach the prompt")
}

func TestHandleGraphPath(t *testing.T) {
	a := &fakeAgent{result: &agent.Result{
		Kind: agent.KindStructured,
		Structured: &agent.StructuredMetric{
			Value:      "9,000",
			Unit:       "명",
			Year:       2023,
			University: "연세대학교",
			Metric:     "VPS",
		},
	}}
	mock := &fakeLLM{reply: "대출건수는 잘 모르겠습니다."}
	o := newTestOrchestrator(mock, a, &fakeStore{user: testUser()})

	out, err := o.Handle(context.Background(), &Input{
		Query:  "2023년 연세대학교 방문수는? 같은 해 대출건수는?",
		UserID: "u1",
	})
	require.NoError(t, err)

	assert.Equal(t, RouteGraph, out.Route)
	require.Contains(t, out.Metadata, "graph")
	graph := out.Metadata["graph"].(map[string]any)
	assert.Equal(t, 2, graph["task_count"])

	lines := strings.Split(out.Answer, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "- 2023년 연세대학교의 방문수 값은 9,000명입니다.", lines[0])
	assert.Equal(t, "- 대출건수는 잘 모르겠습니다.", lines[1])
}

func TestHandleGraphTaskFailureIsLocal(t *testing.T) {
	a := &fakeAgent{err: errors.New("agent down")}
	mock := &fakeLLM{reply: "대출건수는 잘 모르겠습니다."}
	o := newTestOrchestrator(mock, a, &fakeStore{user: testUser()})

	out, err := o.Handle(context.Background(), &Input{
		Query:  "2023년 연세대학교 방문수는? 같은 해 대출건수는?",
		UserID: "u1",
	})
	require.NoError(t, err)

	assert.Equal(t, RouteGraph, out.Route)
	assert.Contains(t, out.Answer, msgTaskFailed)
	assert.Contains(t, out.Answer, "대출건수는 잘 모르겠습니다.")
}

func TestAnswerUserChatInjectsHistory(t *testing.T) {
	mock := &fakeLLM{reply: "네, 이어서 설명드릴게요."}
	s := &fakeStore{
		user: testUser(),
		messages: []*store.ChatMessage{
			{Role: store.MessageRoleUser, Content: "예측점수가 뭐야?"},
			{Role: store.MessageRoleAssistant, Content: "예측점수는 학습 데이터 기반 추정치입니다."},
			{Role: store.MessageRoleUser, Content: "더 자세히 알려줘"},
		},
		summary: &store.ConversationSummary{Summary: "예측점수 개념 문의"},
	}
	o := newTestOrchestrator(mock, nil, s)

	_, err := o.answerUserChat(context.Background(), &Input{UserID: "u1", ConversationID: 3}, "더 자세히 알려줘", nil)
	require.NoError(t, err)

	var sawSummary, sawTurn bool
	for _, m := range mock.lastMessages {
		if strings.Contains(m.Content, "[이전 대화 요약] 예측점수 개념 문의") {
			sawSummary = true
		}
		if m.Role == "assistant" && strings.Contains(m.Content, "추정치") {
			sawTurn = true
		}
	}
	assert.True(t, sawSummary, "rolling summary must be injected")
	assert.True(t, sawTurn, "most recent prior turn must be injected, trailing user echo dropped")
}

func TestLookupPromptVarsDegradesToGuest(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{}, nil, &fakeStore{userErr: errors.New("db closed")})

	vars := o.lookupPromptVars(context.Background(), "u1")
	assert.Equal(t, "사용자", vars.userName)
	assert.Empty(t, vars.salutation)
}
