package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minseo-dev/libra/internal/profile"
	"github.com/minseo-dev/libra/store"
)

func newTestDriver(t *testing.T) store.Driver {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "libra_test.db"),
	}
	driver, err := NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })

	require.NoError(t, driver.Migrate(context.Background()))
	return driver
}

func TestUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	driver := newTestDriver(t)

	created, err := driver.CreateUser(ctx, &store.User{
		ID:          "u1",
		Name:        "민서",
		Affiliation: "한국대학교",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.CreatedTs)

	id := "u1"
	got, err := driver.GetUser(ctx, &store.FindUser{ID: &id})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "민서", got.Name)
	assert.Equal(t, "한국대학교", got.Affiliation)

	missing := "nobody"
	got, err = driver.GetUser(ctx, &store.FindUser{ID: &missing})
	require.NoError(t, err)
	assert.Nil(t, got, "an unknown user is nil, not an error")
}

func TestChatMessageOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	driver := newTestDriver(t)

	convID := int64(7)
	contents := []string{"첫 질문", "첫 답변", "둘째 질문", "둘째 답변"}
	roles := []store.MessageRole{
		store.MessageRoleUser, store.MessageRoleAssistant,
		store.MessageRoleUser, store.MessageRoleAssistant,
	}
	for i, content := range contents {
		_, err := driver.CreateChatMessage(ctx, &store.CreateChatMessage{
			ConversationID: convID,
			Role:           roles[i],
			Content:        content,
		})
		require.NoError(t, err)
	}
	// A different conversation must not leak into the listing.
	_, err := driver.CreateChatMessage(ctx, &store.CreateChatMessage{
		ConversationID: 99,
		Role:           store.MessageRoleUser,
		Content:        "다른 대화",
	})
	require.NoError(t, err)

	messages, err := driver.ListChatMessages(ctx, &store.FindChatMessage{ConversationID: &convID})
	require.NoError(t, err)
	require.Len(t, messages, 4)
	for i, m := range messages {
		assert.Equal(t, contents[i], m.Content, "messages replay oldest first")
	}

	limit := 2
	messages, err = driver.ListChatMessages(ctx, &store.FindChatMessage{
		ConversationID: &convID,
		Limit:          &limit,
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "둘째 질문", messages[0].Content, "limit keeps the most recent rows")
	assert.Equal(t, "둘째 답변", messages[1].Content)
}

func TestConversationSummaryUpsert(t *testing.T) {
	ctx := context.Background()
	driver := newTestDriver(t)

	convID := int64(3)

	got, err := driver.GetConversationSummary(ctx, &store.FindConversationSummary{ConversationID: &convID})
	require.NoError(t, err)
	assert.Nil(t, got)

	first, err := driver.UpsertConversationSummary(ctx, &store.UpsertConversationSummary{
		ConversationID: convID,
		Summary:        "첫 요약",
	})
	require.NoError(t, err)

	second, err := driver.UpsertConversationSummary(ctx, &store.UpsertConversationSummary{
		ConversationID: convID,
		Summary:        "갱신된 요약",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "exactly one summary row per conversation")

	got, err = driver.GetConversationSummary(ctx, &store.FindConversationSummary{ConversationID: &convID})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "갱신된 요약", got.Summary)
}
