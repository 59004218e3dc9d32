package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthchat/internal/db"
	"healthchat/pkg"
)

func newTestSummarizer(store Store) *Summarizer {
	return NewSummarizer(CompressorConfig{}, NewKeywordExtractor(DefaultVocabulary().StopWords), store, testClock(), nil)
}

func TestShouldCompressBoundary(t *testing.T) {
	s := newTestSummarizer(nil)

	assert.False(t, s.ShouldCompress(&pkg.Conversation{TokenUsage: 6000}))
	assert.True(t, s.ShouldCompress(&pkg.Conversation{TokenUsage: 6001}))
}

func TestOptimizeForContextShortConversationIsVerbatim(t *testing.T) {
	s := newTestSummarizer(nil)
	conv := &pkg.Conversation{ID: "c1", Messages: dialog("c1", 5, 5000)}

	got := s.OptimizeForContext(conv)

	require.Len(t, got, 5)
	for i, m := range conv.Messages {
		assert.Equal(t, m.Content, got[i].Content)
	}
}

func TestOptimizeForContextKeepsPriorityMessagesVerbatim(t *testing.T) {
	s := newTestSummarizer(nil)
	conv := &pkg.Conversation{ID: "c1", Messages: dialog("c1", 8, 2000)}
	before := append([]pkg.Message(nil), conv.Messages...)

	got := s.OptimizeForContext(conv)

	require.Len(t, got, 6)
	assert.Equal(t, pkg.RoleSystem, got[0].Role)
	assert.True(t, strings.HasPrefix(got[0].Content, "Summary of earlier conversation: 2 user messages and 1 assistant replies"))
	for i, m := range conv.Messages[3:] {
		assert.Equal(t, m.Content, got[i+1].Content)
		assert.Equal(t, m.Role, got[i+1].Role)
	}
	assert.Equal(t, before, conv.Messages, "optimize must not modify the conversation")
	assert.Equal(t, got, s.OptimizeForContext(conv))
}

func TestOptimizeForContextSmallHistoryIsVerbatim(t *testing.T) {
	s := newTestSummarizer(nil)
	conv := &pkg.Conversation{ID: "c1", Messages: dialog("c1", 8, 10)}

	got := s.OptimizeForContext(conv)

	require.Len(t, got, 8)
	for i, m := range conv.Messages {
		assert.Equal(t, m.Content, got[i].Content)
	}
}

func TestCompressFoldsOlderMessages(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore(nil)
	conv, err := store.CreateConversation(ctx, "")
	require.NoError(t, err)
	for _, m := range dialog(conv.ID, 8, 4000) {
		m := m
		require.NoError(t, store.AppendMessage(ctx, &m))
	}
	conv, err = store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.True(t, newTestSummarizer(store).ShouldCompress(conv))

	s := newTestSummarizer(store)
	summary, err := s.Compress(ctx, conv)
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, pkg.RoleSystem, summary.Role)
	assert.Equal(t, pkg.KindSummary, summary.Meta.Kind)
	require.NotNil(t, summary.Meta.Summary)
	assert.Equal(t, []string{"m0", "m1", "m2"}, summary.Meta.Summary.SummarizedIDs)
	assert.Equal(t, 2, summary.Meta.Summary.UserMessages)
	assert.Equal(t, 1, summary.Meta.Summary.AssistantMessages)
	assert.Contains(t, summary.Content, "headache")

	stored, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 9)
	for i, m := range stored.Messages[:3] {
		assert.True(t, m.Meta.Compressed, "message %d", i)
	}
	for _, m := range stored.Messages[3:] {
		assert.False(t, m.Meta.Compressed)
	}
	assert.Equal(t, sumTokens(stored.Messages), stored.TokenUsage)
	assert.Equal(t, stored.TokenUsage, conv.TokenUsage)

	// The summary comes first and the five most recent messages follow it.
	optimized := s.OptimizeForContext(stored)
	require.Len(t, optimized, 6)
	assert.Equal(t, summary.Content, optimized[0].Content)
	for i, m := range stored.Messages[3:8] {
		assert.Equal(t, m.Content, optimized[i+1].Content)
	}
}

func TestCompressIsNoOpInsidePriorityWindow(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore(nil)
	conv, _ := store.CreateConversation(ctx, "")
	conv.Messages = dialog(conv.ID, 4, 10)

	summary, err := newTestSummarizer(store).Compress(ctx, conv)

	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestCompressFoldsPreviousSummary(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore(nil)
	conv, _ := store.CreateConversation(ctx, "")
	for _, m := range dialog(conv.ID, 8, 100) {
		m := m
		require.NoError(t, store.AppendMessage(ctx, &m))
	}
	conv, _ = store.GetConversation(ctx, conv.ID)
	s := newTestSummarizer(store)
	first, err := s.Compress(ctx, conv)
	require.NoError(t, err)

	extra := dialog(conv.ID, 10, 100)[8:]
	for _, m := range extra {
		m := m
		require.NoError(t, store.AppendMessage(ctx, &m))
	}
	conv, _ = store.GetConversation(ctx, conv.ID)
	second, err := s.Compress(ctx, conv)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, []string{first.ID, "m3", "m4"}, second.Meta.Summary.SummarizedIDs)
	assert.Equal(t, 2, first.Meta.Summary.UserMessages)
	assert.Equal(t, 1, first.Meta.Summary.AssistantMessages)
	assert.Equal(t, 3, second.Meta.Summary.UserMessages)
	assert.Equal(t, 2, second.Meta.Summary.AssistantMessages)
	assert.Contains(t, second.Content, "3 user messages and 2 assistant replies")
	assert.Contains(t, second.Meta.Summary.Topics, "headache")
	active := conv.ActiveMessages()
	require.Len(t, active, 6)
	assert.Equal(t, second.ID, active[5].ID)
}
