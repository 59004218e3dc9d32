package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthchat/internal/cache"
	"healthchat/pkg"
)

func newTestContextBuilder(c Cache) *ContextBuilder {
	return NewContextBuilder("", NewKeywordExtractor(DefaultVocabulary().StopWords), c, 0, nil)
}

func TestBuildWithoutConversationOrProfile(t *testing.T) {
	b := newTestContextBuilder(nil)

	bundle := b.Build(context.Background(), "I have a headache", nil, nil)

	require.NotNil(t, bundle)
	assert.Equal(t, SystemPrompt, bundle.SystemPrompt)
	assert.Equal(t, "en", bundle.UserContext.Language)
	assert.Equal(t, "friendly", bundle.UserContext.CommunicationStyle)
	assert.Empty(t, bundle.UserContext.Name)
	assert.Nil(t, bundle.UserProfile)
	assert.Equal(t, []string{"headache"}, bundle.Keywords)
	assert.Equal(t, []string{"headache"}, bundle.RelevantData.TopicMatches["symptoms"])
	assert.NotEmpty(t, bundle.RelevantData.ConditionAdvice)
	assert.NotEmpty(t, bundle.RelevantData.SafetyGuidelines)
	assert.NotEmpty(t, bundle.RelevantData.StatisticalData)
	assert.NotNil(t, bundle.ConversationContext.Topics)
	assert.NotNil(t, bundle.ConversationContext.RecentMessages)
}

func TestBuildConversationContext(t *testing.T) {
	b := newTestContextBuilder(nil)
	conv := &pkg.Conversation{ID: "c1", Title: "Headaches", Messages: dialog("c1", 6, 300)}

	bundle := b.Build(context.Background(), "still hurts", conv, nil)

	cc := bundle.ConversationContext
	assert.Equal(t, "c1", cc.ID)
	assert.Equal(t, "Headaches", cc.Title)
	assert.Equal(t, 6, cc.MessageCount)
	assert.Contains(t, cc.Topics, "headache")
	require.Len(t, cc.RecentMessages, 3)
	assert.Equal(t, conv.Messages[3].Role, cc.RecentMessages[0].Role)
	for _, m := range cc.RecentMessages {
		assert.Equal(t, 203, len([]rune(m.Content)), "200 characters plus ellipsis")
	}
}

func TestBuildCopiesProfile(t *testing.T) {
	b := newTestContextBuilder(nil)
	age := 42
	profile := &pkg.Profile{ID: "p1", Name: " Dana ", Age: &age}

	bundle := b.Build(context.Background(), "hello", nil, profile)

	require.NotNil(t, bundle.UserProfile)
	assert.Equal(t, "Dana", bundle.UserContext.Name)
	bundle.UserProfile.Name = "changed"
	assert.Equal(t, " Dana ", profile.Name)
}

func TestRelevantDataIsCached(t *testing.T) {
	mem := cache.NewMemoryCache(func() time.Time { return testNow })
	b := newTestContextBuilder(mem)
	ctx := context.Background()

	first := b.Build(ctx, "diabetes and fever", nil, nil)
	require.Equal(t, 1, mem.Len())

	// Keyword order does not change the key.
	key := relevantDataKey("", []string{"fever", "diabetes"})
	raw, ok, err := mem.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	var cached pkg.RelevantData
	require.NoError(t, json.Unmarshal(raw, &cached))
	assert.Equal(t, first.RelevantData, cached)

	// A poisoned entry proves the second build reads from the cache.
	poisoned, _ := json.Marshal(pkg.RelevantData{ConditionAdvice: []string{"from cache"}})
	require.NoError(t, mem.Set(ctx, key, poisoned, time.Minute))
	second := b.Build(ctx, "fever and diabetes", nil, nil)
	assert.Equal(t, []string{"from cache"}, second.RelevantData.ConditionAdvice)
}

func TestRelevantDataKeyFallsBackToQuery(t *testing.T) {
	assert.Equal(t, relevantDataKey("The And", nil), relevantDataKey("  the and ", nil))
	assert.NotEqual(t, relevantDataKey("the", nil), relevantDataKey("and", nil))
}
