package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"healthchat/internal/cache"
	"healthchat/internal/db"
	"healthchat/internal/llm"
	"healthchat/pkg"
)

var testNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func testClock() Clock { return ClockFunc(func() time.Time { return testNow }) }

// fakeProvider answers every completion with reply, or fails with err.
type fakeProvider struct {
	mu       sync.Mutex
	reply    string
	model    string
	usage    llm.Usage
	err      error
	requests []llm.Request
}

func (f *fakeProvider) CreateChatCompletion(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	model := f.model
	if model == "" {
		model = req.Model
	}
	return &llm.Response{
		ID:      "resp-1",
		Model:   model,
		Choices: []llm.Choice{{Content: f.reply, FinishReason: "stop"}},
		Usage:   f.usage,
	}, nil
}

func (f *fakeProvider) lastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// fakeSearcher returns results, or fails with err, and counts calls.
type fakeSearcher struct {
	mu      sync.Mutex
	results []pkg.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, limit int) ([]pkg.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// failingStore wraps a MemoryStore and fails AppendMessage for assistant
// messages until the failure budget is spent.
type failingStore struct {
	*db.MemoryStore
	failAssistant int
}

func (s *failingStore) AppendMessage(ctx context.Context, m *pkg.Message) error {
	if m.Role == pkg.RoleAssistant && m.Content != ApologyMessage && s.failAssistant > 0 {
		s.failAssistant--
		return errors.New("disk full")
	}
	return s.MemoryStore.AppendMessage(ctx, m)
}

// recordingNotifier remembers every urgent notification.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) NotifyUrgent(_ context.Context, conversationID string, level pkg.UrgencyLevel) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, conversationID+":"+string(level))
	return nil
}

type testEnv struct {
	store    Store
	memory   *db.MemoryStore
	provider *fakeProvider
	searcher *fakeSearcher
	notifier *recordingNotifier
	pipeline *Pipeline
}

func newTestEnv(t *testing.T, apiKey string, wrap func(*db.MemoryStore) Store) *testEnv {
	t.Helper()
	mem := db.NewMemoryStore(func() time.Time { return testNow })
	var store Store = mem
	if wrap != nil {
		store = wrap(mem)
	}
	vocab := DefaultVocabulary()
	keywords := NewKeywordExtractor(vocab.StopWords)
	memCache := cache.NewMemoryCache(func() time.Time { return testNow })
	env := &testEnv{
		store:    store,
		memory:   mem,
		provider: &fakeProvider{reply: "Rest and drink plenty of fluids. Most colds usually resolve within a week."},
		searcher: &fakeSearcher{},
		notifier: &recordingNotifier{},
	}
	env.pipeline = NewPipeline(PipelineDeps{
		Store:       store,
		Summarizer:  NewSummarizer(CompressorConfig{}, keywords, store, testClock(), nil),
		Context:     NewContextBuilder("", keywords, memCache, 0, nil),
		Chat:        NewChatService(env.provider, ChatConfig{APIKey: apiKey, Model: "gpt-4o-mini", MaxTokens: 500}, testClock(), nil),
		Classifier:  NewClassifier(vocab),
		Recommender: NewRecommender(vocab, env.searcher, memCache, RecommenderConfig{}, nil),
		Notifier:    env.notifier,
		Clock:       testClock(),
	}, nil)
	return env
}

func (e *testEnv) newConversation(t *testing.T, profileID string) string {
	t.Helper()
	conv, err := e.memory.CreateConversation(context.Background(), profileID)
	require.NoError(t, err)
	return conv.ID
}

// requireTokenInvariant checks token_usage against the stored messages.
func requireTokenInvariant(t *testing.T, store Store, id string) *pkg.Conversation {
	t.Helper()
	conv, err := store.GetConversation(context.Background(), id)
	require.NoError(t, err)
	sum := 0
	for _, m := range conv.Messages {
		sum += m.TokenCount
	}
	require.Equal(t, sum, conv.TokenUsage, "token_usage must equal the sum of message token counts")
	return conv
}

// dialog builds n alternating user/assistant messages of size chars each.
func dialog(convID string, n, size int) []pkg.Message {
	msgs := make([]pkg.Message, 0, n)
	for i := 0; i < n; i++ {
		role, kind := pkg.RoleUser, pkg.KindUser
		if i%2 == 1 {
			role, kind = pkg.RoleAssistant, pkg.KindAssistant
		}
		content := fmt.Sprintf("message %d about headache ", i) + strings.Repeat("x", size)
		msgs = append(msgs, pkg.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: convID,
			Role:           role,
			Content:        content,
			TokenCount:     EstimateTokens(content),
			CreatedAt:      testNow.Add(time.Duration(i) * time.Second),
			Meta:           pkg.MessageMeta{Kind: kind},
		})
	}
	return msgs
}

func sumTokens(msgs []pkg.Message) int {
	n := 0
	for _, m := range msgs {
		n += m.TokenCount
	}
	return n
}
