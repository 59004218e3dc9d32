package core

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"healthchat/internal/logging"
	"healthchat/pkg"
)

// Compression defaults.
const (
	DefaultMaxConversationTokens = 6000
	DefaultPriorityMessages      = 5
	DefaultSummaryTokenThreshold = 1000

	summaryTopicCount   = 5
	summaryExcerptCount = 3
	summaryExcerptLen   = 100
)

// CompressorConfig holds the token budget of a conversation.
type CompressorConfig struct {
	MaxConversationTokens int
	PriorityMessages      int
	SummaryTokenThreshold int
}

func (c CompressorConfig) withDefaults() CompressorConfig {
	if c.MaxConversationTokens <= 0 {
		c.MaxConversationTokens = DefaultMaxConversationTokens
	}
	if c.PriorityMessages <= 0 {
		c.PriorityMessages = DefaultPriorityMessages
	}
	if c.SummaryTokenThreshold <= 0 {
		c.SummaryTokenThreshold = DefaultSummaryTokenThreshold
	}
	return c
}

// Summarizer keeps conversation context within the token budget.  The most
// recent PriorityMessages are always kept verbatim; older history is folded
// into a generated summary.
type Summarizer struct {
	cfg      CompressorConfig
	keywords *KeywordExtractor
	store    Store
	clock    Clock
	logger   *logging.Logger
}

// NewSummarizer constructs a summarizer.  store may be nil when only the
// read-only operations are used.
func NewSummarizer(cfg CompressorConfig, keywords *KeywordExtractor, store Store, clock Clock, logger *logging.Logger) *Summarizer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Summarizer{
		cfg:      cfg.withDefaults(),
		keywords: keywords,
		store:    store,
		clock:    clock,
		logger:   logging.OrNop(logger),
	}
}

// ShouldCompress reports whether the conversation is over its budget.
func (s *Summarizer) ShouldCompress(conv *pkg.Conversation) bool {
	return conv.TokenUsage > s.cfg.MaxConversationTokens
}

// Compress appends a system summary of every active message outside the
// priority window, earlier summaries included, and flags those messages
// compressed.  conv is updated in place to mirror what was persisted.  It is
// a no-op when nothing falls outside the window.
func (s *Summarizer) Compress(ctx context.Context, conv *pkg.Conversation) (*pkg.Message, error) {
	if s.store == nil {
		return nil, fmt.Errorf("compress conversation %s: no store configured", conv.ID)
	}
	summaries, dialog := partition(conv.ActiveMessages())
	if len(dialog) <= s.cfg.PriorityMessages {
		return nil, nil
	}
	older := append(summaries, dialog[:len(dialog)-s.cfg.PriorityMessages]...)

	content, meta := s.summarize(older)
	now := s.clock.Now()
	summary := &pkg.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           pkg.RoleSystem,
		Content:        content,
		TokenCount:     EstimateTokens(content),
		CreatedAt:      now,
		Meta:           pkg.MessageMeta{Kind: pkg.KindSummary, Summary: meta},
	}
	if err := s.store.AppendMessage(ctx, summary); err != nil {
		return nil, fmt.Errorf("append summary: %w", err)
	}
	if err := s.store.MarkCompressed(ctx, conv.ID, meta.SummarizedIDs, now); err != nil {
		return nil, fmt.Errorf("mark compressed: %w", err)
	}

	flagged := make(map[string]struct{}, len(meta.SummarizedIDs))
	for _, id := range meta.SummarizedIDs {
		flagged[id] = struct{}{}
	}
	for i := range conv.Messages {
		if _, ok := flagged[conv.Messages[i].ID]; ok {
			conv.Messages[i].Meta.Compressed = true
			at := now
			conv.Messages[i].Meta.CompressedAt = &at
		}
	}
	conv.Messages = append(conv.Messages, *summary)
	conv.TokenUsage += summary.TokenCount

	s.logger.Infow("conversation compressed",
		"conversation_id", conv.ID,
		"summarized", len(meta.SummarizedIDs),
		"summary_tokens", summary.TokenCount,
		"token_usage", conv.TokenUsage)
	return summary, nil
}

// OptimizeForContext returns the role/content list sent to the provider:
// active summaries first, then the dialog.  The last PriorityMessages
// user and assistant messages are always verbatim.  It never modifies conv.
func (s *Summarizer) OptimizeForContext(conv *pkg.Conversation) []pkg.ChatMessage {
	summaries, dialog := partition(conv.ActiveMessages())
	if len(dialog) <= s.cfg.PriorityMessages {
		return toChatMessages(append(summaries, dialog...))
	}

	split := len(dialog) - s.cfg.PriorityMessages
	older := append(summaries, dialog[:split]...)
	recent := dialog[split:]

	olderTokens := 0
	for _, m := range older {
		olderTokens += messageTokens(m)
	}

	out := make([]pkg.ChatMessage, 0, len(recent)+1)
	if olderTokens > s.cfg.SummaryTokenThreshold {
		content, _ := s.summarize(older)
		out = append(out, pkg.ChatMessage{Role: pkg.RoleSystem, Content: content})
	} else {
		out = append(out, toChatMessages(older)...)
	}
	return append(out, toChatMessages(recent)...)
}

// partition splits active messages into summaries and dialog, keeping the
// order within each.
func partition(active []pkg.Message) (summaries, dialog []pkg.Message) {
	for _, m := range active {
		if m.Meta.Kind == pkg.KindSummary {
			summaries = append(summaries, m)
		} else {
			dialog = append(dialog, m)
		}
	}
	return summaries, dialog
}

// summarize renders the fixed-template summary of msgs.  An earlier summary
// in msgs contributes its counts and topics, so the totals cover every
// message folded so far.
func (s *Summarizer) summarize(msgs []pkg.Message) (string, *pkg.SummaryMeta) {
	meta := &pkg.SummaryMeta{SummarizedIDs: make([]string, 0, len(msgs))}
	var userText strings.Builder
	for _, m := range msgs {
		meta.SummarizedIDs = append(meta.SummarizedIDs, m.ID)
		if prev := m.Meta.Summary; m.Meta.Kind == pkg.KindSummary && prev != nil {
			meta.UserMessages += prev.UserMessages
			meta.AssistantMessages += prev.AssistantMessages
			for _, topic := range prev.Topics {
				userText.WriteString(topic)
				userText.WriteByte(' ')
			}
			continue
		}
		switch m.Role {
		case pkg.RoleUser:
			meta.UserMessages++
			userText.WriteString(m.Content)
			userText.WriteByte(' ')
		case pkg.RoleAssistant:
			meta.AssistantMessages++
		}
	}
	meta.Topics = s.keywords.Extract(userText.String(), summaryTopicCount)

	start := len(msgs) - summaryExcerptCount
	if start < 0 {
		start = 0
	}
	excerpts := make([]string, 0, summaryExcerptCount)
	for _, m := range msgs[start:] {
		excerpts = append(excerpts, fmt.Sprintf("%s: %s", m.Role, truncateRunes(m.Content, summaryExcerptLen)))
	}

	topics := "general health questions"
	if len(meta.Topics) > 0 {
		topics = strings.Join(meta.Topics, ", ")
	}
	content := fmt.Sprintf(
		"Summary of earlier conversation: %d user messages and %d assistant replies were exchanged. Main topics: %s. Recent context: %s",
		meta.UserMessages, meta.AssistantMessages, topics, strings.Join(excerpts, " | "),
	)
	return content, meta
}

func toChatMessages(msgs []pkg.Message) []pkg.ChatMessage {
	out := make([]pkg.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, pkg.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// messageTokens prefers the stored estimate and falls back to recomputing.
func messageTokens(m pkg.Message) int {
	if m.TokenCount > 0 {
		return m.TokenCount
	}
	return EstimateTokens(m.Content)
}

// truncateRunes cuts s to n characters, appending "..." when it was cut.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
