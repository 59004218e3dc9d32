package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"healthchat/internal/logging"
	"healthchat/pkg"
)

const (
	// DefaultContextCacheTTL bounds how long relevant data is memoized.
	DefaultContextCacheTTL = 30 * time.Minute

	requestKeywordCount = 10
	topicKeywordCount   = 10
	recentMessageCount  = 3
	recentMessageLen    = 200

	defaultLanguage = "en"
	defaultStyle    = "friendly"
)

// ContextBuilder assembles the ContextBundle handed to the gateway.
type ContextBuilder struct {
	systemPrompt string
	keywords     *KeywordExtractor
	cache        Cache
	cacheTTL     time.Duration
	logger       *logging.Logger
}

// NewContextBuilder constructs a builder.  cache may be nil, in which case
// relevant data is computed on every request.
func NewContextBuilder(systemPrompt string, keywords *KeywordExtractor, cache Cache, cacheTTL time.Duration, logger *logging.Logger) *ContextBuilder {
	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultContextCacheTTL
	}
	return &ContextBuilder{
		systemPrompt: systemPrompt,
		keywords:     keywords,
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       logging.OrNop(logger),
	}
}

// Build assembles the bundle for one request.  conv and profile may be nil;
// missing fields are simply left out.
func (b *ContextBuilder) Build(ctx context.Context, userMessage string, conv *pkg.Conversation, profile *pkg.Profile) *pkg.ContextBundle {
	keywords := b.keywords.Extract(userMessage, requestKeywordCount)

	bundle := &pkg.ContextBundle{
		SystemPrompt: b.systemPrompt,
		UserContext: pkg.UserContext{
			Language:           defaultLanguage,
			CommunicationStyle: defaultStyle,
		},
		ConversationContext: b.conversationContext(conv),
		RelevantData:        b.relevantData(ctx, userMessage, keywords),
		Keywords:            keywords,
	}
	if profile != nil {
		p := *profile
		bundle.UserProfile = &p
		bundle.UserContext.Name = strings.TrimSpace(profile.Name)
	}
	return bundle
}

func (b *ContextBuilder) conversationContext(conv *pkg.Conversation) pkg.ConversationContext {
	cc := pkg.ConversationContext{Topics: []string{}, RecentMessages: []pkg.ChatMessage{}}
	if conv == nil {
		return cc
	}
	cc.ID = conv.ID
	cc.Title = conv.Title
	cc.MessageCount = len(conv.Messages)

	var all strings.Builder
	for _, m := range conv.Messages {
		all.WriteString(m.Content)
		all.WriteByte(' ')
	}
	cc.Topics = b.keywords.Extract(all.String(), topicKeywordCount)

	start := len(conv.Messages) - recentMessageCount
	if start < 0 {
		start = 0
	}
	for _, m := range conv.Messages[start:] {
		cc.RecentMessages = append(cc.RecentMessages, pkg.ChatMessage{
			Role:    m.Role,
			Content: truncateRunes(m.Content, recentMessageLen),
		})
	}
	return cc
}

// relevantData returns the cached knowledge block for the keyword set,
// computing and storing it on a miss.
func (b *ContextBuilder) relevantData(ctx context.Context, query string, keywords []string) pkg.RelevantData {
	key := relevantDataKey(query, keywords)
	if b.cache != nil {
		raw, ok, err := b.cache.Get(ctx, key)
		if err != nil {
			b.logger.Warnw("context cache read failed", "key", key, "error", err)
		}
		if ok {
			var rd pkg.RelevantData
			if err := json.Unmarshal(raw, &rd); err == nil {
				return rd
			}
			b.logger.Warnw("discarding undecodable context cache entry", "key", key)
		}
	}

	rd := lookupRelevantData(keywords)
	if b.cache != nil {
		if raw, err := json.Marshal(rd); err == nil {
			if err := b.cache.Set(ctx, key, raw, b.cacheTTL); err != nil {
				b.logger.Warnw("context cache write failed", "key", key, "error", err)
			}
		}
	}
	return rd
}

// relevantDataKey hashes the sorted keyword set, or the raw query when the
// message had no keywords.
func relevantDataKey(query string, keywords []string) string {
	material := strings.ToLower(strings.TrimSpace(query))
	if len(keywords) > 0 {
		sorted := append([]string(nil), keywords...)
		sort.Strings(sorted)
		material = strings.Join(sorted, ",")
	}
	sum := sha256.Sum256([]byte(material))
	return "context:relevant:" + hex.EncodeToString(sum[:])
}

// lookupRelevantData matches keywords against the static knowledge tables.
func lookupRelevantData(keywords []string) pkg.RelevantData {
	rd := pkg.RelevantData{
		TopicMatches:     map[string][]string{},
		ConditionAdvice:  []string{},
		SafetyGuidelines: append([]string(nil), safetyGuidelines...),
		StatisticalData:  append([]string(nil), statisticalDisclaimer...),
	}

	kw := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		kw[k] = struct{}{}
	}
	for _, cat := range topicCategoryOrder {
		var hits []string
		for _, term := range topicTaxonomy[cat] {
			if _, ok := kw[term]; ok {
				hits = append(hits, term)
			}
		}
		if len(hits) > 0 {
			rd.TopicMatches[cat] = hits
		}
	}

	seen := make(map[string]struct{})
	for _, k := range keywords {
		advice, ok := conditionAdvisories[k]
		if !ok {
			continue
		}
		if _, dup := seen[advice]; dup {
			continue
		}
		seen[advice] = struct{}{}
		rd.ConditionAdvice = append(rd.ConditionAdvice, advice)
	}
	return rd
}
