package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"healthchat/internal/logging"
	"healthchat/pkg"
)

const (
	titleLength = 50

	// fallbackConfidence caps the classification confidence of canned
	// replies.
	fallbackConfidence = 0.3
)

var (
	// ErrEmptyMessage is reported for blank user input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNotConfigured is reported when the completion service has no
	// usable credential.
	ErrNotConfigured = errors.New("completion service not configured")
)

// PipelineDeps are the collaborators of a Pipeline.  Notifier, Recommender
// and Clock are optional.
type PipelineDeps struct {
	Store       Store
	Summarizer  *Summarizer
	Context     *ContextBuilder
	Chat        *ChatService
	Classifier  *Classifier
	Recommender *Recommender
	Notifier    Notifier
	Clock       Clock
}

// Pipeline processes user messages end to end.  Messages for the same
// conversation are handled one at a time.
type Pipeline struct {
	store       Store
	summarizer  *Summarizer
	builder     *ContextBuilder
	chat        *ChatService
	classifier  *Classifier
	recommender *Recommender
	notifier    Notifier
	clock       Clock
	logger      *logging.Logger
	locks       *keyedMutex
}

// NewPipeline wires deps into a Pipeline.
func NewPipeline(deps PipelineDeps, logger *logging.Logger) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Pipeline{
		store:       deps.Store,
		summarizer:  deps.Summarizer,
		builder:     deps.Context,
		chat:        deps.Chat,
		classifier:  deps.Classifier,
		recommender: deps.Recommender,
		notifier:    deps.Notifier,
		clock:       clock,
		logger:      logging.OrNop(logger),
		locks:       newKeyedMutex(),
	}
}

// ProcessMessage persists text as a user message, produces and persists the
// assistant reply, and returns both.  override, when non-nil, replaces the
// conversation's stored profile for this message only.  It never returns an
// error: once the user message is stored every failure is answered with a
// persisted apology and Success=false.
func (p *Pipeline) ProcessMessage(ctx context.Context, conversationID, text string, override *pkg.Profile) *pkg.PipelineResult {
	res := &pkg.PipelineResult{ConversationID: conversationID}
	log := p.logger.WithField("conversation_id", conversationID)

	text = strings.TrimSpace(text)
	if text == "" {
		res.Error = ErrEmptyMessage.Error()
		return res
	}

	unlock := p.locks.Lock(conversationID)
	defer unlock()

	conv, err := p.store.GetConversation(ctx, conversationID)
	if err != nil {
		log.Errorw("load conversation failed", "error", err)
		pipelineResultTotal.WithLabelValues("failure").Inc()
		res.Error = fmt.Sprintf("load conversation: %v", err)
		return res
	}

	user := &pkg.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           pkg.RoleUser,
		Content:        text,
		TokenCount:     EstimateTokens(text),
		CreatedAt:      p.clock.Now(),
		Meta:           pkg.MessageMeta{Kind: pkg.KindUser},
	}
	if err := p.store.AppendMessage(ctx, user); err != nil {
		log.Errorw("persist user message failed", "error", err)
		pipelineResultTotal.WithLabelValues("failure").Inc()
		res.Error = fmt.Sprintf("persist user message: %v", err)
		return res
	}
	conv.Messages = append(conv.Messages, *user)
	conv.TokenUsage += user.TokenCount
	res.UserMessage = user
	res.Tokens.UserTokens = user.TokenCount

	assistant, reply, err := p.respond(ctx, conv, user, override)
	switch {
	case err == nil:
		res.Success = true
	case errors.Is(err, ErrNotConfigured) && assistant != nil:
		log.Warnw("completion service not configured")
		res.Error = err.Error()
	default:
		log.Errorw("message processing failed", "error", err, "user_message_id", user.ID)
		assistant = p.persistApology(ctx, conv, log)
		reply = Reply{}
		res.Error = err.Error()
	}

	if assistant != nil {
		res.AssistantMessage = assistant
		res.Tokens.AssistantTokens = assistant.TokenCount
		res.Response = pkg.FormattedResponse{Content: assistant.Content, IsFallback: reply.IsFallback}
		if assistant.Meta.Assistant != nil {
			res.Response.Classification = assistant.Meta.Assistant.Classification
		}
		if _, err := p.GenerateTitle(ctx, conv); err != nil {
			log.Warnw("title generation failed", "error", err)
		}
	}
	res.Tokens.Total = res.Tokens.UserTokens + res.Tokens.AssistantTokens

	if res.Success {
		pipelineResultTotal.WithLabelValues("success").Inc()
	} else {
		pipelineResultTotal.WithLabelValues("failure").Inc()
	}
	log.Infow("message processed",
		"success", res.Success,
		"user_tokens", res.Tokens.UserTokens,
		"assistant_tokens", res.Tokens.AssistantTokens,
		"token_usage", conv.TokenUsage)
	return res
}

// respond runs every step between the stored user message and the stored
// assistant message.  On ErrNotConfigured the returned message has already
// been persisted.
func (p *Pipeline) respond(ctx context.Context, conv *pkg.Conversation, user *pkg.Message, override *pkg.Profile) (*pkg.Message, Reply, error) {
	if p.summarizer.ShouldCompress(conv) {
		if _, err := p.summarizer.Compress(ctx, conv); err != nil {
			return nil, Reply{}, fmt.Errorf("compress history: %w", err)
		}
	}

	profile := p.profileFor(ctx, conv, override)

	history := p.summarizer.OptimizeForContext(conv)
	bundle := p.builder.Build(ctx, user.Content, conv, profile)
	reply := p.chat.Generate(ctx, history, bundle)

	if reply.NotConfigured {
		msg := p.newAssistantMessage(conv.ID, reply, nil)
		if err := p.store.AppendMessage(ctx, msg); err != nil {
			return nil, reply, fmt.Errorf("persist assistant message: %w", err)
		}
		conv.Messages = append(conv.Messages, *msg)
		conv.TokenUsage += msg.TokenCount
		return msg, reply, ErrNotConfigured
	}

	var links []pkg.ProductLinks
	if p.recommender != nil && !reply.IsFallback {
		if candidates := p.recommender.ExtractCandidates(reply.Content); len(candidates) > 0 {
			links = p.recommender.ResolveLinks(ctx, candidates)
		}
	}

	classification := p.classifier.Classify(reply.Content, user.Content, profile)
	if links != nil {
		classification.ProductRecommendations = links
	}
	if reply.IsFallback && classification.Confidence > fallbackConfidence {
		classification.Confidence = fallbackConfidence
	}
	urgencyTotal.WithLabelValues(string(classification.UrgencyLevel)).Inc()

	msg := p.newAssistantMessage(conv.ID, reply, &classification)
	if err := p.store.AppendMessage(ctx, msg); err != nil {
		return nil, reply, fmt.Errorf("persist assistant message: %w", err)
	}
	conv.Messages = append(conv.Messages, *msg)
	conv.TokenUsage += msg.TokenCount

	// Alerts only follow real model replies.
	if !reply.IsFallback {
		p.notify(ctx, conv.ID, classification.UrgencyLevel)
	}
	return msg, reply, nil
}

// profileFor returns override when set, otherwise the conversation's stored
// profile.  A dangling profile reference is logged and ignored.
func (p *Pipeline) profileFor(ctx context.Context, conv *pkg.Conversation, override *pkg.Profile) *pkg.Profile {
	if override != nil {
		return override
	}
	if conv.ProfileID == "" {
		return nil
	}
	profile, err := p.store.GetProfile(ctx, conv.ProfileID)
	if err != nil {
		p.logger.Warnw("profile unavailable, continuing without it",
			"conversation_id", conv.ID,
			"profile_id", conv.ProfileID,
			"error", err)
		return nil
	}
	return profile
}

func (p *Pipeline) newAssistantMessage(conversationID string, reply Reply, classification *pkg.ClassificationResult) *pkg.Message {
	created := reply.Timestamp
	if created.IsZero() {
		created = p.clock.Now()
	}
	var version string
	if classification != nil {
		version = VocabularyVersion
	}
	return &pkg.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           pkg.RoleAssistant,
		Content:        reply.Content,
		TokenCount:     reply.TokenCount,
		CreatedAt:      created,
		Meta: pkg.MessageMeta{
			Kind: pkg.KindAssistant,
			Assistant: &pkg.AssistantMeta{
				Model:             reply.Model,
				FinishReason:      reply.FinishReason,
				ResponseID:        reply.ResponseID,
				IsFallback:        reply.IsFallback,
				Failed:            reply.NotConfigured,
				PromptTokens:      reply.PromptTokens,
				Cost:              reply.Cost,
				VocabularyVersion: version,
				Classification:    classification,
			},
		},
	}
}

// persistApology stores the fixed apology reply.  It runs detached from the
// caller's cancellation so a timed-out request still leaves a balanced
// conversation.
func (p *Pipeline) persistApology(ctx context.Context, conv *pkg.Conversation, log *logging.Logger) *pkg.Message {
	msg := &pkg.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           pkg.RoleAssistant,
		Content:        ApologyMessage,
		TokenCount:     EstimateTokens(ApologyMessage),
		CreatedAt:      p.clock.Now(),
		Meta: pkg.MessageMeta{
			Kind:      pkg.KindAssistant,
			Assistant: &pkg.AssistantMeta{Failed: true},
		},
	}
	if err := p.store.AppendMessage(context.WithoutCancel(ctx), msg); err != nil {
		log.WithError(err).Errorw("persist apology failed")
		return nil
	}
	conv.Messages = append(conv.Messages, *msg)
	conv.TokenUsage += msg.TokenCount
	return msg
}

func (p *Pipeline) notify(ctx context.Context, conversationID string, level pkg.UrgencyLevel) {
	if p.notifier == nil {
		return
	}
	if level != pkg.UrgencyCritical && level != pkg.UrgencyUrgent {
		return
	}
	if err := p.notifier.NotifyUrgent(ctx, conversationID, level); err != nil {
		p.logger.Warnw("urgent notification failed",
			"conversation_id", conversationID,
			"level", level,
			"error", err)
	}
}

// GenerateTitle derives the title from the first user message when conv has
// none.  An existing title is returned unchanged.
func (p *Pipeline) GenerateTitle(ctx context.Context, conv *pkg.Conversation) (string, error) {
	if conv.Title != "" {
		return conv.Title, nil
	}
	title := TitleFromMessages(conv.Messages)
	if title == "" {
		return "", nil
	}
	if err := p.store.SetTitle(ctx, conv.ID, title); err != nil {
		return "", fmt.Errorf("set title: %w", err)
	}
	conv.Title = title
	return title, nil
}

// TitleFromMessages renders the first user message as a single-line title of
// at most 50 characters plus an ellipsis.
func TitleFromMessages(msgs []pkg.Message) string {
	for _, m := range msgs {
		if m.Role != pkg.RoleUser {
			continue
		}
		text := strings.Join(strings.Fields(m.Content), " ")
		if text == "" {
			continue
		}
		return truncateRunes(text, titleLength)
	}
	return ""
}

// GetTokenStats loads the conversation and reports its token breakdown.
func (p *Pipeline) GetTokenStats(ctx context.Context, conversationID string) (pkg.TokenStats, error) {
	conv, err := p.store.GetConversation(ctx, conversationID)
	if err != nil {
		return pkg.TokenStats{}, fmt.Errorf("load conversation: %w", err)
	}
	return p.TokenStats(conv), nil
}

// TokenStats computes the token breakdown of conv.  Compressed messages are
// included.
func (p *Pipeline) TokenStats(conv *pkg.Conversation) pkg.TokenStats {
	stats := pkg.TokenStats{
		TotalMessages:     len(conv.Messages),
		TotalTokens:       conv.TokenUsage,
		CompressionNeeded: p.summarizer.ShouldCompress(conv),
	}
	for _, m := range conv.Messages {
		switch m.Role {
		case pkg.RoleUser:
			stats.UserTokens += m.TokenCount
		case pkg.RoleAssistant:
			stats.AssistantTokens += m.TokenCount
		}
	}
	if stats.TotalMessages > 0 {
		stats.AverageTokensPerMessage = float64(stats.TotalTokens) / float64(stats.TotalMessages)
	}
	return stats
}

// TestConnectivity round-trips one trivial message through the provider.
func (p *Pipeline) TestConnectivity(ctx context.Context) pkg.ConnectivityResult {
	return p.chat.TestConnectivity(ctx)
}
