package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"healthchat/internal/llm"
	"healthchat/internal/logging"
	"healthchat/pkg"
)

// DefaultCompletionTimeout bounds a single provider call.
const DefaultCompletionTimeout = 30 * time.Second

// ChatConfig configures the completion call.  Only the presence of APIKey
// is checked; the provider validates it.
type ChatConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Guidelines  string
}

// Reply is the normalized result of a completion.  NotConfigured is the
// only failure a caller sees; provider failures produce a fallback reply
// with IsFallback=true.
type Reply struct {
	Content       string
	TokenCount    int
	NotConfigured bool
	IsFallback    bool
	Model         string
	FinishReason  string
	ResponseID    string
	PromptTokens  int
	Cost          *pkg.Cost
	Timestamp     time.Time
	Err           error
}

// ChatService wraps the completion provider.  It renders the context bundle
// into a system message, calls out, and converts every failure into a reply.
type ChatService struct {
	LLM      llm.Provider
	cfg      ChatConfig
	clock    Clock
	logger   *logging.Logger
	fallback atomic.Uint64
}

// NewChatService constructs a new ChatService with the given provider.
func NewChatService(provider llm.Provider, cfg ChatConfig, clock Clock, logger *logging.Logger) *ChatService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCompletionTimeout
	}
	if cfg.Guidelines == "" {
		cfg.Guidelines = ResponseGuidelines
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ChatService{LLM: provider, cfg: cfg, clock: clock, logger: logging.OrNop(logger)}
}

// IsConfigured reports whether a usable credential and provider are set.
func (s *ChatService) IsConfigured() bool {
	if s.LLM == nil {
		return false
	}
	key := strings.TrimSpace(s.cfg.APIKey)
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	if _, placeholder := placeholderKeys[lower]; placeholder {
		return false
	}
	return !strings.HasPrefix(lower, "your") && !strings.Contains(lower, "xxxx")
}

// Generate produces the assistant reply for messages.  It never returns an
// error: configuration problems and provider failures become canned replies.
func (s *ChatService) Generate(ctx context.Context, messages []pkg.ChatMessage, bundle *pkg.ContextBundle) Reply {
	now := s.clock.Now()
	if !s.IsConfigured() {
		completionFallbackTotal.WithLabelValues("not_configured").Inc()
		return Reply{
			Content:       NotConfiguredMessage,
			TokenCount:    0,
			NotConfigured: true,
			Model:         s.cfg.Model,
			Timestamp:     now,
			Err:           errors.New("completion service not configured"),
		}
	}

	req := llm.Request{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages:    make([]llm.Message, 0, len(messages)+1),
	}
	req.Messages = append(req.Messages, llm.Message{Role: string(pkg.RoleSystem), Content: BuildSystemMessage(bundle, s.cfg.Guidelines)})
	for _, m := range messages {
		req.Messages = append(req.Messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.LLM.CreateChatCompletion(callCtx, req)
	latency := time.Since(start)
	if err == nil && (resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "") {
		err = errors.New("provider returned no content")
	}
	if err != nil {
		completionLatency.WithLabelValues(s.cfg.Model, "error").Observe(latency.Seconds())
		s.logger.Warnw("completion failed, using fallback reply",
			"model", s.cfg.Model,
			"latency_ms", latency.Milliseconds(),
			"conversation_id", conversationID(bundle),
			"error", err)
		return s.fallbackReply(now, err)
	}
	completionLatency.WithLabelValues(s.cfg.Model, "ok").Observe(latency.Seconds())

	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Content)
	tokens := resp.Usage.CompletionTokens
	if tokens <= 0 {
		tokens = EstimateTokens(content)
	}
	prompt := resp.Usage.PromptTokens
	if prompt <= 0 {
		for _, m := range req.Messages {
			prompt += EstimateTokens(m.Content)
		}
	}
	model := resp.Model
	if model == "" {
		model = s.cfg.Model
	}
	completionTokensTotal.WithLabelValues(model, "input").Add(float64(prompt))
	completionTokensTotal.WithLabelValues(model, "output").Add(float64(tokens))

	cost := CalculateCost(prompt, tokens, model)
	s.logger.Debugw("completion finished",
		"model", model,
		"latency_ms", latency.Milliseconds(),
		"prompt_tokens", prompt,
		"completion_tokens", tokens,
		"finish_reason", choice.FinishReason)

	return Reply{
		Content:      content,
		TokenCount:   tokens,
		Model:        model,
		FinishReason: choice.FinishReason,
		ResponseID:   resp.ID,
		PromptTokens: prompt,
		Cost:         &cost,
		Timestamp:    now,
	}
}

// fallbackReply rotates through the canned apologies.
func (s *ChatService) fallbackReply(now time.Time, cause error) Reply {
	completionFallbackTotal.WithLabelValues("provider_error").Inc()
	n := s.fallback.Add(1) - 1
	msg := fallbackMessages[n%uint64(len(fallbackMessages))]
	return Reply{
		Content:    msg,
		TokenCount: EstimateTokens(msg),
		IsFallback: true,
		Model:      s.cfg.Model,
		Timestamp:  now,
		Err:        cause,
	}
}

// TestConnectivity sends one trivial message straight to the provider.
func (s *ChatService) TestConnectivity(ctx context.Context) pkg.ConnectivityResult {
	if !s.IsConfigured() {
		return pkg.ConnectivityResult{
			Success: false,
			Message: "Completion service is not configured",
			Error:   "missing or placeholder API key",
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.LLM.CreateChatCompletion(callCtx, llm.Request{
		Model:       s.cfg.Model,
		MaxTokens:   10,
		Temperature: 0,
		Messages:    []llm.Message{{Role: string(pkg.RoleUser), Content: "Hello"}},
	})
	if err != nil {
		return pkg.ConnectivityResult{Success: false, Message: "Completion service request failed", Error: err.Error()}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return pkg.ConnectivityResult{Success: false, Message: "Completion service returned no choices", Error: "empty response"}
	}
	return pkg.ConnectivityResult{Success: true, Message: fmt.Sprintf("Connected to %s", resp.Model)}
}

// BuildSystemMessage renders the bundle in a fixed order: base prompt,
// response guidelines, patient profile, user identity, prior topics, safety
// considerations, then condition notes.
func BuildSystemMessage(bundle *pkg.ContextBundle, guidelines string) string {
	if bundle == nil {
		bundle = &pkg.ContextBundle{SystemPrompt: SystemPrompt}
	}
	base := bundle.SystemPrompt
	if base == "" {
		base = SystemPrompt
	}
	parts := []string{base}
	if guidelines != "" {
		parts = append(parts, guidelines)
	}
	if p := profileSummary(bundle.UserProfile); p != "" {
		parts = append(parts, "Patient profile: "+p)
	}

	var identity []string
	if bundle.UserContext.Name != "" {
		identity = append(identity, fmt.Sprintf("You are speaking with %s.", bundle.UserContext.Name))
	}
	if bundle.UserContext.Language != "" {
		identity = append(identity, fmt.Sprintf("Preferred language: %s.", bundle.UserContext.Language))
	}
	if bundle.UserContext.CommunicationStyle != "" {
		identity = append(identity, fmt.Sprintf("Communication style: %s.", bundle.UserContext.CommunicationStyle))
	}
	if len(identity) > 0 {
		parts = append(parts, strings.Join(identity, " "))
	}

	if topics := bundle.ConversationContext.Topics; len(topics) > 0 {
		parts = append(parts, "Previously discussed topics: "+strings.Join(topics, ", ")+".")
	}
	if g := bundle.RelevantData.SafetyGuidelines; len(g) > 0 {
		parts = append(parts, "Safety considerations:\n- "+strings.Join(g, "\n- "))
	}
	if a := bundle.RelevantData.ConditionAdvice; len(a) > 0 {
		parts = append(parts, "Relevant health notes:\n- "+strings.Join(a, "\n- "))
	}
	return strings.Join(parts, "\n\n")
}

// profileSummary renders the fields present in p, or "" when none are.
func profileSummary(p *pkg.Profile) string {
	if p == nil {
		return ""
	}
	var fields []string
	if p.Age != nil {
		fields = append(fields, fmt.Sprintf("age %d", *p.Age))
	}
	if p.Sex != "" {
		fields = append(fields, "sex "+p.Sex)
	}
	if len(p.ChronicConditions) > 0 {
		fields = append(fields, "chronic conditions: "+strings.Join(p.ChronicConditions, ", "))
	}
	if len(p.Allergies) > 0 {
		fields = append(fields, "allergies: "+strings.Join(p.Allergies, ", "))
	}
	if len(p.Medications) > 0 {
		fields = append(fields, "current medications: "+strings.Join(p.Medications, ", "))
	}
	if p.Pregnant {
		fields = append(fields, "pregnant")
	}
	if p.Smoker {
		fields = append(fields, "smoker")
	}
	if p.Drinker {
		fields = append(fields, "drinks alcohol")
	}
	if p.Notes != "" {
		fields = append(fields, "notes: "+p.Notes)
	}
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, "; ") + "."
}

func conversationID(bundle *pkg.ContextBundle) string {
	if bundle == nil {
		return ""
	}
	return bundle.ConversationContext.ID
}
