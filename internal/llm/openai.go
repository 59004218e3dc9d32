package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"healthchat/internal/config"
)

// Message is a minimal chat message sent to the provider.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request is a single chat completion call.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Choice is one completion alternative.
type Choice struct {
	Content      string
	FinishReason string
}

// Usage is the provider-reported token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the provider's answer to a Request.
type Response struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

// Provider is the completion API consumed by the gateway.  Implementations
// return transport and provider failures as errors; the caller decides how
// to degrade.
type Provider interface {
	CreateChatCompletion(ctx context.Context, req Request) (*Response, error)
}

// OpenAIProvider calls the OpenAI chat completion API (or any compatible
// endpoint when BaseURL is set).
type OpenAIProvider struct {
	client *openai.Client
}

// Ensure OpenAIProvider implements Provider.
var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider constructs an OpenAI-backed provider from configuration.
func NewOpenAIProvider(cfg config.OpenAIConfig) *OpenAIProvider {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(oc)}
}

// CreateChatCompletion sends the message list and maps the response back to
// provider-neutral types.
func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, req Request) (*Response, error) {
	if p.client == nil {
		return nil, errors.New("openai client not initialized")
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    oaMsgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	out := &Response{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Content:      c.Message.Content,
			FinishReason: string(c.FinishReason),
		})
	}
	return out, nil
}
