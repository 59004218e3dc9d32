package pkg

import (
	"encoding/json"
	"time"
)

// MessageRole describes who authored a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageKind tags which variant of MessageMeta is populated.
type MessageKind string

const (
	KindUser      MessageKind = "user"
	KindAssistant MessageKind = "assistant"
	KindSummary   MessageKind = "summary"
)

// Message represents a chat message in a conversation.  Messages are never
// mutated after creation except for the compression flag in Meta.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	TokenCount     int         `json:"token_count"`
	CreatedAt      time.Time   `json:"created_at"`
	Meta           MessageMeta `json:"metadata"`
}

// MessageMeta is the per-kind metadata attached to a message.  Exactly one
// of Assistant or Summary is set for assistant and summary messages; user
// messages carry neither.
type MessageMeta struct {
	Kind         MessageKind     `json:"kind"`
	Compressed   bool            `json:"compressed,omitempty"`
	CompressedAt *time.Time      `json:"compressed_at,omitempty"`
	Assistant    *AssistantMeta  `json:"assistant,omitempty"`
	Summary      *SummaryMeta    `json:"summary,omitempty"`
	Provider     json.RawMessage `json:"provider,omitempty"`
}

// AssistantMeta records how an assistant reply was produced and classified.
type AssistantMeta struct {
	Model             string                `json:"model,omitempty"`
	FinishReason      string                `json:"finish_reason,omitempty"`
	ResponseID        string                `json:"response_id,omitempty"`
	IsFallback        bool                  `json:"is_fallback,omitempty"`
	Failed            bool                  `json:"failed,omitempty"`
	PromptTokens      int                   `json:"prompt_tokens,omitempty"`
	Cost              *Cost                 `json:"cost,omitempty"`
	VocabularyVersion string                `json:"vocabulary_version,omitempty"`
	Classification    *ClassificationResult `json:"classification,omitempty"`
}

// SummaryMeta describes a compression summary message.
type SummaryMeta struct {
	SummarizedIDs     []string `json:"summarized_ids"`
	UserMessages      int      `json:"user_messages"`
	AssistantMessages int      `json:"assistant_messages"`
	Topics            []string `json:"topics"`
}

// Conversation is an ordered chat session.  TokenUsage always equals the
// sum of the TokenCount of every message, compressed or not.
type Conversation struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profile_id,omitempty"`
	Title        string    `json:"title,omitempty"`
	TokenUsage   int       `json:"token_usage"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	Messages     []Message `json:"messages"`
}

// ActiveMessages returns the messages that have not been folded into a
// compression summary, in chronological order.
func (c *Conversation) ActiveMessages() []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if !m.Meta.Compressed {
			out = append(out, m)
		}
	}
	return out
}

// Profile holds the health context of a user.  All fields are optional.
type Profile struct {
	ID                string    `json:"id"`
	Name              string    `json:"name,omitempty"`
	Age               *int      `json:"age,omitempty"`
	Sex               string    `json:"sex,omitempty"`
	ChronicConditions []string  `json:"chronic_conditions,omitempty"`
	Allergies         []string  `json:"allergies,omitempty"`
	Medications       []string  `json:"medications,omitempty"`
	Pregnant          bool      `json:"pregnant,omitempty"`
	Smoker            bool      `json:"smoker,omitempty"`
	Drinker           bool      `json:"drinker,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ChatMessage is the role/content pair handed to the completion provider.
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// UserContext is the lightweight personalization layer of a ContextBundle.
type UserContext struct {
	Name               string `json:"name,omitempty"`
	Language           string `json:"language"`
	CommunicationStyle string `json:"communication_style"`
}

// ConversationContext describes the conversation a request belongs to.
type ConversationContext struct {
	ID             string        `json:"id"`
	Title          string        `json:"title,omitempty"`
	MessageCount   int           `json:"message_count"`
	Topics         []string      `json:"topics"`
	RecentMessages []ChatMessage `json:"recent_messages"`
}

// RelevantData is the static healthcare knowledge matched to a request.
type RelevantData struct {
	TopicMatches     map[string][]string `json:"topic_matches"`
	ConditionAdvice  []string            `json:"condition_advice"`
	SafetyGuidelines []string            `json:"safety_guidelines"`
	StatisticalData  []string            `json:"statistical_data"`
}

// ContextBundle is assembled fresh for every request and never persisted.
type ContextBundle struct {
	SystemPrompt        string              `json:"system_prompt"`
	UserContext         UserContext         `json:"user_context"`
	ConversationContext ConversationContext `json:"conversation_context"`
	RelevantData        RelevantData        `json:"relevant_data"`
	Keywords            []string            `json:"keywords"`
	UserProfile         *Profile            `json:"user_profile,omitempty"`
}

// UrgencyLevel is the coarse triage classification of a reply.
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "critical"
	UrgencyUrgent   UrgencyLevel = "urgent"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyLight    UrgencyLevel = "light"
	UrgencyNormal   UrgencyLevel = "normal"
)

// NextStep is one recommended follow-up action.
type NextStep struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// ClassificationResult is the structured breakdown of an assistant reply.
// Collections are always non-nil so serialized results have a stable shape.
type ClassificationResult struct {
	UrgencyLevel           UrgencyLevel   `json:"urgency_level"`
	UrgencyScore           int            `json:"urgency_score"`
	Confidence             float64        `json:"confidence"`
	Summary                string         `json:"summary"`
	KeyPoints              []string       `json:"key_points"`
	Symptoms               []string       `json:"symptoms"`
	Conditions             []string       `json:"conditions"`
	Treatments             []string       `json:"treatments"`
	Warnings               []string       `json:"warnings"`
	NextSteps              []NextStep     `json:"next_steps"`
	WhenToSeekHelp         []string       `json:"when_to_seek_help"`
	Personalization        []string       `json:"personalization"`
	ProductRecommendations []ProductLinks `json:"product_recommendations"`
}

// ProductCandidate is a provisional product mention found in a reply.
type ProductCandidate struct {
	Name     string `json:"name"`
	Context  string `json:"context"`
	Category string `json:"category"`
}

// Link is a resolved product link.
type Link struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
}

// ProductLinks pairs a candidate with the links resolved for it.
type ProductLinks struct {
	Product     ProductCandidate `json:"product"`
	Links       []Link           `json:"links"`
	SearchQuery string           `json:"search_query"`
}

// SearchResult is one hit returned by the web-search provider.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// Cost is the estimated provider cost of a completion, in USD.
type Cost struct {
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	TotalCost  float64 `json:"total_cost"`
}

// TokenUsage summarizes the tokens consumed by one processed message.
type TokenUsage struct {
	UserTokens      int `json:"user_tokens"`
	AssistantTokens int `json:"assistant_tokens"`
	Total           int `json:"total"`
}

// FormattedResponse is the structured reply returned to the UI layer.
type FormattedResponse struct {
	Content        string                `json:"content"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	IsFallback     bool                  `json:"is_fallback"`
}

// PipelineResult is returned by every call to process a user message.
type PipelineResult struct {
	Success          bool              `json:"success"`
	ConversationID   string            `json:"conversation_id"`
	UserMessage      *Message          `json:"user_message,omitempty"`
	AssistantMessage *Message          `json:"assistant_message,omitempty"`
	Tokens           TokenUsage        `json:"tokens"`
	Response         FormattedResponse `json:"response"`
	Error            string            `json:"error,omitempty"`
}

// TokenStats is a read-only token breakdown of a conversation.
type TokenStats struct {
	TotalMessages           int     `json:"total_messages"`
	TotalTokens             int     `json:"total_tokens"`
	UserTokens              int     `json:"user_tokens"`
	AssistantTokens         int     `json:"assistant_tokens"`
	AverageTokensPerMessage float64 `json:"average_tokens_per_message"`
	CompressionNeeded       bool    `json:"compression_needed"`
}

// ConnectivityResult is the outcome of a completion-provider round trip.
type ConnectivityResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
