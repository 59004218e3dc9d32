package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"healthchat/pkg"
)

// MemoryStore keeps conversations and profiles in process memory.  It is
// used when no database is configured and in tests.  Values are copied on
// the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*pkg.Conversation
	profiles      map[string]*pkg.Profile
	now           func() time.Time
}

// NewMemoryStore returns an empty store.  now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		conversations: make(map[string]*pkg.Conversation),
		profiles:      make(map[string]*pkg.Profile),
		now:           now,
	}
}

func (s *MemoryStore) CreateConversation(_ context.Context, profileID string) (*pkg.Conversation, error) {
	now := s.now()
	c := &pkg.Conversation{
		ID:           uuid.NewString(),
		ProfileID:    profileID,
		LastActivity: now,
		CreatedAt:    now,
		Messages:     []pkg.Message{},
	}
	s.mu.Lock()
	s.conversations[c.ID] = copyConversation(c)
	s.mu.Unlock()
	return c, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (*pkg.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return copyConversation(c), nil
}

func (s *MemoryStore) ListConversations(_ context.Context, limit int) ([]pkg.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	out := make([]pkg.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		cp := *c
		cp.Messages = nil
		out = append(out, cp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendMessage adds m and its token count under one lock.
func (s *MemoryStore) AppendMessage(_ context.Context, m *pkg.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[m.ConversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", m.ConversationID, ErrNotFound)
	}
	c.Messages = append(c.Messages, copyMessage(*m))
	c.TokenUsage += m.TokenCount
	c.LastActivity = m.CreatedAt
	return nil
}

func (s *MemoryStore) MarkCompressed(_ context.Context, conversationID string, messageIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	ids := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = struct{}{}
	}
	for i := range c.Messages {
		if _, ok := ids[c.Messages[i].ID]; ok {
			t := at
			c.Messages[i].Meta.Compressed = true
			c.Messages[i].Meta.CompressedAt = &t
		}
	}
	return nil
}

// SetTitle sets the title only if the conversation has none yet.
func (s *MemoryStore) SetTitle(_ context.Context, conversationID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if c.Title == "" {
		c.Title = title
	}
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, id string) (*pkg.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return copyProfile(p), nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, p *pkg.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.UpdatedAt = s.now()
	s.mu.Lock()
	s.profiles[p.ID] = copyProfile(p)
	s.mu.Unlock()
	return nil
}

func copyConversation(c *pkg.Conversation) *pkg.Conversation {
	cp := *c
	cp.Messages = make([]pkg.Message, len(c.Messages))
	for i, m := range c.Messages {
		cp.Messages[i] = copyMessage(m)
	}
	return &cp
}

func copyMessage(m pkg.Message) pkg.Message {
	if m.Meta.CompressedAt != nil {
		t := *m.Meta.CompressedAt
		m.Meta.CompressedAt = &t
	}
	return m
}

func copyProfile(p *pkg.Profile) *pkg.Profile {
	cp := *p
	if p.Age != nil {
		age := *p.Age
		cp.Age = &age
	}
	cp.ChronicConditions = append([]string(nil), p.ChronicConditions...)
	cp.Allergies = append([]string(nil), p.Allergies...)
	cp.Medications = append([]string(nil), p.Medications...)
	return &cp
}
