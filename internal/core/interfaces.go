package core

import (
	"context"
	"time"

	"healthchat/pkg"
)

// Store is the persistence collaborator of the pipeline.  Messages must be
// returned in creation order, and AppendMessage must increment the
// conversation's token counter by the message's TokenCount atomically with
// the insert.
type Store interface {
	GetConversation(ctx context.Context, id string) (*pkg.Conversation, error)
	AppendMessage(ctx context.Context, m *pkg.Message) error
	MarkCompressed(ctx context.Context, conversationID string, messageIDs []string, at time.Time) error
	SetTitle(ctx context.Context, conversationID, title string) error
	GetProfile(ctx context.Context, id string) (*pkg.Profile, error)
}

// Cache is a shared get/set-with-TTL store.  A missing entry reports
// ok=false; errors are treated by callers as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Searcher is the web-search capability used for product links.  It must
// return an empty slice, not an error, when nothing matches.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]pkg.SearchResult, error)
}

// Notifier is told about replies classified urgent or critical.
type Notifier interface {
	NotifyUrgent(ctx context.Context, conversationID string, level pkg.UrgencyLevel) error
}

// Clock supplies timestamps for message metadata.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }
