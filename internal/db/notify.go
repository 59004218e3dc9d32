package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"healthchat/internal/logging"
	"healthchat/pkg"
)

// Alert is one urgent-reply notification received on the channel.
type Alert struct {
	ConversationID string
	Level          pkg.UrgencyLevel
}

// Notifier wraps the LISTEN/NOTIFY mechanism in PostgreSQL.  The pipeline
// publishes on it when a reply is classified urgent or critical, and the
// watch command listens for those alerts.
type Notifier struct {
	DB      *sql.DB
	Channel string
	DSN     string
	logger  *logging.Logger
}

// NewNotifier constructs a new Notifier.  The channel should match the
// POSTGRES_NOTIFY_CHANNEL environment variable; dsn is only needed to
// listen.
func NewNotifier(db *sql.DB, dsn, channel string, logger *logging.Logger) *Notifier {
	return &Notifier{DB: db, Channel: channel, DSN: dsn, logger: logging.OrNop(logger)}
}

// NotifyUrgent publishes "<conversation id>:<level>" on the channel.
func (n *Notifier) NotifyUrgent(ctx context.Context, conversationID string, level pkg.UrgencyLevel) error {
	payload := conversationID + ":" + string(level)
	if _, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, payload); err != nil {
		return fmt.Errorf("notify %s: %w", pq.QuoteIdentifier(n.Channel), err)
	}
	return nil
}

// Listen delivers alerts until ctx is cancelled, then closes the returned
// channel.
func (n *Notifier) Listen(ctx context.Context) (<-chan Alert, error) {
	listener := pq.NewListener(n.DSN, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.logger.Warnw("notification listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(n.Channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", pq.QuoteIdentifier(n.Channel), err)
	}

	ch := make(chan Alert)
	go func() {
		defer func() {
			_ = listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case note := <-listener.Notify:
				// nil after a reconnect
				if note == nil {
					continue
				}
				alert, ok := ParseAlert(note.Extra)
				if !ok {
					n.logger.Warnw("ignoring malformed alert", "payload", note.Extra)
					continue
				}
				select {
				case ch <- alert:
				case <-ctx.Done():
					return
				}
			case <-time.After(90 * time.Second):
				go func() { _ = listener.Ping() }()
			}
		}
	}()
	return ch, nil
}

// ParseAlert decodes a NotifyUrgent payload.
func ParseAlert(payload string) (Alert, bool) {
	i := strings.LastIndexByte(payload, ':')
	if i <= 0 || i == len(payload)-1 {
		return Alert{}, false
	}
	return Alert{ConversationID: payload[:i], Level: pkg.UrgencyLevel(payload[i+1:])}, true
}
