package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"healthchat/pkg"
)

// ErrNotFound is returned when a conversation or profile does not exist.
var ErrNotFound = errors.New("not found")

// Repository wraps database operations for conversations, messages and
// profiles in a single postgres database.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// Open connects to url with the postgres driver and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// CreateConversation starts an empty conversation, optionally bound to a
// profile.
func (r *Repository) CreateConversation(ctx context.Context, profileID string) (*pkg.Conversation, error) {
	c := &pkg.Conversation{ID: uuid.NewString(), ProfileID: profileID, Messages: []pkg.Message{}}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO conversations (id, profile_id)
         VALUES ($1, $2)
         RETURNING last_activity, created_at`,
		c.ID, nullString(profileID),
	).Scan(&c.LastActivity, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return c, nil
}

// GetConversation loads a conversation with every message in creation
// order.
func (r *Repository) GetConversation(ctx context.Context, id string) (*pkg.Conversation, error) {
	var (
		c         pkg.Conversation
		profileID sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, profile_id, title, token_usage, last_activity, created_at
         FROM conversations
         WHERE id = $1`, id,
	).Scan(&c.ID, &profileID, &c.Title, &c.TokenUsage, &c.LastActivity, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	c.ProfileID = profileID.String

	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, token_count, metadata, created_at
         FROM messages
         WHERE conversation_id = $1
         ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()
	c.Messages = []pkg.Message{}
	for rows.Next() {
		var (
			m    pkg.Message
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.TokenCount, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal(meta, &m.Meta); err != nil {
			return nil, fmt.Errorf("decode metadata of message %s: %w", m.ID, err)
		}
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns the most recently active conversations without
// their messages.
func (r *Repository) ListConversations(ctx context.Context, limit int) ([]pkg.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, profile_id, title, token_usage, last_activity, created_at
         FROM conversations
         ORDER BY last_activity DESC
         LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select conversations: %w", err)
	}
	defer rows.Close()
	out := []pkg.Conversation{}
	for rows.Next() {
		var (
			c         pkg.Conversation
			profileID sql.NullString
		)
		if err := rows.Scan(&c.ID, &profileID, &c.Title, &c.TokenUsage, &c.LastActivity, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.ProfileID = profileID.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendMessage inserts m and adds its token count to the conversation in
// one transaction.
func (r *Repository) AppendMessage(ctx context.Context, m *pkg.Message) error {
	meta, err := json.Marshal(m.Meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations
         SET token_usage = token_usage + $2, last_activity = $3
         WHERE id = $1`,
		m.ConversationID, m.TokenCount, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("update token usage: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("conversation %s: %w", m.ConversationID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, token_count, metadata, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.TokenCount, meta, m.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return tx.Commit()
}

// MarkCompressed flags the given messages as folded into a summary.
func (r *Repository) MarkCompressed(ctx context.Context, conversationID string, messageIDs []string, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx,
		`UPDATE messages
         SET metadata = metadata || jsonb_build_object('compressed', true, 'compressed_at', $3::text)
         WHERE conversation_id = $1 AND id = ANY($2::uuid[])`,
		conversationID, pq.Array(messageIDs), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("mark compressed: %w", err)
	}
	return nil
}

// SetTitle sets the title only if the conversation has none yet.
func (r *Repository) SetTitle(ctx context.Context, conversationID, title string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE conversations SET title = $2 WHERE id = $1 AND title = ''`,
		conversationID, title)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by id.
func (r *Repository) GetProfile(ctx context.Context, id string) (*pkg.Profile, error) {
	var (
		p   pkg.Profile
		age sql.NullInt64
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, age, sex, chronic_conditions, allergies, medications,
                pregnant, smoker, drinker, notes, updated_at
         FROM profiles
         WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &age, &p.Sex,
		pq.Array(&p.ChronicConditions), pq.Array(&p.Allergies), pq.Array(&p.Medications),
		&p.Pregnant, &p.Smoker, &p.Drinker, &p.Notes, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	if age.Valid {
		v := int(age.Int64)
		p.Age = &v
	}
	return &p, nil
}

// SaveProfile creates or replaces a profile.  A new id is assigned when p
// has none.
func (r *Repository) SaveProfile(ctx context.Context, p *pkg.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	var age sql.NullInt64
	if p.Age != nil {
		age = sql.NullInt64{Int64: int64(*p.Age), Valid: true}
	}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO profiles (id, name, age, sex, chronic_conditions, allergies, medications,
                               pregnant, smoker, drinker, notes, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
         ON CONFLICT (id) DO UPDATE SET
             name = EXCLUDED.name,
             age = EXCLUDED.age,
             sex = EXCLUDED.sex,
             chronic_conditions = EXCLUDED.chronic_conditions,
             allergies = EXCLUDED.allergies,
             medications = EXCLUDED.medications,
             pregnant = EXCLUDED.pregnant,
             smoker = EXCLUDED.smoker,
             drinker = EXCLUDED.drinker,
             notes = EXCLUDED.notes,
             updated_at = NOW()
         RETURNING updated_at`,
		p.ID, p.Name, age, p.Sex,
		pq.Array(nonNil(p.ChronicConditions)), pq.Array(nonNil(p.Allergies)), pq.Array(nonNil(p.Medications)),
		p.Pregnant, p.Smoker, p.Drinker, p.Notes,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
