// Package transcript persists the append-only conversation log to PostgreSQL.
// Every inbound and outbound message lands here, including turns where the
// engine stayed silent, so a salon owner can audit exactly what happened.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/salonflow/alexis-engine/internal/state"
)

// Message roles. "client" is the WhatsApp customer, "ai" the assistant,
// "human" a salon agent typing from the business number, "system" engine
// events worth auditing (blocks, handovers).
const (
	RoleClient = "client"
	RoleAI     = "ai"
	RoleHuman  = "human"
	RoleSystem = "system"
)

// Conversation is one client/salon thread.
type Conversation struct {
	ID             uuid.UUID
	ConversationID string
	SalonID        string
	ClientPhone    string
	Status         state.Status
	StartedAt      time.Time
	LastMessageAt  *time.Time
}

// Message is one logged message.
type Message struct {
	ID             uuid.UUID
	ConversationID string
	Role           string
	Content        string
	Intent         string
	Blocked        bool
	CreatedAt      time.Time
}

// dbtx is the subset of pgxpool.Pool the store needs; tests substitute a mock.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes conversations and their messages.
type Store struct {
	db dbtx
}

// NewStore builds a Store over a pgx pool.
func NewStore(db dbtx) *Store {
	if db == nil {
		panic("transcript: db cannot be nil")
	}
	return &Store{db: db}
}

// ConversationID renders the canonical thread key for a salon/phone pair.
func ConversationID(salonID, clientPhone string) string {
	return fmt.Sprintf("wa:%s:%s", salonID, normalizePhone(clientPhone))
}

func normalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// EnsureConversation returns the thread for the salon/phone pair, creating it
// with status AI_ACTIVE on first contact. Concurrent creators converge on the
// same row through the unique conversation_id.
func (s *Store) EnsureConversation(ctx context.Context, salonID, clientPhone string) (Conversation, error) {
	conversationID := ConversationID(salonID, clientPhone)

	conv, err := s.getConversation(ctx, conversationID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, fmt.Errorf("transcript: lookup conversation: %w", err)
	}

	now := time.Now()
	newID := uuid.New()
	_, err = s.db.Exec(ctx, `
		INSERT INTO conversations (id, conversation_id, salon_id, client_phone, status, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $6)
		ON CONFLICT (conversation_id) DO NOTHING
	`, newID, conversationID, salonID, normalizePhone(clientPhone), string(state.StatusAIActive), now)
	if err != nil {
		return Conversation{}, fmt.Errorf("transcript: create conversation: %w", err)
	}

	// Re-read rather than assuming our insert won; a concurrent turn may have
	// created the row first.
	conv, err = s.getConversation(ctx, conversationID)
	if err != nil {
		return Conversation{}, fmt.Errorf("transcript: reload conversation: %w", err)
	}
	return conv, nil
}

func (s *Store) getConversation(ctx context.Context, conversationID string) (Conversation, error) {
	var conv Conversation
	var status string
	err := s.db.QueryRow(ctx, `
		SELECT id, conversation_id, salon_id, client_phone, status, started_at, last_message_at
		FROM conversations WHERE conversation_id = $1
	`, conversationID).Scan(&conv.ID, &conv.ConversationID, &conv.SalonID, &conv.ClientPhone, &status, &conv.StartedAt, &conv.LastMessageAt)
	if err != nil {
		return Conversation{}, err
	}
	conv.Status = state.Status(status)
	return conv, nil
}

// SetStatus flips who owns the conversation (#eu hands it to the human agent,
// #ia hands it back to the assistant).
func (s *Store) SetStatus(ctx context.Context, conversationID string, status state.Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations SET status = $1, updated_at = $2 WHERE conversation_id = $3
	`, string(status), time.Now(), conversationID)
	if err != nil {
		return fmt.Errorf("transcript: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transcript: conversation %s not found", conversationID)
	}
	return nil
}

// Append logs one message. A reused message id is a silent no-op so retried
// turns never duplicate log lines.
func (s *Store) Append(ctx context.Context, msg Message) error {
	if msg.ConversationID == "" {
		return errors.New("transcript: message needs a conversation id")
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, intent, blocked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Intent, msg.Blocked, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("transcript: insert message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE conversations SET last_message_at = $1, updated_at = $1 WHERE conversation_id = $2
	`, msg.CreatedAt, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("transcript: touch conversation: %w", err)
	}
	return nil
}

// History returns the latest messages in chronological order, skipping system
// entries so the model only sees what the client saw.
func (s *Store) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, role, content, intent, blocked, created_at
		FROM messages
		WHERE conversation_id = $1 AND role <> $2
		ORDER BY created_at DESC
		LIMIT $3
	`, conversationID, RoleSystem, limit)
	if err != nil {
		return nil, fmt.Errorf("transcript: load history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Intent, &m.Blocked, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("transcript: scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: iterate history: %w", err)
	}

	// Newest-first from the query; callers want oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
