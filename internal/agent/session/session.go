// Package session exposes the conversation record the advisor appends to.
// The persistent implementation is in internal/db/session_manager.go.
package session

import (
	"context"
	"database/sql"
	"sync"

	"github.com/neboloop/nebo-advisor/internal/db"
)

// Type aliases for the db-backed types
type (
	Manager = db.SessionManager
	Session = db.AgentSession
	Message = db.AgentMessage
)

// Recorder is a caller-owned conversation the advisor may append to.
// Implementations must store userText before assistantText.
type Recorder interface {
	AppendExchange(ctx context.Context, userText, assistantText string) error
	Messages(ctx context.Context, limit int) ([]Message, error)
}

// New creates a session manager from a raw database connection.
func New(sqlDB *sql.DB) (*Manager, error) {
	if sqlDB == nil {
		return nil, db.ErrDatabaseRequired
	}
	return db.NewSessionManagerFromDB(sqlDB), nil
}

// Bind returns a Recorder writing to the session named key, creating it if needed.
func Bind(ctx context.Context, m *Manager, key string) (Recorder, error) {
	sess, err := m.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	return &bound{manager: m, sessionID: sess.ID}, nil
}

type bound struct {
	manager   *Manager
	sessionID string
}

func (b *bound) AppendExchange(ctx context.Context, userText, assistantText string) error {
	return b.manager.AppendExchange(ctx, b.sessionID, userText, assistantText)
}

func (b *bound) Messages(ctx context.Context, limit int) ([]Message, error) {
	return b.manager.GetMessages(ctx, b.sessionID, limit)
}

// Transcript is an in-memory Recorder. The MCP server keeps one per process.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// AppendExchange appends a user entry followed by an assistant entry
func (t *Transcript) AppendExchange(_ context.Context, userText, assistantText string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages,
		Message{Role: "user", Content: userText},
		Message{Role: "assistant", Content: assistantText},
	)
	return nil
}

// Messages returns a copy of the most recent limit messages (all when limit <= 0)
func (t *Transcript) Messages(_ context.Context, limit int) ([]Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
