package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrDatabaseRequired is returned when a nil connection is handed to a manager
var ErrDatabaseRequired = errors.New("database connection required")

// AgentMessage is one role-tagged conversation entry
type AgentMessage struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // user, assistant, system
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentSession is a named conversation
type AgentSession struct {
	ID           string    `json:"id"`
	SessionKey   string    `json:"session_key"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionManager persists sessions and their messages.
// Messages are ordered by a per-session sequence number so that
// exchanges written in one transaction always read back in order.
type SessionManager struct {
	db *sql.DB
}

// NewSessionManagerFromDB creates a session manager from a raw database connection
func NewSessionManagerFromDB(sqlDB *sql.DB) *SessionManager {
	return &SessionManager{db: sqlDB}
}

// GetOrCreate returns the session named key, creating it when missing
func (m *SessionManager) GetOrCreate(ctx context.Context, key string) (*AgentSession, error) {
	sess, err := m.getByKey(ctx, key)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().Unix()
	id := uuid.New().String()
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, message_count, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		id, key, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &AgentSession{
		ID:         id,
		SessionKey: key,
		CreatedAt:  time.Unix(now, 0),
		UpdatedAt:  time.Unix(now, 0),
	}, nil
}

func (m *SessionManager) getByKey(ctx context.Context, key string) (*AgentSession, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, name, message_count, created_at, updated_at FROM sessions WHERE name = ?`, key)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*AgentSession, error) {
	var (
		s                AgentSession
		created, updated int64
	)
	if err := row.Scan(&s.ID, &s.SessionKey, &s.MessageCount, &created, &updated); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(created, 0)
	s.UpdatedAt = time.Unix(updated, 0)
	return &s, nil
}

// AppendExchange records a user/assistant pair atomically, in that order
func (m *SessionManager) AppendExchange(ctx context.Context, sessionID, userText, assistantText string) error {
	return m.append(ctx, sessionID, []AgentMessage{
		{Role: "user", Content: userText},
		{Role: "assistant", Content: assistantText},
	})
}

func (m *SessionManager) append(ctx context.Context, sessionID string, msgs []AgentMessage) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT message_count FROM sessions WHERE id = ?`, sessionID).Scan(&count); err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	now := time.Now().Unix()
	for _, msg := range msgs {
		count++
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), sessionID, count, msg.Role, msg.Content, now,
		)
		if err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET message_count = ?, updated_at = ? WHERE id = ?`, count, now, sessionID,
	); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return tx.Commit()
}

// GetMessages returns a session's messages oldest first.
// limit > 0 keeps only the most recent limit messages.
func (m *SessionManager) GetMessages(ctx context.Context, sessionID string, limit int) ([]AgentMessage, error) {
	query := `SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY seq`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at, seq FROM messages
			WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []AgentMessage
	for rows.Next() {
		var (
			msg     AgentMessage
			created int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &created); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.Unix(created, 0)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListSessions returns all sessions, most recently updated first
func (m *SessionManager) ListSessions(ctx context.Context) ([]AgentSession, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, name, message_count, created_at, updated_at FROM sessions ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []AgentSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Reset clears all messages from a session
func (m *SessionManager) Reset(ctx context.Context, sessionID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET message_count = 0, updated_at = ? WHERE id = ?`, time.Now().Unix(), sessionID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteSession removes a session and all its messages
func (m *SessionManager) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}
