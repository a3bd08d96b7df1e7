package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/neboloop/nebo-advisor/internal/agent/session"
)

// StreamEventType defines the type of streaming event
type StreamEventType string

const (
	EventTypeText     StreamEventType = "text"
	EventTypeThinking StreamEventType = "thinking"
	EventTypeError    StreamEventType = "error"
	EventTypeDone     StreamEventType = "done"
)

// StreamEvent represents a streaming response event
type StreamEvent struct {
	Type  StreamEventType `json:"type"`
	Text  string          `json:"text,omitempty"`
	Error error           `json:"error,omitempty"`
}

// ChatRequest represents a request to the AI provider
type ChatRequest struct {
	Messages    []session.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	System      string            `json:"system,omitempty"`
	Model       string            `json:"model,omitempty"` // Model override (e.g. the weak model)
}

// Provider interface for AI providers
type Provider interface {
	// ID returns the provider identifier (e.g., "anthropic", "openai")
	ID() string

	// Stream sends a request and returns a channel of streaming events.
	// The channel is closed after a Done or Error event.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)
}

// ErrEmptyStream is returned when a stream closes without a Done event or text
var ErrEmptyStream = errors.New("provider stream closed without a response")

// Collect drains a stream into the complete reply text.
// Thinking events are dropped; the first error event aborts.
func Collect(ctx context.Context, events <-chan StreamEvent) (string, error) {
	var (
		content strings.Builder
		done    bool
	)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case event, ok := <-events:
			if !ok {
				if !done && content.Len() == 0 {
					return "", ErrEmptyStream
				}
				return content.String(), nil
			}
			switch event.Type {
			case EventTypeText:
				content.WriteString(event.Text)
			case EventTypeError:
				return "", event.Error
			case EventTypeDone:
				done = true
			}
		}
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

func (e *ProviderError) Error() string {
	return e.Message
}

// ClassifyErrorReason determines the category of a provider error for reporting.
// Returns: "billing", "rate_limit", "auth", "timeout", or "other"
func ClassifyErrorReason(err error) string {
	if err == nil {
		return "other"
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "rate_limit_exceeded":
			return "rate_limit"
		case "authentication_error", "invalid_api_key", "unauthorized":
			return "auth"
		case "insufficient_quota", "billing_error", "payment_required":
			return "billing"
		}
		switch pe.Type {
		case "rate_limit_error":
			return "rate_limit"
		case "authentication_error":
			return "auth"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	patterns := []struct {
		reason string
		needle []string
	}{
		{"billing", []string{"billing", "quota", "payment", "credit", "insufficient"}},
		{"rate_limit", []string{"rate limit", "rate_limit", "too many requests", "429"}},
		{"auth", []string{"authentication", "unauthorized", "api key", "401", "403"}},
		{"timeout", []string{"timeout", "timed out", "deadline exceeded"}},
	}
	for _, p := range patterns {
		for _, n := range p.needle {
			if strings.Contains(msg, n) {
				return p.reason
			}
		}
	}
	return "other"
}
