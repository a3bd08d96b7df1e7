package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/nebo-advisor/internal/agent/session"
)

func feed(events ...StreamEvent) <-chan StreamEvent {
	ch := make(chan StreamEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func TestCollectJoinsText(t *testing.T) {
	got, err := Collect(context.Background(), feed(
		StreamEvent{Type: EventTypeThinking, Text: "hmm"},
		StreamEvent{Type: EventTypeText, Text: "Hello, "},
		StreamEvent{Type: EventTypeText, Text: "world"},
		StreamEvent{Type: EventTypeDone},
	))
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", got)
}

func TestCollectEmptyDoneIsEmptyReply(t *testing.T) {
	got, err := Collect(context.Background(), feed(StreamEvent{Type: EventTypeDone}))
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestCollectClosedWithoutDone(t *testing.T) {
	_, err := Collect(context.Background(), feed())
	assert.ErrorIs(t, err, ErrEmptyStream)
}

func TestCollectStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Collect(context.Background(), feed(
		StreamEvent{Type: EventTypeText, Text: "partial"},
		StreamEvent{Type: EventTypeError, Error: boom},
	))
	assert.ErrorIs(t, err, boom)
}

func TestCollectHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, make(chan StreamEvent))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyErrorReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "other"},
		{&ProviderError{Code: "rate_limit_exceeded", Message: "slow down"}, "rate_limit"},
		{&ProviderError{Type: "authentication_error", Message: "nope"}, "auth"},
		{fmt.Errorf("wrapped: %w", &ProviderError{Code: "insufficient_quota", Message: "x"}), "billing"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("HTTP 429 Too Many Requests"), "rate_limit"},
		{errors.New("invalid API key"), "auth"},
		{errors.New("connection refused"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyErrorReason(tt.err), "%v", tt.err)
	}
}

func TestOllamaBuildMessagesPrependsSystem(t *testing.T) {
	p := NewOllamaProvider("", "")
	msgs := p.buildMessages(&ChatRequest{
		System: "be brief",
		Messages: []session.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: ""},
			{Role: "tool", Content: "ignored"},
		},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].Content)
}

func TestGeminiBuildContentsSplitsLastTurn(t *testing.T) {
	p := &GeminiProvider{}
	history, last := p.buildContents(&ChatRequest{Messages: []session.Message{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
	}})
	assert.Equal(t, "q2", last)
	require.Len(t, history, 2)
	assert.Equal(t, "model", history[1].Role)

	_, last = p.buildContents(&ChatRequest{Messages: []session.Message{{Role: "assistant", Content: "a"}}})
	assert.Equal(t, "", last)
}
