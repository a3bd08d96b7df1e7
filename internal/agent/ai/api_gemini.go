package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/neboloop/nebo-advisor/internal/logging"
)

// GeminiProvider implements the Google Gemini API
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// ID returns the provider identifier
func (p *GeminiProvider) ID() string {
	return "gemini"
}

// Close releases the underlying client
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// Stream sends a request and returns streaming events.
// All but the last message become chat history; the last one is sent.
func (p *GeminiProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	history, last := p.buildContents(req)
	if last == "" {
		return nil, fmt.Errorf("gemini: request has no user message")
	}

	name := p.model
	if req.Model != "" {
		name = req.Model
	}
	model := p.client.GenerativeModel(name)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	cs := model.StartChat()
	cs.History = history

	logging.Debugf("[Gemini] Sending request: model=%s history=%d", name, len(history))

	iter := cs.SendMessageStream(ctx, genai.Text(last))

	events := make(chan StreamEvent, 100)
	go func() {
		defer close(events)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				events <- StreamEvent{Type: EventTypeDone}
				return
			}
			if err != nil {
				logging.Errorf("[Gemini] Stream error: %v", err)
				events <- StreamEvent{Type: EventTypeError, Error: fmt.Errorf("gemini: %w", err)}
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if text, ok := part.(genai.Text); ok && text != "" {
						events <- StreamEvent{Type: EventTypeText, Text: string(text)}
					}
				}
			}
		}
	}()
	return events, nil
}

// buildContents splits messages into chat history and the final user turn
func (p *GeminiProvider) buildContents(req *ChatRequest) ([]*genai.Content, string) {
	msgs := req.Messages
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != "user" {
		return nil, ""
	}
	last := msgs[len(msgs)-1].Content

	var history []*genai.Content
	for _, msg := range msgs[:len(msgs)-1] {
		if msg.Content == "" {
			continue
		}
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return history, last
}
