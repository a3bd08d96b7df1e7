// Package chat provides the one-shot model sessions the advisor drives.
// A Factory creates a Session per step; each Session sends prompts to an
// ai.Provider and drains the stream into a single Reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neboloop/nebo-advisor/internal/agent/ai"
	"github.com/neboloop/nebo-advisor/internal/agent/repomap"
	"github.com/neboloop/nebo-advisor/internal/agent/session"
	"github.com/neboloop/nebo-advisor/internal/logging"
)

// Options configures a session
type Options struct {
	UseWeakModel           bool // classification-grade model
	AskOnly                bool // answer in prose, never propose edits
	SummarizeFromParent    bool // seed the session with the caller's recent conversation
	IncludeTextAndMarkdown bool // list text and markdown files first in the repository context
}

// Reply is the result of a single Run
type Reply struct {
	text string
}

// NewReply wraps plain text as a Reply
func NewReply(text string) Reply {
	return Reply{text: text}
}

// Text returns the reply content
func (r Reply) Text() string {
	return r.text
}

// Session runs prompts against a model
type Session interface {
	Run(ctx context.Context, prompt string) (Reply, error)
}

// Factory creates sessions
type Factory interface {
	Create(opts Options) (Session, error)
}

// ErrNoProvider is returned by Create when the factory has no provider
var ErrNoProvider = errors.New("chat: no provider configured")

const askOnlyPrompt = `You are a knowledgeable assistant answering questions about a software project.
Answer in prose. Do not propose file edits, diffs or shell commands unless the question asks for them.`

// maxParentMessages bounds how much of the caller's conversation is carried over
const maxParentMessages = 6

// ProviderFactory creates sessions backed by an ai.Provider
type ProviderFactory struct {
	Provider  ai.Provider
	Model     string
	WeakModel string

	Root    string          // repository summarised into the system prompt (empty = none)
	RepoMap repomap.Options // bounds for that summary

	Parent       session.Recorder // conversation used when SummarizeFromParent is set
	HistoryLimit int
}

// Create returns a new session with its own history
func (f *ProviderFactory) Create(opts Options) (Session, error) {
	if f.Provider == nil {
		return nil, ErrNoProvider
	}
	model := f.Model
	if opts.UseWeakModel && f.WeakModel != "" {
		model = f.WeakModel
	}
	return &providerSession{factory: f, opts: opts, model: model}, nil
}

// providerSession keeps the exchanges of its own runs so follow-up prompts
// see earlier replies.
type providerSession struct {
	factory *ProviderFactory
	opts    Options
	model   string

	mu      sync.Mutex
	primed  bool
	system  string
	history []session.Message
}

// Run sends prompt and returns the full reply once the stream is drained
func (s *providerSession) Run(ctx context.Context, prompt string) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.primed {
		if err := s.prime(ctx); err != nil {
			return Reply{}, err
		}
		s.primed = true
	}

	messages := make([]session.Message, 0, len(s.history)+1)
	messages = append(messages, s.history...)
	messages = append(messages, session.Message{Role: "user", Content: prompt})

	logging.Debugf("[chat] run model=%s weak=%v messages=%d", s.model, s.opts.UseWeakModel, len(messages))

	events, err := s.factory.Provider.Stream(ctx, &ai.ChatRequest{
		System:   s.system,
		Messages: messages,
		Model:    s.model,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("stream error: %w", err)
	}
	text, err := ai.Collect(ctx, events)
	if err != nil {
		return Reply{}, fmt.Errorf("%s: %w", s.factory.Provider.ID(), err)
	}

	s.history = append(s.history,
		session.Message{Role: "user", Content: prompt},
		session.Message{Role: "assistant", Content: text},
	)
	return NewReply(text), nil
}

// prime builds the system prompt and optional parent context once
func (s *providerSession) prime(ctx context.Context) error {
	var sys strings.Builder
	if s.opts.AskOnly {
		sys.WriteString(askOnlyPrompt)
	}

	if s.factory.Root != "" {
		opts := s.factory.RepoMap
		opts.TextFirst = s.opts.IncludeTextAndMarkdown
		m, err := repomap.Build(ctx, s.factory.Root, opts)
		if err != nil {
			// the repository summary is context, not a requirement
			logging.Warnf("[chat] repository summary unavailable: %v", err)
		} else if listing := m.String(); listing != "" {
			if sys.Len() > 0 {
				sys.WriteString("\n\n")
			}
			sys.WriteString(listing)
		}
	}
	s.system = sys.String()

	if s.opts.SummarizeFromParent && s.factory.Parent != nil {
		limit := s.factory.HistoryLimit
		if limit <= 0 || limit > maxParentMessages {
			limit = maxParentMessages
		}
		recent, err := s.factory.Parent.Messages(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to read parent conversation: %w", err)
		}
		if summary := summarize(recent); summary != "" {
			s.history = append(s.history,
				session.Message{Role: "user", Content: summary},
				session.Message{Role: "assistant", Content: "Understood."},
			)
		}
	}
	return nil
}

// summarize condenses recent messages into one context message
func summarize(recent []session.Message) string {
	var sb strings.Builder
	for _, msg := range recent {
		switch msg.Role {
		case "user":
			fmt.Fprintf(&sb, "User: %s\n\n", truncate(msg.Content, 200))
		case "assistant":
			if msg.Content != "" {
				fmt.Fprintf(&sb, "Assistant: %s\n\n", truncate(msg.Content, 200))
			}
		}
	}
	if sb.Len() == 0 {
		return ""
	}
	return "Recent conversation context:\n\n" + sb.String()
}

// truncate shortens s to at most maxLen bytes without splitting a rune
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
