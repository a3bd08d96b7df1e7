package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/neboloop/nebo-advisor/internal/agent/advisors"
	"github.com/neboloop/nebo-advisor/internal/console"
	"github.com/neboloop/nebo-advisor/internal/logging"
)

// ManagerFunc builds an advisor manager that talks through io
type ManagerFunc func(io console.IO) *advisors.Manager

// Option configures the MCP server
type Option func(*Server)

// WithCatalog exposes the persona catalog through list_personas and the tool description
func WithCatalog(c *advisors.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithAutoCreate sets the default answer when a persona file would be created
func WithAutoCreate(yes bool) Option {
	return func(s *Server) {
		s.autoCreate = yes
	}
}

// WithVersion sets the version reported to clients
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// Server exposes the advisor over MCP
type Server struct {
	newManager ManagerFunc
	catalog    *advisors.Catalog
	autoCreate bool
	version    string
	server     *mcp.Server
	log        logging.Logger

	toolMu  sync.Mutex
	askTool *mcp.Tool

	// advisor runs are one at a time; they share the conversation record
	runMu sync.Mutex
}

// NewServer creates a new MCP server for the advisor
func NewServer(newManager ManagerFunc, opts ...Option) *Server {
	s := &Server{
		newManager: newManager,
		version:    "dev",
		log:        logging.WithComponent("mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "nebo-advisor",
		Version: s.version,
	}, nil)

	s.registerAskTool()
	s.registerListTool()

	if s.catalog != nil {
		// keep the known-persona hint in step with the watched catalog
		s.catalog.OnChange(func([]*advisors.Entry) {
			s.registerAskTool()
		})
	}
	return s
}

func (s *Server) askDescription() string {
	description := "Answer a question in the voice of a specialist advisor persona. " +
		"The advisor picks a persona markdown file in the repository (or proposes a new one), " +
		"then answers from that persona's perspective."
	if s.catalog != nil && s.catalog.Count() > 0 {
		var names []string
		for _, e := range s.catalog.List() {
			names = append(names, e.Path)
		}
		description += "\n\nKnown personas: " + strings.Join(names, ", ")
	}
	return description
}

// registerAskTool adds ask_advisor, replacing an earlier registration
func (s *Server) registerAskTool() {
	tool := &mcp.Tool{
		Name:        "ask_advisor",
		Description: s.askDescription(),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The question to ask. Be specific about the code or decision in question.",
				},
				"create_if_missing": map[string]any{
					"type":        "boolean",
					"description": "Write a new persona file when no suitable one exists. Defaults to the server setting.",
				},
			},
			"required": []string{"question"},
		},
	}

	s.toolMu.Lock()
	defer s.toolMu.Unlock()
	s.server.AddTool(tool, s.askHandler())
	s.askTool = tool
}

func (s *Server) registerListTool() {
	s.server.AddTool(&mcp.Tool{
		Name:        "list_personas",
		Description: "List the advisor persona files known in this repository.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult(s.listPersonas(), false), nil
	})
}

type askInput struct {
	Question        string `json:"question"`
	CreateIfMissing *bool  `json:"create_if_missing"`
}

// askHandler returns the MCP tool handler for ask_advisor
func (s *Server) askHandler() mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (retResult *mcp.CallToolResult, retErr error) {
		// Recover from panics to prevent EOF
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorf("PANIC in ask_advisor: %v", r)
				retResult = textResult(fmt.Sprintf("tool panicked: %v", r), true)
				retErr = nil
			}
		}()

		var input askInput
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
				return textResult(fmt.Sprintf("invalid input: %v", err), true), nil
			}
		}
		return s.ask(ctx, input), nil
	}
}

func (s *Server) ask(ctx context.Context, input askInput) *mcp.CallToolResult {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return textResult("question is required", true)
	}

	create := s.autoCreate
	if input.CreateIfMissing != nil {
		create = *input.CreateIfMissing
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.log.Infof("ask_advisor: %s", truncate(question, 100))

	hio := console.NewHeadless(create)
	advice, err := s.newManager(hio).Advise(ctx, question)
	var warning string
	if err != nil && advice != nil && errors.Is(err, advisors.ErrNotRecorded) {
		warning = err.Error()
		err = nil
	}
	if err != nil {
		var perr *advisors.ClassificationParseError
		if errors.As(err, &perr) {
			return textResult(fmt.Sprintf("could not classify the question: %v\n\nModel reply:\n%s", perr.Err, perr.Reply), true)
		}
		return textResult(err.Error(), true)
	}

	var sb strings.Builder
	if advice == nil {
		sb.WriteString("No advisor persona was available for this question.\n")
		writeLines(&sb, "Errors", hio.Errors())
		writeLines(&sb, "Steps", hio.Statuses())
		return textResult(sb.String(), false)
	}

	fmt.Fprintf(&sb, "# Advice from the %s advisor persona\n\n", advice.Persona.Type)
	fmt.Fprintf(&sb, "**Persona file:** %s", advice.Persona.Path)
	if advice.Persona.Created {
		sb.WriteString(" (created)")
	}
	sb.WriteString("\n\n---\n\n")
	sb.WriteString(advice.Text)
	sb.WriteString("\n")
	if warning != "" {
		fmt.Fprintf(&sb, "\n_Warning: %s_\n", warning)
	}
	return textResult(sb.String(), false)
}

func (s *Server) listPersonas() string {
	if s.catalog == nil || s.catalog.Count() == 0 {
		return "No persona files found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d personas in %s:\n\n", s.catalog.Count(), s.catalog.Dir())
	sb.WriteString(s.catalog.Listing())
	return sb.String()
}

// Run serves MCP over stdin/stdout until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns an HTTP handler for the MCP server
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			return s.server
		},
		nil,
	)
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

func writeLines(sb *strings.Builder, heading string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n**%s:**\n", heading)
	for _, l := range lines {
		fmt.Fprintf(sb, "- %s\n", l)
	}
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
