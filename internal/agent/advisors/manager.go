package advisors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/neboloop/nebo-advisor/internal/agent/chat"
	"github.com/neboloop/nebo-advisor/internal/agent/session"
	"github.com/neboloop/nebo-advisor/internal/console"
	"github.com/neboloop/nebo-advisor/internal/logging"
)

// Options configures a Manager
type Options struct {
	Root     string           // repository root; empty means the working directory
	Sandbox  bool             // confine suggested persona paths to Root
	Catalog  *Catalog         // known personas offered to the classifier (optional)
	Recorder session.Recorder // conversation that receives advice exchanges
	FS       billy.Filesystem // persona storage; defaults to the OS filesystem
}

// Manager runs the advisor flow: classify, load or create, advise.
// Every call re-runs classification and re-reads persona files.
//
// Persona files are not locked. Two callers creating the same path race
// and the last write wins.
type Manager struct {
	factory  chat.Factory
	io       console.IO
	recorder session.Recorder
	fs       billy.Filesystem
	sandbox  Sandbox
	catalog  *Catalog
	log      logging.Logger
}

// NewManager creates a Manager
func NewManager(factory chat.Factory, io console.IO, opts Options) *Manager {
	root := opts.Root
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	m := &Manager{
		factory:  factory,
		io:       io,
		recorder: opts.Recorder,
		fs:       opts.FS,
		catalog:  opts.Catalog,
		sandbox:  Sandbox{Root: root, Enforce: opts.Sandbox},
		log:      logging.WithComponent("advisors"),
	}
	if m.fs == nil {
		m.fs = osfs.New("/")
		m.sandbox.EvalSymlinks = filepath.EvalSymlinks
	}
	if m.recorder == nil {
		m.recorder = session.NewTranscript()
	}
	return m
}

// Root returns the directory relative persona paths resolve against
func (m *Manager) Root() string {
	return m.sandbox.Root
}

// IdentifyPersona asks the weak model which persona should answer question
func (m *Manager) IdentifyPersona(ctx context.Context, question string) (Descriptor, error) {
	m.io.ReportStatus("Analyzing your question to find the right advisor persona...")

	known := ""
	if m.catalog != nil {
		known = m.catalog.Listing()
	}

	reply, err := m.run(ctx, chat.Options{
		UseWeakModel:           true,
		AskOnly:                true,
		IncludeTextAndMarkdown: true,
	}, classificationPrompt(question, known))
	if err != nil {
		return Descriptor{}, fmt.Errorf("classification failed: %w", err)
	}

	d, err := parseDescriptor(reply)
	if err != nil {
		var perr *ClassificationParseError
		if errors.As(err, &perr) {
			m.io.ReportError(fmt.Sprintf("Error parsing persona information: %v", perr.Err))
			m.io.ReportStatus("Response content:")
			m.io.ReportStatus(reply)
		}
		return Descriptor{}, err
	}
	m.log.Debugf("classified as %q -> %q", d.PersonaType, d.SuggestedFile)
	return d, nil
}

// CreatePersona writes a new persona for personaType at path and returns
// the written content. An existing file is overwritten.
func (m *Manager) CreatePersona(ctx context.Context, personaType, path, question string) (string, error) {
	return m.create(ctx, personaType, path, m.sandbox.abs(path), question)
}

func (m *Manager) create(ctx context.Context, personaType, display, target, question string) (string, error) {
	m.io.ReportStatus(fmt.Sprintf("Creating new %s advisor persona...", personaType))

	reply, err := m.run(ctx, chat.Options{
		AskOnly:                true,
		IncludeTextAndMarkdown: true,
	}, creationPrompt(personaType, question))
	if err != nil {
		return "", fmt.Errorf("persona creation failed: %w", err)
	}

	content := personaHeader(personaType) + reply

	if err := m.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", &PersonaWriteError{Path: target, Err: err}
	}
	if err := util.WriteFile(m.fs, target, []byte(content), 0644); err != nil {
		return "", &PersonaWriteError{Path: target, Err: err}
	}

	m.io.ReportStatus(fmt.Sprintf("Created new persona file at: %s", display))
	return content, nil
}

// LoadPersona reads a persona file. Failures are reported to the user and
// yield ok == false.
func (m *Manager) LoadPersona(path string) (content string, ok bool) {
	return m.load(path, m.sandbox.abs(path))
}

func (m *Manager) load(display, target string) (string, bool) {
	data, err := util.ReadFile(m.fs, target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.io.ReportError(fmt.Sprintf("Persona file not found: %s", display))
		} else {
			m.io.ReportError(fmt.Sprintf("Error reading persona file: %v", err))
		}
		return "", false
	}
	return string(data), true
}

// GenerateAdvice answers question in the voice of the persona and records
// the exchange in the conversation
func (m *Manager) GenerateAdvice(ctx context.Context, content, personaType, question string) (string, error) {
	m.io.ReportStatus(fmt.Sprintf("Generating advice from the %s advisor persona...", personaType))

	advice, err := m.run(ctx, chat.Options{
		AskOnly:                true,
		IncludeTextAndMarkdown: true,
	}, advicePrompt(content, question))
	if err != nil {
		return "", fmt.Errorf("advice generation failed: %w", err)
	}

	if err := m.recorder.AppendExchange(ctx, adviceRecord(personaType, advice), adviceAck); err != nil {
		return advice, fmt.Errorf("%w: %w", ErrNotRecorded, err)
	}
	return advice, nil
}

// GetPersona classifies question and loads or creates the matching persona.
// Recoverable outcomes (nothing suggested, unsafe path, unreadable file,
// creation declined) are reported and return a nil Persona with a nil error.
func (m *Manager) GetPersona(ctx context.Context, question string) (*Persona, error) {
	d, err := m.IdentifyPersona(ctx, question)
	if err != nil {
		return nil, err
	}

	if d.SuggestedFile == "" {
		m.io.ReportError("The LLM couldn't identify or suggest a persona file.")
		return m.recovered(ErrNoPersona)
	}

	target, err := m.sandbox.Resolve(d.SuggestedFile)
	if err != nil {
		m.io.ReportError(fmt.Sprintf("Refusing persona path %s: %v", d.SuggestedFile, err))
		return m.recovered(err)
	}

	_, statErr := m.fs.Stat(target)
	switch {
	case statErr == nil:
		m.io.ReportStatus(fmt.Sprintf("Found suitable %s advisor persona in: %s", d.PersonaType, d.SuggestedFile))
		content, ok := m.load(d.SuggestedFile, target)
		if !ok || content == "" {
			return m.recovered(ErrPersonaLoad)
		}
		return &Persona{Type: d.PersonaType, Content: content, Path: target}, nil

	case !errors.Is(statErr, os.ErrNotExist):
		m.io.ReportError(fmt.Sprintf("Error reading persona file: %v", statErr))
		return m.recovered(ErrPersonaLoad)
	}

	m.io.ReportStatus(fmt.Sprintf("No existing %s advisor persona found.", d.PersonaType))
	m.io.ReportStatus(fmt.Sprintf("Suggested creating new persona at: %s", d.SuggestedFile))

	if !m.io.Confirm(fmt.Sprintf("Create new %s advisor persona?", d.PersonaType), true) {
		m.io.ReportStatus("Persona creation cancelled.")
		return m.recovered(ErrCreationCancelled)
	}

	content, err := m.create(ctx, d.PersonaType, d.SuggestedFile, target, question)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return m.recovered(ErrPersonaLoad)
	}
	return &Persona{Type: d.PersonaType, Content: content, Path: target, Created: true}, nil
}

// Advice is the result of a full advisor run
type Advice struct {
	Persona *Persona
	Text    string
}

// Advise runs GetPersona and then GenerateAdvice. A nil Advice with a nil
// error means no persona was available; the reason was already reported.
// When only recording fails the Advice is returned along with an error
// matching ErrNotRecorded.
func (m *Manager) Advise(ctx context.Context, question string) (*Advice, error) {
	p, err := m.GetPersona(ctx, question)
	if err != nil || p == nil {
		return nil, err
	}
	text, err := m.GenerateAdvice(ctx, p.Content, p.Type, question)
	if err != nil {
		if errors.Is(err, ErrNotRecorded) {
			return &Advice{Persona: p, Text: text}, err
		}
		return nil, err
	}
	return &Advice{Persona: p, Text: text}, nil
}

func (m *Manager) recovered(reason error) (*Persona, error) {
	m.log.Debugf("no persona: %v", reason)
	return nil, nil
}

// run creates a session, sends one prompt and returns the reply text
func (m *Manager) run(ctx context.Context, opts chat.Options, prompt string) (string, error) {
	s, err := m.factory.Create(opts)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	reply, err := s.Run(ctx, prompt)
	if err != nil {
		return "", err
	}
	return reply.Text(), nil
}
