package advisors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/nebo-advisor/internal/agent/chat"
	"github.com/neboloop/nebo-advisor/internal/agent/session"
)

const repoRoot = "/repo"

// scriptedFactory hands out sessions that return canned replies in order
type scriptedFactory struct {
	replies []string
	err     error
	opts    []chat.Options
	prompts []string
}

func (f *scriptedFactory) Create(opts chat.Options) (chat.Session, error) {
	f.opts = append(f.opts, opts)
	return scriptedSession{f}, nil
}

type scriptedSession struct{ f *scriptedFactory }

func (s scriptedSession) Run(_ context.Context, prompt string) (chat.Reply, error) {
	s.f.prompts = append(s.f.prompts, prompt)
	if s.f.err != nil {
		return chat.Reply{}, s.f.err
	}
	if len(s.f.replies) == 0 {
		return chat.Reply{}, errors.New("unexpected model call")
	}
	r := s.f.replies[0]
	s.f.replies = s.f.replies[1:]
	return chat.NewReply(r), nil
}

// recordingIO captures everything the manager tells the user
type recordingIO struct {
	statuses []string
	errors   []string
	confirms []string
	answer   bool
}

func (r *recordingIO) ReportStatus(msg string) { r.statuses = append(r.statuses, msg) }
func (r *recordingIO) ReportError(msg string)  { r.errors = append(r.errors, msg) }
func (r *recordingIO) Confirm(prompt string, defaultYes bool) bool {
	r.confirms = append(r.confirms, prompt)
	return r.answer
}

// countingFS counts calls that touch the filesystem
type countingFS struct {
	billy.Filesystem
	stats, opens, writes, mkdirs int
}

func (c *countingFS) Stat(name string) (os.FileInfo, error) {
	c.stats++
	return c.Filesystem.Stat(name)
}

func (c *countingFS) Open(name string) (billy.File, error) {
	c.opens++
	return c.Filesystem.Open(name)
}

func (c *countingFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 {
		c.writes++
	} else {
		c.opens++
	}
	return c.Filesystem.OpenFile(name, flag, perm)
}

func (c *countingFS) Create(name string) (billy.File, error) {
	c.writes++
	return c.Filesystem.Create(name)
}

func (c *countingFS) MkdirAll(name string, perm os.FileMode) error {
	c.mkdirs++
	return c.Filesystem.MkdirAll(name, perm)
}

func (c *countingFS) touched() int {
	return c.stats + c.opens + c.writes + c.mkdirs
}

type fixture struct {
	factory  *scriptedFactory
	io       *recordingIO
	fs       *countingFS
	recorder *session.Transcript
	m        *Manager
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	f := &fixture{
		factory:  &scriptedFactory{replies: replies},
		io:       &recordingIO{answer: true},
		fs:       &countingFS{Filesystem: memfs.New()},
		recorder: session.NewTranscript(),
	}
	f.m = NewManager(f.factory, f.io, Options{
		Root:     repoRoot,
		Sandbox:  true,
		Recorder: f.recorder,
		FS:       f.fs,
	})
	return f
}

func (f *fixture) seed(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(f.fs.Filesystem, filepath.Join(repoRoot, rel), []byte(content), 0644))
}

func (f *fixture) exists(rel string) bool {
	_, err := f.fs.Filesystem.Stat(filepath.Join(repoRoot, rel))
	return err == nil
}

func TestIdentifyPersonaUsesWeakAskOnlySession(t *testing.T) {
	f := newFixture(t, `{"persona_type":"security","suggested_file":"personas/security.md"}`)

	d, err := f.m.IdentifyPersona(context.Background(), "Is this SQL query injection-safe?")
	require.NoError(t, err)
	assert.Equal(t, Descriptor{PersonaType: "security", SuggestedFile: "personas/security.md"}, d)

	require.Len(t, f.factory.opts, 1)
	assert.Equal(t, chat.Options{UseWeakModel: true, AskOnly: true, IncludeTextAndMarkdown: true}, f.factory.opts[0])
	assert.Contains(t, f.factory.prompts[0], `"Is this SQL query injection-safe?"`)
	assert.Equal(t, "Analyzing your question to find the right advisor persona...", f.io.statuses[0])
}

func TestIdentifyPersonaFallsBackToEmbeddedObject(t *testing.T) {
	f := newFixture(t, "Let me think.\n{\"persona_type\":\"security\",\"suggested_file\":\"docs/x.md\"}\n\nDone.")

	d, err := f.m.IdentifyPersona(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "security", d.PersonaType)
	assert.Equal(t, "docs/x.md", d.SuggestedFile)
}

func TestIdentifyPersonaDefaultsType(t *testing.T) {
	f := newFixture(t, `{"suggested_file":"personas/general.md"}`)

	d, err := f.m.IdentifyPersona(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "advisor", d.PersonaType)
}

func TestIdentifyPersonaParseErrorReportsReply(t *testing.T) {
	f := newFixture(t, "no json here")

	_, err := f.m.IdentifyPersona(context.Background(), "q")
	var perr *ClassificationParseError
	require.ErrorAs(t, err, &perr)
	require.Len(t, f.io.errors, 1)
	assert.True(t, strings.HasPrefix(f.io.errors[0], "Error parsing persona information:"))
	assert.Contains(t, f.io.statuses, "Response content:")
	assert.Contains(t, f.io.statuses, "no json here")
}

func TestIdentifyPersonaListsCatalog(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "personas", "security.md"), "# Security Advisor Persona\n")
	cat := NewCatalog(root, "personas")
	require.NoError(t, cat.LoadAll())

	factory := &scriptedFactory{replies: []string{`{"persona_type":"security","suggested_file":"personas/security.md"}`}}
	m := NewManager(factory, &recordingIO{}, Options{Root: root, Catalog: cat})
	_, err := m.IdentifyPersona(context.Background(), "q")
	require.NoError(t, err)
	assert.Contains(t, factory.prompts[0], "- personas/security.md (Security Advisor Persona)")
}

func TestGetPersonaExistingFile(t *testing.T) {
	f := newFixture(t, `{"persona_type":"security","suggested_file":"personas/security.md"}`)
	f.seed(t, "personas/security.md", "Expert in appsec.")
	f.fs.writes, f.fs.mkdirs = 0, 0

	p, err := f.m.GetPersona(context.Background(), "Is this SQL query injection-safe?")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Expert in appsec.", p.Content)
	assert.Equal(t, "security", p.Type)
	assert.False(t, p.Created)

	assert.Zero(t, f.fs.writes)
	assert.Zero(t, f.fs.mkdirs)
	assert.Len(t, f.factory.opts, 1, "creator must not run")
	assert.Empty(t, f.io.confirms)
	assert.Contains(t, f.io.statuses, "Found suitable security advisor persona in: personas/security.md")
}

func TestGetPersonaNoSuggestionDoesNoIO(t *testing.T) {
	for _, reply := range []string{
		`{"persona_type":"security","suggested_file":null}`,
		`{"persona_type":"security"}`,
		`{"persona_type":"security","suggested_file":""}`,
	} {
		f := newFixture(t, reply)

		p, err := f.m.GetPersona(context.Background(), "q")
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.Zero(t, f.fs.touched(), reply)
		assert.Equal(t, []string{"The LLM couldn't identify or suggest a persona file."}, f.io.errors)
	}
}

func TestGetPersonaDeclineLeavesFilesystemUnchanged(t *testing.T) {
	f := newFixture(t, `{"persona_type":"performance","suggested_file":"personas/perf/perf.md"}`)
	f.io.answer = false

	p, err := f.m.GetPersona(context.Background(), "Why is this loop slow?")
	require.NoError(t, err)
	assert.Nil(t, p)

	assert.Zero(t, f.fs.writes)
	assert.Zero(t, f.fs.mkdirs)
	assert.False(t, f.exists("personas"))
	assert.Equal(t, []string{"Create new performance advisor persona?"}, f.io.confirms)
	assert.Equal(t, []string{
		"Analyzing your question to find the right advisor persona...",
		"No existing performance advisor persona found.",
		"Suggested creating new persona at: personas/perf/perf.md",
		"Persona creation cancelled.",
	}, f.io.statuses)
}

func TestGetPersonaCreatesAfterConfirm(t *testing.T) {
	f := newFixture(t,
		`{"persona_type":"code review","suggested_file":"personas/review/reviewer.md"}`,
		"## Background\n\nTwenty years of reviews.",
	)

	p, err := f.m.GetPersona(context.Background(), "Is this PR ready?")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Created)
	assert.Equal(t, "# Code Review Advisor Persona\n\n## Background\n\nTwenty years of reviews.", p.Content)
	assert.Equal(t, filepath.Join(repoRoot, "personas", "review", "reviewer.md"), p.Path)

	// main model, ask-only for the creator
	require.Len(t, f.factory.opts, 2)
	assert.False(t, f.factory.opts[1].UseWeakModel)
	assert.True(t, f.factory.opts[1].AskOnly)
	assert.Contains(t, f.factory.prompts[1], "advisor persona for a code review expert")
	assert.Contains(t, f.io.statuses, "Created new persona file at: personas/review/reviewer.md")

	// round trip: the loader returns exactly what the creator wrote
	content, ok := f.m.LoadPersona("personas/review/reviewer.md")
	require.True(t, ok)
	assert.Equal(t, p.Content, content)
}

func TestGetPersonaRejectsUnsafePath(t *testing.T) {
	for _, path := range []string{"../../etc/cron.d/evil.md", "/etc/passwd", "personas/run.sh"} {
		f := newFixture(t, `{"persona_type":"security","suggested_file":"`+path+`"}`)

		p, err := f.m.GetPersona(context.Background(), "q")
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.Zero(t, f.fs.touched(), path)
		require.Len(t, f.io.errors, 1)
		assert.Contains(t, f.io.errors[0], "Refusing persona path")
	}
}

func TestGetPersonaSandboxOffAllowsAnyPath(t *testing.T) {
	f := newFixture(t, `{"persona_type":"ops","suggested_file":"/elsewhere/ops.sh"}`)
	f.m.sandbox.Enforce = false
	require.NoError(t, util.WriteFile(f.fs.Filesystem, "/elsewhere/ops.sh", []byte("Ops persona"), 0644))

	p, err := f.m.GetPersona(context.Background(), "q")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Ops persona", p.Content)
}

func TestGetPersonaEmptyFileIsLoadFailure(t *testing.T) {
	f := newFixture(t, `{"persona_type":"security","suggested_file":"personas/empty.md"}`)
	f.seed(t, "personas/empty.md", "")

	p, err := f.m.GetPersona(context.Background(), "q")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGetPersonaUnreadableFile(t *testing.T) {
	f := newFixture(t, `{"persona_type":"security","suggested_file":"personas/dir.md"}`)
	require.NoError(t, f.fs.Filesystem.MkdirAll(filepath.Join(repoRoot, "personas", "dir.md"), 0755))

	p, err := f.m.GetPersona(context.Background(), "q")
	require.NoError(t, err)
	assert.Nil(t, p)
	require.Len(t, f.io.errors, 1)
	assert.Contains(t, f.io.errors[0], "Error reading persona file:")
}

func TestGetPersonaPropagatesParseError(t *testing.T) {
	f := newFixture(t, "I cannot help with that.")

	p, err := f.m.GetPersona(context.Background(), "q")
	assert.Nil(t, p)
	var perr *ClassificationParseError
	assert.ErrorAs(t, err, &perr)
}

func TestCreatePersonaWriteError(t *testing.T) {
	f := newFixture(t, "persona body")
	// a file where the parent directory should be
	f.seed(t, "personas", "not a directory")

	_, err := f.m.CreatePersona(context.Background(), "security", "personas/security.md", "q")
	var werr *PersonaWriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, filepath.Join(repoRoot, "personas", "security.md"), werr.Path)
}

func TestCreatePersonaOverwrites(t *testing.T) {
	f := newFixture(t, "new body")
	f.seed(t, "personas/security.md", "old body")

	content, err := f.m.CreatePersona(context.Background(), "security", "personas/security.md", "q")
	require.NoError(t, err)
	assert.Equal(t, "# Security Advisor Persona\n\nnew body", content)

	got, ok := f.m.LoadPersona("personas/security.md")
	require.True(t, ok)
	assert.Equal(t, content, got)
}

func TestCreatePersonaOnRealFilesystem(t *testing.T) {
	root := t.TempDir()
	m := NewManager(&scriptedFactory{replies: []string{"body"}}, &recordingIO{}, Options{Root: root, Sandbox: true})

	content, err := m.CreatePersona(context.Background(), "legal", "nested/dir/legal.md", "q")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "nested", "dir", "legal.md"))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestLoadPersonaMissing(t *testing.T) {
	f := newFixture(t)

	content, ok := f.m.LoadPersona("personas/missing.md")
	assert.False(t, ok)
	assert.Empty(t, content)
	assert.Equal(t, []string{"Persona file not found: personas/missing.md"}, f.io.errors)
}

func TestGenerateAdviceAppendsTwoEntries(t *testing.T) {
	for _, advice := range []string{"Use parameterized queries.", ""} {
		f := newFixture(t, advice)
		ctx := context.Background()
		require.NoError(t, f.recorder.AppendExchange(ctx, "earlier", "reply"))

		got, err := f.m.GenerateAdvice(ctx, "Expert in appsec.", "security", "Is this SQL query injection-safe?")
		require.NoError(t, err)
		assert.Equal(t, advice, got)

		msgs, err := f.recorder.Messages(ctx, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		assert.Equal(t, "user", msgs[2].Role)
		assert.Equal(t, "Advice from security advisor persona:\n\n"+advice, msgs[2].Content)
		assert.Equal(t, "assistant", msgs[3].Role)
		assert.Equal(t, "I've provided advice based on the requested persona.", msgs[3].Content)

		assert.Contains(t, f.factory.prompts[0], "You are an advisor with the following persona:\n\nExpert in appsec.")
		assert.Contains(t, f.factory.prompts[0], "Is this SQL query injection-safe?")
	}
}

func TestGenerateAdviceModelErrorRecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.factory.err = errors.New("provider down")

	_, err := f.m.GenerateAdvice(context.Background(), "c", "security", "q")
	require.Error(t, err)

	msgs, _ := f.recorder.Messages(context.Background(), 0)
	assert.Empty(t, msgs)
}

func TestAdviseEndToEnd(t *testing.T) {
	f := newFixture(t,
		`{"persona_type":"security","suggested_file":"personas/security.md"}`,
		"Use bound parameters.",
	)
	f.seed(t, "personas/security.md", "Expert in appsec.")

	a, err := f.m.Advise(context.Background(), "Is this SQL query injection-safe?")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Use bound parameters.", a.Text)
	assert.Equal(t, "security", a.Persona.Type)

	msgs, _ := f.recorder.Messages(context.Background(), 0)
	assert.Len(t, msgs, 2)
}

func TestAdviseWithoutPersona(t *testing.T) {
	f := newFixture(t, `{"persona_type":"security","suggested_file":null}`)

	a, err := f.m.Advise(context.Background(), "q")
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Len(t, f.factory.opts, 1)
}

type failingRecorder struct {
	session.Transcript
	err error
}

func (r *failingRecorder) AppendExchange(context.Context, string, string) error {
	return r.err
}

func TestGenerateAdviceKeepsAdviceWhenRecordingFails(t *testing.T) {
	f := newFixture(t, "Use bound parameters.")
	diskFull := errors.New("disk full")
	m := NewManager(f.factory, f.io, Options{
		Root:     repoRoot,
		Recorder: &failingRecorder{err: diskFull},
		FS:       f.fs,
	})

	got, err := m.GenerateAdvice(context.Background(), "Expert in appsec.", "security", "q")
	assert.Equal(t, "Use bound parameters.", got)
	assert.ErrorIs(t, err, ErrNotRecorded)
	assert.ErrorIs(t, err, diskFull)
}

func TestAdviseReturnsAdviceWhenRecordingFails(t *testing.T) {
	f := newFixture(t,
		`{"persona_type":"security","suggested_file":"personas/security.md"}`,
		"Use bound parameters.",
	)
	f.seed(t, "personas/security.md", "Expert in appsec.")
	m := NewManager(f.factory, f.io, Options{
		Root:     repoRoot,
		Sandbox:  true,
		Recorder: &failingRecorder{err: errors.New("disk full")},
		FS:       f.fs,
	})

	a, err := m.Advise(context.Background(), "Is this SQL query injection-safe?")
	assert.ErrorIs(t, err, ErrNotRecorded)
	require.NotNil(t, a)
	assert.Equal(t, "Use bound parameters.", a.Text)
	assert.Equal(t, "security", a.Persona.Type)
}

func TestGetPersonaOnRealFilesystem(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "personas", "security.md"), "Expert in appsec.")
	m := NewManager(&scriptedFactory{replies: []string{
		`{"persona_type":"security","suggested_file":"personas/security.md"}`,
	}}, &recordingIO{}, Options{Root: root, Sandbox: true})

	p, err := m.GetPersona(context.Background(), "q")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Expert in appsec.", p.Content)
	assert.False(t, p.Created)
}
