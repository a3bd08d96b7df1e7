// Package console carries status lines, errors and yes/no questions
// between the advisor and whoever is driving it.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/neboloop/nebo-advisor/internal/logging"
)

// IO is the user-facing channel of an advisor run
type IO interface {
	ReportStatus(msg string)
	ReportError(msg string)
	// Confirm asks a yes/no question; defaultYes is the answer for empty input
	Confirm(prompt string, defaultYes bool) bool
}

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[1;33m"
	ansiGray   = "\033[90m"
)

// Terminal talks to a human on stdin/stdout
type Terminal struct {
	Out       io.Writer
	Err       io.Writer
	AssumeYes bool // answer every confirmation with yes
	Color     bool

	in          *bufio.Reader
	interactive bool
}

// NewTerminal creates a Terminal on the process's standard streams.
// Confirmations fall back to their default when stdin is not a terminal.
func NewTerminal(assumeYes bool) *Terminal {
	return &Terminal{
		Out:         os.Stdout,
		Err:         os.Stderr,
		AssumeYes:   assumeYes,
		Color:       term.IsTerminal(int(os.Stdout.Fd())),
		in:          bufio.NewReader(os.Stdin),
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// NewTerminalFrom creates a Terminal over arbitrary streams, treated as interactive
func NewTerminalFrom(in io.Reader, out, errOut io.Writer, assumeYes bool) *Terminal {
	return &Terminal{
		Out:         out,
		Err:         errOut,
		AssumeYes:   assumeYes,
		in:          bufio.NewReader(in),
		interactive: true,
	}
}

func (t *Terminal) paint(color, s string) string {
	if !t.Color {
		return s
	}
	return color + s + ansiReset
}

// ReportStatus prints an informational line
func (t *Terminal) ReportStatus(msg string) {
	fmt.Fprintln(t.Out, t.paint(ansiGray, msg))
}

// ReportError prints an error line to stderr
func (t *Terminal) ReportError(msg string) {
	fmt.Fprintln(t.Err, t.paint(ansiRed, msg))
}

// Confirm prompts until it reads yes, no, an empty line or EOF
func (t *Terminal) Confirm(prompt string, defaultYes bool) bool {
	hint := "(Y)es/(N)o [No]: "
	if defaultYes {
		hint = "(Y)es/(N)o [Yes]: "
	}
	question := t.paint(ansiYellow, prompt+" "+hint)

	if t.AssumeYes {
		fmt.Fprintln(t.Out, question+"y")
		return true
	}
	if !t.interactive || t.in == nil {
		logging.Debugf("[console] stdin is not a terminal, using default for %q", prompt)
		return defaultYes
	}

	for {
		fmt.Fprint(t.Out, question)
		line, err := t.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		switch {
		case answer == "" && err != nil:
			fmt.Fprintln(t.Out)
			return defaultYes
		case answer == "":
			return defaultYes
		case answer == "y" || answer == "yes":
			return true
		case answer == "n" || answer == "no":
			return false
		}
		if err != nil {
			return defaultYes
		}
		fmt.Fprintln(t.Out, "Please answer yes or no.")
	}
}

// Headless serves non-interactive hosts such as the MCP server.
// Lines go to the log and are kept for the caller; confirmations are
// answered with AutoConfirm.
type Headless struct {
	AutoConfirm bool

	mu       sync.Mutex
	statuses []string
	errors   []string
	log      logging.Logger
}

// NewHeadless creates a headless IO
func NewHeadless(autoConfirm bool) *Headless {
	return &Headless{
		AutoConfirm: autoConfirm,
		log:         logging.WithComponent("advisor"),
	}
}

// ReportStatus logs and records msg
func (h *Headless) ReportStatus(msg string) {
	h.mu.Lock()
	h.statuses = append(h.statuses, msg)
	h.mu.Unlock()
	h.log.Infof("%s", msg)
}

// ReportError logs and records msg
func (h *Headless) ReportError(msg string) {
	h.mu.Lock()
	h.errors = append(h.errors, msg)
	h.mu.Unlock()
	h.log.Errorf("%s", msg)
}

// Confirm answers with AutoConfirm
func (h *Headless) Confirm(prompt string, _ bool) bool {
	h.mu.Lock()
	h.statuses = append(h.statuses, fmt.Sprintf("%s %v", prompt, yesNo(h.AutoConfirm)))
	h.mu.Unlock()
	return h.AutoConfirm
}

// Statuses returns the recorded status lines
func (h *Headless) Statuses() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.statuses...)
}

// Errors returns the recorded error lines
func (h *Headless) Errors() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.errors...)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
