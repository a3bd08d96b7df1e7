package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/nebo-advisor/internal/logging"
)

func TestTerminalConfirm(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
	}{
		{"empty takes default yes", "\n", true, true},
		{"empty takes default no", "\n", false, false},
		{"explicit no", "n\n", true, false},
		{"explicit yes", "YES\n", false, true},
		{"eof takes default", "", true, true},
		{"reprompts on garbage", "maybe\nno\n", true, false},
		{"answer without newline", "y", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			term := NewTerminalFrom(strings.NewReader(tt.input), &out, &out, false)
			assert.Equal(t, tt.want, term.Confirm("Create new security advisor persona?", tt.defaultYes))
		})
	}
}

func TestTerminalAssumeYes(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminalFrom(strings.NewReader("n\n"), &out, &out, true)
	assert.True(t, term.Confirm("Proceed?", false))
	assert.Contains(t, out.String(), "Proceed?")
}

func TestTerminalReports(t *testing.T) {
	var out, errOut bytes.Buffer
	term := NewTerminalFrom(strings.NewReader(""), &out, &errOut, false)
	term.ReportStatus("working")
	term.ReportError("broken")
	assert.Equal(t, "working\n", out.String())
	assert.Equal(t, "broken\n", errOut.String())
}

func TestHeadlessRecords(t *testing.T) {
	logging.Disable()
	defer logging.Enable()

	h := NewHeadless(false)
	h.ReportStatus("one")
	h.ReportError("bad")
	assert.False(t, h.Confirm("Create?", true))

	h.AutoConfirm = true
	assert.True(t, h.Confirm("Create?", false))

	require.Len(t, h.Statuses(), 3)
	assert.Equal(t, "one", h.Statuses()[0])
	assert.Equal(t, []string{"bad"}, h.Errors())
}
