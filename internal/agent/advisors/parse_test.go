package advisors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Descriptor
	}{
		{
			name:  "strict json",
			reply: `{"thinking": "appsec", "persona_type": "security", "suggested_file": "personas/security.md"}`,
			want:  Descriptor{PersonaType: "security", SuggestedFile: "personas/security.md"},
		},
		{
			name:  "object inside prose",
			reply: "Sure! Here is my answer:\n{\"persona_type\":\"security\",\"suggested_file\":\"docs/x.md\"}\n\nHope that helps.",
			want:  Descriptor{PersonaType: "security", SuggestedFile: "docs/x.md"},
		},
		{
			name:  "code fence",
			reply: "```json\n{\"persona_type\": \"performance\", \"suggested_file\": \"docs/perf.md\"}\n```",
			want:  Descriptor{PersonaType: "performance", SuggestedFile: "docs/perf.md"},
		},
		{
			name:  "missing persona type",
			reply: `{"suggested_file": "personas/general.md"}`,
			want:  Descriptor{PersonaType: "advisor", SuggestedFile: "personas/general.md"},
		},
		{
			name:  "null persona type",
			reply: `{"persona_type": null, "suggested_file": "a.md"}`,
			want:  Descriptor{PersonaType: "advisor", SuggestedFile: "a.md"},
		},
		{
			name:  "null suggested file",
			reply: `{"persona_type": "legal", "suggested_file": null}`,
			want:  Descriptor{PersonaType: "legal"},
		},
		{
			name:  "missing suggested file",
			reply: `{"persona_type": "legal"}`,
			want:  Descriptor{PersonaType: "legal"},
		},
		{
			name:  "braces inside strings",
			reply: "prefix {\"thinking\": \"use {curly} words\", \"persona_type\": \"style\", \"suggested_file\": \"s.md\"} suffix {ignored}",
			want:  Descriptor{PersonaType: "style", SuggestedFile: "s.md"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDescriptor(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDescriptorFailures(t *testing.T) {
	for _, reply := range []string{
		"I am not sure which persona fits.",
		"{not json at all}",
		"{\"persona_type\": \"unterminated\"",
		"null",
	} {
		_, err := parseDescriptor(reply)
		var perr *ClassificationParseError
		require.ErrorAs(t, err, &perr, reply)
		assert.Equal(t, reply, perr.Reply)
	}
}

func TestFirstObject(t *testing.T) {
	span, ok := firstObject(`a {"k": "v\"}"} b`)
	require.True(t, ok)
	assert.Equal(t, `{"k": "v\"}"}`, span)

	_, ok = firstObject("no braces")
	assert.False(t, ok)
}
