// Package advisors answers questions through markdown-described expert personas.
//
// A question is classified into a persona type and a persona file. Existing
// files are loaded; missing ones are written by the model after the user
// confirms. The persona text then frames a second model call that answers
// the question in character.
//
// Persona files are plain markdown. They may carry optional YAML frontmatter,
// which the catalog reads for listing:
//
//	---
//	name: security
//	role: reviewer
//	description: Application security and threat modelling
//	---
//
//	# Security Advisor Persona
//	...
package advisors

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// DefaultPersonaType is used when classification names no type
const DefaultPersonaType = "advisor"

// Descriptor is the classifier's answer.
// An empty SuggestedFile means the model could not name one.
type Descriptor struct {
	PersonaType   string `json:"persona_type"`
	SuggestedFile string `json:"suggested_file"`
}

// Persona is the persona text chosen for one question
type Persona struct {
	Type    string
	Content string
	Path    string // resolved file path
	Created bool   // written during this call
}

// Meta is the optional frontmatter of a persona file
type Meta struct {
	Name        string `yaml:"name"`
	Role        string `yaml:"role"`
	Description string `yaml:"description"`
}

// ParsePersonaMD splits a persona file into frontmatter and markdown body.
// Files without frontmatter return a zero Meta and the whole file as body.
func ParsePersonaMD(data []byte) (Meta, []byte, error) {
	var meta Meta
	if !bytes.HasPrefix(data, []byte("---")) {
		return meta, data, nil
	}

	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return meta, nil, err
	}
	if err := yaml.Unmarshal(frontmatter, &meta); err != nil {
		return meta, nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return meta, body, nil
}

// splitFrontmatter separates YAML frontmatter from markdown body.
// Frontmatter must be enclosed in --- markers at the start of the file.
func splitFrontmatter(data []byte) (frontmatter []byte, body []byte, err error) {
	rest := data[3:] // Skip opening ---

	rest = bytes.TrimLeft(rest, " \t")
	if len(rest) > 0 && rest[0] == '\n' {
		rest = rest[1:]
	} else if len(rest) > 1 && rest[0] == '\r' && rest[1] == '\n' {
		rest = rest[2:]
	}

	closingIdx := bytes.Index(rest, []byte("\n---"))
	if closingIdx == -1 {
		return nil, nil, fmt.Errorf("persona file missing closing --- for frontmatter")
	}

	frontmatter = rest[:closingIdx]
	body = rest[closingIdx+4:] // +4 for \n---

	body = bytes.TrimLeft(body, " \t")
	if len(body) > 0 && body[0] == '\n' {
		body = body[1:]
	} else if len(body) > 1 && body[0] == '\r' && body[1] == '\n' {
		body = body[2:]
	}

	return frontmatter, body, nil
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest ("code-review" -> "Code-Review").
func titleCase(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		sb.WriteRune(r)
		prevLetter = false
	}
	return sb.String()
}

// personaHeader is the title line written above a generated persona
func personaHeader(personaType string) string {
	return "# " + titleCase(personaType) + " Advisor Persona\n\n"
}
