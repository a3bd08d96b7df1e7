package advisors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// personaExts are the file types a sandboxed persona path may use
var personaExts = []string{".md", ".markdown", ".txt"}

// Sandbox decides where persona files may be read and written.
// Relative paths always resolve against Root. With Enforce set, a path
// must stay inside Root after symlink resolution and use a text extension.
type Sandbox struct {
	Root    string
	Enforce bool

	// EvalSymlinks resolves links on the backing filesystem; nil skips resolution
	EvalSymlinks func(string) (string, error)
}

// Resolve returns the absolute path for p, or an ErrUnsafePath error
func (s Sandbox) Resolve(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnsafePath)
	}

	abs := s.abs(p)
	if !s.Enforce {
		return abs, nil
	}

	if !hasPersonaExt(abs) {
		return "", fmt.Errorf("%w: %s is not a markdown or text file", ErrUnsafePath, p)
	}

	// check the literal path first, then the resolved one to catch links out of the root
	root := filepath.Clean(s.Root)
	if !within(root, abs) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrUnsafePath, p, root)
	}
	if !within(s.real(root), s.real(abs)) {
		return "", fmt.Errorf("%w: %s resolves outside %s", ErrUnsafePath, p, root)
	}
	return abs, nil
}

func (s Sandbox) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.Root, p)
}

// real resolves symlinks in the deepest existing ancestor of p and
// re-attaches the parts that do not exist yet.
func (s Sandbox) real(p string) string {
	if s.EvalSymlinks == nil {
		return p
	}
	var missing []string
	cur := p
	for {
		if resolved, err := s.EvalSymlinks(cur); err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasPersonaExt(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range personaExts {
		if ext == e {
			return true
		}
	}
	return false
}
