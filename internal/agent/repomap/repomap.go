// Package repomap builds the short repository summary that accompanies
// every advisor session. Tracked files come from the git index when the
// root is inside a repository; otherwise the tree is walked.
package repomap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/gobwas/glob"

	"github.com/neboloop/nebo-advisor/internal/logging"
)

// ErrInvalidPattern is returned when an ignore pattern does not compile
var ErrInvalidPattern = errors.New("invalid ignore pattern")

const defaultMaxFiles = 200

// textExts are listed ahead of source files when TextFirst is set
var textExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".rst":      true,
}

// Options bounds what goes into a map
type Options struct {
	MaxFiles  int
	Ignore    []string
	TextFirst bool // text and markdown files before everything else
}

// Map is a bounded, ordered list of repository files relative to Root
type Map struct {
	Root      string
	Files     []string
	Tracked   bool // files came from the git index
	Truncated int  // files dropped by MaxFiles
}

// Build lists the files under root. Missing or unreadable roots yield an
// error; a root outside any git repository falls back to a directory walk.
func Build(ctx context.Context, root string, opts Options) (*Map, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	ignore, err := compileGlobs(opts.Ignore)
	if err != nil {
		return nil, err
	}

	m := &Map{Root: abs}
	files, err := trackedFiles(abs)
	if err == nil {
		m.Tracked = true
	} else {
		logging.Debugf("[repomap] git index unavailable for %s: %v", abs, err)
		files, err = walkFiles(ctx, abs)
		if err != nil {
			return nil, err
		}
	}

	kept := files[:0]
	for _, f := range files {
		if !ignored(ignore, f) {
			kept = append(kept, f)
		}
	}
	order(kept, opts.TextFirst)

	limit := opts.MaxFiles
	if limit <= 0 {
		limit = defaultMaxFiles
	}
	if len(kept) > limit {
		m.Truncated = len(kept) - limit
		kept = kept[:limit]
	}
	m.Files = kept
	return m, nil
}

// String renders the map as a prompt section
func (m *Map) String() string {
	if m == nil || len(m.Files) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Repository files:\n")
	for _, f := range m.Files {
		sb.WriteString("- ")
		sb.WriteString(f)
		sb.WriteByte('\n')
	}
	if m.Truncated > 0 {
		fmt.Fprintf(&sb, "(%d more files not shown)\n", m.Truncated)
	}
	return sb.String()
}

// trackedFiles reads the git index of the repository containing root and
// returns the entries below root, relative to it.
func trackedFiles(root string) ([]string, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, err
	}

	prefix, err := relativeTo(wt.Filesystem.Root(), root)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		name := e.Name
		if prefix != "" {
			if !strings.HasPrefix(name, prefix+"/") {
				continue
			}
			name = strings.TrimPrefix(name, prefix+"/")
		}
		files = append(files, name)
	}
	return files, nil
}

// relativeTo returns root relative to the worktree top, in slash form.
// Both sides are symlink-resolved so temp dirs behind links still match.
func relativeTo(top, root string) (string, error) {
	if t, err := filepath.EvalSymlinks(top); err == nil {
		top = t
	}
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	rel, err := filepath.Rel(top, root)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

func walkFiles(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		matchers = append(matchers, g)
	}
	return matchers, nil
}

func ignored(matchers []glob.Glob, path string) bool {
	for _, g := range matchers {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func order(files []string, textFirst bool) {
	sort.SliceStable(files, func(i, j int) bool {
		if textFirst {
			ti, tj := isText(files[i]), isText(files[j])
			if ti != tj {
				return ti
			}
		}
		return files[i] < files[j]
	})
}

func isText(path string) bool {
	return textExts[strings.ToLower(filepath.Ext(path))]
}
