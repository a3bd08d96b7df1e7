package advisors

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/neboloop/nebo-advisor/internal/logging"
	"github.com/neboloop/nebo-advisor/internal/markdown"
)

// Entry describes one persona file known to the catalog
type Entry struct {
	Path  string // relative to the catalog root, slash separated
	Title string // first markdown heading
	Meta
}

// Label is a one-line description for listings
func (e *Entry) Label() string {
	label := e.Path
	switch {
	case e.Title != "":
		label += " (" + e.Title + ")"
	case e.Name != "":
		label += " (" + e.Name + ")"
	}
	if e.Description != "" {
		label += ": " + e.Description
	}
	return label
}

// Catalog manages loading and hot-reloading of persona files under a directory
type Catalog struct {
	mu        sync.RWMutex
	entries   map[string]*Entry // absolute path -> entry
	root      string
	dir       string
	watcher   *fsnotify.Watcher
	onChange  func([]*Entry)
	cancelCtx context.CancelFunc
}

// NewCatalog creates a catalog of the persona files in dir.
// Relative dirs are taken relative to root; entry paths are reported relative to root.
func NewCatalog(root, dir string) *Catalog {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)
	return &Catalog{
		entries: make(map[string]*Entry),
		root:    root,
		dir:     dir,
	}
}

// LoadAll rescans the directory. A missing directory is an empty catalog.
func (c *Catalog) LoadAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}
	if err := c.loadTree(c.dir); err != nil {
		return fmt.Errorf("failed to load personas: %w", err)
	}

	logging.Debugf("[personas] Loaded %d personas from %s", len(c.entries), c.dir)
	return nil
}

// loadTree loads every persona file under dir (must hold lock)
func (c *Catalog) loadTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPersonaFile(path) {
			return nil
		}
		if err := c.loadFile(path); err != nil {
			// one bad file should not hide the rest
			logging.Warnf("[personas] Skipping %s: %v", path, err)
		}
		return nil
	})
}

// loadFile loads a single persona file (must hold lock)
func (c *Catalog) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	meta, body, err := ParsePersonaMD(data)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		rel = path
	}
	c.entries[path] = &Entry{
		Path:  filepath.ToSlash(rel),
		Title: markdown.Title(string(body)),
		Meta:  meta,
	}
	return nil
}

// Watch starts watching the persona directory for changes.
// When the directory does not exist yet its nearest existing ancestor is
// watched until it appears.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	c.watcher = watcher

	ctx, cancel := context.WithCancel(ctx)
	c.cancelCtx = cancel

	go c.watchLoop(ctx)

	c.attach()
	return nil
}

// attach watches the persona tree if it exists, otherwise its nearest
// existing ancestor. Files that appeared before the watch was in place are
// picked up by a rescan.
func (c *Catalog) attach() {
	if info, err := os.Stat(c.dir); err == nil && info.IsDir() {
		if err := c.watchRecursive(c.dir); err != nil {
			logging.Debugf("[personas] Could not watch %s: %v", c.dir, err)
		}
		c.mu.Lock()
		err := c.loadTree(c.dir)
		c.mu.Unlock()
		if err != nil {
			logging.Warnf("[personas] Rescan of %s failed: %v", c.dir, err)
		}
		return
	}

	dir := filepath.Dir(c.dir)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
	if err := c.watcher.Add(dir); err != nil {
		logging.Debugf("[personas] Could not watch %s: %v", dir, err)
		return
	}
	logging.Debugf("[personas] %s does not exist yet, watching %s", c.dir, dir)
}

// watchRecursive adds a directory and all subdirectories to the watcher
func (c *Catalog) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if err := c.watcher.Add(path); err != nil {
				logging.Debugf("[personas] Could not watch %s: %v", path, err)
			}
		}
		return nil
	})
}

func (c *Catalog) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handleEvent(event)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logging.Errorf("[personas] Watch error: %v", err)
		}
	}
}

// contains reports whether path is the persona directory or inside it
func (c *Catalog) contains(path string) bool {
	return path == c.dir || strings.HasPrefix(path, c.dir+string(filepath.Separator))
}

// handleEvent processes a file system event
func (c *Catalog) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			switch {
			case c.contains(event.Name) && event.Name != c.dir:
				// new subdirectory, e.g. from MkdirAll during persona creation
				_ = c.watchRecursive(event.Name)
				c.mu.Lock()
				err := c.loadTree(event.Name)
				c.mu.Unlock()
				if err != nil {
					logging.Warnf("[personas] Rescan of %s failed: %v", event.Name, err)
				}
			case strings.HasPrefix(c.dir+string(filepath.Separator), event.Name+string(filepath.Separator)):
				// the persona directory or one of its ancestors appeared
				c.attach()
			default:
				return
			}
			c.notify()
			return
		}
	}
	if !c.contains(event.Name) || !isPersonaFile(event.Name) {
		return
	}

	logging.Debugf("[personas] File event: %s %s", event.Op, event.Name)

	switch {
	case event.Op&fsnotify.Write == fsnotify.Write,
		event.Op&fsnotify.Create == fsnotify.Create:
		c.mu.Lock()
		if err := c.loadFile(event.Name); err != nil {
			logging.Errorf("[personas] Error reloading %s: %v", event.Name, err)
		}
		c.mu.Unlock()

	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		c.mu.Lock()
		delete(c.entries, event.Name)
		c.mu.Unlock()

	default:
		return
	}

	c.notify()
}

func (c *Catalog) notify() {
	c.mu.RLock()
	fn := c.onChange
	c.mu.RUnlock()
	if fn != nil {
		fn(c.List())
	}
}

// OnChange sets a callback for when personas are added, changed or removed
func (c *Catalog) OnChange(fn func([]*Entry)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Stop stops watching for changes
func (c *Catalog) Stop() {
	if c.cancelCtx != nil {
		c.cancelCtx()
	}
	if c.watcher != nil {
		c.watcher.Close()
	}
}

// List returns all entries sorted by path
func (c *Catalog) List() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries
}

// Count returns the number of known personas
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Listing renders the catalog for the classification prompt
func (c *Catalog) Listing() string {
	var sb strings.Builder
	for _, e := range c.List() {
		sb.WriteString("- ")
		sb.WriteString(e.Label())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Dir returns the directory being watched
func (c *Catalog) Dir() string {
	return c.dir
}

func isPersonaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
