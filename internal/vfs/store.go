// Package vfs implements the in-memory workspace file store.
package vfs

import (
	"fmt"
	"strings"
	"sync"

	"pkt.systems/forgecode/schema"
)

// Workspace group member names.
const (
	GroupHTML = "index.html"
	GroupCSS  = "styles.css"
	GroupJS   = "script.js"
)

// Store keeps files in insertion order together with the selected file.
// Suffix counters only grow, so a freed suffix is never handed out again.
type Store struct {
	mu       sync.Mutex
	order    []string
	content  map[string]string
	selected string
	suffixes map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		content:  make(map[string]string),
		suffixes: make(map[string]int),
	}
}

// NewDefault returns a store seeded with the demo script, selected.
func NewDefault() *Store {
	s := New()
	s.order = append(s.order, DefaultFileName)
	s.content[DefaultFileName] = defaultPythonSource
	s.selected = DefaultFileName
	return s
}

// Create adds an empty file named base+N+ext with the lowest unused N above
// every suffix previously issued for the same base and extension.
func (s *Store) Create(base, ext string) string {
	ext = normalizeExt(ext)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := "file\x00" + base + "\x00" + ext
	n := s.suffixes[key]
	for {
		n++
		name := fmt.Sprintf("%s%d%s", base, n, ext)
		if _, exists := s.content[name]; exists {
			continue
		}
		s.suffixes[key] = n
		s.order = append(s.order, name)
		s.content[name] = ""
		s.selected = name
		return name
	}
}

// CreateWorkspaceGroup adds the html, css and js files of a new group.
// The suffix applies to the group prefix.
func (s *Store) CreateWorkspaceGroup(base string) (htmlName, cssName, jsName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := "group\x00" + base
	n := s.suffixes[key]
	var group string
	for {
		n++
		group = fmt.Sprintf("%s%d", base, n)
		if !s.groupExistsLocked(group) {
			break
		}
	}
	s.suffixes[key] = n
	htmlName = group + "/" + GroupHTML
	cssName = group + "/" + GroupCSS
	jsName = group + "/" + GroupJS
	s.order = append(s.order, htmlName, cssName, jsName)
	s.content[htmlName] = webSpaceHTML
	s.content[cssName] = webSpaceCSS
	s.content[jsName] = webSpaceJS
	s.selected = htmlName
	return htmlName, cssName, jsName
}

// Rename moves content to a new name in place. A missing source or a blank
// target is ignored. A target taken by another file is rejected.
func (s *Store) Rename(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(oldName)
	if idx < 0 || oldName == newName {
		return nil
	}
	if _, exists := s.content[newName]; exists {
		return fmt.Errorf("rename %s to %s: %w", oldName, newName, schema.ErrFileExists)
	}
	s.order[idx] = newName
	s.content[newName] = s.content[oldName]
	delete(s.content, oldName)
	if s.selected == oldName {
		s.selected = newName
	}
	return nil
}

// Delete removes a file and reports whether it existed. When the selected
// file is removed the selection falls back to the first remaining file.
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(name)
	if idx < 0 {
		return false
	}
	s.order = append(s.order[:idx], s.order[idx+1:]...)
	delete(s.content, name)
	if s.selected == name {
		s.selected = ""
		if len(s.order) > 0 {
			s.selected = s.order[0]
		}
	}
	return true
}

// ClearAll removes every file and clears the selection.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.content = make(map[string]string)
	s.selected = ""
}

// List returns file names in insertion order.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Read returns the content of a file.
func (s *Store) Read(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.content[name]
	return content, ok
}

// Has reports whether a file exists.
func (s *Store) Has(name string) bool {
	_, ok := s.Read(name)
	return ok
}

// Write replaces the content of an existing file.
func (s *Store) Write(name, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.content[name]; !ok {
		return false
	}
	s.content[name] = content
	return true
}

// Select marks an existing file as selected.
func (s *Store) Select(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.content[name]; !ok {
		return false
	}
	s.selected = name
	return true
}

// Selected returns the selected file name, or "" when nothing is selected.
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Counts returns the number of plain files and workspace group files.
func (s *Store) Counts() (files, webFiles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		if strings.Contains(name, "/") {
			webFiles++
		} else {
			files++
		}
	}
	return files, webFiles
}

// Group returns the workspace group prefix of a name.
func Group(name string) (string, bool) {
	group, _, ok := strings.Cut(name, "/")
	if !ok || group == "" {
		return "", false
	}
	return group, true
}

// ValidateName rejects names that cannot be stored.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return schema.ErrInvalidName
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.Count(name, "/") > 1 {
		return fmt.Errorf("%w: %q", schema.ErrInvalidName, name)
	}
	return nil
}

func (s *Store) indexLocked(name string) int {
	for i, existing := range s.order {
		if existing == name {
			return i
		}
	}
	return -1
}

func (s *Store) groupExistsLocked(group string) bool {
	prefix := group + "/"
	for _, name := range s.order {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
