package module

import (
	"path"
	"sort"
	"strings"
)

// Loader loads handler modules of one or more file types.
type Loader interface {
	// Extensions returns the file extensions this loader claims, with the
	// leading dot (".lua").
	Extensions() []string

	// Load loads the module at path and returns its export.
	Load(path string) (Export, error)
}

// Set dispatches module loading by file extension.
type Set struct {
	byExt map[string]Loader
}

// NewSet creates a set from loaders. Later loaders win on extension clashes.
func NewSet(loaders ...Loader) *Set {
	s := &Set{byExt: make(map[string]Loader)}
	for _, l := range loaders {
		s.Register(l)
	}
	return s
}

// Register adds a loader for all of its extensions.
func (s *Set) Register(l Loader) {
	for _, ext := range l.Extensions() {
		s.byExt[strings.ToLower(ext)] = l
	}
}

// Match returns the loader claiming name and the name with its extension
// stripped. ok is false if no loader claims the extension or the stem is empty.
func (s *Set) Match(name string) (l Loader, stem string, ok bool) {
	ext := path.Ext(name)
	if ext == "" {
		return nil, "", false
	}
	l, ok = s.byExt[strings.ToLower(ext)]
	if !ok {
		return nil, "", false
	}
	stem = strings.TrimSuffix(name, ext)
	if stem == "" {
		return nil, "", false
	}
	return l, stem, true
}

// Extensions returns every claimed extension, sorted.
func (s *Set) Extensions() []string {
	exts := make([]string, 0, len(s.byExt))
	for ext := range s.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
