package dispatcher

import (
	"errors"
	"sort"
	"strings"

	"github.com/dshills/opdispatch/internal/logging"
	"github.com/dshills/opdispatch/internal/module"
	"github.com/dshills/opdispatch/internal/vfs"
)

// errNotDir is wrapped when the handler root is a file.
var errNotDir = errors.New("not a directory")

// methodAliases maps handler map keys to the HTTP methods they stand for.
var methodAliases = map[string]string{
	"create":  "post",
	"update":  "put",
	"read":    "get",
	"destroy": "delete",
	"post":    "post",
	"put":     "put",
	"get":     "get",
	"delete":  "delete",
}

// CanonicalMethod maps a handler map key to its lowercase HTTP method.
// The whole key is compared case-insensitively; ok is false for keys that
// are operation IDs.
func CanonicalMethod(key string) (method string, ok bool) {
	method, ok = methodAliases[strings.ToLower(key)]
	return method, ok
}

// SourceNode is an entry discovered while scanning the handler tree.
type SourceNode struct {
	// BasePath is the handler root.
	BasePath string
	// FullPath is the entry's path.
	FullPath string
	// Name is the entry's base name.
	Name string
	// Segments are the namespace segments, extension stripped from the last.
	Segments []string
}

// Namespace returns the dot-joined namespace.
func (s SourceNode) Namespace() string {
	return strings.Join(s.Segments, ".")
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the builder's logger.
func WithLogger(l logging.Interface) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder scans a handler tree into a Registry.
type Builder struct {
	fs      vfs.FS
	loaders *module.Set
	logger  logging.Interface
}

// NewBuilder creates a builder reading through fsys and loading modules with
// loaders.
func NewBuilder(fsys vfs.FS, loaders *module.Set, opts ...BuilderOption) *Builder {
	b := &Builder{
		fs:      fsys,
		loaders: loaders,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.loaders == nil {
		b.loaders = module.NewSet()
	}
	return b
}

// Build scans root with a new Builder.
func Build(fsys vfs.FS, root string, loaders *module.Set, opts ...BuilderOption) (*Registry, error) {
	return NewBuilder(fsys, loaders, opts...).Build(root)
}

// Build scans root breadth-first and returns the registry.
//
// Entries whose extension a loader claims are modules. Names without a dot
// are directories and are descended into; failing to list one is an
// *InvalidPathError. Other names are skipped. Load failures and conflicting
// bindings are *ConfigurationError. No partial registry is returned.
func (b *Builder) Build(root string) (*Registry, error) {
	base, err := b.fs.Abs(root)
	if err != nil {
		return nil, &InvalidPathError{Path: root, Err: err}
	}
	info, err := b.fs.Stat(base)
	if err != nil {
		return nil, &InvalidPathError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &InvalidPathError{Path: root, Err: errNotDir}
	}

	visited := make(map[string]bool)
	queue, err := b.list(SourceNode{BasePath: base, FullPath: base}, visited)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	var modules int
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if loader, stem, ok := b.loaders.Match(node.Name); ok {
			node.Segments[len(node.Segments)-1] = stem
			if err := b.install(reg, node, loader); err != nil {
				return nil, err
			}
			modules++
			continue
		}

		if strings.Contains(node.Name, ".") {
			b.logger.Debug("skipping %s: not a handler module", node.FullPath)
			continue
		}

		children, err := b.list(node, visited)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}

	b.logger.Info("built registry from %s: %d modules, %d operations, %d namespaces",
		base, modules, len(reg.operations), len(reg.Namespaces()))
	return reg, nil
}

// list returns the children of a directory node. A directory reached twice
// through symbolic links yields no children the second time.
func (b *Builder) list(dir SourceNode, visited map[string]bool) ([]SourceNode, error) {
	real, err := b.fs.EvalSymlinks(dir.FullPath)
	if err != nil {
		return nil, &InvalidPathError{Path: dir.FullPath, Err: err}
	}
	if visited[real] {
		b.logger.Debug("skipping %s: directory already scanned as %s", dir.FullPath, real)
		return nil, nil
	}
	visited[real] = true

	entries, err := b.fs.ReadDir(dir.FullPath)
	if err != nil {
		return nil, &InvalidPathError{Path: dir.FullPath, Err: err}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	out := make([]SourceNode, 0, len(entries))
	for _, e := range entries {
		segments := make([]string, len(dir.Segments), len(dir.Segments)+1)
		copy(segments, dir.Segments)
		out = append(out, SourceNode{
			BasePath: dir.BasePath,
			FullPath: b.fs.Join(dir.FullPath, e.Name()),
			Name:     e.Name(),
			Segments: append(segments, e.Name()),
		})
	}
	return out, nil
}

func (b *Builder) install(reg *Registry, node SourceNode, loader module.Loader) error {
	ns := node.Namespace()
	export, err := loader.Load(node.FullPath)
	if err != nil {
		return &ConfigurationError{Subject: ns, Path: node.FullPath, Reason: "loading handler module", Err: err}
	}

	switch export.Kind() {
	case module.ExportHandler:
		if err := reg.installWildcard(node.Segments, export.Handler(), node.FullPath); err != nil {
			return err
		}
		b.logger.Debug("bound %s -> wildcard (%s)", ns, node.FullPath)

	case module.ExportMap:
		for _, key := range export.Keys() {
			h, _ := export.Entry(key)
			if method, ok := CanonicalMethod(key); ok {
				prev, err := reg.installMethod(node.Segments, method, h, node.FullPath)
				if err != nil {
					return err
				}
				if prev != "" {
					b.logger.Warn("method %s of %s from %s overrides %s", method, ns, node.FullPath, prev)
				}
				b.logger.Debug("bound %s#%s (%s)", ns, method, node.FullPath)
				continue
			}
			if prev := reg.installOperation(key, node.Segments, h, node.FullPath); prev != "" {
				b.logger.Warn("operation %s from %s overrides %s", key, node.FullPath, prev)
			}
			b.logger.Debug("bound operation %s (%s)", key, node.FullPath)
		}

	default:
		return &ConfigurationError{Subject: ns, Path: node.FullPath, Reason: "module exported nothing"}
	}
	return nil
}
