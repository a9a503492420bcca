package module

import (
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/opdispatch/internal/dispatcher/handler"
	"github.com/dshills/opdispatch/internal/vfs"
)

// Manifest is the on-disk shape of a manifest module.
// Exactly one of Handler and Operations must be set.
type Manifest struct {
	// Handler names a catalog handler exported as a bare callable.
	Handler string `yaml:"handler" toml:"handler" hcl:"handler,optional"`

	// Operations maps operation names (method aliases or operation IDs) to
	// catalog handler names.
	Operations map[string]string `yaml:"operations" toml:"operations" hcl:"operations,optional"`
}

// ManifestLoader loads YAML, TOML and HCL manifests that bind names to
// handlers from a Catalog.
type ManifestLoader struct {
	fs      vfs.FS
	catalog *Catalog
}

// NewManifestLoader creates a manifest loader reading through fsys.
func NewManifestLoader(fsys vfs.FS, catalog *Catalog) *ManifestLoader {
	return &ManifestLoader{fs: fsys, catalog: catalog}
}

var _ Loader = (*ManifestLoader)(nil)

// Extensions implements Loader.
func (l *ManifestLoader) Extensions() []string {
	return []string{".yaml", ".yml", ".toml", ".hcl"}
}

// Load implements Loader.
func (l *ManifestLoader) Load(p string) (Export, error) {
	data, err := l.fs.ReadFile(p)
	if err != nil {
		return Export{}, fmt.Errorf("reading manifest %s: %w", p, err)
	}

	m, err := DecodeManifest(p, data)
	if err != nil {
		return Export{}, err
	}
	return l.resolve(p, m)
}

// DecodeManifest parses manifest data, choosing the format by the extension of name.
func DecodeManifest(name string, data []byte) (Manifest, error) {
	var m Manifest
	var err error

	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".hcl":
		err = hclsimple.Decode(path.Base(name), data, nil, &m)
	default:
		return Manifest{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidManifest, path.Ext(name))
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, name, err)
	}

	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

// Validate checks that exactly one export shape is declared.
func (m Manifest) Validate() error {
	hasHandler := m.Handler != ""
	hasOps := len(m.Operations) > 0

	switch {
	case hasHandler && hasOps:
		return fmt.Errorf("%w: handler and operations are mutually exclusive", ErrInvalidManifest)
	case !hasHandler && !hasOps:
		return fmt.Errorf("%w: one of handler or operations is required", ErrInvalidManifest)
	}
	for key, name := range m.Operations {
		if key == "" {
			return fmt.Errorf("%w: empty operation key", ErrInvalidManifest)
		}
		if name == "" {
			return fmt.Errorf("%w: operation %q has no handler name", ErrInvalidManifest, key)
		}
	}
	return nil
}

func (l *ManifestLoader) resolve(p string, m Manifest) (Export, error) {
	if m.Handler != "" {
		h, err := l.lookup(p, m.Handler)
		if err != nil {
			return Export{}, err
		}
		return HandlerExport(h)
	}

	entries := make(map[string]handler.Handler, len(m.Operations))
	for key, name := range m.Operations {
		h, err := l.lookup(p, name)
		if err != nil {
			return Export{}, err
		}
		entries[key] = h
	}
	return MapExport(entries)
}

func (l *ManifestLoader) lookup(p, name string) (handler.Handler, error) {
	if l.catalog == nil {
		return nil, fmt.Errorf("%w: %q referenced by %s (no catalog)", ErrUnknownHandler, name, p)
	}
	h, ok := l.catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q referenced by %s", ErrUnknownHandler, name, p)
	}
	return h, nil
}
