package dispatcher_test

import (
	"testing"

	"github.com/dshills/opdispatch/internal/dispatcher"
	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
	"github.com/dshills/opdispatch/internal/module"
	"github.com/dshills/opdispatch/internal/plugin/lua"
	"github.com/dshills/opdispatch/internal/vfs"
)

// catalogNames are the handlers manifests in these tests may reference.
var catalogNames = []string{
	"foo.bar.get", "foo.bar.post", "foo.biz", "op.search",
	"users.list", "users.create", "users.search", "health", "other",
}

// named returns a terminal handler whose result message is name.
func named(name string) handler.Handler {
	return handler.Terminal(func(*execctx.RequestContext) handler.Result {
		return handler.SuccessWithMessage(name)
	})
}

func testCatalog(t *testing.T) *module.Catalog {
	t.Helper()
	c := module.NewCatalog()
	for _, name := range catalogNames {
		if err := c.Register(name, named(name)); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}
	return c
}

func loaders(t *testing.T, fsys vfs.FS) *module.Set {
	t.Helper()
	return module.NewSet(
		lua.NewLoader(fsys, lua.DefaultConfig()),
		module.NewManifestLoader(fsys, testCatalog(t)),
	)
}

func memFS(t *testing.T, files map[string]string) *vfs.MemFS {
	t.Helper()
	fsys := vfs.NewMemFS()
	for p, content := range files {
		if err := fsys.AddFile(p, content); err != nil {
			t.Fatalf("AddFile(%s) error = %v", p, err)
		}
	}
	return fsys
}

func build(t *testing.T, files map[string]string) *dispatcher.Registry {
	t.Helper()
	fsys := memFS(t, files)
	reg, err := dispatcher.Build(fsys, "/h", loaders(t, fsys))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return reg
}

// resolveMessage resolves and runs a request, returning the handler's
// message, or "" when nothing matched.
func resolveMessage(t *testing.T, reg *dispatcher.Registry, opID string, tags []string, method string) string {
	t.Helper()
	m, ok := dispatcher.Resolve(reg, execctx.New(opID, tags, method))
	if !ok {
		return ""
	}
	return m.Handler.Handle(execctx.New(opID, tags, method), nil).Message
}

// fooTree is the canonical two-module fixture.
var fooTree = map[string]string{
	"/h/foo/bar.yaml": "operations:\n  searchFooBar: op.search\n  read: foo.bar.get\n  Create: foo.bar.post\n",
	"/h/foo/biz.yaml": "handler: foo.biz\n",
}

func moduleSet(fsys vfs.FS, c *module.Catalog) *module.Set {
	return module.NewSet(
		lua.NewLoader(fsys, lua.DefaultConfig()),
		module.NewManifestLoader(fsys, c),
	)
}
