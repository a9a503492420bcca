// Package module loads handler modules from the handler tree.
//
// A handler module is a file whose extension is claimed by a Loader. Loading
// it yields an Export, which is either a single handler (a wildcard for every
// method at the module's namespace) or a keyed mapping of names to handlers.
//
// # Loaders
//
// A Set maps file extensions to loaders:
//
//	catalog := module.NewCatalog()
//	catalog.MustRegister("users.list", listUsers)
//
//	loaders := module.NewSet(
//	    module.NewManifestLoader(fsys, catalog),
//	    lua.NewLoader(fsys),
//	)
//
// # Manifests
//
// Manifests bind names to Go handlers registered in a Catalog. YAML, TOML and
// HCL are accepted and carry the same two keys, exactly one of which must be
// set:
//
//	# users.yaml
//	operations:
//	  read: users.list
//	  create: users.create
//	  searchUsers: users.search
//
//	# health.toml
//	handler = "builtin.health"
package module
