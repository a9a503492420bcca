package dispatcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/opdispatch/internal/dispatcher/handler"
)

// NodeKind distinguishes the three shapes of a tag tree node.
type NodeKind uint8

const (
	// NodeEmpty has no handlers and may have children.
	NodeEmpty NodeKind = iota
	// NodeMethods holds handlers keyed by lowercase HTTP method.
	NodeMethods
	// NodeWildcard holds one handler for any method.
	NodeWildcard
)

// String returns the kind name.
func (k NodeKind) String() string {
	switch k {
	case NodeEmpty:
		return "empty"
	case NodeMethods:
		return "methods"
	case NodeWildcard:
		return "wildcard"
	default:
		return "unknown"
	}
}

// binding is a handler plus the module it came from.
type binding struct {
	handler   handler.Handler
	namespace string
	source    string
}

// Node is a tag tree node. Only NodeEmpty nodes have children.
type Node struct {
	kind     NodeKind
	children map[string]*Node
	methods  map[string]binding
	wildcard binding
}

func newNode() *Node {
	return &Node{}
}

// Kind returns the node's shape.
func (n *Node) Kind() NodeKind { return n.kind }

// Child returns the child reached by tag.
func (n *Node) Child(tag string) (*Node, bool) {
	c, ok := n.children[tag]
	return c, ok
}

// Children returns the child tags, sorted.
func (n *Node) Children() []string {
	return sortedKeys(n.children)
}

// Method returns the handler bound to a lowercase method key.
func (n *Node) Method(method string) (handler.Handler, bool) {
	b, ok := n.methods[method]
	return b.handler, ok
}

// Methods returns the bound method keys, sorted.
func (n *Node) Methods() []string {
	return sortedKeys(n.methods)
}

// Wildcard returns the handler of a NodeWildcard node, nil otherwise.
func (n *Node) Wildcard() handler.Handler {
	return n.wildcard.handler
}

// Registry is the handler lookup structure produced by the builder.
// It is immutable once built and safe for concurrent reads.
type Registry struct {
	root       *Node
	operations map[string]binding
}

// NewRegistry returns an empty registry. Every lookup misses.
func NewRegistry() *Registry {
	return &Registry{
		root:       newNode(),
		operations: make(map[string]binding),
	}
}

// Root returns the root of the tag tree.
func (r *Registry) Root() *Node {
	return r.root
}

// Lookup returns the node at a dot-joined namespace.
func (r *Registry) Lookup(namespace string) (*Node, bool) {
	if namespace == "" {
		return r.root, true
	}
	n := r.root
	for _, seg := range strings.Split(namespace, ".") {
		c, ok := n.children[seg]
		if !ok {
			return nil, false
		}
		n = c
	}
	return n, true
}

// Operation returns the handler bound to an operation ID.
func (r *Registry) Operation(id string) (handler.Handler, bool) {
	b, ok := r.operations[id]
	return b.handler, ok
}

// OperationIDs returns all bound operation IDs, sorted.
func (r *Registry) OperationIDs() []string {
	return sortedKeys(r.operations)
}

// Namespaces returns the namespaces that hold handlers, sorted.
func (r *Registry) Namespaces() []string {
	var out []string
	r.walk(func(ns string, n *Node) {
		if n.kind != NodeEmpty {
			out = append(out, ns)
		}
	})
	sort.Strings(out)
	return out
}

// Route is one binding in the registry, flattened for listing.
type Route struct {
	// Kind is "operation", "method" or "wildcard".
	Kind      string `json:"kind"`
	Namespace string `json:"namespace"`
	// Key is the operation ID or method; empty for wildcards.
	Key    string `json:"key,omitempty"`
	Source string `json:"source"`
}

// Routes lists every binding: operations by ID, then tree bindings by
// namespace and method.
func (r *Registry) Routes() []Route {
	routes := make([]Route, 0, len(r.operations))
	for _, id := range r.OperationIDs() {
		b := r.operations[id]
		routes = append(routes, Route{Kind: string(MatchOperation), Namespace: b.namespace, Key: id, Source: b.source})
	}

	var tree []Route
	r.walk(func(ns string, n *Node) {
		switch n.kind {
		case NodeMethods:
			for _, m := range n.Methods() {
				tree = append(tree, Route{Kind: string(MatchMethod), Namespace: ns, Key: m, Source: n.methods[m].source})
			}
		case NodeWildcard:
			tree = append(tree, Route{Kind: string(MatchWildcard), Namespace: ns, Source: n.wildcard.source})
		}
	})
	sort.SliceStable(tree, func(i, j int) bool {
		return tree[i].Namespace < tree[j].Namespace
	})
	return append(routes, tree...)
}

func (r *Registry) walk(fn func(namespace string, n *Node)) {
	var visit func(prefix string, n *Node)
	visit = func(prefix string, n *Node) {
		for _, tag := range n.Children() {
			ns := tag
			if prefix != "" {
				ns = prefix + "." + tag
			}
			c := n.children[tag]
			fn(ns, c)
			visit(ns, c)
		}
	}
	visit("", r.root)
}

// descend walks to the node at segments, creating empty nodes on the way.
// Passing through a node that already holds handlers is a conflict.
func (r *Registry) descend(segments []string, source string) (*Node, error) {
	n := r.root
	for i, seg := range segments {
		if n.kind != NodeEmpty {
			return nil, &ConfigurationError{
				Subject: strings.Join(segments[:i], "."),
				Path:    source,
				Reason:  "namespace is both a handler module and a directory of handler modules",
			}
		}
		c, ok := n.children[seg]
		if !ok {
			if n.children == nil {
				n.children = make(map[string]*Node)
			}
			c = newNode()
			n.children[seg] = c
		}
		n = c
	}
	return n, nil
}

func (r *Registry) installWildcard(segments []string, h handler.Handler, source string) error {
	ns := strings.Join(segments, ".")
	n, err := r.descend(segments, source)
	if err != nil {
		return err
	}
	switch {
	case len(n.children) > 0:
		return &ConfigurationError{Subject: ns, Path: source, Reason: "namespace is both a handler module and a directory of handler modules"}
	case n.kind == NodeMethods:
		return &ConfigurationError{Subject: ns, Path: source, Reason: "namespace has both a wildcard handler and method handlers"}
	case n.kind == NodeWildcard:
		return &ConfigurationError{Subject: ns, Path: source, Reason: fmt.Sprintf("wildcard handler already bound by %s", n.wildcard.source)}
	}
	n.kind = NodeWildcard
	n.wildcard = binding{handler: h, namespace: ns, source: source}
	return nil
}

// installMethod binds a method handler. It returns the previous source when
// a binding was replaced.
func (r *Registry) installMethod(segments []string, method string, h handler.Handler, source string) (string, error) {
	ns := strings.Join(segments, ".")
	n, err := r.descend(segments, source)
	if err != nil {
		return "", err
	}
	switch {
	case len(n.children) > 0:
		return "", &ConfigurationError{Subject: ns, Path: source, Reason: "namespace is both a handler module and a directory of handler modules"}
	case n.kind == NodeWildcard:
		return "", &ConfigurationError{Subject: ns, Path: source, Reason: "namespace has both a wildcard handler and method handlers"}
	}
	n.kind = NodeMethods
	if n.methods == nil {
		n.methods = make(map[string]binding)
	}
	prev, replaced := n.methods[method]
	n.methods[method] = binding{handler: h, namespace: ns, source: source}
	if replaced {
		return prev.source, nil
	}
	return "", nil
}

// installOperation binds an operation ID, last write wins. It returns the
// previous source when a binding was replaced.
func (r *Registry) installOperation(id string, segments []string, h handler.Handler, source string) string {
	prev, replaced := r.operations[id]
	r.operations[id] = binding{handler: h, namespace: strings.Join(segments, "."), source: source}
	if replaced {
		return prev.source
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
