package dispatcher

import (
	"strings"

	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
	"github.com/dshills/opdispatch/internal/dispatcher/hook"
)

// MatchKind says which resolution step produced a match.
type MatchKind string

// Match kinds, in resolution priority order.
const (
	MatchOperation MatchKind = "operation"
	MatchMethod    MatchKind = "method"
	MatchWildcard  MatchKind = "wildcard"
)

// Match is the outcome of a successful resolution.
type Match struct {
	Kind MatchKind

	// Namespace is where the handler sits in the tag tree, or for operation
	// matches the namespace of the module that declared it.
	Namespace string

	// Key is the operation ID or lowercase method; empty for wildcards.
	Key string

	// Source is the module file the handler was loaded from.
	Source string

	Handler handler.Handler
}

// Binding describes the match for hooks and metrics.
func (m Match) Binding() hook.Binding {
	return hook.Binding{Kind: string(m.Kind), Namespace: m.Namespace, Key: m.Key}
}

// Resolve selects the handler for ctx. The first rule that applies wins:
//
//  1. ctx.OperationID is bound in the operation map.
//  2. Walk the tag tree consuming ctx.Tags in order, stopping at the first
//     tag with no child. Remaining tags are ignored.
//  3. The node reached binds the lowercased method.
//  4. The node reached is a wildcard.
//
// ok is false when nothing applies; that is not an error.
func (r *Registry) Resolve(ctx *execctx.RequestContext) (m Match, ok bool) {
	if ctx == nil {
		return Match{}, false
	}

	if ctx.OperationID != "" {
		if b, found := r.operations[ctx.OperationID]; found {
			return Match{
				Kind:      MatchOperation,
				Namespace: b.namespace,
				Key:       ctx.OperationID,
				Source:    b.source,
				Handler:   b.handler,
			}, true
		}
	}

	n := r.root
	path := make([]string, 0, len(ctx.Tags))
	for _, tag := range ctx.Tags {
		c, found := n.children[tag]
		if !found {
			break
		}
		n = c
		path = append(path, tag)
	}

	switch n.kind {
	case NodeMethods:
		method := ctx.NormalizedMethod()
		if b, found := n.methods[method]; found {
			return Match{
				Kind:      MatchMethod,
				Namespace: strings.Join(path, "."),
				Key:       method,
				Source:    b.source,
				Handler:   b.handler,
			}, true
		}
	case NodeWildcard:
		return Match{
			Kind:      MatchWildcard,
			Namespace: strings.Join(path, "."),
			Source:    n.wildcard.source,
			Handler:   n.wildcard.handler,
		}, true
	}
	return Match{}, false
}

// Resolve is Registry.Resolve tolerating a nil registry.
func Resolve(r *Registry, ctx *execctx.RequestContext) (Match, bool) {
	if r == nil {
		return Match{}, false
	}
	return r.Resolve(ctx)
}
