// Package execctx provides the request context handed to dispatch handlers.
package execctx

import (
	"context"
	"strings"
)

// RequestContext is the decoded view of one request as the dispatcher sees it.
//
// OperationID, Tags and Method are populated by the operation-matching layer
// in front of the dispatcher and are read-only for resolution. The payload
// fields are for handlers. Values is a scratch space that middleware may use
// to pass data down a chain.
type RequestContext struct {
	// OperationID names the matched API operation. Empty if unknown.
	OperationID string

	// Tags are the grouping tags of the matched operation, in order.
	Tags []string

	// Method is the HTTP method. Compared case-insensitively.
	Method string

	// Path is the request path.
	Path string

	// Params are path parameters extracted by the operation-matching layer.
	Params map[string]string

	// Query holds query-string values.
	Query map[string][]string

	// Header holds request headers.
	Header map[string][]string

	// Body is the raw request body.
	Body []byte

	// RequestID identifies the request in logs and responses.
	RequestID string

	// Values is handler scratch state shared along a middleware chain.
	Values map[string]any

	ctx context.Context
}

// New creates a request context for the given operation coordinates.
func New(operationID string, tags []string, method string) *RequestContext {
	return &RequestContext{
		OperationID: operationID,
		Tags:        tags,
		Method:      method,
		Params:      make(map[string]string),
		Values:      make(map[string]any),
		ctx:         context.Background(),
	}
}

// WithContext returns a shallow copy of the request context bound to ctx.
func (r *RequestContext) WithContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		panic("nil context")
	}
	clone := *r
	clone.ctx = ctx
	return &clone
}

// Context returns the lifecycle context of the request.
// It is never nil.
func (r *RequestContext) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// NormalizedMethod returns the method lowercased and trimmed.
func (r *RequestContext) NormalizedMethod() string {
	return NormalizeMethod(r.Method)
}

// HasTag reports whether tag appears anywhere in Tags.
func (r *RequestContext) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Param returns a path parameter.
func (r *RequestContext) Param(name string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[name]
}

// HeaderValue returns the first value of a header, matched case-insensitively.
func (r *RequestContext) HeaderValue(name string) string {
	for k, vs := range r.Header {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// Set stores a value in the scratch map.
func (r *RequestContext) Set(key string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[key] = value
}

// Get retrieves a value from the scratch map.
func (r *RequestContext) Get(key string) (any, bool) {
	if r.Values == nil {
		return nil, false
	}
	v, ok := r.Values[key]
	return v, ok
}

// NormalizeMethod lowercases and trims an HTTP method name.
func NormalizeMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}
