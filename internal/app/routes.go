package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/opdispatch/internal/vfs"
)

// AdminPrefix is reserved for the server's own endpoints.
const AdminPrefix = "/-/"

// Route maps one HTTP method and path pattern to operation coordinates.
type Route struct {
	Method      string   `yaml:"method" json:"method"`
	Path        string   `yaml:"path" json:"path"`
	OperationID string   `yaml:"operation_id" json:"operation_id,omitempty"`
	Tags        []string `yaml:"tags" json:"tags,omitempty"`
}

// Pattern returns the net/http ServeMux pattern, e.g. "GET /users/{id}".
func (r Route) Pattern() string {
	return strings.ToUpper(strings.TrimSpace(r.Method)) + " " + r.Path
}

// ParamNames returns the wildcard names in the path, in order.
func (r Route) ParamNames() []string {
	var names []string
	for _, seg := range strings.Split(r.Path, "/") {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := strings.TrimSuffix(seg[1:len(seg)-1], "...")
		if name == "" || name == "$" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// RouteTable is the list of routes served.
//
//	routes:
//	  - method: GET
//	    path: /users/{id}
//	    operation_id: getUser
//	    tags: [users]
type RouteTable struct {
	Routes []Route `yaml:"routes"`
}

// LoadRoutes reads and validates a YAML route table.
func LoadRoutes(fsys vfs.FS, path string) (RouteTable, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return RouteTable{}, fmt.Errorf("reading route table %s: %w", path, err)
	}
	t, err := ParseRoutes(data)
	if err != nil {
		return RouteTable{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseRoutes decodes and validates a YAML route table. Unknown keys are
// rejected.
func ParseRoutes(data []byte) (RouteTable, error) {
	var t RouteTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return RouteTable{}, fmt.Errorf("%w: %v", ErrInvalidRoutes, err)
	}
	if err := t.Validate(); err != nil {
		return RouteTable{}, err
	}
	return t, nil
}

// Validate checks every route and reports all failures together.
func (t RouteTable) Validate() error {
	var errs []error
	seen := make(map[string]int, len(t.Routes))

	for i, r := range t.Routes {
		bad := func(reason string) {
			errs = append(errs, &RouteError{Index: i, Route: r, Reason: reason})
		}

		method := strings.TrimSpace(r.Method)
		switch {
		case method == "":
			bad("method is empty")
		case strings.ContainsAny(method, " /{}"):
			bad("method is not a single token")
		}
		switch {
		case !strings.HasPrefix(r.Path, "/"):
			bad("path must start with /")
		case strings.HasPrefix(r.Path, AdminPrefix):
			bad("path is reserved for " + AdminPrefix + " endpoints")
		}
		for _, tag := range r.Tags {
			if tag == "" {
				bad("tags contain an empty tag")
				break
			}
		}

		key := r.Pattern()
		if prev, dup := seen[key]; dup {
			bad(fmt.Sprintf("duplicates route %d", prev))
			continue
		}
		seen[key] = i
	}
	return errors.Join(errs...)
}
