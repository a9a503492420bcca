package app

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/opdispatch/internal/dispatcher/handler"
)

func TestRoutePattern(t *testing.T) {
	tests := []struct {
		route   Route
		pattern string
		params  []string
	}{
		{Route{Method: "get", Path: "/users/{id}"}, "GET /users/{id}", []string{"id"}},
		{Route{Method: " Post ", Path: "/users"}, "POST /users", nil},
		{Route{Method: "GET", Path: "/a/{x}/b/{y}"}, "GET /a/{x}/b/{y}", []string{"x", "y"}},
		{Route{Method: "GET", Path: "/files/{rest...}"}, "GET /files/{rest...}", []string{"rest"}},
		{Route{Method: "GET", Path: "/{$}"}, "GET /{$}", nil},
	}

	for _, tt := range tests {
		if got := tt.route.Pattern(); got != tt.pattern {
			t.Errorf("Pattern() = %q, want %q", got, tt.pattern)
		}
		if got := tt.route.ParamNames(); !reflect.DeepEqual(got, tt.params) {
			t.Errorf("%s ParamNames() = %v, want %v", tt.pattern, got, tt.params)
		}
	}
}

func TestParseRoutes(t *testing.T) {
	table, err := ParseRoutes([]byte(testRoutes))
	if err != nil {
		t.Fatalf("ParseRoutes() error = %v", err)
	}
	if len(table.Routes) != 6 {
		t.Fatalf("len(Routes) = %d, want 6", len(table.Routes))
	}
	echo := table.Routes[4]
	if echo.OperationID != "echoIt" || !reflect.DeepEqual(echo.Tags, []string{"misc"}) {
		t.Errorf("Routes[4] = %+v", echo)
	}

	empty, err := ParseRoutes(nil)
	if err != nil || len(empty.Routes) != 0 {
		t.Errorf("ParseRoutes(nil) = %+v, %v", empty, err)
	}
}

func TestParseRoutesErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{"unknown key", "routes:\n  - method: GET\n    path: /a\n    verb: GET\n", "verb"},
		{"not yaml", "routes: [", ""},
		{"empty method", "routes:\n  - path: /a\n", "method is empty"},
		{"method with space", "routes:\n  - {method: \"GET /x\", path: /a}\n", "single token"},
		{"relative path", "routes:\n  - {method: GET, path: a}\n", "must start with /"},
		{"admin path", "routes:\n  - {method: GET, path: /-/health}\n", "reserved"},
		{"empty tag", "routes:\n  - {method: GET, path: /a, tags: [x, \"\"]}\n", "empty tag"},
		{"duplicate", "routes:\n  - {method: GET, path: /a}\n  - {method: get, path: /a}\n", "duplicates route 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoutes([]byte(tt.data))
			if !errors.Is(err, ErrInvalidRoutes) {
				t.Fatalf("ParseRoutes() error = %v, want ErrInvalidRoutes", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q does not mention %q", err, tt.reason)
			}
		})
	}
}

func TestValidateReportsEveryRoute(t *testing.T) {
	table := RouteTable{Routes: []Route{
		{Method: "", Path: "/a"},
		{Method: "GET", Path: "/b"},
		{Method: "GET", Path: "c"},
	}}

	err := table.Validate()
	var re *RouteError
	if !errors.As(err, &re) || re.Index != 0 {
		t.Fatalf("Validate() error = %v", err)
	}
	if !strings.Contains(err.Error(), "route 2") {
		t.Errorf("error %q does not report route 2", err)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		res  handler.Result
		want int
	}{
		{"ok", handler.Success(), http.StatusOK},
		{"explicit code", handler.Success().WithCode(http.StatusCreated), http.StatusCreated},
		{"no-op", handler.NoOp(), http.StatusNotImplemented},
		{"cancelled", handler.Cancelled(), http.StatusForbidden},
		{"error", handler.Errorf("boom"), http.StatusInternalServerError},
		{"error with code", handler.Errorf("missing").WithCode(http.StatusNotFound), http.StatusNotFound},
		{"out of range code", handler.Success().WithCode(42), http.StatusOK},
	}

	for _, tt := range tests {
		if got := StatusCode(tt.res); got != tt.want {
			t.Errorf("%s: StatusCode() = %d, want %d", tt.name, got, tt.want)
		}
	}
}
