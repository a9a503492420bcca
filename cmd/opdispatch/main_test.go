package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "handlers")
	if err := os.MkdirAll(filepath.Join(root, "foo"), 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := "operations:\n  read: builtin.echo\n  searchFooBar: builtin.echo\n"
	if err := os.WriteFile(filepath.Join(root, "foo", "bar.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(dir, "opdispatch.toml")
	body := fmt.Sprintf("[handlers]\nroot = %q\n\n[log]\nlevel = \"error\"\n", root)
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, routesJSON = "", false
	resolveOperationID, resolveTags, resolveMethod = "", nil, ""
	resolveInvoke, resolveBody = false, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRoutesCommand(t *testing.T) {
	cfg := setupTree(t)

	out, err := execute(t, "routes", "--config", cfg)
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	for _, want := range []string{"KIND", "operation", "searchFooBar", "foo.bar", "get"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "routes", "--config", cfg, "--json")
	if err != nil {
		t.Fatalf("routes --json: %v", err)
	}
	if !strings.Contains(out, `"kind": "method"`) {
		t.Errorf("JSON output:\n%s", out)
	}
}

func TestResolveCommand(t *testing.T) {
	cfg := setupTree(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--operation-id", "searchFooBar"}, "operation:searchFooBar"},
		{[]string{"--tag", "foo", "--tag", "bar", "--method", "GET"}, "method:foo.bar#get"},
		{[]string{"--tag", "foo", "--tag", "bar", "--method", "POST"}, "no match"},
		{[]string{"--tag", "nope"}, "no match"},
	}
	for _, tt := range tests {
		out, err := execute(t, append([]string{"resolve", "--config", cfg}, tt.args...)...)
		if err != nil {
			t.Fatalf("resolve %v: %v", tt.args, err)
		}
		if !strings.Contains(out, tt.want) {
			t.Errorf("resolve %v = %q, want %q", tt.args, out, tt.want)
		}
	}
}

func TestResolveInvoke(t *testing.T) {
	cfg := setupTree(t)

	out, err := execute(t, "resolve", "--config", cfg, "--operation-id", "searchFooBar", "--invoke", "--body", "hi")
	if err != nil {
		t.Fatalf("resolve --invoke: %v", err)
	}
	for _, want := range []string{`"status": "ok"`, `"code": 200`, `"operation_id": "searchFooBar"`, `"body": "hi"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "routes", "--config", filepath.Join(t.TempDir(), "none.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "opdispatch "+version) {
		t.Errorf("version output = %q", out)
	}
}
