package config

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dshills/opdispatch/internal/logging"
	"github.com/dshills/opdispatch/internal/vfs"
)

func envMap(m map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Lua.ExecutionTimeout.Std() != 5*time.Second {
		t.Errorf("Lua.ExecutionTimeout = %v", cfg.Lua.ExecutionTimeout)
	}
	if cfg.LogLevel() != logging.LevelInfo {
		t.Errorf("LogLevel() = %v", cfg.LogLevel())
	}
}

func TestLoadFile(t *testing.T) {
	fsys := vfs.NewMemFS()
	_ = fsys.AddFile("/etc/opdispatch.toml", `
[server]
addr = "127.0.0.1:9000"
read_timeout = "2s"

[handlers]
root = "/srv/handlers"
watch = true
debounce = "100ms"

[lua]
pool_size = 8

[log]
level = "debug"
`)

	cfg, err := Load(fsys, "/etc/opdispatch.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout.Std() != 2*time.Second {
		t.Errorf("Server.ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout.Std() != 30*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want default 30s", cfg.Server.WriteTimeout)
	}
	if cfg.Handlers.Root != "/srv/handlers" || !cfg.Handlers.Watch || cfg.Handlers.Debounce.Std() != 100*time.Millisecond {
		t.Errorf("Handlers = %+v", cfg.Handlers)
	}
	if cfg.Lua.PoolSize != 8 {
		t.Errorf("Lua.PoolSize = %d", cfg.Lua.PoolSize)
	}
	if cfg.LogLevel() != logging.LevelDebug {
		t.Errorf("LogLevel() = %v", cfg.LogLevel())
	}
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := Load(vfs.NewMemFS(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Handlers.Root != Default().Handlers.Root {
		t.Errorf("Handlers.Root = %q", cfg.Handlers.Root)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(vfs.NewMemFS(), "/nope.toml")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Load() error = %v, want ErrFileNotFound", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		contains string
	}{
		{"syntax", "[server\naddr = 1", "parse error in test.toml"},
		{"unknown key", "[server]\nport = 8080\n", "port"},
		{"bad duration", "[server]\nread_timeout = \"soon\"\n", "soon"},
		{"wrong type", "[lua]\npool_size = \"many\"\n", "parse error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := Decode("test.toml", []byte(tt.data), &cfg)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Decode() error = %v, want *ParseError", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", err, tt.contains)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		"OPDISPATCH_SERVER_ADDR":           ":9999",
		"OPDISPATCH_HANDLERS_WATCH":        "yes",
		"OPDISPATCH_LUA_EXECUTION_TIMEOUT": "750ms",
		"OPDISPATCH_LUA_POOL_SIZE":         "2",
		"OPDISPATCH_LOG_LEVEL":             "warn",
		"OPDISPATCH_METRICS_ENABLED":       "off",
		"OPDISPATCH_UNRELATED":             "ignored",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if !cfg.Handlers.Watch {
		t.Error("Handlers.Watch = false")
	}
	if cfg.Lua.ExecutionTimeout.Std() != 750*time.Millisecond {
		t.Errorf("Lua.ExecutionTimeout = %v", cfg.Lua.ExecutionTimeout)
	}
	if cfg.Lua.PoolSize != 2 {
		t.Errorf("Lua.PoolSize = %d", cfg.Lua.PoolSize)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true")
	}
}

func TestApplyEnvErrors(t *testing.T) {
	tests := map[string]string{
		"OPDISPATCH_LUA_POOL_SIZE":       "lots",
		"OPDISPATCH_HANDLERS_WATCH":      "maybe",
		"OPDISPATCH_SERVER_READ_TIMEOUT": "10",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			err := ApplyEnv(&cfg, envMap(map[string]string{name: value}))
			if err == nil || !strings.Contains(err.Error(), name) {
				t.Errorf("ApplyEnv() error = %v, want one naming %s", err, name)
			}
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	fsys := vfs.NewMemFS()
	_ = fsys.AddFile("/c.toml", "[log]\nlevel = \"debug\"\n")
	t.Setenv("OPDISPATCH_LOG_LEVEL", "error")

	cfg, err := Load(fsys, "/c.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
	}
}

func TestEnvNames(t *testing.T) {
	names := EnvNames()
	for _, want := range []string{
		"OPDISPATCH_SERVER_ADDR",
		"OPDISPATCH_HANDLERS_ROOT",
		"OPDISPATCH_ROUTES_FILE",
		"OPDISPATCH_LUA_POOL_SIZE",
		"OPDISPATCH_LOG_LEVEL",
		"OPDISPATCH_METRICS_ENABLED",
	} {
		if !slices.Contains(names, want) {
			t.Errorf("EnvNames() missing %s", want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -1 }, "server.read_timeout"},
		{"empty root", func(c *Config) { c.Handlers.Root = "" }, "handlers.root"},
		{"zero lua timeout", func(c *Config) { c.Lua.ExecutionTimeout = 0 }, "lua.execution_timeout"},
		{"zero pool", func(c *Config) { c.Lua.PoolSize = 0 }, "lua.pool_size"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("Validate() error = %v, want ErrValidationFailed", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Path != tt.path {
				t.Errorf("Validate() error = %v, want path %s", err, tt.path)
			}
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Lua.PoolSize = 0

	err := cfg.Validate()
	for _, path := range []string{"server.addr", "lua.pool_size"} {
		if err == nil || !strings.Contains(err.Error(), path) {
			t.Errorf("Validate() error = %v, missing %s", err, path)
		}
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Std() != 90*time.Second {
		t.Errorf("Std() = %v", d.Std())
	}
	text, _ := d.MarshalText()
	if string(text) != "1m30s" {
		t.Errorf("MarshalText() = %q", text)
	}
	if err := d.UnmarshalText([]byte("later")); err == nil {
		t.Error("UnmarshalText(later) succeeded")
	}
}
