// Package config loads the server configuration.
//
// Settings come from three places, later ones winning: the defaults from
// Default, a TOML file, and OPDISPATCH_<SECTION>_<KEY> environment
// variables (OPDISPATCH_LUA_POOL_SIZE sets [lua] pool_size).
//
//	[server]
//	addr = ":8080"
//	read_timeout = "10s"
//
//	[handlers]
//	root = "./handlers"
//	watch = true
//	debounce = "250ms"
//
//	[routes]
//	file = "./routes.yaml"
//
//	[lua]
//	execution_timeout = "5s"
//	pool_size = 4
//
//	[log]
//	level = "info"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/opdispatch/internal/logging"
	"github.com/dshills/opdispatch/internal/vfs"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OPDISPATCH_"

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Handlers HandlersConfig `toml:"handlers"`
	Routes   RoutesConfig   `toml:"routes"`
	Lua      LuaConfig      `toml:"lua"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// HandlersConfig locates the handler tree.
type HandlersConfig struct {
	Root string `toml:"root"`
	// Watch rebuilds the registry when the tree changes.
	Watch    bool     `toml:"watch"`
	Debounce Duration `toml:"debounce"`
}

// RoutesConfig locates the route table.
type RoutesConfig struct {
	File string `toml:"file"`
}

// LuaConfig configures Lua handler execution.
type LuaConfig struct {
	ExecutionTimeout Duration `toml:"execution_timeout"`
	PoolSize         int      `toml:"pool_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Prefix string `toml:"prefix"`
}

// MetricsConfig configures dispatch metrics.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Handlers: HandlersConfig{
			Root:     "./handlers",
			Watch:    false,
			Debounce: Duration(250 * time.Millisecond),
		},
		Routes: RoutesConfig{
			File: "./routes.yaml",
		},
		Lua: LuaConfig{
			ExecutionTimeout: Duration(5 * time.Second),
			PoolSize:         4,
		},
		Log: LogConfig{
			Level:  "info",
			Prefix: "opdispatch",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load returns the defaults overlaid with the TOML file at path (skipped
// when path is empty) and then the environment, validated.
func Load(fsys vfs.FS, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := fsys.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := Decode(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := ApplyEnv(&cfg, LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays TOML data onto cfg. Unknown keys are rejected.
func Decode(source string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			pe.Line, pe.Column = de.Position()
		}
		var se *toml.StrictMissingError
		if errors.As(err, &se) {
			pe.Message = se.String()
		}
		return pe
	}
	return nil
}

// Validate checks every setting and reports all failures together.
func (c Config) Validate() error {
	var errs []error
	bad := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if c.Server.Addr == "" {
		bad("server.addr", "must not be empty", c.Server.Addr)
	}
	for path, d := range map[string]Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"handlers.debounce":       c.Handlers.Debounce,
	} {
		if d < 0 {
			bad(path, "must not be negative", d)
		}
	}
	if c.Handlers.Root == "" {
		bad("handlers.root", "must not be empty", c.Handlers.Root)
	}
	if c.Lua.ExecutionTimeout <= 0 {
		bad("lua.execution_timeout", "must be positive", c.Lua.ExecutionTimeout)
	}
	if c.Lua.PoolSize < 1 {
		bad("lua.pool_size", "must be at least 1", c.Lua.PoolSize)
	}
	if !logging.ValidLevel(c.Log.Level) {
		bad("log.level", "must be one of debug, info, warn, error", c.Log.Level)
	}

	return errors.Join(errs...)
}

// LogLevel returns the configured level.
func (c Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}
