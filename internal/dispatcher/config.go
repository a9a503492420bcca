package dispatcher

import "github.com/dshills/opdispatch/internal/logging"

// Config holds dispatcher configuration options.
type Config struct {
	// EnableMetrics enables dispatch timing and statistics collection.
	EnableMetrics bool

	// Logger receives dispatch diagnostics. Nil discards them.
	Logger logging.Interface
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableMetrics: false,
	}
}

// WithMetrics returns a copy of the config with metrics enabled.
func (c Config) WithMetrics() Config {
	c.EnableMetrics = true
	return c
}

// WithLogger returns a copy of the config with the logger set.
func (c Config) WithLogger(l logging.Interface) Config {
	c.Logger = l
	return c
}
