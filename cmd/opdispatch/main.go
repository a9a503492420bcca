// Package main is the entry point for the opdispatch server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/opdispatch/internal/config"
	"github.com/dshills/opdispatch/internal/vfs"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "opdispatch",
	Short: "Serve HTTP requests from a directory of handler modules",
	Long: `opdispatch builds a dispatch registry from a directory tree of Lua
scripts and handler manifests, then routes each request to a handler by
operation ID, tag path and method.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("opdispatch {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (TOML)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config, if given, and applies OPDISPATCH_* overrides.
func loadConfig() (config.Config, error) {
	return config.Load(vfs.NewOSFS(), configPath)
}
