package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/opdispatch/internal/app"
)

var (
	serveAddr  string
	serveRoot  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Build the handler registry and serve the route table over HTTP until
interrupted. With --watch the registry is rebuilt whenever the handler tree
changes; a tree that fails to build leaves the previous handlers in place.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Handler tree root (overrides config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Rebuild handlers when the tree changes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveRoot != "" {
		cfg.Handlers.Root = serveRoot
	}
	if cmd.Flags().Changed("watch") {
		cfg.Handlers.Watch = serveWatch
	}

	application, err := app.New(cfg, app.Options{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return application.Run(ctx)
}
