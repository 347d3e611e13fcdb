// Package main is the entry point for the postboard server.
//
// main stays minimal: load .env, build the cobra command tree, and hand off
// to internal/config and internal/server. All actual logic lives in
// imported packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sakif/postboard/internal/config"
	"github.com/sakif/postboard/internal/server"
)

// version is set at build time:
//
//	go build -ldflags "-X main.version=v1.2.3" ./cmd/server
var version = "dev"

func main() {
	// A missing .env is normal in production; a malformed one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath = os.Getenv("POSTBOARD_CONFIG")
		port       int
	)

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		logger := cfg.NewLogger(os.Stdout)
		slog.SetDefault(logger)

		srv, err := server.New(context.Background(), cfg, logger)
		if err != nil {
			logger.Error("failed to create server", slog.String("error", err.Error()))
			return err
		}

		// Start blocks until SIGINT/SIGTERM.
		if err := srv.Start(); err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return err
		}
		return nil
	}

	root := &cobra.Command{
		Use:          "postboard",
		Short:        "Users, posts and comments over a document store",
		SilenceUsage: true,
		RunE:         serve,
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "YAML config file (env POSTBOARD_CONFIG)")
	root.PersistentFlags().IntVar(&port, "port", 0, "listen port, overrides config and PORT")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE:  serve,
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return root
}
