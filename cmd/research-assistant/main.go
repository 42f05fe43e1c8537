// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-assistant CLI. Every
// library operation is a subcommand; serve exposes the same operations over
// the REST API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/assistant"
	"github.com/pdiddy/research-assistant/internal/config"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/internal/server"
	"github.com/pdiddy/research-assistant/internal/telemetry"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	cfg    types.Config
	logger = zap.NewNop()
)

// rootCmd is the base command for the research-assistant CLI.
var rootCmd = &cobra.Command{
	Use:   "research-assistant",
	Short: "Ingest research papers and ask questions about them",
	Long: `research-assistant parses research papers into sections and metadata,
indexes them for semantic search and answers questions about one paper or the
whole library.

Papers enter through upload, batch, fetch or watch. ask, summarize, analyze
and compare query them; serve exposes everything as a REST API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(secrets.DefaultDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if names := secrets.Names(s); len(names) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", names)
		}

		cfgFile, _ := cmd.Flags().GetString("config")
		v := viper.New()
		cfg, err = config.Load(v, cfgFile, loadedSecrets)
		if err != nil {
			return err
		}
		if used := v.ConfigFileUsed(); used != "" {
			fmt.Fprintln(os.Stderr, "Using config file:", used)
		}

		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			cfg.Debug = true
		}
		logger, err = logging.New(cfg.Debug, cfg.LogLevel, server.ServiceName)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-assistant.yaml or ~/.config/research-assistant/research-assistant.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "development logging at debug level")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "text", "output format: text, json or yaml")
}

// withAssistant opens the library with tracing set up, runs fn and closes
// everything again.
func withAssistant(ctx context.Context, fn func(context.Context, *assistant.Assistant) error) error {
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("flushing traces", zap.Error(err))
		}
	}()

	a, err := assistant.Open(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing assistant", zap.Error(err))
		}
	}()
	return fn(ctx, a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
