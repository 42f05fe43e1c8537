// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/assistant"
	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	Long: `Serve exposes the library over HTTP with Prometheus metrics on /metrics.
With --web it listens on the web port, where / describes the API. It shuts
down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("host") {
			cfg.API.Host, _ = cmd.Flags().GetString("host")
		}
		if web, _ := cmd.Flags().GetBool("web"); web {
			cfg.API.Port = cfg.API.WebPort
		}
		if cmd.Flags().Changed("port") {
			cfg.API.Port, _ = cmd.Flags().GetInt("port")
		}
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			srv := server.New(a, cfg, server.Options{
				Version:    version,
				Logger:     logger.Named("api"),
				Registerer: prometheus.DefaultRegisterer,
			})
			return srv.Run(ctx)
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the REST API",
	Long: `Token signs an HS256 token with api.jwt_secret (or .secrets/jwt-secret)
for use in the Authorization header when api.auth_enabled is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if cfg.API.JWTSecret == "" {
			return fmt.Errorf("no JWT secret: set api.jwt_secret or %s/%s", secrets.DefaultDir, secrets.JWTSecret)
		}
		tok, err := server.IssueToken(cfg.API.JWTSecret, subject, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := cfg
		redact(&shown.Models.QA.APIKey)
		redact(&shown.Database.WeaviateAPIKey)
		redact(&shown.Database.RedisPassword)
		redact(&shown.API.JWTSecret)
		redact(&shown.Research.SemanticScholarAPIKey)
		if outputFormat == "text" {
			outputFormat = "yaml"
		}
		return render(cmd.OutOrStdout(), shown, func(io.Writer) {})
	},
}

func redact(s *string) {
	if *s != "" {
		*s = "********"
	}
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (default from api.host)")
	serveCmd.Flags().Int("port", 0, "listen port (default from api.port)")
	serveCmd.Flags().Bool("web", false, "listen on api.web_port instead of api.port")

	tokenCmd.Flags().String("subject", "research-assistant", "token subject")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")

	rootCmd.AddCommand(serveCmd, tokenCmd, configCmd)
}
