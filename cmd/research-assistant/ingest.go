// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/internal/assistant"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Parse, index and store papers",
	Long: `Upload parses each file into sections and metadata, embeds it and adds it
to the library. Papers get a random id unless --id is given for a single file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Upload every supported file in a directory",
	Long: `Batch uploads the supported files in a directory concurrently. Paper ids
come from file names, so rerunning skips papers already in the library unless
--force is set. With --analysis-dir a contribution analysis is written for
each processed paper as <id>.yaml.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <identifier>",
	Short: "Download a paper by arXiv ID, DOI or URL and upload it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			paperID, err := a.Fetch(ctx, args[0], id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched: %s -> %s\n", args[0], paperID)
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Upload papers as they appear in a directory",
	Long: `Watch uploads the supported files already in a directory and then every
file that is added or changed, once it has stopped changing. It runs until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			err := a.Watch(ctx, args[0], func(path, paperID string, err error) {
				if err != nil {
					fmt.Fprintf(out, "failed: %s: %v\n", filepath.Base(path), err)
					return
				}
				fmt.Fprintf(out, "processed: %s -> %s\n", filepath.Base(path), paperID)
			})
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	},
}

func init() {
	uploadCmd.Flags().String("id", "", "paper id (single file only)")

	batchCmd.Flags().Int("workers", 4, "concurrent uploads")
	batchCmd.Flags().Bool("force", false, "reprocess papers already in the library")
	batchCmd.Flags().String("analysis-dir", "", "write a contribution analysis per processed paper")

	fetchCmd.Flags().String("id", "", "paper id (default: derived from the identifier)")

	rootCmd.AddCommand(uploadCmd, batchCmd, fetchCmd, watchCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	if id != "" && len(args) > 1 {
		return fmt.Errorf("--id needs exactly one file, got %d", len(args))
	}
	out := cmd.OutOrStdout()
	return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
		failed := 0
		for _, path := range args {
			paperID, err := a.Upload(ctx, path, id)
			if err != nil {
				failed++
				fmt.Fprintf(out, "failed: %s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(out, "uploaded: %s -> %s\n", path, paperID)
		}
		if failed > 0 {
			return fmt.Errorf("%d paper(s) failed upload", failed)
		}
		return nil
	})
}

func runBatch(cmd *cobra.Command, args []string) error {
	workers, _ := cmd.Flags().GetInt("workers")
	force, _ := cmd.Flags().GetBool("force")
	analysisDir, _ := cmd.Flags().GetString("analysis-dir")
	out := cmd.OutOrStdout()

	return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
		result, err := a.Batch(ctx, args[0], workers, force, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nBatch: %d processed, %d skipped, %d failed (of %d)\n",
			result.Processed, result.Skipped, result.Failed, result.Total())

		if analysisDir != "" {
			if err := writeAnalyses(ctx, a, analysisDir, result, out); err != nil {
				return err
			}
		}
		if result.HasFailures() {
			return fmt.Errorf("%d paper(s) failed upload", result.Failed)
		}
		return nil
	})
}

// writeAnalyses stores a contribution analysis for every paper the batch
// processed.
func writeAnalyses(ctx context.Context, a *assistant.Assistant, dir string, result assistant.BatchResult, out io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, id := range result.IDs {
		analysis, err := a.AnalyzeContribution(ctx, id)
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", id, err)
		}
		data, err := yaml.Marshal(analysis)
		if err != nil {
			return fmt.Errorf("encoding analysis for %s: %w", id, err)
		}
		path := filepath.Join(dir, id+".yaml")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(out, "analysis: %s\n", path)
	}
	return nil
}
