// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/assistant"
	"github.com/pdiddy/research-assistant/internal/export"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"papers"},
	Short:   "List the papers in the library",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			papers, err := a.List(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), papers, func(w io.Writer) {
				for _, p := range papers {
					year := ""
					if p.Year > 0 {
						year = fmt.Sprintf(" (%d)", p.Year)
					}
					fmt.Fprintf(w, "%s  %s%s, %d page(s)\n", p.PaperID, p.Title, year, p.PageCount)
				}
				fmt.Fprintf(w, "%d paper(s)\n", len(papers))
			})
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <paper-id>",
	Short: "Show a paper's metadata and sections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			info, err := a.Info(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), info, func(w io.Writer) {
				fmt.Fprintf(w, "%s\n", info.Title)
				if len(info.Authors) > 0 {
					fmt.Fprintf(w, "Authors:  %s\n", strings.Join(info.Authors, ", "))
				}
				if info.Year > 0 {
					fmt.Fprintf(w, "Year:     %d\n", info.Year)
				}
				if info.DOI != "" {
					fmt.Fprintf(w, "DOI:      %s\n", info.DOI)
				}
				if info.ArxivID != "" {
					fmt.Fprintf(w, "arXiv:    %s\n", info.ArxivID)
				}
				fmt.Fprintf(w, "Pages:    %d\n", info.PageCount)
				fmt.Fprintf(w, "Figures:  %d\n", info.FiguresCount)
				if len(info.Keywords) > 0 {
					fmt.Fprintf(w, "Keywords: %s\n", strings.Join(info.Keywords, ", "))
				}
				fmt.Fprintln(w, "\nSections:")
				for _, s := range info.Sections {
					fmt.Fprintf(w, "  %s\n", s.Title)
				}
			})
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <paper-id>...",
	Short: "Remove papers from the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete %d paper(s)?", len(args))) {
			return nil
		}
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			for _, id := range args {
				if err := a.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paper %s deleted successfully\n", id)
			}
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <paper-id>",
	Short: "Show the questions asked about a paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			entries, err := a.History(ctx, args[0], limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), entries, func(w io.Writer) {
				for _, e := range entries {
					fmt.Fprintf(w, "[%s] %s\n  %s (%.2f)\n", e.AskedAt.Format("2006-01-02 15:04"), e.Question, e.Answer, e.Confidence)
				}
			})
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [paper-id]",
	Short: "Export a paper or the whole library",
	Long: `Export writes a paper as txt, json, yaml, bibtex or csl-json. With --all the
whole library is exported in one document. Output goes to stdout unless
--file is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	historyCmd.Flags().Int("limit", 10, "maximum number of entries")

	exportCmd.Flags().String("format", string(export.FormatBibTeX), "txt, json, yaml, bibtex or csl-json")
	exportCmd.Flags().Bool("all", false, "export every paper")
	exportCmd.Flags().String("file", "", "write to this file instead of stdout")

	rootCmd.AddCommand(listCmd, infoCmd, deleteCmd, historyCmd, exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("format")
	all, _ := cmd.Flags().GetBool("all")
	file, _ := cmd.Flags().GetString("file")

	format, err := export.ParseFormat(name)
	if err != nil {
		return err
	}
	if all == (len(args) == 1) {
		return fmt.Errorf("give a paper id or --all")
	}

	return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
		write := func(w io.Writer) error {
			if all {
				return a.ExportAll(ctx, format, w)
			}
			return a.Export(ctx, args[0], format, w)
		}
		if file == "" {
			return write(cmd.OutOrStdout())
		}

		f, err := os.Create(file)
		if err != nil {
			return fmt.Errorf("creating %s: %w", file, err)
		}
		bw := bufio.NewWriter(f)
		if err := write(bw); err != nil {
			f.Close()
			return err
		}
		if err := bw.Flush(); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", file, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", file, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", file)
		return nil
	})
}

// confirm asks a yes/no question on out and reads the reply from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	reply, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(reply)) {
	case "y", "yes":
		return true
	}
	return false
}
