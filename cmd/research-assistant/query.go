// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/assistant"
	"github.com/pdiddy/research-assistant/internal/embed"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question about one paper or the whole library",
	Long: `Ask answers a question from a single paper when --paper is given, optionally
restricted to one section. Without --paper the most relevant paper in the
library answers it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paperID, _ := cmd.Flags().GetString("paper")
		section, _ := cmd.Flags().GetString("section")
		suggest, _ := cmd.Flags().GetBool("suggest")
		question := strings.Join(args, " ")
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			ans, err := a.Ask(ctx, question, paperID, section)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), ans, func(w io.Writer) {
				printAnswer(w, ans)
				if suggest {
					printSuggestions(w, embed.SimilarQuestions(question, ""))
				}
			})
		})
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <paper-id>",
	Short: "Summarize a paper or one of its sections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		section, _ := cmd.Flags().GetString("section")
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			summary, err := a.Summarize(ctx, args[0], section)
			if err != nil {
				return err
			}
			v := map[string]string{"paper_id": args[0], "section": section, "summary": summary}
			return render(cmd.OutOrStdout(), v, func(w io.Writer) { fmt.Fprintln(w, summary) })
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <paper-id>",
	Short: "Run a contribution, methodology or results analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("type")
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			analysis, err := a.Analyze(ctx, args[0], types.AnalysisType(kind))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), analysis, func(w io.Writer) { printAnalysis(w, analysis) })
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <paper-id> <paper-id>...",
	Short: "Compare papers on one aspect",
	Long: `Compare asks the same question of every paper. Aspects methodology,
contributions, results and approach have canned questions; anything else is
asked as "What about <aspect>?".`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		aspect, _ := cmd.Flags().GetString("aspect")
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			cmp, err := a.Compare(ctx, args, aspect)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), cmp, func(w io.Writer) {
				fmt.Fprintf(w, "Comparison of %s:\n%s\n", cmp.Aspect, cmp.Summary)
			})
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find papers similar to a query",
	Long: `Search ranks papers by the similarity of their abstracts to the query.
With --sections it runs a full-text search over section content instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		sections, _ := cmd.Flags().GetBool("sections")
		query := strings.Join(args, " ")
		out := cmd.OutOrStdout()
		return withAssistant(cmd.Context(), func(ctx context.Context, a *assistant.Assistant) error {
			if sections {
				hits, err := a.SearchSections(ctx, query, limit)
				if err != nil {
					return err
				}
				return render(out, hits, func(w io.Writer) {
					for _, h := range hits {
						fmt.Fprintf(w, "%s  %s (page %d)\n    %s\n", h.PaperID, h.Title, h.PageStart, h.Snippet)
					}
					fmt.Fprintf(w, "%d match(es)\n", len(hits))
				})
			}
			hits, err := a.Search(ctx, query, limit)
			if err != nil {
				return err
			}
			return render(out, hits, func(w io.Writer) {
				for _, h := range hits {
					fmt.Fprintf(w, "%.3f  %s  %s\n", h.SimilarityScore, h.PaperID, h.Title)
				}
				fmt.Fprintf(w, "%d paper(s)\n", len(hits))
			})
		})
	},
}

func init() {
	askCmd.Flags().String("paper", "", "answer from this paper only")
	askCmd.Flags().String("section", "", "restrict the answer to a section (needs --paper)")
	askCmd.Flags().Bool("suggest", false, "list related questions of the same kind")

	summarizeCmd.Flags().String("section", "", "summarize only this section")

	analyzeCmd.Flags().String("type", string(types.AnalysisContribution), "analysis type: contribution, methodology or results")

	compareCmd.Flags().String("aspect", "methodology", "aspect to compare")

	searchCmd.Flags().Int("limit", 5, "maximum number of results")
	searchCmd.Flags().Bool("sections", false, "full-text search over sections")

	rootCmd.AddCommand(askCmd, summarizeCmd, analyzeCmd, compareCmd, searchCmd)
}

func printAnswer(w io.Writer, ans types.Answer) {
	fmt.Fprintln(w, ans.Answer)
	fmt.Fprintf(w, "\nconfidence: %.2f", ans.Confidence)
	if ans.AnswerType != "" {
		fmt.Fprintf(w, "  type: %s", ans.AnswerType)
	}
	fmt.Fprintln(w)
	if ans.SourceSection != "" {
		fmt.Fprintf(w, "section: %s", ans.SourceSection)
		if ans.PageNumber != nil {
			fmt.Fprintf(w, " (page %d)", *ans.PageNumber)
		}
		fmt.Fprintln(w)
	}
	if ans.Context != "" {
		fmt.Fprintln(w, ans.Context)
	}
}

func printSuggestions(w io.Writer, questions []string) {
	if len(questions) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRelated questions:")
	for _, q := range questions {
		fmt.Fprintf(w, "  %s\n", q)
	}
}

func printAnalysis(w io.Writer, analysis types.Analysis) {
	questions := make([]string, 0, len(analysis.Answers))
	for q := range analysis.Answers {
		questions = append(questions, q)
	}
	sort.Strings(questions)
	fmt.Fprintf(w, "%s analysis\n", analysis.Type)
	for _, q := range questions {
		fmt.Fprintf(w, "\n%s (%.2f)\n%s\n", q, analysis.ConfidenceScores[q], analysis.Answers[q])
	}
}
