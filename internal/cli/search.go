package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/pipeline"
	"github.com/youthpolicy/policyrag/internal/rag"
)

const searchPreviewChars = 200

var (
	searchK    int
	searchJSON bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "List the policies nearest to a query",
	Long: `Search embeds the query and prints the closest indexed policies with
their scores, nearest first. No answer is generated.

Example:
  policyrag search "청년 월세"
  policyrag search "창업 지원금" --k 10 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchK, "k", 5, "number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print matches as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, err := pipeline.New(ctx, cfg, pipeline.Options{DisableModel: true}, log)
	if err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	query := strings.Join(args, " ")
	matches, err := p.Engine.Search(ctx, query, searchK)
	if err != nil {
		return err
	}

	if searchJSON {
		return writeJSON(os.Stdout, matches)
	}
	printMatches(os.Stdout, query, matches)
	return nil
}

// printMatches renders ranked matches for the terminal
func printMatches(w io.Writer, query string, matches []model.Match) {
	if len(matches) == 0 {
		_, _ = fmt.Fprintf(w, "No policies found for '%s'\n", query)
		return
	}

	_, _ = fmt.Fprintf(w, "%d policies for '%s'\n\n", len(matches), query)
	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%d. %s [%s] score %.3f\n", m.Rank, m.Title(), m.Get(model.KeyPolicyID), m.Score)
		if agency := m.Get(model.KeyAgency); agency != "" {
			_, _ = fmt.Fprintf(w, "   %s\n", agency)
		}
		if preview := strings.ReplaceAll(rag.Truncate(m.Text, searchPreviewChars), "\n", " "); preview != "" {
			_, _ = fmt.Fprintf(w, "   %s\n", preview)
		}
		_, _ = fmt.Fprintln(w)
	}
}
