package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/pipeline"
)

var (
	askK       int
	noModel    bool
	askWeb     bool
	askJSON    bool
	askTimeout time.Duration
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question about youth policies",
	Long: `Ask retrieves the most relevant policies for the question and prints an
answer with its sources. Without a reachable language model (or with
--no-model) the answer is built from a fixed template.

Example:
  policyrag ask "취업 준비 중인 청년 지원 정책"
  policyrag ask "월세 지원" --k 5 --no-model
  policyrag ask "청년 창업 지원" --web`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().IntVar(&askK, "k", 0, "number of sources (default from rag.default_k)")
	askCmd.Flags().BoolVar(&noModel, "no-model", false, "always use the template answer")
	askCmd.Flags().BoolVar(&askWeb, "web", false, "answer from web search results instead of the index")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer bundle as JSON")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "overall timeout")
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askWeb {
		viper.Set("web.enabled", true)
	}
	cfg, log, err := setup(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	k := askK
	if k <= 0 {
		k = cfg.RAG.DefaultK
	}
	question := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	p, err := pipeline.New(ctx, cfg, pipeline.Options{DisableModel: noModel}, log)
	if err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Question: %s\n", question)
		if name := p.ModelName(); name != "" {
			fmt.Fprintf(os.Stderr, "Model: %s\n", name)
		} else {
			fmt.Fprintf(os.Stderr, "Model: none (template answers)\n")
		}
		fmt.Fprintln(os.Stderr)
	}

	var bundle *model.AnswerBundle
	if askWeb {
		bundle, err = p.Web.Answer(ctx, question, k, !noModel)
	} else {
		bundle, err = p.Engine.Answer(ctx, question, k, !noModel)
	}
	if err != nil {
		return err
	}

	if askJSON {
		return writeJSON(os.Stdout, bundle)
	}
	printAnswer(os.Stdout, bundle)
	return nil
}

// printAnswer renders an answer bundle for the terminal
func printAnswer(w io.Writer, bundle *model.AnswerBundle) {
	_, _ = fmt.Fprintln(w, bundle.Answer)
	if len(bundle.Sources) == 0 {
		return
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
	_, _ = fmt.Fprintf(w, "Sources (confidence %.2f)\n", bundle.Confidence)
	for _, m := range bundle.Sources {
		_, _ = fmt.Fprintf(w, "  %d. %s", m.Rank, m.Title())
		if m.Source == model.SourceIndex {
			_, _ = fmt.Fprintf(w, " [%s] score %.3f", m.Get(model.KeyPolicyID), m.Score)
		}
		_, _ = fmt.Fprintln(w)
		if link := firstNonEmpty(m.Get(model.KeyApplicationSite), m.Get(model.KeyPageURL)); link != "" {
			_, _ = fmt.Fprintf(w, "     %s\n", link)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
