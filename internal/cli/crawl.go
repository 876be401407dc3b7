package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/youthpolicy/policyrag/internal/ingest"
	"github.com/youthpolicy/policyrag/internal/worker"
)

var (
	idsFile      string
	crawlOutDir  string
	overwrite    bool
	crawlTimeout time.Duration
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Fetch policy detail pages into normalized records",
	Long: `Crawl fetches the detail page of every policy id in the ids file (one
per line, '#' comments allowed), normalizes it and writes one JSON record
per policy into the output directory.

Requests are rate limited per host and robots.txt is honored unless
crawl.respect_robots is false. Existing records are kept unless
--overwrite is given.

Example:
  policyrag crawl --ids ids.txt --out ./data/policies
  policyrag crawl --ids ids.txt --concurrency 2 --overwrite`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&idsFile, "ids", "", "file with one policy id per line")
	crawlCmd.Flags().StringVar(&crawlOutDir, "out", "./data/policies", "output directory for records")
	crawlCmd.Flags().BoolVar(&overwrite, "overwrite", false, "refetch policies that already have a record")
	crawlCmd.Flags().DurationVar(&crawlTimeout, "timeout", 30*time.Minute, "overall crawl timeout")
	crawlCmd.Flags().Int("concurrency", 0, "number of concurrent fetches (default from crawl.concurrency)")

	_ = crawlCmd.MarkFlagRequired("ids")
	_ = viper.BindPFlag("crawl.concurrency", crawlCmd.Flags().Lookup("concurrency"))
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ids, err := worker.ReadLines(idsFile)
	if err != nil {
		return fmt.Errorf("read ids: %w", err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no policy ids found in %s", idsFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), crawlTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  policyrag crawl\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Policy ids:   %d\n", len(ids))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Crawl.Concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", crawlOutDir)
	fmt.Fprintf(os.Stderr, "  Robots.txt:   %v\n", cfg.Crawl.RespectRobots)
	fmt.Fprintf(os.Stderr, "\n")

	crawler := ingest.NewCrawler(cfg.Crawl, cfg.HTTP, overwrite, log)
	report, err := crawler.Crawl(ctx, ids, crawlOutDir)
	if report == nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	for _, result := range report.Results {
		switch {
		case result.Err != nil:
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.PolicyID, result.Err)
		case result.Skipped && verbose:
			fmt.Fprintf(os.Stderr, "- %s: exists, skipped\n", result.PolicyID)
		case !result.Skipped && verbose:
			fmt.Fprintf(os.Stderr, "✓ %s -> %s\n", result.PolicyID, result.Path)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Written:      %d\n", report.Written)
	fmt.Fprintf(os.Stderr, "  Skipped:      %d\n", report.Skipped)
	fmt.Fprintf(os.Stderr, "  Failed:       %d\n", report.Failed)
	fmt.Fprintf(os.Stderr, "\n")

	if err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	if report.Failed > 0 && report.Written == 0 && report.Skipped == 0 {
		return fmt.Errorf("all %d policies failed", report.Failed)
	}
	return nil
}
