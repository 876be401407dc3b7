package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/youthpolicy/policyrag/internal/pipeline"
)

var (
	dataDir      string
	buildTimeout time.Duration
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the vector index from policy records",
	Long: `Build loads every policy record (*.json) in the data directory, embeds
it and replaces the indexed collection. The previous collection stays
searchable until the new one is complete; a failed build leaves it as is.

Example:
  policyrag build --data ./data/policies
  POLICYRAG_INDEX_BACKEND=postgres POLICYRAG_INDEX_DSN=postgres://... policyrag build`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&dataDir, "data", "./data/policies", "directory of policy record JSON files")
	buildCmd.Flags().DurationVar(&buildTimeout, "timeout", 30*time.Minute, "overall build timeout")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  policyrag index build\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Data dir:     %s\n", dataDir)
	fmt.Fprintf(os.Stderr, "  Backend:      %s\n", cfg.Index.Backend)
	fmt.Fprintf(os.Stderr, "  Collection:   %s\n", cfg.Index.Collection)
	fmt.Fprintf(os.Stderr, "  Embedding:    %s\n", cfg.Embedding.Provider)
	fmt.Fprintf(os.Stderr, "\n")

	p, err := pipeline.New(ctx, cfg, pipeline.Options{DisableModel: true}, log)
	if err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	report, err := p.Build(ctx, dataDir)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Loaded %d records\n", report.Loaded)
	fmt.Fprintf(os.Stderr, "✓ Indexed %d documents\n", report.Indexed)
	if report.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Skipped %d records (empty or duplicate)\n", report.Skipped)
	}
	fmt.Fprintf(os.Stderr, "  Duration:     %v\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
