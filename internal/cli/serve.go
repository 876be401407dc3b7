package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/pipeline"
	"github.com/youthpolicy/policyrag/internal/rag"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search and answer HTTP API",
	Long: `Serve starts the HTTP API over the built index:
  GET  /             service descriptor
  GET  /health       liveness and index status
  POST /search       ranked policy matches
  POST /answer       answer with sources
  POST /web/answer   answer from web search (when web.enabled)
  GET  /policy/{id}  one stored policy
  GET  /metrics      Prometheus metrics

Example:
  policyrag serve
  policyrag serve --addr :9000 --web`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().Bool("web", false, "enable the web search answer endpoint")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("web.enabled", serveCmd.Flags().Lookup("web"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg, pipeline.Options{}, log)
	if err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	// Serving an empty index is allowed; /health reports it
	count, err := p.Engine.Ready(ctx)
	switch {
	case errors.Is(err, rag.ErrNotReady):
		log.Warn("index is empty, run 'policyrag build' first", zap.String("backend", cfg.Index.Backend))
	case err != nil:
		log.Warn("index check failed", zap.Error(err))
	default:
		log.Info("index ready", zap.Int("documents", count))
	}

	return p.Server(Version).Run(ctx)
}
