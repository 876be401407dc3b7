// Package pipeline wires the configured components into one engine context.
// It is built once at process start and closed at shutdown.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/embed"
	"github.com/youthpolicy/policyrag/internal/index"
	"github.com/youthpolicy/policyrag/internal/ingest"
	"github.com/youthpolicy/policyrag/internal/llm"
	"github.com/youthpolicy/policyrag/internal/metrics"
	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/rag"
	"github.com/youthpolicy/policyrag/internal/server"
	"github.com/youthpolicy/policyrag/internal/websearch"
)

const pingTimeout = 10 * time.Second

// Pipeline owns the encoder, index, generation backend and engines
type Pipeline struct {
	Encoder   embed.Encoder
	Store     index.Store
	Generator llm.Provider // nil when disabled or unhealthy
	Engine    *rag.Engine
	Web       *rag.WebEngine // nil unless web search is enabled
	Metrics   *metrics.Metrics

	config *model.Config
	logger *zap.Logger
}

// Options adjusts construction
type Options struct {
	// SkipPing trusts the generation backend without a startup check
	SkipPing bool
	// DisableModel never builds a generation backend
	DisableModel bool
}

// New builds the pipeline. Embedding and index failures are fatal; a broken
// generation backend only disables the model path.
func New(ctx context.Context, cfg *model.Config, opts Options, logger *zap.Logger) (*Pipeline, error) {
	encoder, err := embed.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	store, err := index.Open(ctx, cfg.Index, logger)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	p := &Pipeline{
		Encoder: encoder,
		Store:   store,
		Metrics: metrics.New(),
		config:  cfg,
		logger:  logger,
	}

	if !opts.DisableModel {
		p.Generator = newGenerator(ctx, cfg, opts.SkipPing, logger)
	}

	timeout := time.Duration(cfg.LLM.Timeout) * time.Second
	assembler := rag.NewAssembler(cfg.RAG.MaxCharsPerMatch)

	p.Engine = rag.NewEngine(encoder, store, assembler,
		rag.NewSynthesizer(p.Generator, rag.PolicyPrompt, timeout, logger),
		p.Metrics, logger)

	if cfg.Web.Enabled {
		p.Web = rag.NewWebEngine(websearch.NewDuckDuckGo(cfg.Web, cfg.HTTP, logger), assembler,
			rag.NewSynthesizer(p.Generator, rag.WebPrompt, timeout, logger),
			p.Metrics, logger)
	}

	return p, nil
}

func newGenerator(ctx context.Context, cfg *model.Config, skipPing bool, logger *zap.Logger) llm.Provider {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		logger.Warn("LLM provider disabled", zap.Error(err))
		return nil
	}
	if provider == nil || skipPing {
		return provider
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := provider.Ping(pingCtx); err != nil {
		logger.Warn("LLM provider unreachable, using template answers",
			zap.String("provider", provider.Name()),
			zap.Error(err))
		return nil
	}

	logger.Info("LLM provider ready", zap.String("provider", provider.Name()))
	return provider
}

// ModelName reports the generation backend, empty when answers are template only
func (p *Pipeline) ModelName() string {
	if p.Generator == nil {
		return ""
	}
	if p.config.LLM.Model != "" {
		return p.Generator.Name() + "/" + p.config.LLM.Model
	}
	return p.Generator.Name()
}

// Build loads every record under dataDir and replaces the indexed collection
func (p *Pipeline) Build(ctx context.Context, dataDir string) (*ingest.Report, error) {
	records, err := ingest.LoadRecords(dataDir, p.logger)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no policy records found in %s", dataDir)
	}

	report, err := ingest.NewBuilder(p.Encoder, p.Store, p.config.Embedding.BatchSize, p.logger).Build(ctx, records)
	if err != nil {
		return nil, err
	}
	p.Metrics.SetIndexDocuments(report.Indexed)
	return report, nil
}

// Server builds the HTTP API over the pipeline's engines
func (p *Pipeline) Server(version string) *server.Server {
	opts := server.Options{
		Config:    p.config.Server,
		Version:   version,
		Engine:    p.Engine,
		Store:     p.Store,
		Metrics:   p.Metrics,
		ModelName: p.ModelName(),
		DefaultK:  p.config.RAG.DefaultK,
	}
	if p.Web != nil {
		opts.Web = p.Web
	}
	return server.New(opts, p.logger)
}

// Close releases the index
func (p *Pipeline) Close() error {
	return p.Store.Close()
}
