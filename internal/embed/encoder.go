// Package embed turns policy text and queries into fixed-length vectors.
package embed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/cache"
	"github.com/youthpolicy/policyrag/internal/model"
)

// Encoder maps text to vectors of a fixed dimension. Implementations must be
// deterministic for identical input and safe for concurrent use.
type Encoder interface {
	// Name identifies the provider and model, e.g. "openai/text-embedding-3-small"
	Name() string

	// Dimension is the vector length, or 0 if not known until the first call
	Dimension() int

	Encode(ctx context.Context, text string) ([]float32, error)

	// EncodeBatch returns one vector per input text, in input order
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the configured encoder stack: provider, then chunked parallel
// batching, then (for remote providers) a vector cache.
func New(cfg model.EmbeddingConfig, logger *zap.Logger) (Encoder, error) {
	var (
		base   Encoder
		remote bool
		err    error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", "hash":
		base = NewHashEncoder(cfg.Dimension)

	case "openai":
		base, err = NewOpenAIEncoder(cfg)
		remote = true

	case "ollama":
		base, err = NewOllamaEncoder(cfg)
		remote = true

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, openai, ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	enc := Encoder(NewBatchEncoder(base, cfg.BatchSize, cfg.Workers))

	if remote && cfg.CacheTTL > 0 {
		ttl := time.Duration(cfg.CacheTTL) * time.Minute
		enc = NewCachedEncoder(enc, cache.NewLayeredCache(ttl, cfg.CacheDir, ttl), ttl, logger)
	}

	logger.Debug("embedding encoder ready",
		zap.String("encoder", enc.Name()),
		zap.Int("dimension", enc.Dimension()))

	return enc, nil
}
