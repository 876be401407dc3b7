package embed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/cache"
	"github.com/youthpolicy/policyrag/internal/vecmath"
)

// CachedEncoder memoizes vectors keyed by encoder identity and text
type CachedEncoder struct {
	inner  Encoder
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedEncoder wraps inner with c
func NewCachedEncoder(inner Encoder, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedEncoder {
	return &CachedEncoder{inner: inner, cache: c, ttl: ttl, logger: logger}
}

// Name returns the wrapped encoder identity
func (c *CachedEncoder) Name() string {
	return c.inner.Name()
}

// Dimension returns the wrapped encoder dimension
func (c *CachedEncoder) Dimension() int {
	return c.inner.Dimension()
}

// Encode returns a cached vector or computes and stores it
func (c *CachedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.lookup(text); ok {
		return v, nil
	}
	v, err := c.inner.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(text, v)
	return v, nil
}

// EncodeBatch only sends cache misses to the wrapped encoder
func (c *CachedEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := c.lookup(text); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EncodeBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(vectors), len(missTexts))
	}
	for j, v := range vectors {
		out[missIdx[j]] = v
		c.store(missTexts[j], v)
	}

	c.logger.Debug("embedding cache",
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)))

	return out, nil
}

func (c *CachedEncoder) lookup(text string) ([]float32, bool) {
	data, ok := c.cache.Get(c.key(text))
	if !ok {
		return nil, false
	}
	v, err := vecmath.Decode(data)
	if err != nil || len(v) == 0 {
		return nil, false
	}
	return v, true
}

func (c *CachedEncoder) store(text string, v []float32) {
	if err := c.cache.Set(c.key(text), vecmath.Encode(v), c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
}

func (c *CachedEncoder) key(text string) string {
	return cache.Key(cache.NamespaceEmbedding, c.inner.Name(), text)
}
