package embed

import (
	"context"
	"fmt"

	"github.com/youthpolicy/policyrag/internal/worker"
)

// DefaultBatchSize bounds the number of texts per provider call
const DefaultBatchSize = 64

// BatchEncoder splits large inputs into chunks and encodes the chunks in
// parallel on a worker pool. Output order always matches input order.
type BatchEncoder struct {
	inner     Encoder
	batchSize int
	workers   int
}

// NewBatchEncoder wraps inner. Non-positive sizes fall back to defaults.
func NewBatchEncoder(inner Encoder, batchSize, workers int) *BatchEncoder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if workers <= 0 {
		workers = 1
	}
	return &BatchEncoder{inner: inner, batchSize: batchSize, workers: workers}
}

// Name returns the wrapped encoder identity
func (b *BatchEncoder) Name() string {
	return b.inner.Name()
}

// Dimension returns the wrapped encoder dimension
func (b *BatchEncoder) Dimension() int {
	return b.inner.Dimension()
}

// Encode delegates to the wrapped encoder
func (b *BatchEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	return b.inner.Encode(ctx, text)
}

// EncodeBatch encodes texts chunk by chunk. The first failing chunk aborts
// the whole batch.
func (b *BatchEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= b.batchSize {
		return b.inner.EncodeBatch(ctx, texts)
	}

	chunks := worker.Chunk(texts, b.batchSize)
	jobs := make([]worker.Job[[][]float32], len(chunks))
	for i, chunk := range chunks {
		jobs[i] = func(ctx context.Context) ([][]float32, error) {
			return b.inner.EncodeBatch(ctx, chunk)
		}
	}

	out := make([][]float32, 0, len(texts))
	for _, r := range worker.Run(ctx, b.workers, jobs) {
		if r.Err != nil {
			return nil, fmt.Errorf("encode chunk %d: %w", r.Index, r.Err)
		}
		if len(r.Value) != len(chunks[r.Index]) {
			return nil, fmt.Errorf("encode chunk %d: got %d vectors for %d texts", r.Index, len(r.Value), len(chunks[r.Index]))
		}
		out = append(out, r.Value...)
	}
	if len(out) != len(texts) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("encode batch: %w", err)
		}
		return nil, fmt.Errorf("encode batch: got %d vectors for %d texts", len(out), len(texts))
	}
	return out, nil
}
