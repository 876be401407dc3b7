package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/index"
	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/worker"
)

// BatchEncoder embeds many texts, one vector per text in input order
type BatchEncoder interface {
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Report summarizes one build
type Report struct {
	Loaded   int           `json:"loaded"`
	Indexed  int           `json:"indexed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Builder rebuilds the index from a full set of records
type Builder struct {
	encoder   BatchEncoder
	store     index.Store
	chunkSize int
	logger    *zap.Logger
}

// NewBuilder creates a builder that encodes and writes chunkSize documents
// at a time
func NewBuilder(encoder BatchEncoder, store index.Store, chunkSize int, logger *zap.Logger) *Builder {
	if chunkSize <= 0 {
		chunkSize = 64
	}
	return &Builder{
		encoder:   encoder,
		store:     store,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Build replaces the collection with records. Records with empty text or a
// duplicate id are skipped. On any error the staged data is dropped and the
// previous collection stays as it was.
func (b *Builder) Build(ctx context.Context, records []model.PolicyRecord) (*Report, error) {
	start := time.Now()
	report := &Report{Loaded: len(records)}

	docs := b.documents(records, report)

	rebuild, err := b.store.BeginRebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rebuild: %w", err)
	}

	if err := b.write(ctx, rebuild, docs); err != nil {
		if abortErr := rebuild.Abort(context.WithoutCancel(ctx)); abortErr != nil {
			b.logger.Error("abort rebuild", zap.Error(abortErr))
		}
		return nil, err
	}

	if err := rebuild.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit rebuild: %w", err)
	}

	report.Indexed = len(docs)
	report.Duration = time.Since(start)

	b.logger.Info("index rebuilt",
		zap.Int("loaded", report.Loaded),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func (b *Builder) documents(records []model.PolicyRecord, report *Report) []model.IndexedDocument {
	docs := make([]model.IndexedDocument, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		doc := NewDocument(rec)
		switch {
		case doc.Text == "":
			b.logger.Warn("skipping record without text", zap.String("policy_id", rec.PolicyID))
		case seen[doc.ID]:
			b.logger.Warn("skipping duplicate record", zap.String("policy_id", rec.PolicyID))
		default:
			seen[doc.ID] = true
			docs = append(docs, doc)
			continue
		}
		report.Skipped++
	}
	return docs
}

func (b *Builder) write(ctx context.Context, rebuild index.Rebuild, docs []model.IndexedDocument) error {
	chunks := worker.Chunk(docs, b.chunkSize)
	for i, chunk := range chunks {
		texts := make([]string, len(chunk))
		for j, doc := range chunk {
			texts[j] = doc.Text
		}

		vectors, err := b.encoder.EncodeBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("encode chunk %d: %w", i+1, err)
		}
		if len(vectors) != len(chunk) {
			return fmt.Errorf("encode chunk %d: got %d vectors for %d texts", i+1, len(vectors), len(chunk))
		}

		batch := make([]model.IndexedDocument, len(chunk))
		for j, doc := range chunk {
			doc.Embedding = vectors[j]
			batch[j] = doc
		}

		if err := rebuild.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("write chunk %d: %w", i+1, err)
		}

		b.logger.Debug("chunk indexed",
			zap.Int("chunk", i+1),
			zap.Int("chunks", len(chunks)),
			zap.Int("documents", len(batch)))
	}
	return nil
}
