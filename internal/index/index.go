// Package index stores embedded policy documents and answers nearest-neighbor
// queries against them.
//
// Every backend serves one logical collection. Search results are ordered by
// ascending distance; equal distances keep insertion order. Scores are
// 1 - distance and are not clamped, so under l2 they can be negative.
//
// Reads may run concurrently. Writes (Upsert and rebuilds) must come from a
// single writer that does not overlap with serving traffic.
package index

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/vecmath"
)

// ErrNotFound is returned by Get for unknown ids or a missing collection
var ErrNotFound = errors.New("document not found")

var errRebuildFinished = errors.New("rebuild already committed or aborted")

// Store is a vector index over one logical collection
type Store interface {
	// Upsert inserts or fully replaces documents by id. The collection is
	// created if missing.
	Upsert(ctx context.Context, docs []model.IndexedDocument) error

	// Search returns at most k matches, nearest first. A missing or empty
	// collection yields an empty slice and no error.
	Search(ctx context.Context, query []float32, k int) ([]model.Match, error)

	// Count returns the number of stored documents, 0 if the collection is missing
	Count(ctx context.Context) (int, error)

	// Get returns one stored document
	Get(ctx context.Context, id string) (*model.IndexedDocument, error)

	CreateCollection(ctx context.Context) error
	DeleteCollection(ctx context.Context) error

	// BeginRebuild stages a replacement collection. Until Commit the current
	// collection stays fully readable and unchanged.
	BeginRebuild(ctx context.Context) (Rebuild, error)

	Close() error
}

// Rebuild is a staged full replacement of the collection
type Rebuild interface {
	Upsert(ctx context.Context, docs []model.IndexedDocument) error

	// Commit atomically makes the staged documents the collection and drops
	// the previous contents
	Commit(ctx context.Context) error

	// Abort discards the staged documents. It is a no-op after Commit.
	Abort(ctx context.Context) error
}

// Open creates the configured backend
func Open(ctx context.Context, cfg model.IndexConfig, logger *zap.Logger) (Store, error) {
	metric, err := vecmath.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	collection := cfg.Collection
	if collection == "" {
		collection = model.DefaultConfig().Index.Collection
	}

	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return NewMemoryStore(metric), nil
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path, collection, metric, logger)
	case "postgres", "pgvector":
		return OpenPostgres(ctx, cfg.DSN, collection, metric, logger)
	default:
		return nil, fmt.Errorf("unknown index backend: %s (supported: sqlite, postgres, memory)", cfg.Backend)
	}
}

// candidate is a document with its distance to the query
type candidate struct {
	doc      model.IndexedDocument
	distance float64
}

// rank sorts candidates by distance, keeping input order on ties, and turns
// the first k into matches
func rank(cands []candidate, k int) []model.Match {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].distance < cands[j].distance
	})
	if len(cands) > k {
		cands = cands[:k]
	}

	matches := make([]model.Match, len(cands))
	for i, c := range cands {
		matches[i] = model.Match{
			Rank:     i + 1,
			Score:    1 - c.distance,
			Metadata: maps.Clone(c.doc.Metadata),
			Text:     c.doc.Text,
			Source:   model.SourceIndex,
		}
		if matches[i].Metadata == nil {
			matches[i].Metadata = map[string]string{}
		}
	}
	return matches
}

// validateDocs checks ids are present and all embeddings share a dimension.
// dim 0 means the collection has none yet; the batch's dimension is returned.
func validateDocs(docs []model.IndexedDocument, dim int) (int, error) {
	for _, doc := range docs {
		if doc.ID == "" {
			return dim, fmt.Errorf("document without id")
		}
		if len(doc.Embedding) == 0 {
			return dim, fmt.Errorf("document %s has no embedding", doc.ID)
		}
		if dim == 0 {
			dim = len(doc.Embedding)
		}
		if len(doc.Embedding) != dim {
			return dim, fmt.Errorf("document %s has dimension %d, collection uses %d", doc.ID, len(doc.Embedding), dim)
		}
	}
	return dim, nil
}

// dedupeDocs keeps the last document per id at the position where the id
// first appeared, so one batch behaves like upserting its documents in turn
func dedupeDocs(docs []model.IndexedDocument) []model.IndexedDocument {
	pos := make(map[string]int, len(docs))
	out := make([]model.IndexedDocument, 0, len(docs))
	for _, doc := range docs {
		if i, ok := pos[doc.ID]; ok {
			out[i] = doc
			continue
		}
		pos[doc.ID] = len(out)
		out = append(out, doc)
	}
	return out
}

func checkQuery(query []float32, k, dim int) error {
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d", k)
	}
	if dim != 0 && len(query) != dim {
		return fmt.Errorf("query has dimension %d, collection uses %d", len(query), dim)
	}
	return nil
}
