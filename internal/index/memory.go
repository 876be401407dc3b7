package index

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/vecmath"
)

// MemoryStore keeps the collection in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	metric  vecmath.Metric
	current *memCollection // nil when the collection does not exist
}

type memCollection struct {
	docs []model.IndexedDocument
	pos  map[string]int
	dim  int
}

func newMemCollection() *memCollection {
	return &memCollection{pos: make(map[string]int)}
}

// NewMemoryStore creates an empty store without a collection
func NewMemoryStore(metric vecmath.Metric) *MemoryStore {
	return &MemoryStore{metric: metric}
}

func (c *memCollection) upsert(docs []model.IndexedDocument) error {
	dim, err := validateDocs(docs, c.dim)
	if err != nil {
		return err
	}
	c.dim = dim

	for _, doc := range docs {
		stored := model.IndexedDocument{
			ID:        doc.ID,
			Embedding: slices.Clone(doc.Embedding),
			Text:      doc.Text,
			Metadata:  maps.Clone(doc.Metadata),
		}
		if i, ok := c.pos[doc.ID]; ok {
			c.docs[i] = stored
			continue
		}
		c.pos[doc.ID] = len(c.docs)
		c.docs = append(c.docs, stored)
	}
	return nil
}

// Upsert inserts or replaces documents
func (s *MemoryStore) Upsert(_ context.Context, docs []model.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		s.current = newMemCollection()
	}
	return s.current.upsert(docs)
}

// Search scans every document
func (s *MemoryStore) Search(_ context.Context, query []float32, k int) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil || len(s.current.docs) == 0 {
		return []model.Match{}, nil
	}
	if err := checkQuery(query, k, s.current.dim); err != nil {
		return nil, err
	}

	cands := make([]candidate, len(s.current.docs))
	for i, doc := range s.current.docs {
		cands[i] = candidate{doc: doc, distance: s.metric.Distance(query, doc.Embedding)}
	}
	return rank(cands, k), nil
}

// Count returns the number of documents
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return 0, nil
	}
	return len(s.current.docs), nil
}

// Get returns a copy of one document
func (s *MemoryStore) Get(_ context.Context, id string) (*model.IndexedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, ErrNotFound
	}
	i, ok := s.current.pos[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc := s.current.docs[i]
	doc.Embedding = slices.Clone(doc.Embedding)
	doc.Metadata = maps.Clone(doc.Metadata)
	return &doc, nil
}

// CreateCollection creates the collection if missing
func (s *MemoryStore) CreateCollection(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		s.current = newMemCollection()
	}
	return nil
}

// DeleteCollection drops the collection
func (s *MemoryStore) DeleteCollection(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	return nil
}

// BeginRebuild stages a new collection
func (s *MemoryStore) BeginRebuild(_ context.Context) (Rebuild, error) {
	return &memRebuild{store: s, staged: newMemCollection()}, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

type memRebuild struct {
	store  *MemoryStore
	staged *memCollection
}

func (r *memRebuild) Upsert(_ context.Context, docs []model.IndexedDocument) error {
	if r.staged == nil {
		return errRebuildFinished
	}
	return r.staged.upsert(docs)
}

func (r *memRebuild) Commit(_ context.Context) error {
	if r.staged == nil {
		return errRebuildFinished
	}
	r.store.mu.Lock()
	r.store.current = r.staged
	r.store.mu.Unlock()
	r.staged = nil
	return nil
}

func (r *memRebuild) Abort(_ context.Context) error {
	r.staged = nil
	return nil
}
