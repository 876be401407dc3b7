package index

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/vecmath"
)

func doc(id string, emb ...float32) model.IndexedDocument {
	return model.IndexedDocument{
		ID:        id,
		Embedding: emb,
		Text:      "text of " + id,
		Metadata:  map[string]string{model.KeyTitle: "title " + id, model.KeyPolicyID: id},
	}
}

// backends runs fn against every backend that works without external services
func backends(t *testing.T, metric vecmath.Metric, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(metric))
	})
	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "policies.db")
		s, err := OpenSQLite(context.Background(), path, "test_policies", metric, zap.NewNop())
		require.NoError(t, err)
		defer func() { _ = s.Close() }()
		fn(t, s)
	})
}

func ids(matches []model.Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Metadata[model.KeyPolicyID]
	}
	return out
}

func TestStore_SearchOrder(t *testing.T) {
	backends(t, vecmath.Cosine, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{
			doc("a", 1, 0),
			doc("b", 0.6, 0.8),
			doc("c", 0, 1),
		}))

		matches, err := s.Search(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, []string{"a", "b"}, ids(matches))
		assert.Equal(t, 1, matches[0].Rank)
		assert.Equal(t, 2, matches[1].Rank)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
		assert.InDelta(t, 0.6, matches[1].Score, 1e-6)
		assert.Equal(t, model.SourceIndex, matches[0].Source)
		assert.Equal(t, "text of a", matches[0].Text)
		assert.Equal(t, "title a", matches[0].Metadata[model.KeyTitle])
	})
}

func TestStore_TiesKeepInsertionOrder(t *testing.T) {
	backends(t, vecmath.Cosine, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("z", 1, 0), doc("y", 2, 0)}))
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("x", 3, 0)}))

		matches, err := s.Search(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "y", "x"}, ids(matches))
	})
}

func TestStore_KLargerThanCollection(t *testing.T) {
	backends(t, vecmath.Cosine, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("a", 1, 0)}))

		matches, err := s.Search(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})
}

func TestStore_L2Scores(t *testing.T) {
	backends(t, vecmath.L2, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("near", 1, 0), doc("far", 3, 0)}))

		matches, err := s.Search(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, []string{"near", "far"}, ids(matches))
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
		assert.InDelta(t, -3.0, matches[1].Score, 1e-6, "scores are not clamped")
	})
}

func TestStore_MissingCollection(t *testing.T) {
	backends(t, vecmath.Cosine, func(t *testing.T, s Store) {
		ctx := context.Background()

		matches, err := s.Search(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.NotNil(t, matches)
		assert.Empty(t, matches)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = s.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_UpsertReplaces(t *testing.T) {
	backends(t, vecmath.Cosine, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("a", 1, 0), doc("b", 0, 1)}))

		replaced := doc("a", 0, 1)
		replaced.Text = "new text"
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{replaced}))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "new text", got.Text)
		assert.Equal(t, []float32{0, 1}, got.Embedding)

		// a kept its original position, so it wins the tie with b
		matches, err := s.Search(ctx, []float32{0, 1}, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(matches))
	})
}

func TestStore_RejectsBadInput(t *testing.T) {
	backends(t, vecmath.Cosine, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("a", 1, 0)}))

		err := s.Upsert(ctx, []model.IndexedDocument{doc("b", 1, 0, 0)})
		assert.ErrorContains(t, err, "dimension")

		err = s.Upsert(ctx, []model.IndexedDocument{doc("", 1, 0)})
		assert.Error(t, err)

		_, err = s.Search(ctx, []float32{1, 0, 0}, 1)
		assert.ErrorContains(t, err, "dimension")

		_, err = s.Search(ctx, []float32{1, 0}, 0)
		assert.Error(t, err)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestStore_CreateAndDeleteCollection(t *testing.T) {
	backends(t, vecmath.Cosine, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateCollection(ctx))
		require.NoError(t, s.CreateCollection(ctx))
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("a", 1, 0)}))

		require.NoError(t, s.DeleteCollection(ctx))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		// a fresh collection accepts a new dimension
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("b", 1, 0, 0)}))
	})
}

func TestStore_RebuildCommit(t *testing.T) {
	backends(t, vecmath.Cosine, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("old", 1, 0)}))

		rb, err := s.BeginRebuild(ctx)
		require.NoError(t, err)
		require.NoError(t, rb.Upsert(ctx, []model.IndexedDocument{doc("n1", 1, 0, 0), doc("n2", 0, 1, 0)}))

		// readers still see the previous collection
		matches, err := s.Search(ctx, []float32{1, 0}, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"old"}, ids(matches))

		require.NoError(t, rb.Commit(ctx))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = s.Get(ctx, "old")
		assert.ErrorIs(t, err, ErrNotFound)

		matches, err = s.Search(ctx, []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"n2"}, ids(matches))

		assert.Error(t, rb.Commit(ctx))
		assert.Error(t, rb.Upsert(ctx, []model.IndexedDocument{doc("n3", 1, 0, 0)}))
		assert.NoError(t, rb.Abort(ctx))

		n, err = s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestStore_RebuildAbort(t *testing.T) {
	backends(t, vecmath.Cosine, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{doc("old", 1, 0)}))

		rb, err := s.BeginRebuild(ctx)
		require.NoError(t, err)
		require.NoError(t, rb.Upsert(ctx, []model.IndexedDocument{doc("n1", 1, 0)}))
		require.NoError(t, rb.Abort(ctx))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.Get(ctx, "old")
		require.NoError(t, err)
		assert.Equal(t, "old", got.ID)
	})
}

func TestSQLite_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "policies.db")

	s, err := OpenSQLite(ctx, path, "c", vecmath.Cosine, zap.NewNop())
	require.NoError(t, err)
	d := doc("a", 0.25, -1.5)
	d.Metadata["empty"] = ""
	require.NoError(t, s.Upsert(ctx, []model.IndexedDocument{d}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, "c", vecmath.Cosine, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, d.Embedding, got.Embedding)
	assert.Equal(t, d.Metadata, got.Metadata)
	assert.Equal(t, d.Text, got.Text)
}

func TestSQLite_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "policies.db")

	a, err := OpenSQLite(ctx, path, "a", vecmath.Cosine, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := OpenSQLite(ctx, path, "b", vecmath.Cosine, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.Upsert(ctx, []model.IndexedDocument{doc("x", 1, 0)}))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	s, err := Open(ctx, model.IndexConfig{Backend: "memory"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, model.IndexConfig{Path: filepath.Join(t.TempDir(), "x.db"), Metric: "l2"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, model.IndexConfig{Backend: "chroma"}, logger)
	assert.ErrorContains(t, err, "unknown index backend")

	_, err = Open(ctx, model.IndexConfig{Backend: "memory", Metric: "ip"}, logger)
	assert.Error(t, err)

	_, err = Open(ctx, model.IndexConfig{Backend: "postgres"}, logger)
	assert.ErrorContains(t, err, "dsn")
}

func TestSearchQuery(t *testing.T) {
	query, args, err := searchQuery("phys", []float32{0.5, -1}, 3, vecmath.Cosine)
	require.NoError(t, err)
	assert.Contains(t, query, "embedding <=> $1::vector AS distance")
	assert.Contains(t, query, "WHERE physical = $2")
	assert.Contains(t, query, "ORDER BY distance ASC, seq ASC")
	assert.Contains(t, query, "LIMIT 3")
	assert.Equal(t, []any{"[0.5,-1]", "phys"}, args)

	query, _, err = searchQuery("phys", []float32{1}, 1, vecmath.L2)
	require.NoError(t, err)
	assert.Contains(t, query, "(embedding <-> $1::vector) ^ 2")
}

func TestUpsertQuery(t *testing.T) {
	query, args, err := upsertQuery("phys", []model.IndexedDocument{doc("a", 1, 2), doc("b", 3, 4)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "INSERT INTO policyrag_documents"))
	assert.Contains(t, query, "$4::jsonb")
	assert.Contains(t, query, "$10::vector")
	assert.Contains(t, query, "ON CONFLICT (physical, id) DO UPDATE")
	require.Len(t, args, 10)
	assert.Equal(t, "[1,2]", args[4])
	assert.Equal(t, "b", args[6])
}

func TestUpsertQuery_RepeatedID(t *testing.T) {
	query, args, err := upsertQuery("phys", []model.IndexedDocument{doc("a", 1, 2), doc("b", 3, 4), doc("a", 5, 6)})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(query, "::vector"))
	require.Len(t, args, 10)
	assert.Equal(t, "a", args[1])
	assert.Equal(t, "[5,6]", args[4])
	assert.Equal(t, "b", args[6])
}

func TestDedupeDocs(t *testing.T) {
	got := dedupeDocs([]model.IndexedDocument{doc("a", 1), doc("b", 2), doc("a", 3), doc("c", 4), doc("b", 5)})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, []float32{3}, got[0].Embedding)
	assert.Equal(t, []float32{5}, got[1].Embedding)
}

func TestVectorLiteral(t *testing.T) {
	v := []float32{0.1, -2, 3.25e-5, 0}
	parsed, err := parseVectorLiteral(vectorLiteral(v))
	require.NoError(t, err)
	assert.Equal(t, v, parsed)

	parsed, err = parseVectorLiteral("[]")
	require.NoError(t, err)
	assert.Empty(t, parsed)

	_, err = parseVectorLiteral("1,2")
	assert.Error(t, err)
	_, err = parseVectorLiteral("[1,x]")
	assert.Error(t, err)
}
