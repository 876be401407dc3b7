package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/embed"
	"github.com/youthpolicy/policyrag/internal/index"
	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/vecmath"
)

// failingEncoder fails on the failAt-th call (1-based)
type failingEncoder struct {
	inner  BatchEncoder
	failAt int
	calls  int
}

func (f *failingEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls == f.failAt {
		return nil, errors.New("embedding service unavailable")
	}
	return f.inner.EncodeBatch(ctx, texts)
}

func policies(n int, prefix string) []model.PolicyRecord {
	records := make([]model.PolicyRecord, n)
	for i := range records {
		records[i] = model.PolicyRecord{
			PolicyID: fmt.Sprintf("%s%d", prefix, i),
			Title:    fmt.Sprintf("%s 청년 정책 %d", prefix, i),
			Content:  "지원 내용",
		}
	}
	return records
}

func TestBuilder_Build(t *testing.T) {
	ctx := context.Background()
	store := index.NewMemoryStore(vecmath.Cosine)
	b := NewBuilder(embed.NewHashEncoder(64), store, 2, zap.NewNop())

	records := policies(5, "A")
	records = append(records, records[0], model.PolicyRecord{PolicyID: "empty"})

	report, err := b.Build(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Loaded)
	assert.Equal(t, 5, report.Indexed)
	assert.Equal(t, 2, report.Skipped)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	doc, err := store.Get(ctx, "A3")
	require.NoError(t, err)
	assert.Equal(t, "제목: A 청년 정책 3\n지원 내용: 지원 내용", doc.Text)
	assert.Equal(t, "A3", doc.Metadata[model.KeyPolicyID])
	assert.Len(t, doc.Embedding, 64)
}

func TestBuilder_ReplacesCollection(t *testing.T) {
	ctx := context.Background()
	store := index.NewMemoryStore(vecmath.Cosine)
	b := NewBuilder(embed.NewHashEncoder(32), store, 10, zap.NewNop())

	_, err := b.Build(ctx, policies(4, "old"))
	require.NoError(t, err)
	_, err = b.Build(ctx, policies(2, "new"))
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.Get(ctx, "old0")
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestBuilder_FailureKeepsPreviousCollection(t *testing.T) {
	ctx := context.Background()
	store := index.NewMemoryStore(vecmath.Cosine)
	hash := embed.NewHashEncoder(32)

	_, err := NewBuilder(hash, store, 2, zap.NewNop()).Build(ctx, policies(3, "old"))
	require.NoError(t, err)

	enc := &failingEncoder{inner: hash, failAt: 2}
	_, err = NewBuilder(enc, store, 2, zap.NewNop()).Build(ctx, policies(6, "new"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode chunk 2")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = store.Get(ctx, "old1")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "new0")
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestBuilder_SQLiteRebuild(t *testing.T) {
	ctx := context.Background()
	store, err := index.OpenSQLite(ctx, t.TempDir()+"/policies.db", "policies", vecmath.Cosine, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	hash := embed.NewHashEncoder(32)
	_, err = NewBuilder(hash, store, 2, zap.NewNop()).Build(ctx, policies(3, "old"))
	require.NoError(t, err)

	_, err = NewBuilder(&failingEncoder{inner: hash, failAt: 3}, store, 2, zap.NewNop()).Build(ctx, policies(6, "new"))
	require.Error(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
