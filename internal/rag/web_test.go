package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/websearch"
)

type fakeSearcher struct {
	results []websearch.Result
	err     error
	query   string
	limit   int
}

func (f *fakeSearcher) Search(_ context.Context, query string, limit int) ([]websearch.Result, error) {
	f.query, f.limit = query, limit
	return f.results, f.err
}

func newTestWebEngine(s Searcher, rec Recorder) *WebEngine {
	synth := NewSynthesizer(nil, WebPrompt, time.Second, zap.NewNop())
	return NewWebEngine(s, NewAssembler(DefaultMaxChars), synth, rec, zap.NewNop())
}

func TestWebEngine_Answer(t *testing.T) {
	s := &fakeSearcher{results: []websearch.Result{
		{Title: "2024 청년월세 지원", Link: "https://news.example.kr/a", Snippet: "월 20만원", Source: "news.example.kr"},
		{Title: "청년수당 신청", Link: "https://news.example.kr/b", Snippet: "6개월간", Source: "news.example.kr"},
		{Title: "extra", Link: "https://news.example.kr/c"},
	}}
	rec := &countingRecorder{}
	w := newTestWebEngine(s, rec)

	bundle, err := w.Answer(context.Background(), " 월세 ", 2, false)
	require.NoError(t, err)

	assert.Equal(t, "월세", s.query)
	assert.Equal(t, 2, s.limit)
	require.Len(t, bundle.Sources, 2)
	assert.Equal(t, model.SourceWeb, bundle.Sources[0].Source)
	assert.Zero(t, bundle.Sources[0].Score)
	assert.Equal(t, "https://news.example.kr/a", bundle.Sources[0].Get(model.KeyPageURL))

	assert.Contains(t, bundle.Answer, "'월세'에 대한 최신 웹 검색 결과입니다:")
	assert.Contains(t, bundle.Answer, "   링크: https://news.example.kr/a")
	assert.Contains(t, bundle.Answer, WebPrompt.Footer)
	assert.Equal(t, HighConfidence, bundle.Confidence)
	assert.Equal(t, 1, rec.answers["web/template"])
}

func TestWebEngine_SearchFailure(t *testing.T) {
	w := newTestWebEngine(&fakeSearcher{err: errors.New("connection reset")}, nil)

	bundle, err := w.Answer(context.Background(), "월세", 3, true)
	require.NoError(t, err)
	assert.Equal(t, WebPrompt.NoMatch, bundle.Answer)
	assert.Empty(t, bundle.Sources)
	assert.Equal(t, LowConfidence, bundle.Confidence)
}

func TestWebEngine_InvalidRequest(t *testing.T) {
	s := &fakeSearcher{}
	w := newTestWebEngine(s, nil)

	_, err := w.Answer(context.Background(), "", 3, false)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = w.Answer(context.Background(), "월세", 0, false)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, s.query)
}

func TestWebEngine_UsesWebSentinel(t *testing.T) {
	gen := &fakeGenerator{text: "unused"}
	synth := NewSynthesizer(gen, WebPrompt, time.Second, zap.NewNop())
	w := NewWebEngine(&fakeSearcher{}, NewAssembler(0), synth, nil, zap.NewNop())

	bundle, err := w.Answer(context.Background(), "월세", 3, true)
	require.NoError(t, err)
	assert.False(t, bundle.UsedModel)
	assert.Zero(t, gen.calls)
	assert.Equal(t, NoWebContext, w.assembler.Assemble(nil))
}

func TestWebMatches(t *testing.T) {
	got := WebMatches([]websearch.Result{{Title: "a", Snippet: "s"}, {Link: "https://x"}}, 5)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Rank)
	assert.Equal(t, "제목 없음", got[1].Title())
	assert.Equal(t, "s", got[0].Text)

	assert.NotNil(t, WebMatches(nil, 3))
}
