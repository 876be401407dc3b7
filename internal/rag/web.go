package rag

import (
	"context"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/websearch"
)

// Searcher queries the web
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]websearch.Result, error)
}

// WebEngine answers from web search results instead of the local index.
// Assembly and synthesis are shared with Engine.
type WebEngine struct {
	searcher    Searcher
	assembler   Assembler
	synthesizer *Synthesizer
	recorder    Recorder
	logger      *zap.Logger
}

// NewWebEngine wires a web engine; the assembler's empty sentinel is
// replaced with the web one
func NewWebEngine(searcher Searcher, assembler Assembler, synthesizer *Synthesizer, recorder Recorder, logger *zap.Logger) *WebEngine {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	assembler.Empty = NoWebContext
	return &WebEngine{
		searcher:    searcher,
		assembler:   assembler,
		synthesizer: synthesizer,
		recorder:    recorder,
		logger:      logger,
	}
}

// Answer searches the web for query and answers from up to k results. A
// search failure degrades to the no-match answer.
func (w *WebEngine) Answer(ctx context.Context, query string, k int, useModel bool) (bundle *model.AnswerBundle, err error) {
	query, err = validate(query, k)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("web answer panicked", zap.Any("panic", r), zap.String("query", query))
			bundle, err = failureBundle(query, InternalFailureAnswer), nil
		}
	}()

	results, serr := w.searcher.Search(ctx, query, k)
	if serr != nil {
		w.logger.Warn("web search failed", zap.String("query", query), zap.Error(serr))
		results = nil
	}

	matches := WebMatches(results, k)
	contextText := w.assembler.Assemble(matches)
	result := w.synthesizer.Synthesize(ctx, query, matches, contextText, w.assembler.IsEmpty(contextText), useModel)
	w.recorder.Answered("web", result.UsedModel)

	return &model.AnswerBundle{
		Query:      query,
		Answer:     result.Text,
		Sources:    matches,
		Confidence: Confidence(matches),
		UsedModel:  result.UsedModel,
	}, nil
}

// WebMatches converts search results to unscored matches, at most k
func WebMatches(results []websearch.Result, k int) []model.Match {
	if k > 0 && len(results) > k {
		results = results[:k]
	}

	matches := make([]model.Match, 0, len(results))
	for i, r := range results {
		meta := map[string]string{}
		if r.Title != "" {
			meta[model.KeyTitle] = r.Title
		}
		if r.Link != "" {
			meta[model.KeyPageURL] = r.Link
		}
		if r.Source != "" {
			meta[model.KeySource] = r.Source
		}
		matches = append(matches, model.Match{
			Rank:     i + 1,
			Metadata: meta,
			Text:     r.Snippet,
			Source:   model.SourceWeb,
		})
	}
	return matches
}
