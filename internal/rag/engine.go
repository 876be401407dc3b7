// Package rag answers questions about youth policies: it retrieves matches,
// assembles them into a context block and synthesizes an answer, through a
// language model when one is configured and healthy, else from a template.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/model"
)

var (
	// ErrInvalidRequest is an empty query or a non-positive k
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotReady means the index is missing or empty
	ErrNotReady = errors.New("index not ready")
	// ErrRetrieval wraps index and search failures
	ErrRetrieval = errors.New("retrieval failed")
	// ErrSynthesis wraps model path failures
	ErrSynthesis = errors.New("synthesis failed")
)

// Answers for failures the caller never sees as errors
const (
	RetrievalFailureAnswer = "검색 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	InternalFailureAnswer  = "답변 생성 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
)

// Encoder embeds the query
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// Index is the read side of the vector index
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]model.Match, error)
	Count(ctx context.Context) (int, error)
}

// Recorder observes engine activity
type Recorder interface {
	Answered(engine string, usedModel bool)
	Searched(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Answered(string, bool) {}
func (nopRecorder) Searched(time.Duration) {}

// Engine answers questions over the local index. It holds no per-query
// state and is safe for concurrent use.
type Engine struct {
	encoder     Encoder
	index       Index
	assembler   Assembler
	synthesizer *Synthesizer
	recorder    Recorder
	logger      *zap.Logger
}

// NewEngine wires an engine; recorder may be nil
func NewEngine(encoder Encoder, index Index, assembler Assembler, synthesizer *Synthesizer, recorder Recorder, logger *zap.Logger) *Engine {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Engine{
		encoder:     encoder,
		index:       index,
		assembler:   assembler,
		synthesizer: synthesizer,
		recorder:    recorder,
		logger:      logger,
	}
}

func validate(query string, k int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query must not be empty", ErrInvalidRequest)
	}
	if k < 1 {
		return "", fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidRequest, k)
	}
	return query, nil
}

// Ready returns the number of indexed documents, or ErrNotReady
func (e *Engine) Ready(ctx context.Context) (int, error) {
	n, err := e.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: collection is empty", ErrNotReady)
	}
	return n, nil
}

// Search returns the k nearest policies for query
func (e *Engine) Search(ctx context.Context, query string, k int) ([]model.Match, error) {
	query, err := validate(query, k)
	if err != nil {
		return nil, err
	}
	if _, err := e.Ready(ctx); err != nil {
		return nil, err
	}
	return e.retrieve(ctx, query, k)
}

func (e *Engine) retrieve(ctx context.Context, query string, k int) ([]model.Match, error) {
	start := time.Now()
	defer func() { e.recorder.Searched(time.Since(start)) }()

	vector, err := e.encoder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %w", ErrRetrieval, err)
	}
	matches, err := e.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	return matches, nil
}

// Answer retrieves up to k policies and answers query from them. Only
// ErrInvalidRequest and ErrNotReady are returned; every other failure
// degrades to a best-effort answer.
func (e *Engine) Answer(ctx context.Context, query string, k int, useModel bool) (bundle *model.AnswerBundle, err error) {
	query, err = validate(query, k)
	if err != nil {
		return nil, err
	}
	if _, err := e.Ready(ctx); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("answer panicked", zap.Any("panic", r), zap.String("query", query))
			bundle, err = failureBundle(query, InternalFailureAnswer), nil
		}
	}()

	matches, rerr := e.retrieve(ctx, query, k)
	if rerr != nil {
		e.logger.Warn("retrieval failed", zap.String("query", query), zap.Error(rerr))
		return failureBundle(query, RetrievalFailureAnswer), nil
	}
	if matches == nil {
		matches = []model.Match{}
	}

	contextText := e.assembler.Assemble(matches)
	result := e.synthesizer.Synthesize(ctx, query, matches, contextText, e.assembler.IsEmpty(contextText), useModel)
	e.recorder.Answered("index", result.UsedModel)

	return &model.AnswerBundle{
		Query:      query,
		Answer:     result.Text,
		Sources:    matches,
		Confidence: Confidence(matches),
		UsedModel:  result.UsedModel,
	}, nil
}

func failureBundle(query, answer string) *model.AnswerBundle {
	return &model.AnswerBundle{
		Query:      query,
		Answer:     answer,
		Sources:    []model.Match{},
		Confidence: LowConfidence,
	}
}
