package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/youthpolicy/policyrag/internal/model"
)

// OpenAIEncoder calls the OpenAI embeddings API
type OpenAIEncoder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	dim     int
	timeout time.Duration
}

// NewOpenAIEncoder creates an OpenAI encoder. A positive dimension is sent
// as the requested output size (text-embedding-3 models only).
func NewOpenAIEncoder(cfg model.EmbeddingConfig) (*OpenAIEncoder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for openai embeddings")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	embeddingModel := openai.SmallEmbedding3
	if cfg.Model != "" {
		embeddingModel = openai.EmbeddingModel(cfg.Model)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIEncoder{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   embeddingModel,
		dim:     cfg.Dimension,
		timeout: timeout,
	}, nil
}

// Name returns the encoder identity
func (e *OpenAIEncoder) Name() string {
	return fmt.Sprintf("openai/%s/%d", e.model, e.dim)
}

// Dimension returns the requested vector length
func (e *OpenAIEncoder) Dimension() int {
	return e.dim
}

// Encode embeds a single text
func (e *OpenAIEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EncodeBatch embeds texts in one request
func (e *OpenAIEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	}
	if e.dim > 0 {
		req.Dimensions = e.dim
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings error: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) || out[item.Index] != nil {
			return nil, fmt.Errorf("OpenAI returned invalid embedding index %d", item.Index)
		}
		if e.dim > 0 && len(item.Embedding) != e.dim {
			return nil, fmt.Errorf("OpenAI returned dimension %d, want %d", len(item.Embedding), e.dim)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}
