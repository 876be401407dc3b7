package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/youthpolicy/policyrag/internal/model"
)

// OllamaEncoder calls a local Ollama server's embeddings endpoint
type OllamaEncoder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	dim        atomic.Int64
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaEncoder creates an Ollama encoder. The dimension is taken from
// config when set, otherwise learned from the first response.
func NewOllamaEncoder(cfg model.EmbeddingConfig) (*OllamaEncoder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama embedding model must be specified (e.g., nomic-embed-text)")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	e := &OllamaEncoder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
	e.dim.Store(int64(cfg.Dimension))
	return e, nil
}

// Name returns the encoder identity
func (e *OllamaEncoder) Name() string {
	return "ollama/" + e.model
}

// Dimension returns the vector length, 0 until known
func (e *OllamaEncoder) Dimension() int {
	return int(e.dim.Load())
}

// Encode embeds one text
func (e *OllamaEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var parsed ollamaEmbeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}

	if !e.dim.CompareAndSwap(0, int64(len(parsed.Embedding))) {
		if want := e.Dimension(); want != len(parsed.Embedding) {
			return nil, fmt.Errorf("ollama returned dimension %d, want %d", len(parsed.Embedding), want)
		}
	}

	v := make([]float32, len(parsed.Embedding))
	for i, x := range parsed.Embedding {
		v[i] = float32(x)
	}
	return v, nil
}

// EncodeBatch embeds texts one request at a time; BatchEncoder adds parallelism
func (e *OllamaEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
