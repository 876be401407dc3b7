package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1:8b", req.Model)
		assert.Equal(t, "persona", req.System)
		assert.Equal(t, "question", req.Prompt)
		assert.False(t, req.Stream)
		assert.Equal(t, 1000, req.Options.NumPredict)

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3.1:8b",
			Response:        " answer ",
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       5,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{Model: "llama3.1:8b", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.Generate(context.Background(), GenerateRequest{System: "persona", User: "question", Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Text)
	assert.Equal(t, 15, resp.TokensUsed)
}

func TestOllamaProvider_Generate_EstimatesTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model": "m", "response": "abcd", "done": true}`))
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{Model: "m", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.Generate(context.Background(), GenerateRequest{User: "abcdefgh"})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TokensUsed)
}

func TestOllamaProvider_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model 'm' not found"}`))
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{Model: "m", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.Generate(context.Background(), GenerateRequest{User: "q"})
	assert.ErrorContains(t, err, "model 'm' not found")
}

func TestOllamaProvider_Generate_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{malformed`))
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{Model: "m", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.Generate(context.Background(), GenerateRequest{User: "q"})
	assert.Error(t, err)
}

func TestOllamaProvider_Ping(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{Model: "m", BaseURL: server.URL})
	require.NoError(t, err)
	assert.NoError(t, provider.Ping(context.Background()))

	status.Store(http.StatusBadGateway)
	assert.ErrorContains(t, provider.Ping(context.Background()), "HTTP 502")
}

func TestOllamaProvider_RequiresModel(t *testing.T) {
	_, err := NewOllamaProvider(Config{})
	assert.ErrorContains(t, err, "model must be specified")
}
