package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/youthpolicy/policyrag/internal/util"
)

// Provider is an optional text generation backend
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces one completion for a system instruction and a user message
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Ping checks the provider is configured and reachable
	Ping(ctx context.Context) error
}

// GenerateRequest contains the input for one completion
type GenerateRequest struct {
	// System fixes the assistant persona
	System string

	// User carries the question and the retrieved context
	User string

	// MaxTokens limits the response length; 0 uses the provider config
	MaxTokens int

	Temperature float32
}

// GenerateResponse contains the completion output
type GenerateResponse struct {
	// Text is the trimmed completion
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 1000,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c Config) maxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

func newHTTPClient(config Config, fallback time.Duration) *http.Client {
	return &http.Client{
		Timeout: config.timeout(fallback),
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}
}
