package model

// Config holds all policyrag settings
type Config struct {
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	RAG       RAGConfig       `yaml:"rag" mapstructure:"rag"`
	Web       WebConfig       `yaml:"web" mapstructure:"web"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// IndexConfig selects and locates the vector storage
type IndexConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend"` // sqlite, postgres, memory
	Path       string `yaml:"path" mapstructure:"path"`       // sqlite file
	DSN        string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	Metric     string `yaml:"metric" mapstructure:"metric"` // cosine, l2
}

// EmbeddingConfig configures the document encoder
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // hash, openai, ollama
	Model     string `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Workers   int    `yaml:"workers" mapstructure:"workers"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	CacheDir  string `yaml:"cache_dir,omitempty" mapstructure:"cache_dir"`
	CacheTTL  int    `yaml:"cache_ttl" mapstructure:"cache_ttl"` // minutes
}

// LLMConfig configures the optional generation backend
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model     string `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds, one attempt
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RAGConfig holds retrieval defaults
type RAGConfig struct {
	DefaultK         int `yaml:"default_k" mapstructure:"default_k"`
	MaxCharsPerMatch int `yaml:"max_chars_per_match" mapstructure:"max_chars_per_match"`
}

// WebConfig configures the web-evidence variant
type WebConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	QuerySuffix string  `yaml:"query_suffix" mapstructure:"query_suffix"`
	MaxResults  int     `yaml:"max_results" mapstructure:"max_results"`
	CacheTTL    int     `yaml:"cache_ttl" mapstructure:"cache_ttl"` // minutes
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

// HTTPConfig holds outbound HTTP settings shared by crawler and web search
type HTTPConfig struct {
	Timeout      int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CrawlConfig configures detail-page ingestion
type CrawlConfig struct {
	ViewURL       string   `yaml:"view_url" mapstructure:"view_url"`
	Tags          []string `yaml:"tags" mapstructure:"tags"`
	Concurrency   int      `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit     float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RespectRobots bool     `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string `yaml:"addr" mapstructure:"addr"`
	ReadTimeout    int    `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout   int    `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds
	RequestTimeout int    `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Backend:    "sqlite",
			Path:       "./vectorstore/policies.db",
			Collection: "seoul_youth_policies",
			Metric:     "cosine",
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Dimension: 512,
			BatchSize: 64,
			Workers:   4,
			Timeout:   30,
			CacheTTL:  24 * 60,
		},
		LLM: LLMConfig{
			Provider:  "", // Disabled by default
			Timeout:   30,
			MaxTokens: 1000,
		},
		RAG: RAGConfig{
			DefaultK:         3,
			MaxCharsPerMatch: 300,
		},
		Web: WebConfig{
			Enabled:     false,
			BaseURL:     "https://html.duckduckgo.com/html/",
			QuerySuffix: " 서울 청년 정책",
			MaxResults:  5,
			CacheTTL:    30,
			RateLimit:   1,
		},
		HTTP: HTTPConfig{
			Timeout:      30,
			UserAgent:    "policyrag/0.1 (+https://github.com/youthpolicy/policyrag)",
			MaxBodyBytes: 2_000_000,
		},
		Crawl: CrawlConfig{
			ViewURL:       "https://youth.seoul.go.kr/infoData/plcyInfo/view.do",
			Tags:          []string{"일자리"},
			Concurrency:   4,
			RateLimit:     2,
			RespectRobots: true,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    30,
			WriteTimeout:   60,
			RequestTimeout: 60,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
