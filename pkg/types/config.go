package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "arxiv-digest/0.1"). Per prd001-fetch R5.1.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig holds settings for the fetch stage.
// Per prd001-fetch R3.1-R3.5.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Categories lists the categories fetched by default (e.g. "cs.AI").
	Categories []string `json:"categories" yaml:"categories"`

	// RequestsPerSecond caps the request rate against the metadata API
	// (default 0.33, roughly one request every three seconds).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// PageSize is the number of entries requested per API page (default 100).
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxPerCategory caps the number of papers fetched for one category
	// and day (default 50).
	MaxPerCategory int `json:"max_per_category" yaml:"max_per_category"`

	// MaxRetries is the number of retry attempts per page request (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Concurrency bounds how many categories resolve in parallel (default 2).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// CacheBackend selects the fast-cache implementation.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
)

// CacheConfig holds settings for the volatile cache tier.
// Per prd002-cache R1.1-R1.4.
type CacheConfig struct {
	// Backend selects the cache implementation: memory or redis.
	Backend CacheBackend `json:"backend" yaml:"backend"`

	// TTL is the lifetime of a cached day of papers (default 24h).
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// Capacity bounds the in-memory cache entry count (default 256).
	Capacity int `json:"capacity" yaml:"capacity"`

	// Addr is the redis address when Backend is redis (e.g. "localhost:6379").
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// Password is the redis password, usually empty for local instances.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// DB is the redis database number.
	DB int `json:"db" yaml:"db"`
}

// StoreConfig holds settings for the durable store.
// Per prd003-store R1.1.
type StoreConfig struct {
	// Path is the SQLite database file (e.g. "data/papers.db").
	Path string `json:"path" yaml:"path"`
}

// AnalyzeConfig holds settings for the analysis stage.
// Per prd004-analysis R2.1-R2.6, R5.1.
type AnalyzeConfig struct {
	HTTPConfig `yaml:",inline"`

	// Model is the model identifier sent to the completion endpoint
	// (default "deepseek/deepseek-chat").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the completion endpoint. Left empty in
	// config files; filled from the OPENROUTER_API_KEY environment variable.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Referer and AppName populate the HTTP-Referer and X-Title headers
	// the endpoint uses for attribution.
	Referer string `json:"referer,omitempty" yaml:"referer,omitempty"`
	AppName string `json:"app_name,omitempty" yaml:"app_name,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BatchSize is the number of papers analyzed per API call (default 5).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// BatchDelay is the pause between consecutive batch dispatches (default 2s).
	BatchDelay time.Duration `json:"batch_delay" yaml:"batch_delay"`

	// ContinueOnError keeps the run going past a failed batch instead of
	// aborting (default true).
	ContinueOnError bool `json:"continue_on_error" yaml:"continue_on_error"`

	// Generation parameters forwarded to the endpoint.
	Temperature      float64  `json:"temperature" yaml:"temperature"`
	TopP             float64  `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK             int      `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty" yaml:"stop,omitempty"`
	MaxTokens        int      `json:"max_tokens" yaml:"max_tokens"`

	// OutputDir is the directory for analysis run reports (e.g. "output/").
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// SummaryConfig holds settings for fetch summaries.
// Per prd005-summary R1.3.
type SummaryConfig struct {
	// LatestPerCategory caps the per-category listing of most recent
	// papers (default 5).
	LatestPerCategory int `json:"latest_per_category" yaml:"latest_per_category"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Fetch   FetchConfig   `json:"fetch" yaml:"fetch"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Analyze AnalyzeConfig `json:"analyze" yaml:"analyze"`
	Summary SummaryConfig `json:"summary" yaml:"summary"`
}
