package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Vector backends.
const (
	BackendRedis    = "redis"
	BackendPGVector = "pgvector"
	BackendMemory   = "memory"
)

// Config holds the talkdb service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Vector     VectorConfig     `yaml:"vector"`
	LLM        LLMConfig        `yaml:"llm"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Memory     MemoryConfig     `yaml:"memory"`
	KG         KGConfig         `yaml:"kg"`
	SQL        SQLConfig        `yaml:"sql"`
	Agent      AgentConfig      `yaml:"agent"`
	Export     ExportConfig     `yaml:"export"`
	Connectors ConnectorsConfig `yaml:"connectors"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
// A key is accepted either as a Bearer token or in the X-API-Key header.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int     `yaml:"port"`
	ReadTimeoutSec  int     `yaml:"read_timeout_sec"`
	WriteTimeoutSec int     `yaml:"write_timeout_sec"`
	ShutdownSec     int     `yaml:"shutdown_timeout_sec"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps"` // 0 = disabled
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// VectorConfig selects and configures the chunk store.
type VectorConfig struct {
	Backend          string   `yaml:"backend"` // redis, pgvector, memory
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	PostgresDSN      string   `yaml:"postgres_dsn"`
	CollectionPrefix string   `yaml:"collection_prefix"`
	Dimensions       int      `yaml:"dimensions"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds the OpenAI-compatible provider settings.
type LLMConfig struct {
	APIKey           string  `yaml:"api_key"`
	BaseURL          string  `yaml:"base_url"`
	Provider         string  `yaml:"provider"`
	ChatModel        string  `yaml:"chat_model"`
	EmbedModel       string  `yaml:"embed_model"`
	Temperature      float32 `yaml:"temperature"`
	RequestTimeout   int     `yaml:"request_timeout_sec"`
	QueryInstruction string  `yaml:"query_instruction"`
}

// RetrievalConfig holds fusion and synthesis settings.
type RetrievalConfig struct {
	MaxTopK             int `yaml:"max_top_k"`
	RetrieverTimeoutMS  int `yaml:"retriever_timeout_ms"`
	CacheTTLSec         int `yaml:"cache_ttl_sec"` // 0 = disabled
	ContextTokenBudget  int `yaml:"context_token_budget"`
	ChunkTokenSize      int `yaml:"chunk_token_size"`
	EmbeddingBatchLimit int `yaml:"embedding_batch_limit"`
}

// MemoryConfig holds session memory settings.
type MemoryConfig struct {
	TokenLimit     int `yaml:"token_limit"`
	SessionIdleTTL int `yaml:"session_idle_ttl_sec"` // 0 = never expire
	MaxSessions    int `yaml:"max_sessions"`         // 0 = unbounded
}

// KGConfig holds knowledge graph settings.
type KGConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URI            string `yaml:"uri"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	PingTimeoutSec int    `yaml:"ping_timeout_sec"`
}

// SQLConfig holds text-to-SQL settings.
type SQLConfig struct {
	MaxRows         int `yaml:"max_rows"`
	QueryTimeoutSec int `yaml:"query_timeout_sec"`
}

// AgentConfig holds chat agent settings.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// ExportConfig holds export/plot output settings.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// ConnectorsConfig holds ingestion connector settings.
type ConnectorsConfig struct {
	HTTPTimeoutSec int    `yaml:"http_timeout_sec"`
	GraphBaseURL   string `yaml:"graph_base_url"`
}

// RetrieverTimeout returns the per-retriever deadline.
func (c RetrievalConfig) RetrieverTimeout() time.Duration {
	return time.Duration(c.RetrieverTimeoutMS) * time.Millisecond
}

// CacheTTL returns the retrieval cache TTL.
func (c RetrievalConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	c.HTTP.applyDefaults()
	c.Vector.applyDefaults()
	c.LLM.applyDefaults()
	c.Retrieval.applyDefaults()

	if c.Memory.TokenLimit <= 0 {
		c.Memory.TokenLimit = 4000
	}
	if c.Memory.SessionIdleTTL < 0 {
		c.Memory.SessionIdleTTL = 0
	}
	if c.Memory.MaxSessions < 0 {
		c.Memory.MaxSessions = 0
	}
	if c.KG.Database == "" {
		c.KG.Database = "neo4j"
	}
	if c.KG.PingTimeoutSec <= 0 {
		c.KG.PingTimeoutSec = 2
	}
	if c.SQL.MaxRows <= 0 {
		c.SQL.MaxRows = 200
	}
	if c.SQL.QueryTimeoutSec <= 0 {
		c.SQL.QueryTimeoutSec = 30
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 6
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "/tmp/exports"
	}
	if c.Connectors.HTTPTimeoutSec <= 0 {
		c.Connectors.HTTPTimeoutSec = 30
	}
	if c.Connectors.GraphBaseURL == "" {
		c.Connectors.GraphBaseURL = "https://graph.microsoft.com/v1.0"
	}
}

func (h *HTTPConfig) applyDefaults() {
	if h.ReadTimeoutSec <= 0 {
		h.ReadTimeoutSec = 10
	}
	// Chat and streaming responses outlive a plain JSON API call.
	if h.WriteTimeoutSec <= 0 {
		h.WriteTimeoutSec = 120
	}
	if h.ShutdownSec <= 0 {
		h.ShutdownSec = 10
	}
	if h.RateLimitRPS > 0 && h.RateLimitBurst <= 0 {
		h.RateLimitBurst = int(h.RateLimitRPS) * 2
		if h.RateLimitBurst < 1 {
			h.RateLimitBurst = 1
		}
	}
}

func (v *VectorConfig) applyDefaults() {
	if v.Backend == "" {
		v.Backend = BackendRedis
	}
	if v.CollectionPrefix == "" {
		v.CollectionPrefix = "ttdb_"
	}
	if v.Dimensions <= 0 {
		v.Dimensions = 1536
	}
	if v.HNSWM <= 0 {
		v.HNSWM = 16
	}
	if v.HNSWEFConstruct <= 0 {
		v.HNSWEFConstruct = 200
	}
	if v.ReadinessTimeout <= 0 {
		v.ReadinessTimeout = 10
	}
}

func (l *LLMConfig) applyDefaults() {
	if l.Provider == "" {
		l.Provider = "openai"
	}
	if l.ChatModel == "" {
		l.ChatModel = "gpt-4o-mini"
	}
	if l.EmbedModel == "" {
		l.EmbedModel = "text-embedding-3-small"
	}
	if l.RequestTimeout <= 0 {
		l.RequestTimeout = 60
	}
}

func (r *RetrievalConfig) applyDefaults() {
	if r.MaxTopK <= 0 {
		r.MaxTopK = 10
	}
	if r.RetrieverTimeoutMS <= 0 {
		r.RetrieverTimeoutMS = 5000
	}
	if r.CacheTTLSec < 0 {
		r.CacheTTLSec = 0
	}
	if r.ContextTokenBudget <= 0 {
		r.ContextTokenBudget = 3000
	}
	if r.ChunkTokenSize <= 0 {
		r.ChunkTokenSize = 512
	}
	if r.EmbeddingBatchLimit <= 0 {
		r.EmbeddingBatchLimit = 64
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Vector.Backend {
	case BackendRedis:
		if len(c.Vector.Addrs) == 0 {
			return fmt.Errorf("vector.addrs is required for backend %q", c.Vector.Backend)
		}
	case BackendPGVector:
		if c.Vector.PostgresDSN == "" {
			return fmt.Errorf("vector.postgres_dsn is required for backend %q", c.Vector.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("vector.backend must be redis, pgvector or memory, got %q", c.Vector.Backend)
	}
	if c.KG.Enabled && c.KG.URI == "" {
		return fmt.Errorf("kg.uri is required when kg.enabled is true")
	}
	if c.Retrieval.ContextTokenBudget < c.Retrieval.ChunkTokenSize {
		return fmt.Errorf(
			"retrieval.context_token_budget (%d) must be at least retrieval.chunk_token_size (%d)",
			c.Retrieval.ContextTokenBudget, c.Retrieval.ChunkTokenSize,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// Relative to the source file, for tests run from package dirs.
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
