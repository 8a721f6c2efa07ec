package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the reqcheck configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Segmenter  SegmenterConfig  `yaml:"segmenter"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Comparison ComparisonConfig `yaml:"comparison"`
	Index      IndexConfig      `yaml:"index"`
	Runner     RunnerConfig     `yaml:"runner"`
	Documents  DocumentsConfig  `yaml:"documents"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds session store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, postgres (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	BaseURL           string   `yaml:"base_url"`
	Model             string   `yaml:"model"`
	APIKeys           []string `yaml:"api_keys"`
	Temperature       float32  `yaml:"temperature"`
	ExplainTemp       float32  `yaml:"explain_temperature"`
	MaxTokens         int      `yaml:"max_tokens"`
	CallTimeoutSec    int      `yaml:"call_timeout_sec"`
	BackoffMillis     int      `yaml:"backoff_ms"`
	RotationScope     string   `yaml:"rotation_scope"` // shared | run
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // openai | hash
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	Cache               bool   `yaml:"cache"`
}

// SegmenterConfig holds chunking settings.
type SegmenterConfig struct {
	ParagraphMaxChars int `yaml:"paragraph_max_chars"`
	ChunkSize         int `yaml:"chunk_size"`
	ChunkOverlap      int `yaml:"chunk_overlap"`
	MinChunkChars     int `yaml:"min_chunk_chars"`
}

// ExtractionConfig holds requirement extraction settings.
type ExtractionConfig struct {
	Mode                string  `yaml:"mode"` // rules | llm
	MinRuleCount        int     `yaml:"min_rule_count"`
	MinRequirementChars int     `yaml:"min_requirement_chars"`
	MaxRequirementChars int     `yaml:"max_requirement_chars"`
	Dedup               string  `yaml:"dedup"` // substring | semantic
	SemanticThreshold   float64 `yaml:"semantic_threshold"`
}

// ComparisonConfig holds comparison engine settings.
type ComparisonConfig struct {
	TopK            int  `yaml:"top_k"`
	MaxContextChars int  `yaml:"max_context_chars"`
	ComputeReport   bool `yaml:"compute_report"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Backend         string `yaml:"backend"` // memory | redis
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// RunnerConfig holds background run settings.
type RunnerConfig struct {
	MaxConcurrent        int `yaml:"max_concurrent"`
	RetentionDays        int `yaml:"retention_days"`
	CleanupIntervalHours int `yaml:"cleanup_interval_hours"`
}

// DocumentsConfig holds input document limits.
type DocumentsConfig struct {
	MaxUploadBytes   int64 `yaml:"max_upload_bytes"`
	MinDocumentChars int   `yaml:"min_document_chars"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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

// Default returns a configuration with every default applied, for tools that run without a file.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.2
	}
	if c.LLM.ExplainTemp <= 0 {
		c.LLM.ExplainTemp = 0.1
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.LLM.CallTimeoutSec <= 0 {
		c.LLM.CallTimeoutSec = 120
	}
	if c.LLM.BackoffMillis <= 0 {
		c.LLM.BackoffMillis = 2000
	}
	if c.LLM.RotationScope == "" {
		c.LLM.RotationScope = "shared"
	}
	if c.LLM.Burst <= 0 {
		c.LLM.Burst = 1
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Segmenter.ParagraphMaxChars <= 0 {
		c.Segmenter.ParagraphMaxChars = 1500
	}
	if c.Segmenter.ChunkSize <= 0 {
		c.Segmenter.ChunkSize = 1000
	}
	if c.Segmenter.ChunkOverlap <= 0 {
		c.Segmenter.ChunkOverlap = 200
	}
	if c.Segmenter.MinChunkChars <= 0 {
		c.Segmenter.MinChunkChars = 10
	}
	if c.Extraction.Mode == "" {
		c.Extraction.Mode = "rules"
	}
	if c.Extraction.MinRuleCount <= 0 {
		c.Extraction.MinRuleCount = 3
	}
	if c.Extraction.MinRequirementChars <= 0 {
		c.Extraction.MinRequirementChars = 10
	}
	if c.Extraction.MaxRequirementChars <= 0 {
		c.Extraction.MaxRequirementChars = 300
	}
	if c.Extraction.Dedup == "" {
		c.Extraction.Dedup = "substring"
	}
	if c.Extraction.SemanticThreshold <= 0 {
		c.Extraction.SemanticThreshold = 0.92
	}
	if c.Comparison.TopK <= 0 {
		c.Comparison.TopK = 5
	}
	if c.Comparison.MaxContextChars <= 0 {
		c.Comparison.MaxContextChars = 10000
	}
	if c.Index.Backend == "" {
		c.Index.Backend = "memory"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Runner.MaxConcurrent <= 0 {
		c.Runner.MaxConcurrent = 4
	}
	if c.Runner.RetentionDays <= 0 {
		c.Runner.RetentionDays = 30
	}
	if c.Runner.CleanupIntervalHours <= 0 {
		c.Runner.CleanupIntervalHours = 24
	}
	if c.Documents.MaxUploadBytes <= 0 {
		c.Documents.MaxUploadBytes = 10 << 20
	}
	if c.Documents.MinDocumentChars <= 0 {
		c.Documents.MinDocumentChars = 20
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "reqcheck:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "memory":
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be \"memory\", \"redis\" or \"postgres\", got %q", c.Database.Driver)
	}
	if err := oneOf("llm.rotation_scope", c.LLM.RotationScope, "shared", "run"); err != nil {
		return err
	}
	if c.LLM.RequestsPerSecond < 0 {
		return fmt.Errorf("llm.requests_per_second must not be negative, got %g", c.LLM.RequestsPerSecond)
	}
	if err := oneOf("embedding.provider", c.Embedding.Provider, "openai", "hash"); err != nil {
		return err
	}
	if err := oneOf("extraction.mode", c.Extraction.Mode, "rules", "llm"); err != nil {
		return err
	}
	if err := oneOf("extraction.dedup", c.Extraction.Dedup, "substring", "semantic"); err != nil {
		return err
	}
	if c.Extraction.SemanticThreshold > 1 {
		return fmt.Errorf("extraction.semantic_threshold must be at most 1, got %g", c.Extraction.SemanticThreshold)
	}
	if err := oneOf("index.backend", c.Index.Backend, "memory", "redis"); err != nil {
		return err
	}
	if c.Index.Backend == "redis" && c.Database.Driver != "redis" {
		return fmt.Errorf("index.backend \"redis\" requires database.driver \"redis\"")
	}
	if c.Segmenter.ChunkOverlap >= c.Segmenter.ChunkSize {
		return fmt.Errorf("segmenter.chunk_overlap (%d) must be smaller than segmenter.chunk_size (%d)",
			c.Segmenter.ChunkOverlap, c.Segmenter.ChunkSize)
	}
	if c.Extraction.MinRequirementChars >= c.Extraction.MaxRequirementChars {
		return fmt.Errorf("extraction.min_requirement_chars must be smaller than extraction.max_requirement_chars")
	}
	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	quoted := make([]string, len(allowed))
	for i, a := range allowed {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(quoted, ", "), value)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
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
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
