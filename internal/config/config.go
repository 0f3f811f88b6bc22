package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported backends.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds the lessontutor configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Planning  PlanningConfig  `yaml:"planning"`
	Session   SessionConfig   `yaml:"session"`
	Upload    UploadConfig    `yaml:"upload"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
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

// DatabaseConfig holds storage backend settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, sqlite (default: sqlite)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Path             string   `yaml:"path"` // sqlite file, ":memory:" for an ephemeral store
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds chat model settings.
type LLMConfig struct {
	Provider       string `yaml:"provider"` // ollama, openai
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	MaxConcurrent  int    `yaml:"max_concurrent"`
	MaxPromptChars int    `yaml:"max_prompt_chars"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	Retries        int    `yaml:"retries"` // negative disables retries
	BackoffMS      int    `yaml:"backoff_ms"`
	Stream         *bool  `yaml:"stream"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Provider     string      `yaml:"provider"` // ollama, openai
	BaseURL      string      `yaml:"base_url"`
	APIKey       string      `yaml:"api_key"`
	Model        string      `yaml:"model"`
	Dimensions   int         `yaml:"dimensions"`
	MaxBatchSize int         `yaml:"max_batch_size"`
	Cache        CacheConfig `yaml:"cache"`

	// Prefixes for asymmetric models, e.g. "search_document: " and "search_query: ".
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// CacheConfig controls the embedding cache kept in the database.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLDays int  `yaml:"ttl_days"`
}

// ChunkingConfig holds chunker settings.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// PlanningConfig holds plan generator settings.
type PlanningConfig struct {
	InitialK        int `yaml:"initial_k"`
	MinContextChars int `yaml:"min_context_chars"`
	ThrottleMS      int `yaml:"throttle_ms"` // negative disables the pause
	Parallelism     int `yaml:"parallelism"`
}

// SessionConfig holds tutoring session settings.
type SessionConfig struct {
	QATopK     int `yaml:"qa_top_k"`
	IdleTTLMin int `yaml:"idle_ttl_min"` // 0 keeps sessions until ended
}

// UploadConfig limits document uploads.
type UploadConfig struct {
	MaxMB int `yaml:"max_mb"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
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
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// lesson generation runs inside the request
		c.HTTP.WriteTimeoutSec = 900
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/lessontutor.db"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOllama
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3.1"
	}
	if c.LLM.MaxConcurrent <= 0 {
		c.LLM.MaxConcurrent = 2
	}
	if c.LLM.MaxPromptChars <= 0 {
		c.LLM.MaxPromptChars = 9000
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 120
	}
	if c.LLM.Retries == 0 {
		c.LLM.Retries = 1
	}
	if c.LLM.BackoffMS <= 0 {
		c.LLM.BackoffMS = 1500
	}
	if c.LLM.Stream == nil {
		stream := true
		c.LLM.Stream = &stream
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOllama
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Embedding.BaseURL == "" && c.Embedding.Provider == c.LLM.Provider {
		c.Embedding.BaseURL = c.LLM.BaseURL
	}
	if c.Embedding.APIKey == "" && c.Embedding.Provider == c.LLM.Provider {
		c.Embedding.APIKey = c.LLM.APIKey
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 256
	}
	if c.Embedding.Cache.TTLDays <= 0 {
		c.Embedding.Cache.TTLDays = 30
	}

	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 800
	}
	if c.Chunking.Overlap <= 0 {
		c.Chunking.Overlap = min(200, c.Chunking.Size/2)
	}

	if c.Planning.InitialK <= 0 {
		c.Planning.InitialK = 6
	}
	if c.Planning.MinContextChars <= 0 {
		c.Planning.MinContextChars = 900
	}
	if c.Planning.ThrottleMS == 0 {
		c.Planning.ThrottleMS = 250
	}
	if c.Planning.Parallelism <= 0 {
		c.Planning.Parallelism = 1
	}

	if c.Session.QATopK <= 0 {
		c.Session.QATopK = 4
	}

	if c.Upload.MaxMB <= 0 {
		c.Upload.MaxMB = 20
	}

	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "lessontutor:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverSQLite, c.Database.Driver)
	}

	if err := validateProvider("llm", c.LLM.Provider, c.LLM.APIKey); err != nil {
		return err
	}
	if err := validateProvider("embedding", c.Embedding.Provider, c.Embedding.APIKey); err != nil {
		return err
	}

	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Session.IdleTTLMin < 0 {
		return fmt.Errorf("session.idle_ttl_min must not be negative, got %d", c.Session.IdleTTLMin)
	}
	return nil
}

func validateProvider(section, provider, apiKey string) error {
	switch provider {
	case ProviderOllama:
		return nil
	case ProviderOpenAI:
		if apiKey == "" {
			return fmt.Errorf("%s.api_key is required for provider %q", section, ProviderOpenAI)
		}
		return nil
	default:
		return fmt.Errorf("%s.provider must be %q or %q, got %q", section, ProviderOllama, ProviderOpenAI, provider)
	}
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
