package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ragbench/internal/registry"
)

// EmbedderConfig selects and configures the embedding model.
type EmbedderConfig struct {
	Type   string        `yaml:"type"`
	Kwargs registry.Args `yaml:"kwargs,omitempty"`
	// RateLimitChunks is the number of chunks embedded per batch.
	RateLimitChunks int `yaml:"rate_limit_chunks"`
	// RateLimitDelay is the pause between batches, in seconds.
	RateLimitDelay float64      `yaml:"rate_limit_delay"`
	Cache          *CacheConfig `yaml:"cache,omitempty"`
}

// Delay returns RateLimitDelay as a duration.
func (c EmbedderConfig) Delay() time.Duration {
	return time.Duration(c.RateLimitDelay * float64(time.Second))
}

// CacheConfig configures the optional embedding cache.
type CacheConfig struct {
	Type     string `yaml:"type"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLSecs  int    `yaml:"ttl_secs"`
	Prefix   string `yaml:"prefix"`
}

// SplitterConfig selects and configures the text splitter.
type SplitterConfig struct {
	Type string        `yaml:"type"`
	Args registry.Args `yaml:"args,omitempty"`
}

// VectorDBConfig selects and configures the vector store.
type VectorDBConfig struct {
	Type                 string        `yaml:"type"`
	VectorstoreLocation  string        `yaml:"vectorstore_location"`
	VectorstoreWriteMode string        `yaml:"vectorstore_write_mode"`
	Args                 registry.Args `yaml:"args,omitempty"`
}

// EmbeddingConfig groups everything needed to build the vector store.
type EmbeddingConfig struct {
	Embedding EmbedderConfig `yaml:"embedding"`
	Splitter  SplitterConfig `yaml:"splitter"`
	VectorDB  VectorDBConfig `yaml:"vectordb"`
}

// LLMConfig selects and configures the chat model under test.
type LLMConfig struct {
	Type        string        `yaml:"type"`
	RateLimiter string        `yaml:"rate_limiter,omitempty"`
	Args        registry.Args `yaml:"llm_args,omitempty"`
}

// RateLimiterConfig parameterizes a named token-bucket limiter.
type RateLimiterConfig struct {
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	MaxBucketSize      int     `yaml:"max_bucket_size"`
	CheckEveryNSeconds float64 `yaml:"check_every_n_seconds"`
}

// RetrieverConfig configures retrieval.
type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// QuestionConfig holds the fixed list of questions asked every run.
type QuestionConfig struct {
	Questions []string `yaml:"questions"`
}

// LoggingConfig configures the run logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// S3Config configures publishing of run artifacts to S3.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// PublishConfig configures where run artifacts are copied after a run.
type PublishConfig struct {
	S3 *S3Config `yaml:"s3,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	SourceDocumentFolder  string                         `yaml:"source_document_folder"`
	InternalDataFolder    string                         `yaml:"internal_data_folder"`
	ExperimentSummaryFile string                         `yaml:"experiment_summary_file"`
	EmbedOnly             bool                           `yaml:"embed_only"`
	OutputRoot            string                         `yaml:"output_root"`
	Embedding             EmbeddingConfig                `yaml:"embedding"`
	LLM                   LLMConfig                      `yaml:"llm"`
	RateLimiters          []map[string]RateLimiterConfig `yaml:"rate_limiters,omitempty"`
	Retriever             RetrieverConfig                `yaml:"retriever"`
	Question              QuestionConfig                 `yaml:"question"`
	Logging               LoggingConfig                  `yaml:"logging"`
	Publish               PublishConfig                  `yaml:"publish"`
}

// Load reads a single config file. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	return decode(data)
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func decode(data []byte) (*AppConfig, error) {
	cfg := &AppConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.SourceDocumentFolder == "" {
		cfg.SourceDocumentFolder = "./docs"
	}
	if cfg.InternalDataFolder == "" {
		cfg.InternalDataFolder = "./idata"
	}
	if cfg.Embedding.Embedding.Type == "" {
		cfg.Embedding.Embedding.Type = "tfidf"
	}
	if cfg.Embedding.Embedding.RateLimitChunks <= 0 {
		cfg.Embedding.Embedding.RateLimitChunks = 100
	}
	if cfg.Embedding.Embedding.RateLimitDelay < 0 {
		cfg.Embedding.Embedding.RateLimitDelay = 0
	}
	if cfg.Embedding.Splitter.Type == "" {
		cfg.Embedding.Splitter.Type = "recursive_character"
		if cfg.Embedding.Splitter.Args == nil {
			cfg.Embedding.Splitter.Args = registry.Args{"chunk_size": 1000, "chunk_overlap": 100}
		}
	}
	if cfg.Embedding.VectorDB.VectorstoreWriteMode == "" {
		cfg.Embedding.VectorDB.VectorstoreWriteMode = "no_overwrite"
	}
	if cfg.Embedding.VectorDB.Type == "" {
		cfg.Embedding.VectorDB.Type = "sqlite"
	}
	if cfg.Embedding.VectorDB.VectorstoreLocation == "" {
		cfg.Embedding.VectorDB.VectorstoreLocation = "vectordb"
	}
	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "extractive"
	}
	if cfg.Retriever.TopK <= 0 {
		cfg.Retriever.TopK = 4
	}
	if cfg.ExperimentSummaryFile == "" {
		cfg.ExperimentSummaryFile = "chat_session.md"
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "outputs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "ragbench.log"
	}
	if cache := cfg.Embedding.Embedding.Cache; cache != nil {
		if cache.Type == "" {
			cache.Type = "memory"
		}
		if cache.Type == "redis" && cache.Address == "" {
			cache.Address = "localhost:6379"
		}
		if cache.Prefix == "" {
			cache.Prefix = "ragbench:emb:"
		}
	}
	if s3 := cfg.Publish.S3; s3 != nil && s3.Prefix == "" {
		s3.Prefix = "ragbench"
	}
}
