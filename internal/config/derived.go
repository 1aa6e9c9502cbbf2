package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// WriteMode controls what embedding does when a vector store already exists
// at the configured location. The action applies to the whole store.
type WriteMode int

const (
	// NoOverwrite skips embedding entirely when the store exists.
	NoOverwrite WriteMode = iota
	// Append embeds into the existing store.
	Append
	// Overwrite removes the existing store before embedding.
	Overwrite
)

func (m WriteMode) String() string {
	switch m {
	case Append:
		return "append"
	case Overwrite:
		return "overwrite"
	default:
		return "no_overwrite"
	}
}

// ParseWriteMode parses a write mode name case-insensitively.
func ParseWriteMode(s string) (WriteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no_overwrite":
		return NoOverwrite, nil
	case "append":
		return Append, nil
	case "overwrite":
		return Overwrite, nil
	}
	return NoOverwrite, fmt.Errorf("invalid write mode %q", s)
}

// WriteMode returns the configured vector store write mode. Invalid values
// are logged and treated as NoOverwrite.
func (c *AppConfig) WriteMode(logger *zap.Logger) WriteMode {
	mode, err := ParseWriteMode(c.Embedding.VectorDB.VectorstoreWriteMode)
	if err != nil {
		logger.Warn("invalid value configured for embedding.vectordb.vectorstore_write_mode, using no_overwrite instead",
			zap.String("value", c.Embedding.VectorDB.VectorstoreWriteMode))
	}
	return mode
}

// VectorDBLocation returns the absolute vector store location:
// cwd / internal_data_folder / vectorstore_location.
func (c *AppConfig) VectorDBLocation(cwd string) string {
	loc := filepath.Join(c.InternalDataFolder, c.Embedding.VectorDB.VectorstoreLocation)
	if filepath.IsAbs(loc) {
		return filepath.Clean(loc)
	}
	return filepath.Join(cwd, loc)
}

// DataDir returns the absolute internal data folder.
func (c *AppConfig) DataDir(cwd string) string {
	if filepath.IsAbs(c.InternalDataFolder) {
		return filepath.Clean(c.InternalDataFolder)
	}
	return filepath.Join(cwd, c.InternalDataFolder)
}

// OutputFile returns where the chat report of a run in runDir is written.
func (c *AppConfig) OutputFile(runDir string) string {
	if filepath.IsAbs(c.ExperimentSummaryFile) {
		return c.ExperimentSummaryFile
	}
	return filepath.Join(runDir, c.ExperimentSummaryFile)
}

// LLMRateLimiter returns the rate limiter the llm refers to, if any. A
// missing name is logged at info level; a name with no matching entry in
// rate_limiters is logged as a warning. Both yield ok == false.
func (c *AppConfig) LLMRateLimiter(logger *zap.Logger) (name string, rl RateLimiterConfig, ok bool) {
	name = c.LLM.RateLimiter
	if name == "" {
		logger.Info("no rate_limiter specified in llm config")
		return "", RateLimiterConfig{}, false
	}
	for _, entry := range c.RateLimiters {
		if v, found := entry[name]; found {
			return name, v, true
		}
	}
	logger.Warn("rate limiter specified in llm config cannot be found in rate_limiters", zap.String("rate_limiter", name))
	return name, RateLimiterConfig{}, false
}
