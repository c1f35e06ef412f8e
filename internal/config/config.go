// Package config holds all insightweaver configuration: a weaver.json
// file with sane defaults, overridden by environment variables. A .env
// file next to the working directory is loaded first so keys never have
// to live in the config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config is the single source of truth for runtime configuration.
type Config struct {
	Dataset   DatasetConfig   `json:"dataset"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Synthesis SynthesisConfig `json:"synthesis"`
	Narrator  NarratorConfig  `json:"narrator"`
	Logging   LoggingConfig   `json:"logging"`
}

// DatasetConfig locates the prepared order dataset.
type DatasetConfig struct {
	// CSVPath is the raw DataCo export consumed by `weaver dataset prepare`.
	CSVPath string `json:"csv_path"`

	// DBPath is the SQLite file holding the prepared orders table.
	DBPath string `json:"db_path"`
}

// KnowledgeConfig configures the KB store and the embedding engine.
type KnowledgeConfig struct {
	// StorePath is the SQLite file holding embedded KB documents.
	StorePath string `json:"store_path"`

	// Dir is the directory of markdown documents indexed by `weaver kb build`.
	Dir string `json:"dir"`

	// Embedding provider: "ollama" or "genai".
	EmbeddingProvider string `json:"embedding_provider"`
	OllamaEndpoint    string `json:"ollama_endpoint"`
	OllamaModel       string `json:"ollama_model"`
	GenAIAPIKey       string `json:"genai_api_key,omitempty"`
	GenAIModel        string `json:"genai_model"`
}

// SynthesisConfig configures the plan-synthesis model.
type SynthesisConfig struct {
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TimeoutSec  int     `json:"timeout_sec"`
}

// NarratorConfig configures the narration strategy and its local model.
type NarratorConfig struct {
	// Strategy is "rules" or "learned".
	Strategy string `json:"strategy"`

	OllamaEndpoint string `json:"ollama_endpoint"`
	Model          string `json:"model"`
	TimeoutSec     int    `json:"timeout_sec"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `json:"level"`
}

// Default returns the configuration used when no weaver.json exists.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			CSVPath: "data/DataCoSupplyChainDataset.csv",
			DBPath:  "data/orders.db",
		},
		Knowledge: KnowledgeConfig{
			StorePath:         "data/kb.db",
			Dir:               "kb",
			EmbeddingProvider: "ollama",
			OllamaEndpoint:    "http://localhost:11434",
			OllamaModel:       "all-minilm",
			GenAIModel:        "gemini-embedding-001",
		},
		Synthesis: SynthesisConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0.1,
			MaxTokens:   500,
			TimeoutSec:  120,
		},
		Narrator: NarratorConfig{
			Strategy:       "rules",
			OllamaEndpoint: "http://localhost:11434",
			Model:          "tinyllama",
			TimeoutSec:     60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	return "weaver.json"
}

// Load reads the config file at path (defaults applied for anything
// missing), then applies environment overrides. A missing file is not an
// error; the defaults carry. A .env file is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as indented JSON, creating parent directories.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Synthesis.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Knowledge.GenAIAPIKey = key
	}

	if v := os.Getenv("WEAVER_DATASET_CSV"); v != "" {
		c.Dataset.CSVPath = v
	}
	if v := os.Getenv("WEAVER_DATASET_DB"); v != "" {
		c.Dataset.DBPath = v
	}
	if v := os.Getenv("WEAVER_KB_STORE"); v != "" {
		c.Knowledge.StorePath = v
	}
	if v := os.Getenv("WEAVER_KB_DIR"); v != "" {
		c.Knowledge.Dir = v
	}
	if v := os.Getenv("WEAVER_EMBEDDING_PROVIDER"); v != "" {
		c.Knowledge.EmbeddingProvider = v
	}
	if v := os.Getenv("WEAVER_SYNTHESIS_BASE_URL"); v != "" {
		c.Synthesis.BaseURL = v
	}
	if v := os.Getenv("WEAVER_SYNTHESIS_MODEL"); v != "" {
		c.Synthesis.Model = v
	}
	if v := os.Getenv("WEAVER_NARRATOR_STRATEGY"); v != "" {
		c.Narrator.Strategy = v
	}
	if v := os.Getenv("WEAVER_NARRATOR_MODEL"); v != "" {
		c.Narrator.Model = v
	}
	if v := os.Getenv("WEAVER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects values the rest of the system cannot work with.
func (c *Config) Validate() error {
	switch c.Narrator.Strategy {
	case "rules", "learned":
	default:
		return fmt.Errorf("unknown narrator strategy %q", c.Narrator.Strategy)
	}
	switch c.Knowledge.EmbeddingProvider {
	case "ollama", "genai":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Knowledge.EmbeddingProvider)
	}
	if c.Synthesis.MaxTokens <= 0 {
		return fmt.Errorf("synthesis max_tokens must be positive")
	}
	return nil
}
