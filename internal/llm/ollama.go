package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaClient implements Client against a local Ollama server. It is the
// boundary for the locally hosted narrator model: higher-temperature
// sampling with a repetition penalty, tuned for short prose rather than
// structured output.
type OllamaClient struct {
	endpoint      string
	model         string
	temperature   float64
	repeatPenalty float64
	maxNewTokens  int
	httpClient    *http.Client
}

// OllamaConfig holds configuration for the local generation client.
type OllamaConfig struct {
	Endpoint      string
	Model         string
	Temperature   float64
	RepeatPenalty float64
	MaxNewTokens  int
	Timeout       time.Duration
}

// DefaultOllamaConfig returns narrator defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Endpoint:      "http://localhost:11434",
		Model:         "tinyllama",
		Temperature:   0.7,
		RepeatPenalty: 1.15,
		MaxNewTokens:  220,
		Timeout:       60 * time.Second,
	}
}

// NewOllamaClient creates a client from config, filling defaults for any
// zero-valued field.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	def := DefaultOllamaConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.RepeatPenalty == 0 {
		cfg.RepeatPenalty = def.RepeatPenalty
	}
	if cfg.MaxNewTokens == 0 {
		cfg.MaxNewTokens = def.MaxNewTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &OllamaClient{
		endpoint:      cfg.Endpoint,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		repeatPenalty: cfg.RepeatPenalty,
		maxNewTokens:  cfg.MaxNewTokens,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature   float64 `json:"temperature"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	NumPredict    int     `json:"num_predict"`
	TopP          float64 `json:"top_p"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Complete sends a prompt and returns the decoded completion.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *OllamaClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: userPrompt,
		System: systemPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature:   c.temperature,
			RepeatPenalty: c.repeatPenalty,
			NumPredict:    c.maxNewTokens,
			TopP:          0.9,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama error: %s", parsed.Error)
	}
	return parsed.Response, nil
}
