// Package llama is the HTTP client for a locally hosted llama.cpp server.
//
// The server exposes GET /health for liveness and POST /completion for text
// generation. The client builds the full prompt (system + user + assistant
// header) for each query, sends it with bounded timeouts, and returns the
// raw completion payload. It performs no retries: a failed health check or
// completion request is reported to the caller as-is.
package llama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PatrickKalkman/kubevox/internal/prompt"
	"github.com/PatrickKalkman/kubevox/internal/registry"
)

const (
	healthTimeout     = 5 * time.Second
	completionTimeout = 30 * time.Second
)

// Config holds the connection and sampling settings for the llama server.
type Config struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	ModelPath   string   `mapstructure:"model_path"`
	ContextSize int      `mapstructure:"n_ctx"`
	GPULayers   int      `mapstructure:"n_gpu_layers"`
	Seed        int      `mapstructure:"seed"`
	Temperature float64  `mapstructure:"temperature"`
	TopP        float64  `mapstructure:"top_p"`
	MaxTokens   int      `mapstructure:"max_tokens"`
	Stop        []string `mapstructure:"stop"`
}

// DefaultConfig returns the settings for a llama.cpp server on localhost.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        8080,
		ContextSize: 2048,
		GPULayers:   0,
		Seed:        -1,
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   2048,
	}
}

// BaseURL returns the server's base URL.
func (c Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// ServerError reports a non-2xx response from the completion endpoint.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("llama server returned status %d: %s", e.StatusCode, e.Body)
}

// Completion is the parsed payload of a successful completion request.
type Completion struct {
	// Content is the raw generated text.
	Content string `json:"content"`

	// Stop reports whether generation ended at a stop condition.
	Stop bool `json:"stop"`

	// TokensPredicted is the number of tokens the server generated.
	TokensPredicted int `json:"tokens_predicted"`
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	NPredict    int      `json:"n_predict"`
	Stop        []string `json:"stop"`
}

// Client talks to one llama server on behalf of one catalog of operations.
type Client struct {
	cfg     Config
	catalog *registry.Catalog
	http    *http.Client
}

// New creates a client for the given server and operation catalog.
func New(cfg Config, cat *registry.Catalog) *Client {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.TopP == 0 {
		cfg.TopP = 0.9
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	return &Client{
		cfg:     cfg,
		catalog: cat,
		http:    &http.Client{},
	}
}

// CheckHealth probes GET /health with a 5 second bound. It never returns an
// error: connection failures, timeouts, and bad statuses all fold into the
// (healthy, message) pair.
func (c *Client) CheckHealth(ctx context.Context) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL()+"/health", nil)
	if err != nil {
		return false, fmt.Sprintf("Failed to connect to server: %v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Sprintf("Failed to connect to server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Sprintf("Server returned status code: %d", resp.StatusCode)
	}
	return true, "Server is healthy"
}

// Complete builds the full prompt for query and posts it to /completion
// with a 30 second bound. Non-2xx responses surface as *ServerError.
func (c *Client) Complete(ctx context.Context, query string) (*Completion, error) {
	fullPrompt, err := prompt.BuildFullPrompt(c.catalog, query)
	if err != nil {
		return nil, err
	}

	stop := c.cfg.Stop
	if stop == nil {
		stop = []string{}
	}
	body, err := json.Marshal(completionRequest{
		Prompt:      fullPrompt,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		NPredict:    c.cfg.MaxTokens,
		Stop:        stop,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling completion request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL()+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var completion Completion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decoding completion: %w", err)
	}

	slog.Debug("completion received",
		"duration", time.Since(start),
		"tokens", completion.TokensPredicted,
		"content_length", len(completion.Content))
	return &completion, nil
}
