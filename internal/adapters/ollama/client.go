// Package ollama is a minimal client for the Ollama HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL         = "http://localhost:11434"
	DefaultModel           = "llama3"
	DefaultProbeTimeout    = 5 * time.Second
	DefaultGenerateTimeout = 30 * time.Second
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 300
)

// Config holds connection and sampling settings.
type Config struct {
	BaseURL         string
	Model           string
	ProbeTimeout    time.Duration
	GenerateTimeout time.Duration
	Temperature     float64
	MaxTokens       int
}

// Client implements ports.TextGenerator against /api/tags and /api/generate.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// NewClient creates a client. Zero config fields take the package defaults, except
// Temperature where 0 is a valid setting.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Ping checks that the server answers GET /api/tags with 200 within the probe timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &domain.GenerationStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Generate submits a non-streaming completion request and returns the raw response text.
// Non-2xx statuses come back as *domain.GenerationStatusError and deadline expiry as
// domain.ErrGenerationTimeout.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.cfg.Temperature,
			NumPredict:  c.cfg.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", domain.ErrGenerationTimeout
		}
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return "", domain.ErrGenerationTimeout
		}
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.GenerationStatusError{StatusCode: resp.StatusCode}
	}

	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("failed to parse response: invalid JSON")
	}
	return gjson.GetBytes(data, "response").String(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
