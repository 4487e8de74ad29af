package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures the Ollama generate endpoint.
type OllamaConfig struct {
	Endpoint    string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OllamaClient implements Generator against a local Ollama server.
type OllamaClient struct {
	endpoint    string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllamaClient creates a generator for the Ollama /api/generate endpoint.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-oss:20b"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OllamaClient{
		endpoint:    endpoint,
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

func (o *OllamaClient) Enabled() bool {
	return o != nil && o.endpoint != ""
}

func (o *OllamaClient) Name() string {
	if o == nil {
		return "ollama"
	}
	return "ollama:" + o.model
}

// Generate runs a non-streaming completion.
func (o *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	if o == nil || !o.Enabled() {
		return "", ErrDisabled
	}
	payload := ollamaGenerateRequest{Model: o.model, Prompt: prompt, Stream: false}
	if o.temperature > 0 {
		payload.Options = map[string]any{"temperature": o.temperature}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &TransportError{Op: "ollama generate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &TransportError{Op: "ollama generate", Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(snippet)))}
	}

	var decoded ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &TransportError{Op: "decode ollama response", Err: err}
	}
	text := strings.TrimSpace(decoded.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
