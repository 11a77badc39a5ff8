package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/askmecli/askme/pkg/config"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaOption configures an OllamaDriver.
type OllamaOption func(*OllamaDriver)

// WithOllamaHTTPClient sets a custom HTTP client (useful for testing).
func WithOllamaHTTPClient(c *http.Client) OllamaOption {
	return func(d *OllamaDriver) { d.client = c }
}

// OllamaDriver speaks the Ollama chat API. Self-hosted instances usually run
// without authentication, so the API key is optional; when present it is sent
// as a bearer token for gateways that front Ollama with auth.
type OllamaDriver struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	client       *http.Client
}

// NewOllamaDriver builds an Ollama driver. The class requires a model and a
// non-empty system prompt; the API key stays optional.
func NewOllamaDriver(svc config.Service, model, systemPrompt string, opts ...OllamaOption) (*OllamaDriver, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: %w", ErrMissingModel)
	}
	if systemPrompt == "" {
		return nil, fmt.Errorf("ollama: %w", ErrMissingSystemPrompt)
	}

	baseURL := defaultOllamaBaseURL
	if svc.URL != "" {
		baseURL = svc.URL
	}

	d := &OllamaDriver{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       svc.APIKey,
		model:        model,
		systemPrompt: systemPrompt,
		client:       &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Name returns "ollama".
func (d *OllamaDriver) Name() string { return "ollama" }

// Model returns the model captured at construction.
func (d *OllamaDriver) Model() string { return d.model }

// SystemPrompt returns the system prompt captured at construction.
func (d *OllamaDriver) SystemPrompt() string { return d.systemPrompt }

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Content  *string `json:"content"`
		Thinking string  `json:"thinking"`
	} `json:"message"`
	Thinking string `json:"thinking"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Complete sends the prompt to /api/chat with streaming disabled. Reasoning
// comes from the dedicated "thinking" field, checked at the top level first
// and then inside the message object; Ollama answers are never tag-scanned.
func (d *OllamaDriver) Complete(ctx context.Context, prompt string) (*Result, error) {
	body, err := json.Marshal(ollamaRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "system", Content: d.systemPrompt},
			{Role: "user", Content: prompt},
		},
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	respBody, err := doJSON(ctx, d.client, "ollama", http.MethodPost,
		d.baseURL+"/api/chat", body, d.headers())
	if err != nil {
		return nil, refineStatus(err, map[int]error{
			http.StatusNotFound: ErrNotFound,
		})
	}

	var or ollamaResponse
	if err := json.Unmarshal(respBody, &or); err != nil {
		return nil, fmt.Errorf("ollama: decoding response: %w", err)
	}
	if or.Message.Content == nil {
		return nil, fmt.Errorf("ollama: missing message.content: %w", ErrMalformedResponse)
	}

	reasoning := or.Thinking
	if reasoning == "" {
		reasoning = or.Message.Thinking
	}
	return &Result{Answer: *or.Message.Content, Reasoning: reasoning}, nil
}

// ListModels returns the name of every entry in the /api/tags models array.
func (d *OllamaDriver) ListModels(ctx context.Context) ([]string, error) {
	respBody, err := doJSON(ctx, d.client, "ollama", http.MethodGet,
		d.baseURL+"/api/tags", nil, d.headers())
	if err != nil {
		return nil, err
	}

	var tr ollamaTagsResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("ollama: decoding tags response: %w", err)
	}
	if tr.Models == nil {
		return nil, fmt.Errorf("ollama: missing models array: %w", ErrMalformedResponse)
	}

	names := make([]string, 0, len(tr.Models))
	for _, m := range tr.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (d *OllamaDriver) headers() map[string]string {
	if d.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + d.apiKey}
}
