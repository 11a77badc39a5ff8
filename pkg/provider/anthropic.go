package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/askmecli/askme/pkg/config"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 1024
)

// AnthropicOption configures an AnthropicDriver.
type AnthropicOption func(*AnthropicDriver)

// WithAnthropicHTTPClient sets a custom HTTP client (useful for testing).
func WithAnthropicHTTPClient(c *http.Client) AnthropicOption {
	return func(d *AnthropicDriver) { d.client = c }
}

// WithAnthropicBaseURL overrides the API base URL (useful for testing). The
// configured service URL is ignored for this class: the Anthropic endpoint is
// fixed.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(d *AnthropicDriver) { d.baseURL = url }
}

// AnthropicDriver speaks the Anthropic Messages API.
type AnthropicDriver struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	client       *http.Client
}

// NewAnthropicDriver builds an Anthropic driver. The class requires an API
// key and a model; the system prompt is passed through even when empty.
func NewAnthropicDriver(svc config.Service, model, systemPrompt string, opts ...AnthropicOption) (*AnthropicDriver, error) {
	if svc.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingModel)
	}

	d := &AnthropicDriver{
		baseURL:      defaultAnthropicBaseURL,
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

// Name returns "anthropic".
func (d *AnthropicDriver) Name() string { return "anthropic" }

// Model returns the model captured at construction.
func (d *AnthropicDriver) Model() string { return d.model }

// SystemPrompt returns the system prompt captured at construction.
func (d *AnthropicDriver) SystemPrompt() string { return d.systemPrompt }

type anthropicRequest struct {
	Model     string        `json:"model"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Text *string `json:"text"`
	} `json:"content"`
}

type anthropicModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Complete sends the prompt to /v1/messages and splits any embedded <think>
// segment off the answer.
func (d *AnthropicDriver) Complete(ctx context.Context, prompt string) (*Result, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     d.model,
		System:    d.systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: anthropicMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	respBody, err := doJSON(ctx, d.client, "anthropic", http.MethodPost,
		d.baseURL+"/v1/messages", body, d.headers())
	if err != nil {
		return nil, err
	}

	var ar anthropicResponse
	if err := json.Unmarshal(respBody, &ar); err != nil {
		return nil, fmt.Errorf("anthropic: decoding response: %w", err)
	}
	if len(ar.Content) == 0 || ar.Content[0].Text == nil {
		return nil, fmt.Errorf("anthropic: missing content[0].text: %w", ErrMalformedResponse)
	}

	answer, reasoning := splitReasoning(*ar.Content[0].Text)
	return &Result{Answer: answer, Reasoning: reasoning}, nil
}

// ListModels returns the id of every entry in the /v1/models data array.
func (d *AnthropicDriver) ListModels(ctx context.Context) ([]string, error) {
	respBody, err := doJSON(ctx, d.client, "anthropic", http.MethodGet,
		d.baseURL+"/v1/models", nil, d.headers())
	if err != nil {
		return nil, err
	}

	var mr anthropicModelsResponse
	if err := json.Unmarshal(respBody, &mr); err != nil {
		return nil, fmt.Errorf("anthropic: decoding models response: %w", err)
	}
	if mr.Data == nil {
		return nil, fmt.Errorf("anthropic: missing data array: %w", ErrMalformedResponse)
	}

	ids := make([]string, 0, len(mr.Data))
	for _, m := range mr.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (d *AnthropicDriver) headers() map[string]string {
	return map[string]string{
		"x-api-key":         d.apiKey,
		"anthropic-version": anthropicVersion,
	}
}
