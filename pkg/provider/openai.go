package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/askmecli/askme/pkg/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIOption configures an OpenAIDriver.
type OpenAIOption func(*OpenAIDriver)

// WithOpenAIHTTPClient sets a custom HTTP client (useful for testing).
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(d *OpenAIDriver) { d.client = c }
}

// OpenAIDriver speaks the OpenAI Chat Completions API. The base URL is
// overridable per service in the config, so it also covers OpenAI-compatible
// gateways.
type OpenAIDriver struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	client       *http.Client
}

// NewOpenAIDriver builds an OpenAI driver. The class requires an API key, a
// model, and a non-empty system prompt.
func NewOpenAIDriver(svc config.Service, model, systemPrompt string, opts ...OpenAIOption) (*OpenAIDriver, error) {
	if svc.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	if model == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingModel)
	}
	if systemPrompt == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingSystemPrompt)
	}

	baseURL := defaultOpenAIBaseURL
	if svc.URL != "" {
		baseURL = svc.URL
	}

	d := &OpenAIDriver{
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

// Name returns "openai".
func (d *OpenAIDriver) Name() string { return "openai" }

// Model returns the model captured at construction.
func (d *OpenAIDriver) Model() string { return d.model }

// SystemPrompt returns the system prompt captured at construction.
func (d *OpenAIDriver) SystemPrompt() string { return d.systemPrompt }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openaiModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Complete sends the system and user prompt to /v1/chat/completions and
// splits any embedded <think> segment off the answer.
func (d *OpenAIDriver) Complete(ctx context.Context, prompt string) (*Result, error) {
	body, err := json.Marshal(openaiRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "system", Content: d.systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	respBody, err := doJSON(ctx, d.client, "openai", http.MethodPost,
		d.baseURL+"/v1/chat/completions", body, d.headers())
	if err != nil {
		return nil, refineStatus(err, map[int]error{
			http.StatusUnauthorized: ErrUnauthorized,
			http.StatusNotFound:     ErrNotFound,
		})
	}

	var or openaiResponse
	if err := json.Unmarshal(respBody, &or); err != nil {
		return nil, fmt.Errorf("openai: decoding response: %w", err)
	}
	if len(or.Choices) == 0 || or.Choices[0].Message.Content == nil {
		return nil, fmt.Errorf("openai: missing choices[0].message.content: %w", ErrMalformedResponse)
	}

	answer, reasoning := splitReasoning(*or.Choices[0].Message.Content)
	return &Result{Answer: answer, Reasoning: reasoning}, nil
}

// ListModels returns the id of every entry in the /v1/models data array.
func (d *OpenAIDriver) ListModels(ctx context.Context) ([]string, error) {
	respBody, err := doJSON(ctx, d.client, "openai", http.MethodGet,
		d.baseURL+"/v1/models", nil, d.headers())
	if err != nil {
		return nil, err
	}

	var mr openaiModelsResponse
	if err := json.Unmarshal(respBody, &mr); err != nil {
		return nil, fmt.Errorf("openai: decoding models response: %w", err)
	}
	if mr.Data == nil {
		return nil, fmt.Errorf("openai: missing data array: %w", ErrMalformedResponse)
	}

	ids := make([]string, 0, len(mr.Data))
	for _, m := range mr.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (d *OpenAIDriver) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + d.apiKey}
}
