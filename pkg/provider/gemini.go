package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/askmecli/askme/pkg/config"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiOption configures a GeminiDriver.
type GeminiOption func(*GeminiDriver)

// WithGeminiHTTPClient sets a custom HTTP client (useful for testing).
func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(d *GeminiDriver) { d.client = c }
}

// WithGeminiBaseURL overrides the API base URL (useful for testing). Unlike
// OpenAI and Ollama the configured service URL is ignored: the Gemini endpoint is
// fixed.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(d *GeminiDriver) { d.baseURL = url }
}

// GeminiDriver speaks the Google Generative Language API.
type GeminiDriver struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	client       *http.Client
}

// NewGeminiDriver builds a Gemini driver. The class requires an API key and
// a model; the system prompt is passed through even when empty.
func NewGeminiDriver(svc config.Service, model, systemPrompt string, opts ...GeminiOption) (*GeminiDriver, error) {
	if svc.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingModel)
	}

	d := &GeminiDriver{
		baseURL:      defaultGeminiBaseURL,
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

// Name returns "gemini".
func (d *GeminiDriver) Name() string { return "gemini" }

// Model returns the model captured at construction.
func (d *GeminiDriver) Model() string { return d.model }

// SystemPrompt returns the system prompt captured at construction.
func (d *GeminiDriver) SystemPrompt() string { return d.systemPrompt }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"system_instruction"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Complete sends the prompt to models/{model}:generateContent and splits any
// embedded <think> segment off the answer.
func (d *GeminiDriver) Complete(ctx context.Context, prompt string) (*Result, error) {
	body, err := json.Marshal(geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: d.systemPrompt}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", d.baseURL, d.model)
	respBody, err := doJSON(ctx, d.client, "gemini", http.MethodPost, endpoint, body, d.headers())
	if err != nil {
		return nil, err
	}

	var gr geminiResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("gemini: decoding response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 ||
		gr.Candidates[0].Content.Parts[0].Text == nil {
		return nil, fmt.Errorf("gemini: missing candidates[0].content.parts[0].text: %w", ErrMalformedResponse)
	}

	answer, reasoning := splitReasoning(*gr.Candidates[0].Content.Parts[0].Text)
	return &Result{Answer: answer, Reasoning: reasoning}, nil
}

// ListModels returns every model name reported by /models with the
// "models/" prefix stripped.
func (d *GeminiDriver) ListModels(ctx context.Context) ([]string, error) {
	respBody, err := doJSON(ctx, d.client, "gemini", http.MethodGet,
		d.baseURL+"/models", nil, d.headers())
	if err != nil {
		return nil, err
	}

	var mr geminiModelsResponse
	if err := json.Unmarshal(respBody, &mr); err != nil {
		return nil, fmt.Errorf("gemini: decoding models response: %w", err)
	}
	if mr.Models == nil {
		return nil, fmt.Errorf("gemini: missing models array: %w", ErrMalformedResponse)
	}

	names := make([]string, 0, len(mr.Models))
	for _, m := range mr.Models {
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

func (d *GeminiDriver) headers() map[string]string {
	return map[string]string{"x-goog-api-key": d.apiKey}
}
