// Package provider adapts the wire protocols of the supported LLM backends
// (OpenAI, Ollama, Gemini, Anthropic) to one completion and model-listing
// contract.
package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/askmecli/askme/pkg/config"
)

// Driver is implemented once per provider class. A driver holds copies of
// the resolved model, system prompt, and credentials; it never reaches back
// into the configuration.
type Driver interface {
	// Complete sends one prompt and returns the normalized result.
	Complete(ctx context.Context, prompt string) (*Result, error)

	// ListModels returns the identifiers of the models the backend offers,
	// in the order the backend reports them.
	ListModels(ctx context.Context) ([]string, error)

	// Model returns the model captured at construction.
	Model() string

	// SystemPrompt returns the system prompt text captured at construction.
	SystemPrompt() string

	// Name returns the provider class identifier (e.g. "ollama").
	Name() string
}

// Result is a normalized completion: the answer text plus an optional
// reasoning segment. An empty Reasoning means the backend produced none.
type Result struct {
	Answer    string
	Reasoning string
}

// Construction and request error kinds. Drivers wrap these with the
// provider class name, so errors.Is still matches.
var (
	ErrMissingAPIKey       = errors.New("api key required")
	ErrMissingModel        = errors.New("model required")
	ErrMissingSystemPrompt = errors.New("system prompt required")
	ErrUnauthorized        = errors.New("unauthorized (HTTP 401), check the api key")
	ErrNotFound            = errors.New("not found (HTTP 404), check the endpoint and model")
	ErrMalformedResponse   = errors.New("malformed response")
)

// APIError is a non-2xx HTTP response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// TransportError is a network-level failure: the request never produced an
// HTTP response, or the response body could not be read.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnknownClassError reports a service class name outside the supported set.
type UnknownClassError struct {
	Given string
	Valid []string
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("unknown service class %q, valid classes: %s", e.Given, strings.Join(e.Valid, ", "))
}

// validClasses is the closed set of driver tags. Matching is exact and
// case-sensitive.
var validClasses = []string{"openai", "ollama", "gemini", "anthropic"}

// ValidClass reports whether class names one of the supported drivers.
func ValidClass(class string) bool {
	return slices.Contains(validClasses, class)
}

const defaultTimeout = 60 * time.Second

// New builds the driver declared by class from the service config and the
// already-resolved model and system prompt.
func New(class string, svc config.Service, model, systemPrompt string) (Driver, error) {
	switch class {
	case "openai":
		return NewOpenAIDriver(svc, model, systemPrompt)
	case "ollama":
		return NewOllamaDriver(svc, model, systemPrompt)
	case "gemini":
		return NewGeminiDriver(svc, model, systemPrompt)
	case "anthropic":
		return NewAnthropicDriver(svc, model, systemPrompt)
	default:
		return nil, &UnknownClassError{Given: class, Valid: validClasses}
	}
}

// splitReasoning extracts an embedded <think>...</think> segment. Both
// halves are trimmed. An opening tag without a closing tag after it leaves
// the text untouched.
func splitReasoning(raw string) (answer, reasoning string) {
	open := strings.Index(raw, "<think>")
	if open < 0 {
		return raw, ""
	}
	rest := raw[open+len("<think>"):]
	end := strings.Index(rest, "</think>")
	if end < 0 {
		return raw, ""
	}
	reasoning = strings.TrimSpace(rest[:end])
	answer = strings.TrimSpace(rest[end+len("</think>"):])
	return answer, reasoning
}

// refineStatus maps selected HTTP status codes of an APIError to
// distinguishable sentinel kinds; everything else passes through.
func refineStatus(err error, refined map[int]error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if kind, ok := refined[apiErr.StatusCode]; ok {
			return fmt.Errorf("%s: %w", apiErr.Provider, kind)
		}
	}
	return err
}
