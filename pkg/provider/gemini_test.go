package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/askmecli/askme/pkg/config"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiDriver {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	d, err := NewGeminiDriver(config.Service{APIKey: "g-key"},
		"gemini-2.0-flash", "You are helpful.", WithGeminiBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewGeminiDriver() error: %v", err)
	}
	return d
}

func TestGeminiComplete_TextResponse(t *testing.T) {
	d := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %q, want generateContent endpoint", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "g-key" {
			t.Errorf("x-goog-api-key = %q, want %q", got, "g-key")
		}

		var reqBody geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if len(reqBody.SystemInstruction.Parts) != 1 ||
			reqBody.SystemInstruction.Parts[0].Text != "You are helpful." {
			t.Errorf("system_instruction = %+v, want the system prompt", reqBody.SystemInstruction)
		}
		if len(reqBody.Contents) != 1 || reqBody.Contents[0].Role != "user" ||
			reqBody.Contents[0].Parts[0].Text != "Hi" {
			t.Errorf("contents = %+v, want one user part", reqBody.Contents)
		}

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hello from gemini"}]}}]}`))
	})

	got, err := d.Complete(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if got.Answer != "Hello from gemini" {
		t.Errorf("Answer = %q, want %q", got.Answer, "Hello from gemini")
	}
}

func TestGeminiComplete_ReasoningTags(t *testing.T) {
	d := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"<think>hmm</think>42"}]}}]}`))
	})

	got, err := d.Complete(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if got.Answer != "42" || got.Reasoning != "hmm" {
		t.Errorf("Result = %+v, want answer 42 with reasoning hmm", got)
	}
}

func TestGeminiComplete_APIErrorIsGeneric(t *testing.T) {
	// Gemini does not refine 401/404 into sentinel kinds.
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound} {
		d := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"nope"}}`))
		})
		_, err := d.Complete(context.Background(), "Hi")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Complete() error = %v, want APIError", err)
		}
		if apiErr.StatusCode != status {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, status)
		}
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
			t.Errorf("Complete() error = %v, want no refined sentinel", err)
		}
	}
}

func TestGeminiComplete_MalformedResponse(t *testing.T) {
	for _, body := range []string{`{}`, `{"candidates":[]}`, `{"candidates":[{"content":{"parts":[]}}]}`} {
		d := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		if _, err := d.Complete(context.Background(), "Hi"); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("Complete() with body %s error = %v, want ErrMalformedResponse", body, err)
		}
	}
}

func TestGeminiListModels_StripsPrefix(t *testing.T) {
	d := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/models")
		}
		w.Write([]byte(`{"models":[{"name":"models/gemini-2.0-flash"},{"name":"models/gemini-1.5-pro"},{"name":"bare-name"}]}`))
	})

	got, err := d.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error: %v", err)
	}
	want := []string{"gemini-2.0-flash", "gemini-1.5-pro", "bare-name"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("models[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGeminiListModels_MissingModelsArray(t *testing.T) {
	d := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nextPageToken":"x"}`))
	})
	if _, err := d.ListModels(context.Background()); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("ListModels() error = %v, want ErrMalformedResponse", err)
	}
}

func TestNewGeminiDriver_Validation(t *testing.T) {
	if _, err := NewGeminiDriver(config.Service{}, "gemini-2.0-flash", "sys"); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("NewGeminiDriver() without api key error = %v, want ErrMissingAPIKey", err)
	}
	if _, err := NewGeminiDriver(config.Service{APIKey: "k"}, "", "sys"); !errors.Is(err, ErrMissingModel) {
		t.Errorf("NewGeminiDriver() without model error = %v, want ErrMissingModel", err)
	}
	// An empty system prompt is passed through for this class.
	if _, err := NewGeminiDriver(config.Service{APIKey: "k"}, "gemini-2.0-flash", ""); err != nil {
		t.Errorf("NewGeminiDriver() with empty system prompt error = %v, want nil", err)
	}
}

func TestNewGeminiDriver_ServiceURLIgnored(t *testing.T) {
	d, err := NewGeminiDriver(config.Service{APIKey: "k", URL: "http://somewhere.else"}, "m", "sys")
	if err != nil {
		t.Fatalf("NewGeminiDriver() error: %v", err)
	}
	if d.baseURL != defaultGeminiBaseURL {
		t.Errorf("baseURL = %q, want the fixed default", d.baseURL)
	}
}
