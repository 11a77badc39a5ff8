package provider

import (
	"errors"
	"testing"

	"github.com/askmecli/askme/pkg/config"
)

func TestNew_Dispatch(t *testing.T) {
	svc := config.Service{APIKey: "test-key", URL: "http://localhost:9999"}

	tests := []struct {
		class string
	}{
		{"openai"},
		{"ollama"},
		{"gemini"},
		{"anthropic"},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			d, err := New(tt.class, svc, "some-model", "be brief")
			if err != nil {
				t.Fatalf("New(%q) error: %v", tt.class, err)
			}
			if got := d.Name(); got != tt.class {
				t.Errorf("Name() = %q, want %q", got, tt.class)
			}
			if got := d.Model(); got != "some-model" {
				t.Errorf("Model() = %q, want %q", got, "some-model")
			}
			if got := d.SystemPrompt(); got != "be brief" {
				t.Errorf("SystemPrompt() = %q, want %q", got, "be brief")
			}
		})
	}
}

func TestNew_UnknownClass(t *testing.T) {
	for _, class := range []string{"foo", "OpenAI", "OLLAMA", ""} {
		_, err := New(class, config.Service{APIKey: "k"}, "m", "p")
		var uce *UnknownClassError
		if !errors.As(err, &uce) {
			t.Fatalf("New(%q) error = %v, want UnknownClassError", class, err)
		}
		if uce.Given != class {
			t.Errorf("Given = %q, want %q", uce.Given, class)
		}
		if len(uce.Valid) != 4 {
			t.Errorf("len(Valid) = %d, want 4", len(uce.Valid))
		}
	}
}

func TestSplitReasoning(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantAnswer    string
		wantReasoning string
	}{
		{
			name:          "tags present",
			raw:           "<think>ponder</think>final",
			wantAnswer:    "final",
			wantReasoning: "ponder",
		},
		{
			name:          "no tags",
			raw:           "no tags here",
			wantAnswer:    "no tags here",
			wantReasoning: "",
		},
		{
			name:          "whitespace trimmed",
			raw:           "<think>\n  deep thought \n</think>\n\n  the answer ",
			wantAnswer:    "the answer",
			wantReasoning: "deep thought",
		},
		{
			name:          "unclosed tag leaves text intact",
			raw:           "<think>never closed",
			wantAnswer:    "<think>never closed",
			wantReasoning: "",
		},
		{
			name:          "closing tag before opening tag",
			raw:           "</think>before<think>after",
			wantAnswer:    "</think>before<think>after",
			wantReasoning: "",
		},
		{
			name:          "text before the opening tag is dropped",
			raw:           "preamble<think>why</think>answer",
			wantAnswer:    "answer",
			wantReasoning: "why",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, reasoning := splitReasoning(tt.raw)
			if answer != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", answer, tt.wantAnswer)
			}
			if reasoning != tt.wantReasoning {
				t.Errorf("reasoning = %q, want %q", reasoning, tt.wantReasoning)
			}
		})
	}
}
