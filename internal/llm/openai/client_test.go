package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"csreply-backend/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func withServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	oldURL := apiURL
	apiURL = server.URL
	t.Cleanup(func() {
		apiURL = oldURL
		server.Close()
	})
}

func TestCompleteSendsMessagesAndTemperature(t *testing.T) {
	var mu sync.Mutex
	var lastBody map[string]any
	var auth string
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		lastBody = payload
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"reply\":\"안녕하세요\"} "}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	})

	client, err := NewClient("test-key", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	out, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"reply":"안녕하세요"}` {
		t.Fatalf("unexpected content %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if auth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if _, ok := lastBody["temperature"]; !ok {
		t.Fatalf("expected temperature for gpt-4o-mini")
	}
	msgs, _ := lastBody["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %v", lastBody["messages"])
	}
}

func TestCompleteOmitsTemperatureForGPT5(t *testing.T) {
	var lastBody map[string]any
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	})
	client, _ := NewClient("k", "gpt-5-mini")
	if _, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "x"}}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, ok := lastBody["temperature"]; ok {
		t.Fatalf("temperature must be omitted for gpt-5 models")
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	})
	client, _ := NewClient("k", "gpt-4o")
	_, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "x"}})
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient("", "gpt-4o"); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewClient("k", " "); err == nil {
		t.Fatalf("expected error without model")
	}
}
