// Package translate contains tests for the translation client.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// endpoint / prompt rendering
// ---------------------------------------------------------------------------

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080/v1/chat/completions", "http://localhost:8080/v1/chat/completions"},
	}
	for _, tc := range tests {
		p := Provider{BaseURL: tc.base}
		if got := p.endpoint(); got != tc.want {
			t.Errorf("endpoint(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestRenderPrompt(t *testing.T) {
	got := renderPrompt(SystemPrompt, "Русский", "")
	if !strings.Contains(got, "target language: Русский") {
		t.Fatalf("rendered prompt missing target language:\n%s", got)
	}
	if strings.Contains(got, "{{targetLang}}") || strings.Contains(got, "{{context}}") {
		t.Fatalf("rendered prompt still has placeholders:\n%s", got)
	}

	withCtx := renderPrompt(SystemPrompt, "Deutsch", "A disk imaging tool for Linux.")
	if !strings.Contains(withCtx, "Software Context:\nA disk imaging tool for Linux.") {
		t.Fatalf("rendered prompt missing context block:\n%s", withCtx)
	}
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

func TestParseBatchResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "plain object",
			content: `{"Hello": "Привет", "Bye": "Пока"}`,
			want:    map[string]string{"Hello": "Привет", "Bye": "Пока"},
		},
		{
			name:    "markdown code fence",
			content: "```json\n{\"Hello\": \"Привет\"}\n```",
			want:    map[string]string{"Hello": "Привет"},
		},
		{
			name:    "fence without language tag",
			content: "```\n{\"Hello\": \"Привет\"}\n```",
			want:    map[string]string{"Hello": "Привет"},
		},
		{
			name:    "prose envelope",
			content: `Here are the translations: {"Hello": "Привет"} Hope that helps!`,
			want:    map[string]string{"Hello": "Привет"},
		},
		{
			name:    "empty content",
			content: "   ",
			wantErr: true,
		},
		{
			name:    "no object",
			content: "Sorry, I cannot translate that.",
			wantErr: true,
		},
		{
			name:    "invalid JSON inside braces",
			content: `{"Hello": Привет}`,
			wantErr: true,
		},
		{
			name:    "empty object",
			content: `{}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseBatchResponse(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseBatchResponse() = %#v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBatchResponse() error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("parseBatchResponse() = %#v, want %#v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("parseBatchResponse()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestExtractResponseText(t *testing.T) {
	body := `{"choices": [{"message": {"content": "{\"A\": \"a\"}"}}]}`
	got, err := extractResponseText([]byte(body))
	if err != nil {
		t.Fatalf("extractResponseText() error: %v", err)
	}
	if got != `{"A": "a"}` {
		t.Fatalf("extractResponseText() = %q", got)
	}

	if _, err := extractResponseText([]byte(`{"error": {"message": "invalid model"}}`)); err == nil || !strings.Contains(err.Error(), "invalid model") {
		t.Fatalf("extractResponseText(error body) = %v, want API error", err)
	}
	if _, err := extractResponseText([]byte(`{"choices": []}`)); err == nil {
		t.Fatalf("extractResponseText(no choices) = nil error, want error")
	}
	if _, err := extractResponseText([]byte(`not json`)); err == nil {
		t.Fatalf("extractResponseText(invalid) = nil error, want error")
	}
}

func TestParseRetryDelay(t *testing.T) {
	body := `{"error": {"details": [{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "12s"}]}}`
	if got := parseRetryDelay([]byte(body)); got != 17*time.Second {
		t.Fatalf("parseRetryDelay() = %v, want 17s (12s + 5s buffer)", got)
	}

	if got := parseRetryDelay([]byte(`{}`)); got != 65*time.Second {
		t.Fatalf("parseRetryDelay(no details) = %v, want default 65s", got)
	}
	if got := parseRetryDelay([]byte(`garbage`)); got != 65*time.Second {
		t.Fatalf("parseRetryDelay(garbage) = %v, want default 65s", got)
	}
}

// ---------------------------------------------------------------------------
// TranslateBatch end to end (httptest)
// ---------------------------------------------------------------------------

// chatResponse builds a minimal chat/completions success body whose
// message content is the given string.
func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestTranslateBatch(t *testing.T) {
	var gotAuth string
	var gotReq map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		fmt.Fprint(w, chatResponse(`{"Hello": "Hallo", "Bye": "Tschüss"}`))
	}))
	defer srv.Close()

	c := NewClient(Provider{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-4o"})
	got, err := c.TranslateBatch(context.Background(), map[string]string{"Hello": "Hi", "Bye": "Bye"}, "Deutsch")
	if err != nil {
		t.Fatalf("TranslateBatch() error: %v", err)
	}

	if got["Hello"] != "Hallo" || got["Bye"] != "Tschüss" {
		t.Fatalf("TranslateBatch() = %#v", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotReq["model"] != "gpt-4o" {
		t.Fatalf("request model = %v, want gpt-4o", gotReq["model"])
	}
	if gotReq["stream"] != false {
		t.Fatalf("request stream = %v, want false", gotReq["stream"])
	}

	// The batch travels in the user message; the target language in the
	// system message.
	msgs, ok := gotReq["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("request messages = %v, want system + user", gotReq["messages"])
	}
	system := msgs[0].(map[string]any)["content"].(string)
	user := msgs[1].(map[string]any)["content"].(string)
	if !strings.Contains(system, "Deutsch") {
		t.Fatalf("system message missing target language:\n%s", system)
	}
	if !strings.Contains(user, `"Hello"`) || !strings.Contains(user, `"Bye"`) {
		t.Fatalf("user message missing batch keys:\n%s", user)
	}
}

func TestTranslateBatchRetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream overloaded", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, chatResponse(`{"A": "a-de"}`))
	}))
	defer srv.Close()

	c := NewClient(Provider{BaseURL: srv.URL, Model: "m", MaxRetries: 2})
	got, err := c.TranslateBatch(context.Background(), map[string]string{"A": "a"}, "Deutsch")
	if err != nil {
		t.Fatalf("TranslateBatch() error after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("server calls = %d, want 2 (one failure, one success)", calls)
	}
	if got["A"] != "a-de" {
		t.Fatalf("TranslateBatch() = %#v", got)
	}
}

func TestTranslateBatchClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error": {"message": "bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Provider{BaseURL: srv.URL, Model: "m", MaxRetries: 3})
	if _, err := c.TranslateBatch(context.Background(), map[string]string{"A": "a"}, "fr"); err == nil {
		t.Fatalf("TranslateBatch(400) = nil error, want error")
	}
	if calls != 1 {
		t.Fatalf("server calls = %d, want 1 (4xx is not retried)", calls)
	}
}

func TestTranslateBatchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse(`{"A": "a"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Provider{BaseURL: srv.URL, Model: "m"})
	if _, err := c.TranslateBatch(ctx, map[string]string{"A": "a"}, "fr"); err == nil {
		t.Fatalf("TranslateBatch(cancelled) = nil error, want context error")
	}
}
