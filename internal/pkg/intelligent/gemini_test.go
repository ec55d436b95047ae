package intelligent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"no fences", "<p>plain</p>", "<p>plain</p>"},
		{"html fence", "```html\n<p>hi</p>\n```", "\n<p>hi</p>\n"},
		{"bare fence", "```\ncode\n```", "\ncode\n"},
		{"multiple fences", "```html a ``` b ```html c ```", " a  b  c "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFences(tc.in); got != tc.want {
				t.Fatalf("StripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestGeminiClient_Generate(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in query")
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}

		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "```html<p>Use a map.</p>```"},
				}}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewGeminiClient(srv.URL, "gemini-2.0-flash", "test-key")

	answer, err := client.Generate(context.Background(), "How do I dedupe a slice in Go?", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "<p>Use a map.</p>" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if !strings.Contains(gotPrompt, "How do I dedupe a slice in Go?") {
		t.Fatalf("prompt missing question: %q", gotPrompt)
	}
	if strings.Contains(gotPrompt, "Previous Answer") {
		t.Fatalf("prompt must not mention a previous answer on first generation")
	}
}

func TestGeminiClient_RegenerationMentionsPreviousAnswer(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "<p>Another way.</p>"}}}},
			},
		})
	}))
	defer srv.Close()

	client := NewGeminiClient(srv.URL, "", "k")
	if _, err := client.Generate(context.Background(), "q", "<p>Old answer</p>"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(gotPrompt, "Previous Answer: <p>Old answer</p>") {
		t.Fatalf("prompt missing previous answer: %q", gotPrompt)
	}
}

func TestGeminiClient_UpstreamErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewGeminiClient(srv.URL, "", "k")
	if _, err := client.Generate(context.Background(), "q", ""); err == nil {
		t.Fatalf("expected error on upstream failure")
	}
}
