package diagnosis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"
)

// completionRequest mirrors the wire shape of the chat completion call for
// request assertions.
type completionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	} `json:"messages"`
	MaxTokens int `json:"max_tokens"`
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient("test-key", "gpt-4o", option.WithBaseURL(server.URL))
}

func completionJSON(text string) string {
	return `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":` + mustMarshal(text) + `},"finish_reason":"stop"}]}`
}

func mustMarshal(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestDiagnose(t *testing.T) {
	image := []byte("jpeg-bytes")
	var gotReq completionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %s", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("Leaf blight. Apply copper fungicide.")))
	}))
	defer server.Close()

	result := newTestClient(server).Diagnose(context.Background(), image)

	if result.FromFallback {
		t.Fatal("expected a model result, got fallback")
	}
	if result.Text != "Leaf blight. Apply copper fungicide." {
		t.Errorf("unexpected diagnosis text: %s", result.Text)
	}

	if gotReq.Model != "gpt-4o" {
		t.Errorf("unexpected model: %s", gotReq.Model)
	}
	if gotReq.MaxTokens != 400 {
		t.Errorf("unexpected max_tokens: %d", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("expected a single user message, got %+v", gotReq.Messages)
	}

	parts := gotReq.Messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("expected image + text parts, got %d", len(parts))
	}
	wantURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	if parts[0].Type != "image_url" || parts[0].ImageURL.URL != wantURL {
		t.Errorf("unexpected image part: %+v", parts[0])
	}
	if parts[1].Type != "text" || parts[1].Text != "Diagnose the plant disease and suggest a remedy." {
		t.Errorf("unexpected text part: %+v", parts[1])
	}
}

func TestDiagnose_APIErrorFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	result := newTestClient(server).Diagnose(context.Background(), []byte("jpeg-bytes"))
	if !result.FromFallback {
		t.Fatal("expected fallback result")
	}
	if result.Text != FallbackText {
		t.Errorf("unexpected fallback text: %s", result.Text)
	}
}

func TestDiagnose_EmptyChoicesFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	result := newTestClient(server).Diagnose(context.Background(), []byte("jpeg-bytes"))
	if !result.FromFallback {
		t.Fatal("expected fallback result")
	}
	if result.Text != FallbackText {
		t.Errorf("unexpected fallback text: %s", result.Text)
	}
}

func TestDiagnose_UnreachableAPIFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	result := newTestClient(server).Diagnose(context.Background(), []byte("jpeg-bytes"))
	if !result.FromFallback || result.Text != FallbackText {
		t.Errorf("expected fallback result, got %+v", result)
	}
}
