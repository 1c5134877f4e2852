package models

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/tool"
)

func TestNewOpenAIProvider(t *testing.T) {
	cfg := config.ProviderConfig{
		BaseURL: "https://api.openai.com/v1",
		APIKey:  "test-key",
		Models: []config.Model{
			{ID: "gpt-4", Name: "GPT-4"},
		},
	}

	p := NewOpenAIProvider("openai", cfg)

	if p.Name() != "openai" {
		t.Errorf("expected name 'openai', got '%s'", p.Name())
	}

	if len(p.Models()) != 1 {
		t.Errorf("expected 1 model, got %d", len(p.Models()))
	}
}

func TestOpenAIChatSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("bad authorization header: %s", r.Header.Get("Authorization"))
		}

		resp := `{
			"id": "chatcmpl-123",
			"model": "gpt-4",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Hello!"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
		}`
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	}))
	defer server.Close()

	p := NewOpenAIProvider("openai", config.ProviderConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
	})

	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:    "gpt-4",
		Messages: []ChatMessage{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Content != "Hello!" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.TokensInput != 120 || resp.TokensOutput != 30 {
		t.Errorf("tokens = %d/%d", resp.TokensInput, resp.TokensOutput)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
}

func TestOpenAIChatToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		// The tool definitions must ride along as function declarations
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		tools, ok := req["tools"].([]any)
		if !ok || len(tools) != 1 {
			t.Fatalf("expected 1 tool in request, got %v", req["tools"])
		}
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		if fn["name"] != "google_search" {
			t.Errorf("tool name = %v", fn["name"])
		}

		resp := `{
			"model": "gpt-4",
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "google_search", "arguments": "{\"query\":\"golang\",\"num_results\":5}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 50, "completion_tokens": 20}
		}`
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	}))
	defer server.Close()

	p := NewOpenAIProvider("openai", config.ProviderConfig{BaseURL: server.URL, APIKey: "k"})

	schema := tool.Metadata{
		Name:        "google_search",
		Description: "Search the web",
		Parameters: []tool.Parameter{
			{Name: "query", Type: tool.TypeString, Required: true},
		},
	}.Schema()

	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:    "gpt-4",
		Messages: []ChatMessage{{Role: "user", Content: "search golang"}},
		Tools:    []tool.Schema{schema},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_abc" || tc.Name != "google_search" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Arguments["query"] != "golang" {
		t.Errorf("arguments = %v", tc.Arguments)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
}

func TestOpenAIChatToolResultMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []map[string]any `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}

		// user, assistant w/ tool_calls, tool result
		if len(req.Messages) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(req.Messages))
		}
		last := req.Messages[2]
		if last["role"] != "tool" || last["tool_call_id"] != "call_abc" {
			t.Errorf("tool message = %v", last)
		}

		resp := `{
			"model": "gpt-4",
			"choices": [{"message": {"role": "assistant", "content": "Done."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5}
		}`
		_, _ = w.Write([]byte(resp))
	}))
	defer server.Close()

	p := NewOpenAIProvider("openai", config.ProviderConfig{BaseURL: server.URL, APIKey: "k"})

	_, err := p.Chat(context.Background(), ChatRequest{
		Model: "gpt-4",
		Messages: []ChatMessage{
			{Role: "user", Content: "search"},
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "call_abc", Name: "google_search", Arguments: map[string]any{"query": "x"}}}},
			{Role: "tool", ToolCallID: "call_abc", Content: `{"success":true}`},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("openai", config.ProviderConfig{BaseURL: server.URL, APIKey: "bad"})

	_, err := p.Chat(context.Background(), ChatRequest{Model: "gpt-4"})
	if err == nil {
		t.Fatal("expected error")
	}
}
