// Package models implements LLM provider clients and routing.
package models

import (
	"context"

	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/tool"
)

// Provider is a chat-completion backend (OpenAI, Anthropic, Ollama, ...).
type Provider interface {
	Name() string
	Models() []config.Model
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	Model        string
	SystemPrompt string
	Messages     []ChatMessage
	Tools        []tool.Schema
	MaxTokens    int
	Temperature  float64
}

// ChatMessage is a single turn in a conversation. Role is one of
// "user", "assistant" or "tool". Tool result messages carry the
// ToolCallID they answer.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is a provider-agnostic chat completion result.
type ChatResponse struct {
	Content      string
	Model        string
	ToolCalls    []ToolCall
	TokensInput  int
	TokensOutput int
	FinishReason string
}
