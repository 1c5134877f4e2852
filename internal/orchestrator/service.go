// Package orchestrator coordinates models, tools and conversation state.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/history"
	"github.com/toolmesh/toolmesh/internal/models"
	"github.com/toolmesh/toolmesh/internal/tool"
)

// Service is the high-level conversational entry point. It owns the tool
// loop and persists transcripts to the history store.
type Service struct {
	registry     *tool.Registry
	router       *models.Router
	store        *history.Store
	loop         *ToolLoop
	systemPrompt string
	windowSize   int
	logger       *slog.Logger
}

// ChatInput is a single user turn in a persistent conversation.
type ChatInput struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	Message        string `json:"message"`
}

// ChatOutput is the answer to one user turn.
type ChatOutput struct {
	ConversationID string       `json:"conversation_id"`
	Model          string       `json:"model"`
	Content        string       `json:"content"`
	Metrics        *LoopMetrics `json:"metrics,omitempty"`
}

// TaskOutput is the outcome of a one-shot task execution.
type TaskOutput struct {
	Content string       `json:"content"`
	Steps   []TaskStep   `json:"steps"`
	Metrics *LoopMetrics `json:"metrics,omitempty"`
}

// TaskStep records one tool invocation made while working on a task.
type TaskStep struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// NewService creates the orchestration service.
func NewService(reg *tool.Registry, router *models.Router, store *history.Store, cfg config.ChatConfig, windowSize int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if windowSize <= 0 {
		windowSize = 20
	}
	return &Service{
		registry:     reg,
		router:       router,
		store:        store,
		loop:         NewToolLoop(reg, router, cfg, logger),
		systemPrompt: cfg.SystemPrompt,
		windowSize:   windowSize,
		logger:       logger.With("component", "orchestrator"),
	}
}

// Chat handles one turn of a persistent, tool-enabled conversation.
// A missing conversation ID starts a new conversation.
func (s *Service) Chat(ctx context.Context, in ChatInput) (*ChatOutput, error) {
	if in.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	convID := in.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}

	modelID := in.Model
	if modelID == "" {
		modelID = s.router.Default()
	}

	window, err := s.store.Window(ctx, convID, s.windowSize)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	userMsg := models.ChatMessage{Role: "user", Content: in.Message}
	messages := append(window, userMsg)

	result, err := s.loop.Run(ctx, modelID, s.systemPrompt, messages)
	if err != nil {
		return nil, err
	}

	// Persist the user turn plus everything the loop appended
	for _, m := range result.Messages[len(window):] {
		if err := s.store.Append(ctx, convID, m); err != nil {
			return nil, fmt.Errorf("persist history: %w", err)
		}
	}

	s.logger.Info("chat turn complete",
		"conversation", convID,
		"model", modelID,
		"iterations", result.Metrics.Iterations,
		"tool_calls", result.Metrics.ToolCalls,
	)

	return &ChatOutput{
		ConversationID: convID,
		Model:          modelID,
		Content:        result.Content,
		Metrics:        result.Metrics,
	}, nil
}

// Ask answers a single question without tools or history.
func (s *Service) Ask(ctx context.Context, question, modelID string) (string, error) {
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	resp, err := s.router.Chat(ctx, modelID, models.ChatRequest{
		SystemPrompt: s.systemPrompt,
		Messages:     []models.ChatMessage{{Role: "user", Content: question}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ExecuteTask runs a one-shot, tool-enabled task with no persistent
// history and reports which tools were invoked along the way.
func (s *Service) ExecuteTask(ctx context.Context, task, modelID string) (*TaskOutput, error) {
	if task == "" {
		return nil, fmt.Errorf("task is required")
	}

	messages := []models.ChatMessage{{Role: "user", Content: task}}

	result, err := s.loop.Run(ctx, modelID, s.systemPrompt, messages)
	if err != nil {
		return nil, err
	}

	var steps []TaskStep
	for _, m := range result.Messages {
		for _, tc := range m.ToolCalls {
			steps = append(steps, TaskStep{Tool: tc.Name, Arguments: tc.Arguments})
		}
	}

	return &TaskOutput{
		Content: result.Content,
		Steps:   steps,
		Metrics: result.Metrics,
	}, nil
}

// History returns the full transcript of a conversation.
func (s *Service) History(ctx context.Context, convID string) ([]models.ChatMessage, error) {
	ok, err := s.store.Exists(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("conversation not found: %s", convID)
	}
	return s.store.Messages(ctx, convID)
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, convID string) error {
	ok, err := s.store.Exists(ctx, convID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("conversation not found: %s", convID)
	}
	return s.store.Delete(ctx, convID)
}
