package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/models"
	"github.com/toolmesh/toolmesh/internal/tool"
)

// ToolLoop manages the multi-turn tool execution loop
type ToolLoop struct {
	registry *tool.Registry
	router   *models.Router
	logger   *slog.Logger

	maxIterations int
	errorLimit    int
	maxParallel   int
	maxTokens     int
	temperature   float64
}

// LoopMetrics tracks tool loop performance
type LoopMetrics struct {
	Iterations      int           `json:"iterations"`
	ToolCalls       int           `json:"tool_calls"`
	SuccessCount    int           `json:"success_count"`
	ErrorCount      int           `json:"error_count"`
	ParallelBatches int           `json:"parallel_batches"`
	Duration        time.Duration `json:"-"`
}

// LoopResult is the outcome of a completed tool loop.
type LoopResult struct {
	Content  string
	Messages []models.ChatMessage // full updated transcript
	Metrics  *LoopMetrics
}

// parallelToolResult holds the outcome of a single tool call executed in parallel.
type parallelToolResult struct {
	Index  int
	Call   models.ToolCall
	Result *tool.Result
	Err    error
}

// NewToolLoop creates a new tool loop
func NewToolLoop(reg *tool.Registry, router *models.Router, cfg config.ChatConfig, logger *slog.Logger) *ToolLoop {
	if logger == nil {
		logger = slog.Default()
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}
	errorLimit := cfg.ErrorLimit
	if errorLimit <= 0 {
		errorLimit = 3
	}
	maxParallel := cfg.MaxParallelTools
	if maxParallel <= 0 {
		maxParallel = 5
	}

	return &ToolLoop{
		registry:      reg,
		router:        router,
		logger:        logger.With("component", "tool_loop"),
		maxIterations: maxIter,
		errorLimit:    errorLimit,
		maxParallel:   maxParallel,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
	}
}

// Run drives the model/tool conversation until the model produces a
// text-only answer, the iteration cap is hit, or too many consecutive
// tool batches fail.
func (tl *ToolLoop) Run(ctx context.Context, modelID, systemPrompt string, messages []models.ChatMessage) (*LoopResult, error) {
	start := time.Now()
	metrics := &LoopMetrics{}
	tools := tl.registry.Schemas()

	consecutiveErrors := 0
	var finalContent string
	needsSummary := false

	for iteration := 0; iteration < tl.maxIterations; iteration++ {
		metrics.Iterations++

		resp, err := tl.callModel(ctx, modelID, systemPrompt, messages, tools)
		if err != nil {
			return nil, fmt.Errorf("model call (iteration %d): %w", iteration, err)
		}

		messages = append(messages, models.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		// No tool calls means the model produced its final answer
		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			tl.logger.Info("tool loop complete", "iterations", iteration+1)
			break
		}

		batchResults := tl.executeParallel(ctx, resp.ToolCalls)
		if len(resp.ToolCalls) > 1 {
			metrics.ParallelBatches++
		}

		// Fan-in results in original call order
		batchAllFailed := true
		for _, pr := range batchResults {
			metrics.ToolCalls++

			if pr.Err != nil {
				metrics.ErrorCount++
				messages = append(messages, models.ChatMessage{
					Role:       "tool",
					ToolCallID: pr.Call.ID,
					Content:    fmt.Sprintf("Error executing %s: %v", pr.Call.Name, pr.Err),
				})
				continue
			}

			if pr.Result.Success {
				metrics.SuccessCount++
				batchAllFailed = false
			} else {
				metrics.ErrorCount++
			}

			messages = append(messages, formatToolResult(pr.Call, pr.Result))
		}

		// Only a fully failed batch counts toward the consecutive error limit
		if batchAllFailed {
			consecutiveErrors++
			if consecutiveErrors >= tl.errorLimit {
				return nil, fmt.Errorf("too many consecutive tool errors (%d)", consecutiveErrors)
			}
		} else {
			consecutiveErrors = 0
		}

		if iteration == tl.maxIterations-1 {
			needsSummary = true
		}
	}

	metrics.Duration = time.Since(start)

	// The loop ended on tool results rather than a text answer. Make one
	// final call without tools so the model has to summarize.
	if needsSummary || finalContent == "" {
		tl.logger.Info("making summary model call",
			"max_iterations_hit", needsSummary,
			"empty_content", finalContent == "")
		resp, err := tl.callModel(ctx, modelID, systemPrompt, messages, nil)
		if err != nil {
			return nil, fmt.Errorf("summary model call: %w", err)
		}
		finalContent = resp.Content
		messages = append(messages, models.ChatMessage{Role: "assistant", Content: resp.Content})
	}

	return &LoopResult{
		Content:  finalContent,
		Messages: messages,
		Metrics:  metrics,
	}, nil
}

// executeParallel executes a batch of tool calls concurrently and returns
// results in the original call order. For a single call, it takes the fast
// path with no goroutine overhead.
func (tl *ToolLoop) executeParallel(ctx context.Context, calls []models.ToolCall) []parallelToolResult {
	results := make([]parallelToolResult, len(calls))

	if len(calls) == 1 {
		res, err := tl.registry.Invoke(ctx, calls[0].Name, calls[0].Arguments)
		results[0] = parallelToolResult{Index: 0, Call: calls[0], Result: res, Err: err}
		return results
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(tl.maxParallel)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				results[i] = parallelToolResult{Index: i, Call: call, Err: gCtx.Err()}
				return nil
			default:
			}
			res, err := tl.registry.Invoke(gCtx, call.Name, call.Arguments)
			// Unique index per goroutine, no mutex needed
			results[i] = parallelToolResult{Index: i, Call: call, Result: res, Err: err}
			return nil // errors are captured in the result slot
		})
	}

	_ = g.Wait()
	return results
}

func (tl *ToolLoop) callModel(ctx context.Context, modelID, systemPrompt string, messages []models.ChatMessage, tools []tool.Schema) (*models.ChatResponse, error) {
	return tl.router.Chat(ctx, modelID, models.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Tools:        tools,
		MaxTokens:    tl.maxTokens,
		Temperature:  tl.temperature,
	})
}

// formatToolResult serializes a result envelope as a tool message so the
// model sees the same JSON shape the HTTP API returns.
func formatToolResult(call models.ToolCall, res *tool.Result) models.ChatMessage {
	b, err := json.Marshal(res)
	if err != nil {
		b = []byte(fmt.Sprintf(`{"success":false,"error":%q}`, err.Error()))
	}
	return models.ChatMessage{
		Role:       "tool",
		ToolCallID: call.ID,
		Content:    string(b),
	}
}
