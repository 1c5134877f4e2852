package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/models"
	"github.com/toolmesh/toolmesh/internal/tool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider returns canned responses in sequence.
type scriptedProvider struct {
	mu    sync.Mutex
	resps []*models.ChatResponse
	errs  []error
	calls []models.ChatRequest
}

func (p *scriptedProvider) Name() string           { return "fake" }
func (p *scriptedProvider) Models() []config.Model { return []config.Model{{ID: "m", Name: "M"}} }

func (p *scriptedProvider) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.calls)
	p.calls = append(p.calls, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.resps) {
		return &models.ChatResponse{Content: "fallback answer", FinishReason: "stop"}, nil
	}
	return p.resps[i], nil
}

// echoTool returns its "text" argument.
type echoTool struct {
	delay time.Duration
	fail  bool
}

func (e *echoTool) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        "echo",
		Description: "Echo text back",
		Category:    "test",
		Parameters: []tool.Parameter{
			{Name: "text", Type: tool.TypeString, Required: true},
		},
	}
}

func (e *echoTool) Initialize(ctx context.Context) error { return nil }

func (e *echoTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.fail {
		return tool.Fail("echo broken"), nil
	}
	return tool.Ok(args["text"]), nil
}

func testLoop(t *testing.T, p *scriptedProvider, tools ...tool.Tool) *ToolLoop {
	t.Helper()
	reg := tool.NewRegistry(testLogger())
	for _, tl := range tools {
		reg.Register(tl)
	}
	router := models.NewRouter(testLogger())
	router.RegisterProvider(p)
	return NewToolLoop(reg, router, config.ChatConfig{
		MaxIterations:    3,
		MaxParallelTools: 4,
		ErrorLimit:       2,
	}, testLogger())
}

func TestRunDirectAnswer(t *testing.T) {
	p := &scriptedProvider{resps: []*models.ChatResponse{
		{Content: "just an answer", FinishReason: "stop"},
	}}
	loop := testLoop(t, p, &echoTool{})

	res, err := loop.Run(context.Background(), "fake/m",
		"be brief", []models.ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "just an answer" {
		t.Errorf("content = %q", res.Content)
	}
	if res.Metrics.Iterations != 1 || res.Metrics.ToolCalls != 0 {
		t.Errorf("metrics = %+v", res.Metrics)
	}

	// Tool schemas must reach the provider
	if len(p.calls[0].Tools) != 1 || p.calls[0].Tools[0].Name != "echo" {
		t.Errorf("tools in request = %+v", p.calls[0].Tools)
	}
	if p.calls[0].SystemPrompt != "be brief" {
		t.Errorf("system prompt = %q", p.calls[0].SystemPrompt)
	}
}

func TestRunSingleToolCall(t *testing.T) {
	p := &scriptedProvider{resps: []*models.ChatResponse{
		{ToolCalls: []models.ToolCall{
			{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "hello"}},
		}, FinishReason: "tool_calls"},
		{Content: "the tool said hello", FinishReason: "stop"},
	}}
	loop := testLoop(t, p, &echoTool{})

	res, err := loop.Run(context.Background(), "fake/m",
		"", []models.ChatMessage{{Role: "user", Content: "echo hello"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "the tool said hello" {
		t.Errorf("content = %q", res.Content)
	}
	if res.Metrics.ToolCalls != 1 || res.Metrics.SuccessCount != 1 {
		t.Errorf("metrics = %+v", res.Metrics)
	}

	// The second request must carry the envelope back as a tool message
	second := p.calls[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != "tool" || last.ToolCallID != "c1" {
		t.Fatalf("tool message = %+v", last)
	}
	var env tool.Result
	if err := json.Unmarshal([]byte(last.Content), &env); err != nil {
		t.Fatalf("envelope not JSON: %v", err)
	}
	if !env.Success || env.Result != "hello" {
		t.Errorf("envelope = %+v", env)
	}
	if env.ExecutionTime < 0 {
		t.Errorf("execution time = %v", env.ExecutionTime)
	}
}

func TestRunParallelBatchOrder(t *testing.T) {
	// Staggered delays so completion order differs from call order
	p := &scriptedProvider{resps: []*models.ChatResponse{
		{ToolCalls: []models.ToolCall{
			{ID: "c1", Name: "slow", Arguments: map[string]any{"text": "first"}},
			{ID: "c2", Name: "echo", Arguments: map[string]any{"text": "second"}},
			{ID: "c3", Name: "echo", Arguments: map[string]any{"text": "third"}},
		}},
		{Content: "done", FinishReason: "stop"},
	}}

	reg := tool.NewRegistry(testLogger())
	slow := &echoTool{delay: 50 * time.Millisecond}
	reg.Register(&namedTool{Tool: slow, name: "slow"})
	reg.Register(&echoTool{})

	router := models.NewRouter(testLogger())
	router.RegisterProvider(p)
	loop := NewToolLoop(reg, router, config.ChatConfig{MaxParallelTools: 3}, testLogger())

	res, err := loop.Run(context.Background(), "fake/m",
		"", []models.ChatMessage{{Role: "user", Content: "go"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Metrics.ToolCalls != 3 || res.Metrics.ParallelBatches != 1 {
		t.Errorf("metrics = %+v", res.Metrics)
	}

	// Tool results must come back in original call order
	second := p.calls[1]
	var ids []string
	for _, m := range second.Messages {
		if m.Role == "tool" {
			ids = append(ids, m.ToolCallID)
		}
	}
	if strings.Join(ids, ",") != "c1,c2,c3" {
		t.Errorf("result order = %v", ids)
	}
}

// namedTool overrides the wrapped tool's name.
type namedTool struct {
	tool.Tool
	name string
}

func (n *namedTool) Metadata() tool.Metadata {
	m := n.Tool.Metadata()
	m.Name = n.name
	return m
}

func TestRunUnknownToolFedBack(t *testing.T) {
	p := &scriptedProvider{resps: []*models.ChatResponse{
		{ToolCalls: []models.ToolCall{
			{ID: "c1", Name: "no_such_tool", Arguments: map[string]any{}},
		}},
		{Content: "sorry", FinishReason: "stop"},
	}}
	loop := testLoop(t, p, &echoTool{})

	res, err := loop.Run(context.Background(), "fake/m",
		"", []models.ChatMessage{{Role: "user", Content: "go"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "sorry" {
		t.Errorf("content = %q", res.Content)
	}

	second := p.calls[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != "tool" || !strings.Contains(last.Content, "no_such_tool") {
		t.Errorf("tool message = %+v", last)
	}
}

func TestRunConsecutiveErrorLimit(t *testing.T) {
	failing := []models.ToolCall{{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "x"}}}
	p := &scriptedProvider{resps: []*models.ChatResponse{
		{ToolCalls: failing},
		{ToolCalls: failing},
		{ToolCalls: failing},
	}}
	loop := testLoop(t, p, &echoTool{fail: true})

	_, err := loop.Run(context.Background(), "fake/m",
		"", []models.ChatMessage{{Role: "user", Content: "go"}})
	if err == nil || !strings.Contains(err.Error(), "consecutive") {
		t.Errorf("err = %v", err)
	}
	// ErrorLimit is 2: two failing batches, no third model call
	if len(p.calls) != 2 {
		t.Errorf("model calls = %d", len(p.calls))
	}
}

func TestRunMaxIterationsSummary(t *testing.T) {
	call := []models.ToolCall{{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "x"}}}
	p := &scriptedProvider{resps: []*models.ChatResponse{
		{ToolCalls: call},
		{ToolCalls: call},
		{ToolCalls: call},
		{Content: "summary after cap", FinishReason: "stop"},
	}}
	loop := testLoop(t, p, &echoTool{})

	res, err := loop.Run(context.Background(), "fake/m",
		"", []models.ChatMessage{{Role: "user", Content: "go"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "summary after cap" {
		t.Errorf("content = %q", res.Content)
	}
	if res.Metrics.Iterations != 3 {
		t.Errorf("iterations = %d", res.Metrics.Iterations)
	}

	// The summary call must not offer tools again
	summaryReq := p.calls[len(p.calls)-1]
	if len(summaryReq.Tools) != 0 {
		t.Errorf("summary call carried %d tools", len(summaryReq.Tools))
	}
}

func TestRunModelError(t *testing.T) {
	p := &scriptedProvider{errs: []error{fmt.Errorf("rate limited")}}
	loop := testLoop(t, p, &echoTool{})

	_, err := loop.Run(context.Background(), "fake/m",
		"", []models.ChatMessage{{Role: "user", Content: "go"}})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("err = %v", err)
	}
}
