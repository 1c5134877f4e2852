package models

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/toolmesh/toolmesh/internal/config"
)

// Router indexes providers and routes chat requests by model ID
type Router struct {
	providers map[string]Provider
	models    map[string]*ModelInfo // full ID -> info
	defaultID string
	usage     *UsageTracker
	logger    *slog.Logger
	mu        sync.RWMutex
}

// ModelInfo contains full information about a model
type ModelInfo struct {
	ID           string       `json:"id"`
	Provider     string       `json:"provider"`
	Config       config.Model `json:"config"`
	ProviderImpl Provider     `json:"-"`
}

// UsageTracker tracks per-model API usage
type UsageTracker struct {
	mu    sync.RWMutex
	usage map[string]*ModelUsage
}

// ModelUsage tracks usage for a specific model
type ModelUsage struct {
	TotalRequests  int64 `json:"total_requests"`
	TotalTokensIn  int64 `json:"total_tokens_in"`
	TotalTokensOut int64 `json:"total_tokens_out"`
}

// NewRouter creates a new model router
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		providers: make(map[string]Provider),
		models:    make(map[string]*ModelInfo),
		usage: &UsageTracker{
			usage: make(map[string]*ModelUsage),
		},
		logger: logger.With("component", "model-router"),
	}
}

// BuildRouter constructs a router from configuration, instantiating a
// provider per configured entry.
func BuildRouter(cfg config.ModelsConfig, logger *slog.Logger) (*Router, error) {
	r := NewRouter(logger)

	for name, pc := range cfg.Providers {
		var p Provider
		switch pc.Type {
		case "openai":
			p = NewOpenAIProvider(name, pc)
		case "anthropic":
			ap := NewAnthropicProvider(pc)
			ap.SetName(name)
			p = ap
		case "ollama":
			op := NewOllamaProvider(pc)
			op.SetName(name)
			p = op
		default:
			return nil, fmt.Errorf("unknown provider type %q for provider %s", pc.Type, name)
		}
		r.RegisterProvider(p)
	}

	if cfg.Default != "" {
		if _, err := r.GetModel(cfg.Default); err != nil {
			return nil, fmt.Errorf("default model: %w", err)
		}
		r.defaultID = cfg.Default
	}

	return r, nil
}

// RegisterProvider adds a provider and indexes all its models
func (r *Router) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	providerName := p.Name()
	r.providers[providerName] = p

	for _, model := range p.Models() {
		fullID := fmt.Sprintf("%s/%s", providerName, model.ID)
		r.models[fullID] = &ModelInfo{
			ID:           fullID,
			Provider:     providerName,
			Config:       model,
			ProviderImpl: p,
		}
		r.logger.Info("model registered",
			"id", fullID,
			"name", model.Name,
			"context", model.ContextWindow,
		)
	}

	r.logger.Info("provider registered",
		"name", providerName,
		"models", len(p.Models()),
	)
}

// Default returns the configured default model ID
func (r *Router) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// Chat routes a chat request to the model identified by modelID
// (format "provider/model"). An empty modelID uses the default.
func (r *Router) Chat(ctx context.Context, modelID string, req ChatRequest) (*ChatResponse, error) {
	if modelID == "" {
		modelID = r.Default()
	}
	if modelID == "" {
		return nil, fmt.Errorf("no model specified and no default configured")
	}

	provider, model, err := r.parseModelID(modelID)
	if err != nil {
		return nil, err
	}

	req.Model = model

	r.mu.RLock()
	_, ok := r.models[modelID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model not found: %s", modelID)
	}

	resp, err := provider.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat error: %w", err)
	}

	r.trackUsage(modelID, resp)

	return resp, nil
}

// parseModelID splits "provider/model" into components
func (r *Router) parseModelID(modelID string) (Provider, string, error) {
	parts := strings.SplitN(modelID, "/", 2)
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("invalid model ID format (expected provider/model): %s", modelID)
	}

	providerName := parts[0]
	modelName := parts[1]

	r.mu.RLock()
	provider, ok := r.providers[providerName]
	r.mu.RUnlock()

	if !ok {
		return nil, "", fmt.Errorf("provider not found: %s", providerName)
	}

	return provider, modelName, nil
}

// trackUsage records token usage for a model
func (r *Router) trackUsage(modelID string, resp *ChatResponse) {
	r.usage.mu.Lock()
	defer r.usage.mu.Unlock()

	u, ok := r.usage.usage[modelID]
	if !ok {
		u = &ModelUsage{}
		r.usage.usage[modelID] = u
	}

	u.TotalRequests++
	u.TotalTokensIn += int64(resp.TokensInput)
	u.TotalTokensOut += int64(resp.TokensOutput)

	r.logger.Debug("usage tracked",
		"model", modelID,
		"tokens_in", resp.TokensInput,
		"tokens_out", resp.TokensOutput,
	)
}

// GetUsage returns usage stats for a model
func (r *Router) GetUsage(modelID string) *ModelUsage {
	r.usage.mu.RLock()
	defer r.usage.mu.RUnlock()

	u, ok := r.usage.usage[modelID]
	if !ok {
		return &ModelUsage{}
	}
	cp := *u
	return &cp
}

// GetModel returns info about a specific model
func (r *Router) GetModel(modelID string) (*ModelInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.models[modelID]
	if !ok {
		return nil, fmt.Errorf("model not found: %s", modelID)
	}

	return info, nil
}

// ListModels returns all available models, sorted by ID
func (r *Router) ListModels() []*ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*ModelInfo, 0, len(r.models))
	for _, info := range r.models {
		models = append(models, info)
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].ID < models[j].ID
	})
	return models
}
