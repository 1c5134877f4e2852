package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Registry is the process-wide index of tools by name and category.
//
// Registration normally happens once at startup, but every mutation runs under
// a single lock scope so the name index and the derived category index can
// never diverge, even with concurrent registration.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	categories map[string][]string // category -> tool names, registration order
	order      []string            // name registration order
	logger     *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:      make(map[string]Tool),
		categories: make(map[string][]string),
		logger:     logger.With("component", "tool_registry"),
	}
}

// Register indexes a tool under its metadata name. Registering the same name
// again replaces the previous tool; if the category changed, the stale category
// membership is pruned so the category index only ever reflects currently
// registered tools.
func (r *Registry) Register(t Tool) {
	meta := t.Metadata()
	name := meta.Name
	category := meta.Category

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.tools[name]; exists {
		if old := prev.Metadata().Category; old != category {
			r.categories[old] = removeName(r.categories[old], name)
			if len(r.categories[old]) == 0 {
				delete(r.categories, old)
			}
		}
	} else {
		r.order = append(r.order, name)
	}

	r.tools[name] = t
	if !containsName(r.categories[category], name) {
		r.categories[category] = append(r.categories[category], name)
	}

	r.logger.Info("tool registered", "name", name, "category", category, "version", meta.Version)
}

// Get returns the tool registered under name. Absence is a valid outcome.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ByCategory returns all tools in a category, in registration order. An
// unknown category yields an empty slice.
func (r *Registry) ByCategory(category string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.categories[category]
	result := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			result = append(result, t)
		}
	}
	return result
}

// Categories returns the category index as category -> tool names.
func (r *Registry) Categories() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.categories))
	for cat, names := range r.categories {
		out[cat] = append([]string(nil), names...)
	}
	return out
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// AllMetadata returns a snapshot of every registered tool's metadata, in
// registration order.
func (r *Registry) AllMetadata() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.order))
	for _, name := range r.order {
		if t, ok := r.tools[name]; ok {
			out = append(out, t.Metadata())
		}
	}
	return out
}

// Schemas derives the function-calling schema for every registered tool.
func (r *Registry) Schemas() []Schema {
	metas := r.AllMetadata()
	out := make([]Schema, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.Schema())
	}
	return out
}

// Search filters tool metadata by keyword (substring of name or description,
// case-insensitive), category, and tag. Empty filters match everything.
func (r *Registry) Search(keyword, category, tag string) []Metadata {
	keyword = strings.ToLower(keyword)

	var out []Metadata
	for _, m := range r.AllMetadata() {
		if category != "" && m.Category != category {
			continue
		}
		if tag != "" && !containsName(m.Tags, tag) {
			continue
		}
		if keyword != "" {
			haystack := strings.ToLower(m.Name + " " + m.Description)
			if !strings.Contains(haystack, keyword) {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// Invoke runs the named tool through the safe-invocation protocol. It is the
// sole invocation entry point exposed to the HTTP and orchestration layers.
// The only error it returns is an unknown tool name; every execution outcome,
// success or failure, is carried in the envelope.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool %q not found", name)
	}
	return Invoke(ctx, t, args), nil
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
