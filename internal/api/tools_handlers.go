package api

import (
	"net/http"
)

// handleListTools returns metadata for every registered tool
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	metas := s.registry.AllMetadata()
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": metas,
		"count": len(metas),
	})
}

// handleCategories returns the category index
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.registry.Categories(),
	})
}

// handleSearchTools filters tools by keyword, category and tag query params
func (s *Server) handleSearchTools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metas := s.registry.Search(q.Get("q"), q.Get("category"), q.Get("tag"))
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": metas,
		"count": len(metas),
	})
}

// handleToolsByCategory lists tools in one category
func (s *Server) handleToolsByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	tools := s.registry.ByCategory(category)
	if len(tools) == 0 {
		writeError(w, http.StatusNotFound, "category not found: "+category)
		return
	}

	metas := make([]any, 0, len(tools))
	for _, t := range tools {
		metas = append(metas, t.Metadata())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"tools":    metas,
		"count":    len(metas),
	})
}

// handleGetTool returns one tool's metadata and function-calling schema
func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	t, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "tool not found: "+name)
		return
	}

	meta := t.Metadata()
	writeJSON(w, http.StatusOK, map[string]any{
		"tool":   meta,
		"schema": meta.Schema(),
	})
}

type executeRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// handleExecuteTool runs a tool and returns its result envelope. Failed
// executions still return 200: the envelope carries the error.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}

	res, err := s.registry.Invoke(r.Context(), name, req.Parameters)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}
