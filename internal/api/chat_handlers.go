package api

import (
	"net/http"
	"strings"

	"github.com/toolmesh/toolmesh/internal/orchestrator"
)

// handleChat runs one turn of a persistent, tool-enabled conversation
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var in orchestrator.ChatInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if in.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	out, err := s.orch.Chat(r.Context(), in)
	if err != nil {
		s.logger.Error("chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type askRequest struct {
	Question string `json:"question"`
	Model    string `json:"model,omitempty"`
}

// handleAsk answers a single question without tools or history
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.orch.Ask(r.Context(), req.Question, req.Model)
	if err != nil {
		s.logger.Error("ask failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

type taskRequest struct {
	Task  string `json:"task"`
	Model string `json:"model,omitempty"`
}

// handleTask runs a one-shot tool-enabled task
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Task == "" {
		writeError(w, http.StatusBadRequest, "task is required")
		return
	}

	out, err := s.orch.ExecuteTask(r.Context(), req.Task, req.Model)
	if err != nil {
		s.logger.Error("task failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetConversation returns a conversation transcript
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	msgs, err := s.orch.History(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        msgs,
		"count":           len(msgs),
	})
}

// handleDeleteConversation removes a conversation and its messages
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.orch.DeleteConversation(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":         true,
		"conversation_id": id,
	})
}
