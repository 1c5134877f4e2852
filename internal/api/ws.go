package api

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/toolmesh/toolmesh/internal/orchestrator"
	"github.com/toolmesh/toolmesh/internal/security"
)

// WSRequest is the JSON structure sent by a websocket chat client.
type WSRequest struct {
	Type           string `json:"type"` // "chat", "ping"
	RequestID      string `json:"request_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	Message        string `json:"message,omitempty"`
}

// WSResponse is the JSON structure sent back to the client.
type WSResponse struct {
	Type           string `json:"type"` // "answer", "error", "pong"
	RequestID      string `json:"request_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Model          string `json:"model,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleChatWS upgrades the connection and drives an interactive chat
// session. Browsers cannot set an Authorization header on websocket
// upgrades, so the JWT rides in the ?token= query param.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.jwtSecret != nil {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
			return
		}
		if _, err := security.ValidateToken(tokenStr, s.jwtSecret); err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // accept any Origin for dev convenience
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session ended")

	s.logger.Info("ws chat connected", "remote", r.RemoteAddr)

	for {
		var req WSRequest
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			// Client disconnected or context cancelled
			s.logger.Debug("ws read ended", "error", err)
			return
		}

		switch req.Type {
		case "ping":
			s.wsSend(r.Context(), conn, WSResponse{
				Type:      "pong",
				RequestID: req.RequestID,
			})

		case "chat":
			s.handleWSChatTurn(r.Context(), conn, &req)

		default:
			s.wsSend(r.Context(), conn, WSResponse{
				Type:      "error",
				RequestID: req.RequestID,
				Error:     "unknown message type: " + req.Type,
			})
		}
	}
}

// handleWSChatTurn runs one chat turn and sends the answer back.
func (s *Server) handleWSChatTurn(ctx context.Context, conn *websocket.Conn, req *WSRequest) {
	if req.Message == "" {
		s.wsSend(ctx, conn, WSResponse{
			Type:      "error",
			RequestID: req.RequestID,
			Error:     "message is required",
		})
		return
	}

	out, err := s.orch.Chat(ctx, orchestrator.ChatInput{
		ConversationID: req.ConversationID,
		Model:          req.Model,
		Message:        req.Message,
	})
	if err != nil {
		s.wsSend(ctx, conn, WSResponse{
			Type:           "error",
			RequestID:      req.RequestID,
			ConversationID: req.ConversationID,
			Error:          err.Error(),
		})
		return
	}

	s.wsSend(ctx, conn, WSResponse{
		Type:           "answer",
		RequestID:      req.RequestID,
		ConversationID: out.ConversationID,
		Content:        out.Content,
		Model:          out.Model,
	})
}

func (s *Server) wsSend(ctx context.Context, conn *websocket.Conn, resp WSResponse) {
	if err := wsjson.Write(ctx, conn, resp); err != nil {
		s.logger.Debug("ws write failed", "error", err)
	}
}
