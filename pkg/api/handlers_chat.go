package api

import (
	"net/http"
	"strings"

	"github.com/odvcencio/taskmate/pkg/chat"
	apperrors "github.com/odvcencio/taskmate/pkg/errors"
	"github.com/odvcencio/taskmate/pkg/prompts"
)

// maxMessageRunes bounds a single chat message.
const maxMessageRunes = 4000

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message        string     `json:"message"`
	ConversationID string     `json:"conversationId"`
	History        []chatTurn `json:"history"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSONBody(w, r, &req, s.cfg.MaxBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.respondError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "message required").
			WithUserMessage("Message is required."))
		return
	}
	if len([]rune(req.Message)) > maxMessageRunes {
		s.respondError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "message too long").
			WithUserMessage("Message is too long."))
		return
	}

	tc := chat.TurnContext{ConversationID: req.ConversationID}
	for _, t := range req.History {
		role := prompts.RoleUser
		if strings.EqualFold(t.Role, string(prompts.RoleAssistant)) {
			role = prompts.RoleAssistant
		}
		tc.History = append(tc.History, prompts.Turn{Role: role, Content: t.Content})
	}

	res, err := s.orch.HandleTurn(r.Context(), UserID(r.Context()), req.Message, tc)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetPending(w http.ResponseWriter, r *http.Request) {
	meta := s.orch.Pending(UserID(r.Context()))
	respondJSON(w, http.StatusOK, map[string]any{
		"hasPending": meta != nil,
		"pending":    meta,
	})
}

func (s *Server) handleDeletePending(w http.ResponseWriter, r *http.Request) {
	cleared := s.orch.Discard(UserID(r.Context()))
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.orch.Stats())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("readiness check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
