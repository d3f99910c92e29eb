package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odvcencio/taskmate/pkg/actions"
	apperrors "github.com/odvcencio/taskmate/pkg/errors"
	"github.com/odvcencio/taskmate/pkg/storage"
)

type taskRequest struct {
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Priority    string  `json:"priority"`
	Description string  `json:"description"`
	DueDate     *string `json:"dueDate"`
	Status      string  `json:"status"`
}

type goalRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Deadline    *string `json:"deadline"`
}

func listLimit(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return storage.DefaultListLimit
}

func optionalDate(s *string) *string {
	if s == nil {
		return nil
	}
	return actions.NormalizeDate(*s)
}

func requireTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "title required").
			WithUserMessage("Title is required.")
	}
	return nil
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.repo.ListTasks(r.Context(), UserID(r.Context()), listLimit(r))
	if err != nil {
		s.respondError(w, r, storageError(err, "task"))
		return
	}
	if tasks == nil {
		tasks = []storage.Task{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSONBody(w, r, &req, s.cfg.MaxBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := requireTitle(req.Title); err != nil {
		s.respondError(w, r, err)
		return
	}

	task := &storage.Task{
		UserID:      UserID(r.Context()),
		Title:       strings.TrimSpace(req.Title),
		Category:    req.Category,
		Priority:    string(actions.ParsePriority(req.Priority)),
		Description: req.Description,
		DueDate:     optionalDate(req.DueDate),
		Status:      req.Status,
	}
	if err := s.repo.CreateTask(r.Context(), task); err != nil {
		s.respondError(w, r, storageError(err, "task"))
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.repo.GetTask(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, storageError(err, "task"))
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	reason := r.URL.Query().Get("reason")
	if err := s.repo.DeleteTask(r.Context(), UserID(r.Context()), id, reason); err != nil {
		s.respondError(w, r, storageError(err, "task"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.repo.ListGoals(r.Context(), UserID(r.Context()), listLimit(r))
	if err != nil {
		s.respondError(w, r, storageError(err, "goal"))
		return
	}
	if goals == nil {
		goals = []storage.Goal{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSONBody(w, r, &req, s.cfg.MaxBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := requireTitle(req.Title); err != nil {
		s.respondError(w, r, err)
		return
	}

	goal := &storage.Goal{
		UserID:      UserID(r.Context()),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    string(actions.ParsePriority(req.Priority)),
		Deadline:    optionalDate(req.Deadline),
	}
	if err := s.repo.CreateGoal(r.Context(), goal); err != nil {
		s.respondError(w, r, storageError(err, "goal"))
		return
	}
	respondJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.repo.GetGoal(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, storageError(err, "goal"))
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	reason := r.URL.Query().Get("reason")
	if err := s.repo.DeleteGoal(r.Context(), UserID(r.Context()), id, reason); err != nil {
		s.respondError(w, r, storageError(err, "goal"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
