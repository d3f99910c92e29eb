package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/odvcencio/taskmate/pkg/errors"
	"github.com/odvcencio/taskmate/pkg/storage"
)

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	if r.Body == nil {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "request body required").
			WithUserMessage("Request body is required.")
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "request body too large").
				WithUserMessage(fmt.Sprintf("Request body too large (max %d bytes).", maxBytes))
		case errors.Is(err, io.EOF):
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "request body required").
				WithUserMessage("Request body is required.")
		default:
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed JSON").
				WithUserMessage("Request body is not valid JSON.")
		}
	}
	return nil
}

func setNoStore(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
}

// respondJSON sends payload with status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	setNoStore(w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error       string   `json:"error"`
	Status      int      `json:"status"`
	Code        string   `json:"code,omitempty"`
	Message     string   `json:"message"`
	Remediation []string `json:"remediation,omitempty"`
	Retryable   bool     `json:"retryable,omitempty"`
	Timestamp   string   `json:"timestamp"`
}

// respondError renders err with the status its code maps to. Only the
// user-facing message leaves the process; the rest is logged.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	resp := errorResponse{
		Error:     http.StatusText(status),
		Status:    status,
		Message:   "something went wrong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if appErr, ok := apperrors.As(err); ok {
		resp.Code = string(appErr.Code)
		resp.Message = appErr.Public()
		resp.Remediation = appErr.Remediation
		resp.Retryable = appErr.Retryable
	}

	event := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = s.logger.Error().Stack()
	}
	event.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	respondJSON(w, status, resp)
}

// storageError classifies repository errors for the API.
func storageError(err error, what string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, what+" not found").
			WithUserMessage(fmt.Sprintf("That %s does not exist.", what))
	case errors.Is(err, storage.ErrInvalid):
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid "+what).
			WithUserMessage(fmt.Sprintf("The %s is missing required fields.", what))
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeStorageRead, what+" storage failed").
			WithRetryable(true)
	}
}
