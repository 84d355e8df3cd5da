package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/pkg/crypto"
)

type errorResponse struct {
	Error string `json:"error"`
	Links any    `json:"links,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps domain errors to HTTP statuses. Internal failures and
// signature rejections get generic bodies; the detailed reason stays in
// logs only.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var sigErr *crypto.SignatureError
	if errors.As(err, &sigErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "signature verification failed"})
		return
	}

	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		writeJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotValidated):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
