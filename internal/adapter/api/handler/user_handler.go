package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/usecase"
)

// UserHandler handles operator identity requests.
type UserHandler struct {
	users  *usecase.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *usecase.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// CreateUser handles POST /api/users. The body is an optional JSON object
// of string metadata.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	user, err := h.users.CreateUser(r.Context(), body.Metadata)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": user.ID})
}

// ListOrgs handles GET /api/users/{id}/orgs.
func (h *UserHandler) ListOrgs(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.users.ListOrganizations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if orgs == nil {
		orgs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"orgs": orgs})
}
