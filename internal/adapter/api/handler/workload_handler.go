package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/usecase"
)

// APIKeyHeader carries the organization API key on bodyless requests.
const APIKeyHeader = "X-API-Key"

// WorkloadHandler manages the per-organization workload stack.
type WorkloadHandler struct {
	workload *usecase.WorkloadService
	logger   *slog.Logger
}

// NewWorkloadHandler creates a new WorkloadHandler.
func NewWorkloadHandler(workload *usecase.WorkloadService, logger *slog.Logger) *WorkloadHandler {
	return &WorkloadHandler{workload: workload, logger: logger}
}

// Describe handles GET /api/workload?user_id=&org_name= with the API key
// in the X-API-Key header.
func (h *WorkloadHandler) Describe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stack, err := h.workload.Describe(r.Context(), q.Get("org_name"), q.Get("user_id"), r.Header.Get(APIKeyHeader))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stack_name":   stack.Name,
		"stack_id":     stack.ID,
		"status":       stack.Status,
		"outputs":      stack.Outputs,
		"last_updated": stack.LastUpdated,
	})
}

// Deploy handles POST /api/workload?user_id=.
func (h *WorkloadHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrgName    string            `json:"org_name"`
		APIKey     string            `json:"api_key"`
		Parameters map[string]string `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	result, err := h.workload.Deploy(r.Context(), body.OrgName, r.URL.Query().Get("user_id"), body.APIKey, body.Parameters)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Destroy handles DELETE /api/workload?user_id=&org_name= with the API
// key in the X-API-Key header.
func (h *WorkloadHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.workload.Destroy(r.Context(), q.Get("org_name"), q.Get("user_id"), r.Header.Get(APIKeyHeader)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
