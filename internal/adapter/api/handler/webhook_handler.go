package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/usecase"
)

// Webhook signature headers set by the validation sender.
const (
	SignatureHeader = "X-Sig-Signature"
	TimestampHeader = "X-Sig-Timestamp"
	NonceHeader     = "X-Sig-Nonce"
)

const maxWebhookBodySize = 1 << 20 // 1 MiB

// WebhookHandler handles inbound validation callbacks.
type WebhookHandler struct {
	webhook *usecase.WebhookService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhook *usecase.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{webhook: webhook, logger: logger}
}

// HandleValidation handles POST /api/validation/webhook. The raw body
// bytes are handed to verification untouched; any re-encoding would break
// the signature.
func (h *WebhookHandler) HandleValidation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable request body"})
		return
	}

	timestamp, err := strconv.ParseInt(r.Header.Get(TimestampHeader), 10, 64)
	if err != nil {
		h.logger.Warn("validation webhook with malformed timestamp", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "signature verification failed"})
		return
	}

	err = h.webhook.HandleValidation(r.Context(), usecase.WebhookRequest{
		Payload:   payload,
		Signature: r.Header.Get(SignatureHeader),
		Timestamp: timestamp,
		Nonce:     r.Header.Get(NonceHeader),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "validated"})
}
