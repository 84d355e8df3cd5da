package api

import (
	"log/slog"
	"net/http"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/api/handler"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/api/middleware"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/pkg/config"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the broker
// service. Routes use Go 1.22+ method patterns.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	users *usecase.UserService,
	registration *usecase.RegistrationService,
	broker *usecase.BrokerService,
	webhook *usecase.WebhookService,
	integration *usecase.IntegrationService,
	workload *usecase.WorkloadService,
) http.Handler {
	mux := http.NewServeMux()

	userHandler := handler.NewUserHandler(users, logger)
	orgHandler := handler.NewOrgHandler(registration, logger)
	credentialsHandler := handler.NewCredentialsHandler(broker, integration, logger)
	webhookHandler := handler.NewWebhookHandler(webhook, logger)
	integrationHandler := handler.NewIntegrationHandler(integration, logger)
	workloadHandler := handler.NewWorkloadHandler(workload, logger)

	mux.HandleFunc("POST /api/users", userHandler.CreateUser)
	mux.HandleFunc("GET /api/users/{id}/orgs", userHandler.ListOrgs)
	mux.HandleFunc("POST /api/orgs", orgHandler.Register)
	mux.HandleFunc("POST /api/integrate", integrationHandler.Links)
	mux.HandleFunc("POST /api/credentials", credentialsHandler.Issue)
	mux.HandleFunc("POST /api/credentials/validate", credentialsHandler.Validate)

	// Local per-host backpressure in front of the unauthenticated webhook
	// path; the cross-instance limits live in the store.
	webhookLimit := middleware.PerHostRateLimit(cfg.WebhookRPS, cfg.WebhookBurst, logger)
	mux.Handle("POST /api/validation/webhook", webhookLimit(http.HandlerFunc(webhookHandler.HandleValidation)))

	mux.HandleFunc("GET /api/workload", workloadHandler.Describe)
	mux.HandleFunc("POST /api/workload", workloadHandler.Deploy)
	mux.HandleFunc("DELETE /api/workload", workloadHandler.Destroy)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.Logging(logger)(mux)
}
