package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/redis/go-redis/v9"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/api"
	awsadapter "github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/aws"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/metrics"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/repository/postgres"
	redisrepo "github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/repository/redis"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/pkg/config"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/pkg/crypto"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/pkg/logger"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewBrokerMetrics()

	// --- Start Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: api.NewAdminRouter(),
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Crypto Primitives ---
	key, err := cfg.DecodeEncryptionKey()
	if err != nil {
		logger.Error("invalid encryption key", "error", err)
		os.Exit(1)
	}
	cipher, err := crypto.NewEnvelopeCipher(key)
	if err != nil {
		logger.Error("failed to initialize envelope cipher", "error", err)
		os.Exit(1)
	}
	hasher := crypto.NewVerificationHash()

	// --- Redis Connection ---
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// --- Optional Audit Sink ---
	var audit domain.AuditRecorder
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		audit = postgres.NewAuditRepository(db, logger)
	} else {
		logger.Warn("POSTGRES_URL not set, audit trail disabled")
	}

	// --- AWS Clients ---
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}
	assumer := awsadapter.NewRoleAssumer(awsCfg, logger)
	resolver := awsadapter.NewIdentityResolver(cfg.AWSRegion, logger)
	presigner := awsadapter.NewTemplatePresigner(awsCfg)

	workloadTemplate, err := os.ReadFile(cfg.WorkloadTemplatePath)
	if err != nil {
		// Workload deploys will fail upstream until a template is mounted;
		// the broker endpoints stay available.
		logger.Warn("workload template not readable, deploys will fail", "path", cfg.WorkloadTemplatePath, "error", err)
	}
	stacks := awsadapter.NewStackClient(cfg.AWSRegion, string(workloadTemplate), logger)

	// --- Initialize Repositories ---
	orgRepo := redisrepo.NewOrgRepository(redisClient, cipher, hasher, logger)
	userRepo := redisrepo.NewUserRepository(redisClient)
	nonceStore := redisrepo.NewNonceStore(redisClient)
	idemStore := redisrepo.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)
	limiter := redisrepo.NewFixedWindowLimiter(redisClient, cfg.RateLimitWindow, cfg.RateLimitMax, logger)

	// --- Initialize Use Cases ---
	roleMap := map[string]string{"readonly": cfg.ReadonlyRoleName}

	userService := usecase.NewUserService(userRepo, orgRepo, audit, logger)
	registrationService := usecase.NewRegistrationService(orgRepo, userRepo, idemStore, audit, m, logger)
	brokerService := usecase.NewBrokerService(
		orgRepo, userRepo, limiter, assumer, resolver, audit, m,
		roleMap, cfg.SessionNameFormat, cfg.SessionDuration, logger,
	)
	webhookService := usecase.NewWebhookService(orgRepo, nonceStore, audit, m, cfg.SignatureTolerance, logger)
	integrationService := usecase.NewIntegrationService(
		orgRepo, presigner, cfg.TemplateBucket, cfg.TemplateKey, cfg.AWSRegion, cfg.TemplatePublicAccess, logger,
	)
	workloadService := usecase.NewWorkloadService(
		orgRepo, assumer, stacks, cfg.ReadonlyRoleName, cfg.SessionNameFormat, cfg.SessionDuration, logger,
	)

	// --- Initialize API Server ---
	router := api.NewRouter(cfg, logger, userService, registrationService, brokerService, webhookService, integrationService, workloadService)
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting broker server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("broker server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("broker server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
