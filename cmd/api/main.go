package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dealer-ai-platform/internal/api/router"
	"github.com/wolfman30/dealer-ai-platform/internal/app/bootstrap"
	"github.com/wolfman30/dealer-ai-platform/internal/catalog"
	appconfig "github.com/wolfman30/dealer-ai-platform/internal/config"
	"github.com/wolfman30/dealer-ai-platform/internal/conversation"
	"github.com/wolfman30/dealer-ai-platform/internal/events"
	"github.com/wolfman30/dealer-ai-platform/internal/handoff"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/llm"
	"github.com/wolfman30/dealer-ai-platform/internal/messaging"
	"github.com/wolfman30/dealer-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

const (
	processedEventsRetention = 7 * 24 * time.Hour
	processedEventsPruneTick = time.Hour
)

func main() {
	// .env is optional; real deployments inject the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not read .env: %v\n", err)
	}

	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting dealer-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	metricsHandler, messagingMetrics, engineMetrics := setupMetrics()

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := bootstrap.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		awsCfg = &loaded
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	var dynamoClient session.DynamoAPI
	if awsCfg != nil && cfg.SessionBackend == "dynamodb" {
		dynamoClient = dynamodb.NewFromConfig(*awsCfg)
	}
	sessions, err := bootstrap.BuildSessionStore(ctx, cfg, pool, dynamoClient, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Warn("session store close failed", "error", err)
		}
	}()
	logger.Info("session store ready", "backend", sessions.Name)

	var converse llm.ConverseAPI
	if awsCfg != nil && cfg.BedrockModelID != "" {
		converse = bedrockruntime.NewFromConfig(*awsCfg)
	}
	llmStack, err := bootstrap.BuildLLMClient(ctx, cfg, converse, engineMetrics, logger)
	if err != nil {
		return err
	}
	defer llmStack.Close()

	var s3Client catalog.S3API
	if awsCfg != nil && cfg.CatalogS3Bucket != "" {
		s3Client = s3.NewFromConfig(*awsCfg)
	}
	inventory := bootstrap.BuildCatalog(cfg, s3Client, logger)
	if err := inventory.EnsureLoaded(ctx); err != nil {
		logger.Warn("initial catalog load failed; will retry on the next turn", "error", err)
	}

	messenger, provider, reason := bootstrap.BuildOutboundMessenger(cfg, messagingMetrics, logger)
	if reason != "" {
		logger.Warn("outbound messenger degraded", "provider", provider, "reason", reason)
	} else {
		logger.Info("outbound messenger ready", "provider", provider)
	}

	gate := bootstrap.BuildGate(cfg)
	crmClient, crmKind := bootstrap.BuildCRMClient(cfg, logger)
	logger.Info("crm client ready", "kind", crmKind)

	var leadsRepo leads.Repository = leads.NewInMemoryRepository()
	var processed *events.ProcessedStore
	if pool != nil {
		leadsRepo = leads.NewPostgresRepository(pool)
		processed = events.NewProcessedStore(pool)
	}

	deps := bootstrap.EngineDeps{
		Gate:      gate,
		Sessions:  sessions.Store,
		Inventory: inventory,
		LLM:       llmStack.Client,
		Messenger: messenger,
		CRM:       crmClient,
		Leads:     leadsRepo,
		Processed: processed,
		Metrics:   engineMetrics,
	}
	var ses *sesv2.Client
	if awsCfg != nil && cfg.EmailProvider == "ses" {
		ses = sesv2.NewFromConfig(*awsCfg)
	}
	if notifier := bootstrap.BuildLeadNotifier(cfg, ses, messenger, logger); notifier != nil {
		deps.Notifier = notifier
	}
	engine := bootstrap.BuildEngine(cfg, deps, logger)

	dispatcher := conversation.NewDispatcher(ctx, cfg.MaxConcurrency, logger)
	var sqsClient *sqs.Client
	if awsCfg != nil && !cfg.UseMemoryQueue {
		sqsClient = sqs.NewFromConfig(*awsCfg)
	}
	turns := bootstrap.BuildTurnRuntime(cfg, engine, dispatcher, sqsClient, logger)
	turns.Worker.Start(ctx)
	logger.Info("turn worker started", "queue", turns.Backend, "workers", cfg.WorkerCount)

	if processed != nil {
		go pruneProcessedEvents(ctx, processed, processedEventsPruneTick, logger)
	}

	handler := router.New(&router.Config{
		Logger: logger,
		MessagingHandler: messaging.NewHandler(cfg.TwilioWebhookSecret, turns.Publisher, logger,
			messaging.WithMessagingMetrics(messagingMetrics),
			messaging.WithWebhookToken(cfg.WebhookToken),
		),
		LeadsHandler:      leads.NewHandler(leadsRepo, logger),
		HandoffHandler:    handoff.NewHandler(gate, logger),
		SessionHandler:    session.NewHandler(sessions.Store, logger),
		MetricsHandler:    metricsHandler,
		AdminAuthSecret:   cfg.AdminAuthSecret,
		WebhookRatePerSec: cfg.WebhookRatePerSec,
		WebhookBurst:      cfg.WebhookBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Drain in-flight turns before the stores close.
	turns.Worker.Wait()
	dispatcher.Stop()
	return nil
}

// setupMetrics registers the messaging and engine collectors on a private
// registry and returns its scrape handler.
func setupMetrics() (http.Handler, *metrics.MessagingMetrics, *metrics.EngineMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewMessagingMetrics(reg), metrics.NewEngineMetrics(reg)
}

// needsAWS reports whether any configured component talks to AWS.
func needsAWS(cfg *appconfig.Config) bool {
	return !cfg.UseMemoryQueue ||
		strings.TrimSpace(cfg.BedrockModelID) != "" ||
		strings.TrimSpace(cfg.CatalogS3Bucket) != "" ||
		cfg.EmailProvider == "ses" ||
		cfg.SessionBackend == "dynamodb"
}

type eventPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

func pruneProcessedEvents(ctx context.Context, store eventPruner, every time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.Prune(ctx, now.Add(-processedEventsRetention))
			if err != nil {
				logger.Warn("processed events prune failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("processed events pruned", "removed", removed)
			}
		}
	}
}
