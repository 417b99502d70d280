// Package server provides the public entry point for initializing the
// NexusCargo platform server: it wires storage, the event bus, blob
// storage, the rules engine, the ingestion pipeline, and every
// domain-compliance service behind the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/blobstore"
	"github.com/nexuscargo/nexuscargo/platform/internal/bus"
	"github.com/nexuscargo/nexuscargo/platform/internal/config"
	"github.com/nexuscargo/nexuscargo/platform/internal/discrepancy"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/aeca"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/aviqm"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/awb"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/dg"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/fiar"
	"github.com/nexuscargo/nexuscargo/platform/internal/httpapi"
	"github.com/nexuscargo/nexuscargo/platform/internal/idempotency"
	"github.com/nexuscargo/nexuscargo/platform/internal/ingestion"
	"github.com/nexuscargo/nexuscargo/platform/internal/integrations"
	"github.com/nexuscargo/nexuscargo/platform/internal/pipeline"
	"github.com/nexuscargo/nexuscargo/platform/internal/ratelimit"
	"github.com/nexuscargo/nexuscargo/platform/internal/review"
	"github.com/nexuscargo/nexuscargo/platform/internal/rules"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/internal/telemetry"
	"github.com/nexuscargo/nexuscargo/platform/internal/validation"
	"github.com/nexuscargo/nexuscargo/platform/internal/webhook"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
)

// Server holds the fully initialized NexusCargo platform.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware mounted.
	Handler http.Handler

	// Store is the data store (in-memory by default; PostgreSQL when
	// DATABASE_URL is set).
	Store store.Store

	// Config is the loaded runtime configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry and releases background resources.
	// Callers should invoke it during graceful shutdown, ahead of Store.Close.
	ShutdownFunc func(context.Context) error

	// webhookWorkerCancel stops the background delivery-queue worker.
	webhookWorkerCancel context.CancelFunc
}

// StartBackgroundWorkers launches the webhook delivery worker on its own
// goroutine. Callers should arrange to call Stop on shutdown.
func (s *Server) StartBackgroundWorkers(ctx context.Context, worker *webhook.Worker) {
	workerCtx, cancel := context.WithCancel(ctx)
	s.webhookWorkerCancel = cancel
	go worker.Start(workerCtx)
}

// Stop cancels any background workers started by StartBackgroundWorkers.
func (s *Server) Stop() {
	if s.webhookWorkerCancel != nil {
		s.webhookWorkerCancel()
	}
}

// New loads configuration from the environment and builds a ready Server.
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()
	if err := cfg.ValidateRuntimeConstraints(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig builds a Server from an explicit configuration, selecting
// the storage and event-bus backends the configuration names.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := dataStore.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	log.Info().Str("backend", storageBackendLabel(cfg)).Msg("store initialized")

	eventBus, err := newEventBus(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init event bus: %w", err)
	}
	log.Info().Str("backend", cfg.EventBus.Backend).Msg("event bus initialized")

	storageProvider, err := newStorageProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}
	log.Info().Str("backend", cfg.Storage.Backend).Msg("blob storage initialized")

	auditLogger := audit.NewLogger(dataStore)
	rulesEngine := rules.New(cfg.Rules.DefaultPackID, cfg.Rules.DefaultPackVersion, rules.DefaultSanctionsHook)

	var extractor contracts.DocumentExtractor = pipeline.MockExtractor{}
	if cfg.AI.Backend == "gcp" {
		extractor = pipeline.GCPExtractor{ProjectID: cfg.AI.GCPProjectID, ProcessorID: cfg.AI.DocumentAIProcessor}
	}

	preprocessor := pipeline.NewPreprocessor(eventBus)
	classifier := pipeline.NewClassifier(eventBus)
	extractionService := pipeline.NewExtractionService(dataStore, eventBus, extractor)
	validator := validation.NewService(dataStore, eventBus, rulesEngine)
	reviewService := review.NewService(dataStore, eventBus, auditLogger)

	ingestionService := ingestion.NewService(ingestion.Config{
		Store:                     dataStore,
		Bus:                       eventBus,
		Storage:                   storageProvider,
		Preprocessor:              preprocessor,
		Classifier:                classifier,
		Extractor:                 extractionService,
		Validator:                 validator,
		Review:                    reviewService,
		Audit:                     auditLogger,
		ReviewConfidenceThreshold: cfg.ReviewConfidenceThreshold,
		DefaultPackID:             cfg.Rules.DefaultPackID,
		DefaultPackVersion:        cfg.Rules.DefaultPackVersion,
	})

	discrepancyService := discrepancy.NewService(dataStore, eventBus, auditLogger)

	webhookTransport := webhook.NewHTTPTransport()
	webhookEngine := webhook.NewEngine(webhook.Config{
		Store:          dataStore,
		Transport:      webhookTransport,
		Audit:          auditLogger,
		SigningSecret:  cfg.Secrets.WebhookSigningSecret,
		MaxRetries:     cfg.Webhook.MaxRetries,
		TimeoutSeconds: cfg.Webhook.TimeoutSeconds,
	})

	idempotencyService := idempotency.NewService(dataStore)
	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)

	integrationTimeout := time.Duration(cfg.IntegrationTimeoutSeconds) * time.Second
	carrierRegistry := integrations.NewCarrierRegistry()
	genericCargoHTTP := integrations.NewJSONHTTPAdapter("generic-cargo", "https://sandbox.cargo.invalid", "", "", integrationTimeout)
	carrierRegistry.Register("generic-cargo", integrations.CargoAdapterFunc(func(ctx context.Context, tenantID, awbNumber string, payload map[string]any) (map[string]any, error) {
		return genericCargoHTTP.Post(ctx, "/awb/"+awbNumber+"/submit", payload)
	}))

	exportComplianceAdapter := integrations.NewMockABFICSAdapter("https://sandbox.abf-ics.invalid", "", "", integrationTimeout)
	accountingHTTP := integrations.NewJSONHTTPAdapter("accounting", "https://sandbox.accounting.invalid", "", "", integrationTimeout)
	accountingExportAdapter := integrations.AccountingExportAdapterFunc(func(ctx context.Context, tenantID, invoiceID string, payload map[string]any) (map[string]any, error) {
		return accountingHTTP.Post(ctx, "/invoices/"+invoiceID+"/export", payload)
	})

	awbService := awb.NewService(dataStore, carrierRegistry, auditLogger)
	aecaService := aeca.NewService(dataStore, eventBus, exportComplianceAdapter, auditLogger)
	dgService := dg.NewService(dataStore, reviewService, auditLogger)
	aviqmService := aviqm.NewService(dataStore, auditLogger)
	fiarService := fiar.NewService(dataStore, accountingExportAdapter, auditLogger)

	h := &httpapi.Handlers{
		Store:       dataStore,
		Config:      cfg,
		Ingestion:   ingestionService,
		Review:      reviewService,
		Discrepancy: discrepancyService,
		Webhook:     webhookEngine,
		Idempotency: idempotencyService,
		AWB:         awbService,
		AECA:        aecaService,
		DG:          dgService,
		AVIQM:       aviqmService,
		FIAR:        fiarService,
	}

	srv := &Server{
		Handler:      httpapi.NewRouter(cfg, h, limiter),
		Store:        dataStore,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}

	worker := webhook.NewWorker(webhookEngine, webhook.DefaultWorkerInterval, webhook.DefaultBatchSize)
	srv.StartBackgroundWorkers(ctx, worker)

	return srv, nil
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Database.URL == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStore(ctx, cfg.Database.URL)
}

func storageBackendLabel(cfg *config.Config) string {
	if cfg.Database.URL == "" {
		return "memory"
	}
	return "postgres"
}

func newEventBus(ctx context.Context, cfg *config.Config) (contracts.EventBus, error) {
	if cfg.EventBus.Backend == "pubsub" {
		return bus.NewRedisBus(ctx, bus.RedisBusConfig{
			URL:         cfg.EventBus.RedisURL,
			TopicPrefix: cfg.EventBus.PubsubTopicPrefix,
			AckWait:     5 * time.Second,
		})
	}
	return bus.NewMemoryBus(), nil
}

func newStorageProvider(cfg *config.Config) (contracts.StorageProvider, error) {
	if cfg.Storage.Backend == "gcs" {
		log.Warn().Msg("storage_backend=gcs has no live GCS client in this deployment; falling back to local filesystem")
	}
	return blobstore.NewLocalProvider(cfg.Storage.LocalRoot)
}
