// Package config loads NexusCargo's runtime configuration from environment
// variables with sensible local-dev defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the NexusCargo platform.
type Config struct {
	Port        int
	AppName     string
	Environment string

	Database  DatabaseConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
	EventBus  EventBusConfig
	Storage   StorageConfig
	Secrets   SecretsConfig
	Webhook   WebhookConfig
	AI        AIConfig
	Rules     RulesConfig
	RateLimit RateLimitConfig

	TenantHeaderName           string
	ReviewConfidenceThreshold  float64
	IntegrationTimeoutSeconds  int
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type AuthConfig struct {
	Issuer               string
	Audience             string
	AccessTokenTTLMin    int
	RefreshTokenTTLDays  int
}

type EventBusConfig struct {
	Backend           string // memory | pubsub
	RedisURL          string
	PubsubTopicPrefix string
}

type StorageConfig struct {
	Backend   string // local | gcs
	LocalRoot string
	GCSBucket string
}

type SecretsConfig struct {
	ManagerEnabled           bool
	RequireManagerInNonDev   bool
	WebhookSigningSecret     string
}

type WebhookConfig struct {
	MaxRetries     int
	TimeoutSeconds int
}

type AIConfig struct {
	Backend            string // mock | gcp
	DocumentAIProcessor string
	VertexModelName    string
	GCPProjectID       string
}

type RulesConfig struct {
	DefaultPackID      string
	DefaultPackVersion string
}

type RateLimitConfig struct {
	MaxRequests   int
	WindowSeconds int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:        envInt("NEXUSCARGO_PORT", 8080),
		AppName:     envStr("NEXUSCARGO_APP_NAME", "NexusCargo AI Platform"),
		Environment: envStr("NEXUSCARGO_ENVIRONMENT", "dev"),

		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 25),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", true),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "nexuscargo-platform"),
		},
		Auth: AuthConfig{
			Issuer:              envStr("AUTH_ISSUER", "nexuscargo-local"),
			Audience:            envStr("AUTH_AUDIENCE", "nexuscargo-api"),
			AccessTokenTTLMin:   envInt("ACCESS_TOKEN_TTL_MINUTES", 30),
			RefreshTokenTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		},
		EventBus: EventBusConfig{
			Backend:           envStr("EVENT_BUS_BACKEND", "memory"),
			RedisURL:          envStr("EVENT_BUS_REDIS_URL", "redis://localhost:6379/0"),
			PubsubTopicPrefix: envStr("GCP_PUBSUB_TOPIC_PREFIX", "nexuscargo"),
		},
		Storage: StorageConfig{
			Backend:   envStr("STORAGE_BACKEND", "local"),
			LocalRoot: envStr("STORAGE_LOCAL_ROOT", "/tmp/nexuscargo-storage"),
			GCSBucket: envStr("GCS_RAW_BUCKET", ""),
		},
		Secrets: SecretsConfig{
			ManagerEnabled:         envBool("SECRET_MANAGER_ENABLED", false),
			RequireManagerInNonDev: envBool("REQUIRE_SECRET_MANAGER_IN_NON_DEV", true),
			WebhookSigningSecret:   envStr("WEBHOOK_SIGNING_SECRET", "local-webhook-signing-secret"),
		},
		Webhook: WebhookConfig{
			MaxRetries:     envInt("WEBHOOK_MAX_RETRIES", 5),
			TimeoutSeconds: envInt("WEBHOOK_TIMEOUT_SECONDS", 10),
		},
		AI: AIConfig{
			Backend:             envStr("AI_BACKEND", "mock"),
			DocumentAIProcessor: envStr("DOCUMENTAI_PROCESSOR_ID", ""),
			VertexModelName:     envStr("VERTEX_MODEL_NAME", "gemini-2.0-flash"),
			GCPProjectID:        envStr("GCP_PROJECT_ID", ""),
		},
		Rules: RulesConfig{
			DefaultPackID:      envStr("VALIDATION_RULE_PACK_ID", "global-default"),
			DefaultPackVersion: envStr("VALIDATION_RULE_PACK_VERSION", "2026-02-08"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   envInt("RATE_LIMIT_MAX_REQUESTS", 120),
			WindowSeconds: envInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},

		TenantHeaderName:          envStr("TENANT_HEADER_NAME", "X-Tenant-Id"),
		ReviewConfidenceThreshold: envFloat("REVIEW_CONFIDENCE_THRESHOLD", 0.8),
		IntegrationTimeoutSeconds: envInt("INTEGRATION_TIMEOUT_SECONDS", 20),
	}
}

// ValidateRuntimeConstraints enforces the cross-field invariants the original
// settings module raises on at boot: secret-manager requirement outside dev,
// and backend selections that need their companion config.
func (c *Config) ValidateRuntimeConstraints() error {
	nonDev := isNonDev(c.Environment)
	if c.Secrets.RequireManagerInNonDev && nonDev && !c.Secrets.ManagerEnabled {
		return fmt.Errorf("secret_manager_enabled must be true in staging/prod environments")
	}
	if c.EventBus.Backend == "pubsub" && c.AI.GCPProjectID == "" {
		return fmt.Errorf("gcp_project_id is required when event_bus_backend=pubsub")
	}
	if c.AI.Backend == "gcp" && (c.AI.GCPProjectID == "" || c.AI.DocumentAIProcessor == "") {
		return fmt.Errorf("gcp ai backend requires gcp_project_id and documentai_processor_id")
	}
	return nil
}

func isNonDev(environment string) bool {
	switch strings.ToLower(environment) {
	case "staging", "prod", "production":
		return true
	default:
		return false
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
