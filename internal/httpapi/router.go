package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/nexuscargo/nexuscargo/platform/internal/config"
	"github.com/nexuscargo/nexuscargo/platform/internal/httpapi/middleware"
	"github.com/nexuscargo/nexuscargo/platform/internal/ratelimit"
)

// NewRouter wires every route in the HTTP surface to its handler, with the
// global middleware chain applied ahead of all of them.
func NewRouter(cfg *config.Config, h *Handlers, limiter *ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(requestLogger)
	r.Use(middleware.NewTenantExtractor(cfg.TenantHeaderName))
	r.Use(middleware.NewRateLimiter(limiter))

	corsOrigins := parseCORSOrigins()
	isWildcard := len(corsOrigins) == 1 && corsOrigins[0] == "*"
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cfg.TenantHeaderName, "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !isWildcard,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/version", h.Version)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/token", h.IssueToken)
		r.Post("/refresh", h.RefreshToken)
	})

	r.Route("/ingestion", func(r chi.Router) {
		r.Post("/documents", h.IngestDocument)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.ListDocuments)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetDocument)
		})
	})

	r.Route("/review", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListReviewTasks)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/complete", h.CompleteReviewTask)
			})
		})
	})

	r.Route("/discrepancies", func(r chi.Router) {
		r.Post("/", h.CreateDiscrepancy)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/disputes", h.OpenDispute)
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/subscriptions", h.CreateWebhookSubscription)
		r.Post("/dispatch", h.DispatchWebhookEvent)
		r.Post("/deliveries/replay", h.ReplayDeadLetteredDeliveries)
		r.Post("/process", h.ProcessWebhookQueue)
	})

	r.Route("/awb", func(r chi.Router) {
		r.Post("/validate", h.ValidateAWB)
		r.Post("/submit", h.SubmitAWB)
	})

	r.Route("/aeca", func(r chi.Router) {
		r.Post("/validate", h.ValidateExport)
		r.Route("/export-cases", func(r chi.Router) {
			r.Post("/", h.CreateExportCase)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/submit", h.SubmitExportCase)
			})
		})
	})

	r.Route("/dg", func(r chi.Router) {
		r.Post("/validate", h.ValidateDG)
	})

	r.Route("/aviqm", func(r chi.Router) {
		r.Get("/vin/{vin}", h.DecodeVIN)
		r.Post("/cases", h.CreateVehicleImportCase)
	})

	r.Route("/fiar", func(r chi.Router) {
		r.Post("/three-way-match", h.ThreeWayMatch)
		r.Route("/invoices/{id}", func(r chi.Router) {
			r.Post("/export", h.ExportInvoice)
		})
	})

	r.Route("/station-analytics", func(r chi.Router) {
		r.Get("/kpi", h.StationKPI)
	})

	return r
}

// requestLogger logs each request at debug level with method, path, and
// status — grounded on the teacher's middleware.Logger but using zerolog
// directly rather than a bespoke wrapper package.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("http_request")
	})
}

// parseCORSOrigins reads NEXUSCARGO_CORS_ORIGINS as a comma-separated list,
// defaulting to a wildcard (safe since AllowCredentials is forced off for it).
func parseCORSOrigins() []string {
	originsEnv := os.Getenv("NEXUSCARGO_CORS_ORIGINS")
	if originsEnv == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(originsEnv, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
