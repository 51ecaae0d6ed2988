package routing

import (
	"net/http"

	"modgate/internal/handlers"
	"modgate/internal/middleware"
	"modgate/internal/models"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Logger   zerolog.Logger
	// RateLimit overrides the default limits when set.
	RateLimit *middleware.RateLimitConfig
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	api := http.NewServeMux()

	// Reports and review queues
	api.HandleFunc("POST /api/report/{id}", h.HandleReport)
	api.HandleFunc("DELETE /api/report/{id}", h.HandleWithdrawReport)
	api.HandleFunc("GET /api/count/report/{tag}", h.HandlePendingCount)
	api.HandleFunc("GET /api/blocked/{kinds}/{tag}", h.HandleBlocked)
	api.HandleFunc("GET /api/cases/{id}", h.HandleCase)

	// Reviewer resolutions, one route per content kind
	for _, kind := range []string{models.KindPost, models.KindComment, models.KindEdit} {
		api.Handle("DELETE /api/"+kind+"/approve/{id}", h.HandleApprove(kind))
		api.Handle("DELETE /api/"+kind+"/reject/{id}", h.HandleReject(kind))
	}

	// Tags
	api.HandleFunc("POST /api/tags/{tag}/{id}", h.HandleAttachTag)
	api.HandleFunc("DELETE /api/tags/{tag}/{id}", h.HandleDetachTag)
	api.HandleFunc("GET /api/tags/{id}", h.HandleTagsOf)

	// Timeouts
	api.HandleFunc("POST /api/timeouts/{user}", h.HandleImposeTimeout)
	api.HandleFunc("DELETE /api/timeouts/{user}", h.HandleReleaseTimeout)
	api.HandleFunc("GET /api/timeouts/{user}", h.HandleTimeoutStatus)
	api.HandleFunc("POST /api/accounts/{user}", h.HandleAccountCreated)

	// Reviewer tools
	api.HandleFunc("GET /api/audit", h.HandleAuditLog)
	api.HandleFunc("GET /api/stats", h.HandleStats)

	// Guarded content actions
	api.HandleFunc("POST /api/posts", h.HandleCreatePost)
	api.HandleFunc("PATCH /api/posts/{id}", h.HandleUpdatePost)
	api.Handle("DELETE /api/posts/{id}", h.HandleDeleteContent(models.KindPost))
	api.Handle("POST /api/comments/{id}", h.HandleCreateChild(models.KindComment))
	api.Handle("DELETE /api/comments/{id}", h.HandleDeleteContent(models.KindComment))
	api.Handle("POST /api/edits/{id}", h.HandleCreateChild(models.KindEdit))
	api.Handle("DELETE /api/edits/{id}", h.HandleDeleteContent(models.KindEdit))
	api.HandleFunc("GET /api/content/{id}", h.HandleGetContent)

	mux := http.NewServeMux()
	mux.Handle("/api/", otelhttp.NewHandler(gzhttp.GzipHandler(api), "modgate.api"))

	// The websocket upgrade needs the raw connection, so it skips compression
	// and the tracing wrapper.
	mux.HandleFunc("GET /api/ws/queue", h.HandleQueue)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Limit request body size (innermost - runs first on request)
	handler = middleware.LimitBodyMiddleware(handler)

	// 2. Copy the gateway identity into the request context
	handler = middleware.Identity(handler)

	// 3. Apply rate limiting
	handler = middleware.RateLimitMiddleware(cfg.RateLimit)(handler)

	// 4. Apply security headers
	handler = middleware.SecurityHeadersMiddleware(handler)

	// 5. Apply logging middleware (outermost - wraps everything)
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	return handler
}
