package chi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"

	"github.com/taskhub/webhook-gateway/auth"
	"github.com/taskhub/webhook-gateway/command"
	"github.com/taskhub/webhook-gateway/envelope"
	"github.com/taskhub/webhook-gateway/idempotency"
	"github.com/taskhub/webhook-gateway/metrics"
	"github.com/taskhub/webhook-gateway/ratelimit"
)

// Config holds the HTTP-layer knobs
type Config struct {
	BodyLimit      int64
	RequestTimeout time.Duration
	RequireHTTPS   bool
	Version        string
}

// Deps are the collaborators the HTTP layer binds together
type Deps struct {
	Validator   *envelope.Validator
	Router      *command.Router
	Keys        *auth.Loader
	Lockout     *auth.Lockout
	Limiter     *ratelimit.Limiter
	Idempotency *idempotency.Cache
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Handlers builds the gateway mux: health and metrics unauthenticated,
// the command endpoint behind the full middleware chain.
func Handlers(cfg Config, deps Deps) *chi.Mux {
	// Logger
	logger := httplog.NewLogger("webhook-gateway", httplog.Options{
		JSON: true,
	})
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))

	gw := newGateway(cfg, deps)

	r.Method(http.MethodGet, "/health", getHealth(cfg.Version))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// order matters: cheapest rejection first, idempotency replay happens
	// inside the gateway handler once the envelope is parsed
	r.With(gw.bodyGuard, gw.authenticate, gw.requireHTTPS, gw.rateLimit).
		Method(http.MethodPost, "/webhook/v1", http.HandlerFunc(gw.handleCommand))

	return r
}

func getHealth(version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"version":   version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}
