package rest

import (
	"net/http"

	"github.com/dailysync/keeper/internal/transport/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Health    *HealthHandler
	Assistant *AssistantHandler
	Sync      *SyncHandler
}

// assistantRateLimit caps assistant calls per IP per minute. The endpoint can
// fan out to an external language model, so it is the one worth guarding.
const assistantRateLimit = 30

// NewRouter mounts all REST routes and wraps them in the given middleware
// chain (outermost first). limiter may be nil to disable rate limiting.
func NewRouter(h Handlers, limiter *middleware.RateLimiter, mws ...middleware.Middleware) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /live", h.Health.Live)
	mux.HandleFunc("GET /ready", h.Health.Ready)
	mux.HandleFunc("GET /health", h.Health.Health)

	assistantHandler := http.Handler(http.HandlerFunc(h.Assistant.Chat))
	if limiter != nil {
		assistantHandler = limiter.Limit(assistantRateLimit)(assistantHandler)
	}
	mux.Handle("POST /api/assistant", assistantHandler)

	mux.HandleFunc("GET /api/sync", h.Sync.Status)
	mux.HandleFunc("POST /api/sync", h.Sync.Trigger)

	return middleware.Chain(mws...)(mux)
}
