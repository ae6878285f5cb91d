package api

import (
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/sahara/auth"
	"github.com/GoCodeAlone/sahara/engine"
	"github.com/GoCodeAlone/sahara/metrics"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Config holds configuration for the API layer.
type Config struct {
	Environment string
	CORSOrigins []string

	// SessionRateLimit is the maximum number of anonymous sessions one IP
	// may create per minute. Defaults to 10 when zero.
	SessionRateLimit int
}

// Deps groups the services the API needs. Metrics may be nil.
type Deps struct {
	Engine  *engine.Engine
	Issuer  *auth.Issuer
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Router is the service's http.Handler. Call Stop on shutdown.
type Router struct {
	handler http.Handler
	mw      *Middleware
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Stop releases background resources held by middleware.
func (rt *Router) Stop() { rt.mw.Stop() }

// NewRouter registers every route.
func NewRouter(deps Deps, cfg Config) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mw := NewMiddleware(deps.Issuer, logger)

	// --- Auth ---
	authH := NewAuthHandler(deps.Issuer, logger)
	sessionRL := mw.RateLimit(cfg.SessionRateLimit)
	mux.Handle("POST /api/v1/auth/anonymous", sessionRL(http.HandlerFunc(authH.Anonymous)))
	mux.HandleFunc("GET /api/v1/auth/verify", authH.Verify)

	// --- Screenings ---
	scrH := NewScreeningHandler(deps.Engine)
	mux.HandleFunc("GET /api/v1/screenings/templates", scrH.Templates)
	mux.Handle("POST /api/v1/screenings/submit", mw.RequireSession(http.HandlerFunc(scrH.Submit)))
	mux.Handle("GET /api/v1/screenings/history", mw.RequireSession(http.HandlerFunc(scrH.History)))
	mux.HandleFunc("GET /api/v1/screenings/insights", scrH.Insights)

	// --- Chat ---
	chatH := NewChatHandler(deps.Engine)
	mux.Handle("POST /api/v1/chat/ai", mw.RequireSession(http.HandlerFunc(chatH.Send)))
	mux.Handle("GET /api/v1/chat/history", mw.RequireSession(http.HandlerFunc(chatH.History)))
	mux.Handle("GET /ws/chat", NewChatSocket(deps.Engine, deps.Issuer, cfg.CORSOrigins, logger))

	// --- Service ---
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "environment": cfg.Environment})
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"message": "Sahara Mental Health API", "version": Version})
	})
	if deps.Metrics != nil {
		mux.Handle("GET "+deps.Metrics.Path(), deps.Metrics.Handler())
	}

	var h http.Handler = mux
	h = deps.Metrics.Middleware(h)
	h = CORS(cfg.CORSOrigins)(h)
	h = mw.Recover(h)
	h = mw.RequestID(h)
	return &Router{handler: h, mw: mw}
}
