package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/tally-go/internal/core/service"
	"github.com/yndnr/tally-go/internal/server/httpserver/handler"
	"github.com/yndnr/tally-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Service handles account and counter operations.
	Service *service.AccountService

	// Backend is pinged by /ready. Nil means always ready.
	Backend handler.Pinger

	// Metrics backs /metrics and the request counter. Nil disables both.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// EnableAudit enables one log line per request.
	EnableAudit bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		EnableAudit: true,
	}
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
//
// Order: Recover -> RequestID -> Audit -> Metrics -> routes.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(cfg.Service, cfg.Backend, log)

	mux := http.NewServeMux()
	mux.Handle("/", h)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	middlewares := []Middleware{Recover(log), RequestID()}
	if cfg.EnableAudit {
		middlewares = append(middlewares, Audit(log))
	}
	middlewares = append(middlewares, Metrics(cfg.Metrics))

	return Chain(mux, middlewares...)
}
