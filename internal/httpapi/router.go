// Package httpapi is the HTTP front-end of spec §6.1: request parsing,
// the JSON envelope, chain allow-list validation, and auth — the pieces
// spec.md treats as an external collaborator of the core, built here
// the way the teacher's cmd/service/main.go wires its router.
package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/relaynet/txrelay/internal/config"
	"github.com/relaynet/txrelay/internal/httpapi/handlers"
	"github.com/relaynet/txrelay/internal/httpapi/middleware"
	"github.com/relaynet/txrelay/internal/metrics"
	"github.com/relaynet/txrelay/internal/models"
	"github.com/relaynet/txrelay/internal/relay"
	"github.com/relaynet/txrelay/internal/repository"
)

// NewRouter builds the relay's HTTP handler, mirroring the teacher's
// setupRouter: health/ready/metrics are unauthenticated, the
// transaction endpoints sit behind the full middleware chain.
func NewRouter(cfg *config.Config, repo repository.Interface, facade *relay.Facade, logger zerolog.Logger, m *metrics.Metrics) http.Handler {
	resolve := chainResolver(cfg.Relay.Chains)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health(logger))
	mux.HandleFunc("GET /ready", handlers.Ready(repo, logger))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Protected endpoints (auth required)
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /transaction", handlers.SubmitTransaction(facade, resolve, logger))
	protectedMux.HandleFunc("GET /transaction/{id}", handlers.GetTransactionStatus(facade, logger))

	protected := middleware.Chain(
		protectedMux,
		middleware.Auth(cfg.Auth.ExpectedHeader),
	)

	mux.Handle("POST /transaction", protected)
	mux.Handle("GET /transaction/{id}", protected)

	// Apply global middleware to all routes, including the unauthenticated
	// probes/metrics endpoints above.
	return middleware.Chain(
		mux,
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Metrics(m),
		middleware.CORS(cfg.CORS),
		middleware.RateLimit(cfg.RateLimit),
	)
}

func chainResolver(chains []config.ChainConfig) handlers.ChainResolver {
	byName := make(map[string]models.ChainID, len(chains))
	for _, c := range chains {
		byName[c.Name] = c.Chain
	}
	return func(tag string) (models.ChainID, bool) {
		id, ok := byName[tag]
		return id, ok
	}
}
