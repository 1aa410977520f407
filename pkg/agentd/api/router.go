package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	chi_middleware "github.com/go-chi/chi/middleware"
	api_v1_deploy "github.com/nais/agentdeploy/pkg/agentd/api/v1/deploy"
	"github.com/nais/agentdeploy/pkg/agentd/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var requestTimeout = time.Second * 30

type Config struct {
	DeployHandler *api_v1_deploy.Handler
	MetricsPath   string
	PSKValidator  func(http.Handler) http.Handler
}

func New(cfg Config) chi.Router {
	prometheusMiddleware := middleware.PrometheusMiddleware("agentd")

	// Pre-populate request metrics
	for _, code := range api_v1_deploy.StatusCodes {
		prometheusMiddleware.Initialize("/internal/api/v1/deploy", http.MethodPost, code)
	}

	// Base settings for all requests
	router := chi.NewRouter()
	router.Use(
		chi_middleware.RequestID,
		middleware.RequestLogger(),
		prometheusMiddleware.Handler(),
		chi_middleware.StripSlashes,
	)

	// Mount /metrics endpoint with no authentication
	router.Get(cfg.MetricsPath, promhttp.Handler().ServeHTTP)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/internal/api/v1", func(r chi.Router) {
		r.Use(chi_middleware.Timeout(requestTimeout))

		if cfg.PSKValidator == nil {
			log.Warn("No frontend keys configured; the internal API is open to anyone who can reach it")
		} else {
			r.Use(cfg.PSKValidator)
		}

		r.With(chi_middleware.AllowContentType("application/json")).Post("/deploy", cfg.DeployHandler.Deploy)
		r.Get("/deployment/{id}", cfg.DeployHandler.Status)
		r.Get("/deployments", cfg.DeployHandler.List)
	})

	return router
}
