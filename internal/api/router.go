package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/settleops/recon-engine/internal/api/handler"
	"github.com/settleops/recon-engine/internal/api/middleware"
	"github.com/settleops/recon-engine/internal/api/spec"
	"github.com/settleops/recon-engine/internal/config"
	"github.com/settleops/recon-engine/internal/engine/rollback"
	"github.com/settleops/recon-engine/internal/service"
)

// Router wires the external reconciliation contract.
type Router struct {
	cfg         *config.Config
	logger      *zap.Logger
	db          *pgxpool.Pool
	redis       redis.Cmdable
	coordinator *service.Coordinator
	queries     *service.QueryService
	ingest      *service.IngestService
	ttums       *service.TTUMService
	rollbacks   *rollback.Manager
}

// NewRouter creates the API router. db and redis may be nil in single-node
// deployments.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	redisClient redis.Cmdable,
	coordinator *service.Coordinator,
	queries *service.QueryService,
	ingest *service.IngestService,
	ttums *service.TTUMService,
	rollbacks *rollback.Manager,
) *Router {
	return &Router{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		redis:       redisClient,
		coordinator: coordinator,
		queries:     queries,
		ingest:      ingest,
		ttums:       ttums,
		rollbacks:   rollbacks,
	}
}

// Routes assembles the middleware chain and endpoint tree.
func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	runHandler := handler.NewRunHandler(api.coordinator, api.queries)
	ingestHandler := handler.NewIngestHandler(api.ingest)
	ttumHandler := handler.NewTTUMHandler(api.ttums)
	rollbackHandler := handler.NewRollbackHandler(api.rollbacks)

	r.Get("/healthz/live", healthHandler.Live)
	r.Get("/healthz/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", runHandler.Invoke)
		r.Route("/{runID}", func(r chi.Router) {
			r.Post("/records", ingestHandler.PostRecords)
			r.Get("/summary", runHandler.Summary)
			r.Get("/records", runHandler.Records)
			r.Get("/cycles", runHandler.Cycles)
			r.Get("/integrity", runHandler.Integrity)
			r.Post("/force-match", runHandler.ForceMatch)

			r.Post("/ttums", ttumHandler.Generate)
			r.Get("/ttums", ttumHandler.List)
			r.Post("/ttums/settle", ttumHandler.Settle)

			r.Post("/rollback/ingestion", rollbackHandler.Ingestion)
			r.Post("/rollback/mid-recon", rollbackHandler.MidRecon)
			r.Post("/rollback/cycle", rollbackHandler.Cycle)
			r.Post("/rollback/accounting", rollbackHandler.Accounting)
			r.Get("/rollbacks", rollbackHandler.History)
		})
	})

	return r
}
