package server

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"

	"github.com/nbatyrov/boxstore/internal/bucket"
	"github.com/nbatyrov/boxstore/internal/config"
	"github.com/nbatyrov/boxstore/internal/file"
	"github.com/nbatyrov/boxstore/internal/identity"
	"github.com/nbatyrov/boxstore/internal/logger"
	"github.com/nbatyrov/boxstore/internal/metrics"
	"github.com/nbatyrov/boxstore/internal/quota"
)

// Dependencies groups everything the HTTP router needs.
type Dependencies struct {
	Config        config.Config
	DB            *pgxpool.Pool
	ObjectStore   *minio.Client
	Resolver      identity.Resolver
	QuotaService  *quota.Service
	BucketService *bucket.Service
	FileService   *file.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
// All domain routes sit behind owner resolution; health and metrics do not.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())

	metrics.InitMetrics()
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	api.Use(identity.Middleware(deps.Resolver))

	quota.RegisterRoutes(api, deps.QuotaService)
	bucket.RegisterRoutes(api, deps.BucketService)
	file.RegisterRoutes(api, deps.FileService)

	return router
}
