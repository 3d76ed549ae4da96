// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/infrastructure/http/v1/handlers"
	"stockflow/internal/infrastructure/http/v1/middleware"
	"stockflow/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool backs the readiness and info probes
	Pool handlers.PoolChecker

	// Logger for request logging
	Logger *logger.Logger

	// Service handles stock receipts
	Service handlers.ReceiptService

	// JWTValidator guards mutating routes. Nil leaves them open.
	JWTValidator middleware.JWTValidator

	// AppName and Version are reported by /health/info
	AppName string
	Version string

	// Development switches gin to debug mode
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger.WithComponent("http")))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.AppName, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	{
		warehouseHandler := handlers.NewWarehouseHandler(cfg.Service)
		registerWarehouseRoutes(v1, warehouseHandler, cfg.JWTValidator)
		registerProductRoutes(v1, warehouseHandler)
	}

	return router
}
