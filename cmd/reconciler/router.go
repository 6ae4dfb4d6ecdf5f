package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/handler"
	"github.com/noah-isme/sma-adp-reconciler/internal/middleware"
	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	"github.com/noah-isme/sma-adp-reconciler/internal/service"
	"github.com/noah-isme/sma-adp-reconciler/pkg/logger"
	reqidmiddleware "github.com/noah-isme/sma-adp-reconciler/pkg/middleware/requestid"
)

type routerDeps struct {
	apiPrefix string
	logger    *zap.Logger
	metrics   *service.MetricsService
	verifier  *service.TokenVerifier
	reconcile *service.ReconcileService
	checks    map[string]handler.Check
}

func newRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.logger, "/health", "/ready", "/metrics"))
	r.Use(middleware.Metrics(deps.metrics))

	health := handler.NewHealthHandler(deps.metrics, deps.checks)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)

	reconcileHandler := handler.NewReconcileHandler(deps.reconcile)
	api := r.Group(deps.apiPrefix)
	api.Use(middleware.JWT(deps.verifier), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	{
		api.GET("/reconcilers", reconcileHandler.List)
		api.GET("/reconcilers/:name/runs", reconcileHandler.History)
		api.POST("/reconcilers/:name/runs", reconcileHandler.Trigger)
		api.GET("/reconcilers/:name/runs/latest", reconcileHandler.Latest)
	}

	return r
}
