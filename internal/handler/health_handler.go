package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-reconciler/internal/service"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
	"github.com/noah-isme/sma-adp-reconciler/pkg/response"
)

// Check probes one backing dependency.
type Check func(ctx context.Context) error

const readinessTimeout = 2 * time.Second

// HealthHandler serves liveness, readiness and the Prometheus scrape endpoint.
type HealthHandler struct {
	metrics *service.MetricsService
	checks  map[string]Check
}

// NewHealthHandler wires the named readiness checks. Nil checks are dropped.
func NewHealthHandler(metrics *service.MetricsService, checks map[string]Check) *HealthHandler {
	h := &HealthHandler{metrics: metrics, checks: make(map[string]Check, len(checks))}
	for name, check := range checks {
		if check != nil {
			h.checks[name] = check
		}
	}
	return h
}

// Health is the liveness probe.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports 503 while any dependency check fails.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := make(map[string]string, len(names))
	failing := 0
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status[name] = err.Error()
			failing++
			continue
		}
		status[name] = "ok"
	}

	if failing > 0 {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.Envelope{
			Error: appErrors.Clone(appErrors.ErrUnavailable, "dependencies unavailable"),
			Meta:  map[string]interface{}{"checks": status},
		})
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Prometheus serves the metrics registry.
func (h *HealthHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
