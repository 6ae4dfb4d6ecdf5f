package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-reconciler/internal/dto"
	"github.com/noah-isme/sma-adp-reconciler/internal/middleware"
	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
	"github.com/noah-isme/sma-adp-reconciler/pkg/response"
)

type reconcileService interface {
	List(ctx context.Context) ([]dto.ReconcilerInfo, error)
	Latest(ctx context.Context, name string) (*models.RunSummary, error)
	History(ctx context.Context, name string, query dto.RunHistoryQuery) ([]models.RunSummary, error)
	Trigger(ctx context.Context, name string, req dto.TriggerRunRequest, actor *models.JWTClaims) (*models.RunSummary, *dto.TriggerRunResponse, error)
}

// ReconcileHandler exposes the reconciler trigger endpoints.
type ReconcileHandler struct {
	service reconcileService
}

// NewReconcileHandler builds a new handler.
func NewReconcileHandler(service reconcileService) *ReconcileHandler {
	return &ReconcileHandler{service: service}
}

// List handles GET /reconcilers.
func (h *ReconcileHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// Latest handles GET /reconcilers/:name/runs/latest.
func (h *ReconcileHandler) Latest(c *gin.Context) {
	summary, err := h.service.Latest(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// History handles GET /reconcilers/:name/runs.
func (h *ReconcileHandler) History(c *gin.Context) {
	var query dto.RunHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	runs, err := h.service.History(c.Request.Context(), c.Param("name"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, map[string]interface{}{"count": len(runs)})
}

// Trigger handles POST /reconcilers/:name/runs. The body is optional; ?wait=true
// runs synchronously and returns the run summary.
func (h *ReconcileHandler) Trigger(c *gin.Context) {
	var req dto.TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run payload"))
		return
	}
	if raw := c.Query("wait"); raw != "" {
		wait, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "wait must be a boolean"))
			return
		}
		req.Wait = wait
	}

	actor, _ := middleware.CurrentClaims(c)
	summary, queued, err := h.service.Trigger(c.Request.Context(), c.Param("name"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if actor != nil {
		meta = map[string]interface{}{"triggered_by": actor.UserID}
	}
	if summary != nil {
		response.JSON(c, http.StatusOK, summary, meta)
		return
	}
	response.Accepted(c, queued, meta)
}
