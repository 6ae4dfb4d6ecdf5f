package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/dto"
	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
)

type reconcileRunner interface {
	Names() []string
	Has(name string) bool
	Run(ctx context.Context, name string, override *time.Time) (*models.RunSummary, error)
	LastSummary(ctx context.Context, name string) (*models.RunSummary, error)
	History(ctx context.Context, name string, limit int) ([]models.RunSummary, error)
}

type runTrigger interface {
	Trigger(name string, override *time.Time) (string, error)
}

// ReconcileService backs the trigger API.
type ReconcileService struct {
	runner    reconcileRunner
	trigger   runTrigger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReconcileService constructs the service.
func NewReconcileService(runner reconcileRunner, trigger runTrigger, validate *validator.Validate, logger *zap.Logger) *ReconcileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{runner: runner, trigger: trigger, validator: validate, logger: logger}
}

// List returns every registered reconciler with its latest cached run, when known.
func (s *ReconcileService) List(ctx context.Context) ([]dto.ReconcilerInfo, error) {
	names := s.runner.Names()
	items := make([]dto.ReconcilerInfo, 0, len(names))
	for _, name := range names {
		item := dto.ReconcilerInfo{Name: name}
		summary, err := s.runner.LastSummary(ctx, name)
		switch {
		case err == nil:
			item.LastRun = summary
		case errors.Is(err, appErrors.ErrNotFound), errors.Is(err, appErrors.ErrUnavailable):
		default:
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Latest returns the cached summary of the latest run of name.
func (s *ReconcileService) Latest(ctx context.Context, name string) (*models.RunSummary, error) {
	return s.runner.LastSummary(ctx, name)
}

// History lists recent runs of name, newest first.
func (s *ReconcileService) History(ctx context.Context, name string, query dto.RunHistoryQuery) ([]models.RunSummary, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid history query")
	}
	return s.runner.History(ctx, name, query.Limit)
}

// Trigger runs name synchronously when req.Wait is set and enqueues it otherwise.
// Exactly one of the returned values is non-nil on success.
func (s *ReconcileService) Trigger(ctx context.Context, name string, req dto.TriggerRunRequest, actor *models.JWTClaims) (*models.RunSummary, *dto.TriggerRunResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run request")
	}
	if !s.runner.Has(name) {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "unknown reconciler "+name)
	}

	var override *time.Time
	if req.Now != "" {
		parsed, err := time.Parse(time.RFC3339, req.Now)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "now must be RFC3339")
		}
		override = &parsed
	}

	fields := []zap.Field{zap.String("reconciler", name), zap.Bool("wait", req.Wait)}
	if actor != nil {
		fields = append(fields, zap.String("triggered_by", actor.UserID))
	}
	if override != nil {
		fields = append(fields, zap.Time("now", *override))
	}
	s.logger.Info("reconciler run requested", fields...)

	if req.Wait {
		summary, err := s.runner.Run(ctx, name, override)
		if err != nil {
			return nil, nil, err
		}
		return summary, nil, nil
	}

	jobID, err := s.trigger.Trigger(name, override)
	if err != nil {
		return nil, nil, err
	}
	return nil, &dto.TriggerRunResponse{JobID: jobID, Reconciler: name, Status: "queued", Now: override}, nil
}
