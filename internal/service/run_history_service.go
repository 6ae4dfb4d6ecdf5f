package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
)

type runHistoryStore interface {
	Save(ctx context.Context, summary *models.RunSummary, ttl time.Duration) error
	Latest(ctx context.Context, name string) (*models.RunSummary, error)
	History(ctx context.Context, name string, limit int) ([]models.RunSummary, error)
}

// RunHistoryService records run summaries and times every store access.
type RunHistoryService struct {
	store   runHistoryStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewRunHistoryService keeps summaries for ttl (7 days when unset).
func NewRunHistoryService(store runHistoryStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *RunHistoryService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHistoryService{store: store, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled reports whether summaries are persisted at all.
func (s *RunHistoryService) Enabled() bool {
	return s != nil && s.store != nil
}

// Record persists summary. A disabled service drops it.
func (s *RunHistoryService) Record(ctx context.Context, summary *models.RunSummary) error {
	if !s.Enabled() || summary == nil {
		return nil
	}
	start := time.Now()
	err := s.store.Save(ctx, summary, s.ttl)
	s.metrics.ObserveHistoryWrite(err, time.Since(start))
	if err != nil {
		s.logger.Warn("run summary write failed", zap.String("reconciler", summary.Reconciler), zap.Error(err))
	}
	return err
}

// Latest returns the most recent summary of name, or nil when none is stored.
func (s *RunHistoryService) Latest(ctx context.Context, name string) (*models.RunSummary, error) {
	if !s.Enabled() {
		return nil, nil
	}
	start := time.Now()
	summary, err := s.store.Latest(ctx, name)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveHistoryRead(false, elapsed)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, nil
		}
		s.logger.Warn("run summary read failed", zap.String("reconciler", name), zap.Error(err))
		return nil, err
	}
	s.metrics.ObserveHistoryRead(true, elapsed)
	return summary, nil
}

// History returns up to limit recent summaries of name, newest first.
func (s *RunHistoryService) History(ctx context.Context, name string, limit int) ([]models.RunSummary, error) {
	if !s.Enabled() {
		return nil, nil
	}
	summaries, err := s.store.History(ctx, name, limit)
	if err != nil {
		s.logger.Warn("run history read failed", zap.String("reconciler", name), zap.Error(err))
		return nil, err
	}
	return summaries, nil
}
