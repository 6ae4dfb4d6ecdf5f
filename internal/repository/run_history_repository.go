package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
)

// DefaultRunHistorySize bounds the per-reconciler history list.
const DefaultRunHistorySize = 20

type redisRunStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// LatestRunKey holds the most recent summary of a reconciler.
func LatestRunKey(name string) string {
	return "reconciler:last:" + name
}

// RunHistoryKey holds the newest-first list of recent summaries.
func RunHistoryKey(name string) string {
	return "reconciler:history:" + name
}

// RunHistoryRepository keeps run summaries in Redis.
type RunHistoryRepository struct {
	client  redisRunStore
	maxRuns int64
}

// NewRunHistoryRepository keeps at most maxRuns summaries per reconciler.
func NewRunHistoryRepository(client redisRunStore, maxRuns int) *RunHistoryRepository {
	if maxRuns <= 0 {
		maxRuns = DefaultRunHistorySize
	}
	return &RunHistoryRepository{client: client, maxRuns: int64(maxRuns)}
}

// Save stores summary as the latest run and prepends it to the history list.
// A ttl of zero keeps the keys forever.
func (r *RunHistoryRepository) Save(ctx context.Context, summary *models.RunSummary, ttl time.Duration) error {
	if summary == nil {
		return nil
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary %s: %w", summary.RunID, err)
	}

	if err := r.client.Set(ctx, LatestRunKey(summary.Reconciler), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set latest run of %s: %w", summary.Reconciler, err)
	}

	key := RunHistoryKey(summary.Reconciler)
	if err := r.client.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("redis push run history of %s: %w", summary.Reconciler, err)
	}
	if err := r.client.LTrim(ctx, key, 0, r.maxRuns-1).Err(); err != nil {
		return fmt.Errorf("redis trim run history of %s: %w", summary.Reconciler, err)
	}
	if ttl > 0 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("redis expire run history of %s: %w", summary.Reconciler, err)
		}
	}
	return nil
}

// Latest returns the most recent summary of name or ErrCacheMiss.
func (r *RunHistoryRepository) Latest(ctx context.Context, name string) (*models.RunSummary, error) {
	raw, err := r.client.Get(ctx, LatestRunKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get latest run of %s: %w", name, err)
	}

	var summary models.RunSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal latest run of %s: %w", name, err)
	}
	return &summary, nil
}

// History returns up to limit summaries of name, newest first. Entries that no
// longer decode are dropped.
func (r *RunHistoryRepository) History(ctx context.Context, name string, limit int) ([]models.RunSummary, error) {
	n := int64(limit)
	if n <= 0 || n > r.maxRuns {
		n = r.maxRuns
	}

	raw, err := r.client.LRange(ctx, RunHistoryKey(name), 0, n-1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.RunSummary{}, nil
		}
		return nil, fmt.Errorf("redis read run history of %s: %w", name, err)
	}

	summaries := make([]models.RunSummary, 0, len(raw))
	for _, entry := range raw {
		var summary models.RunSummary
		if err := json.Unmarshal([]byte(entry), &summary); err != nil {
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
