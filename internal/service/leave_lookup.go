package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

type approvedLeaveReader interface {
	ListApprovedByUser(ctx context.Context, userID string) ([]models.LeaveRequest, error)
}

type parsedLeave struct {
	request models.LeaveRequest
	start   time.Time
	end     time.Time
}

// LeaveLookup answers "is this user on approved leave on this date". Approved
// requests are loaded once per user and kept for the lifetime of the lookup, so
// a new lookup is built for every run.
type LeaveLookup struct {
	repo   approvedLeaveReader
	loc    *time.Location
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string][]parsedLeave
}

// NewLeaveLookup constructs a per-run lookup evaluating dates in loc.
func NewLeaveLookup(repo approvedLeaveReader, loc *time.Location, logger *zap.Logger) *LeaveLookup {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveLookup{repo: repo, loc: loc, logger: logger, cache: make(map[string][]parsedLeave)}
}

// ApprovedCovering returns the approved request of userID covering day, or nil.
// When several cover day the one starting earliest wins.
func (l *LeaveLookup) ApprovedCovering(ctx context.Context, userID string, day time.Time) (*models.LeaveRequest, error) {
	leaves, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	y, m, d := day.In(l.loc).Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, l.loc)
	for i := range leaves {
		if !day.Before(leaves[i].start) && !day.After(leaves[i].end) {
			req := leaves[i].request
			return &req, nil
		}
	}
	return nil, nil
}

func (l *LeaveLookup) load(ctx context.Context, userID string) ([]parsedLeave, error) {
	l.mu.Lock()
	cached, ok := l.cache[userID]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	rows, err := l.repo.ListApprovedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	parsed := make([]parsedLeave, 0, len(rows))
	for _, row := range rows {
		start, err := models.ParseLeaveDate(row.StartDate, l.loc)
		if err != nil {
			l.logger.Warn("ignoring approved leave with malformed start date",
				zap.String("leave_request_id", row.ID), zap.String("start_date", row.StartDate))
			continue
		}
		end, err := models.ParseLeaveDate(row.EndDate, l.loc)
		if err != nil {
			l.logger.Warn("ignoring approved leave with malformed end date",
				zap.String("leave_request_id", row.ID), zap.String("end_date", row.EndDate))
			continue
		}
		parsed = append(parsed, parsedLeave{request: row, start: start, end: end})
	}
	sort.SliceStable(parsed, func(i, j int) bool {
		if parsed[i].start.Equal(parsed[j].start) {
			return parsed[i].request.ID < parsed[j].request.ID
		}
		return parsed[i].start.Before(parsed[j].start)
	})

	l.mu.Lock()
	l.cache[userID] = parsed
	l.mu.Unlock()
	return parsed, nil
}
