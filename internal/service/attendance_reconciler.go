package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
)

type userDirectory interface {
	ListWithAnyRole(ctx context.Context, roles ...models.UserRole) ([]models.User, error)
}

type attendanceStore interface {
	ExistingKeys(ctx context.Context, userID, fromDate string) (map[models.AttendanceKey]struct{}, error)
	InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error)
}

// AttendanceReconciler writes a status for every ended slot occurrence that has
// no attendance record yet. Existing records are never modified.
type AttendanceReconciler struct {
	users    userDirectory
	resolver *SlotResolver
	leaves   approvedLeaveReader
	records  attendanceStore
	qr       qrCodeFinder
	logger   *zap.Logger
}

// NewAttendanceReconciler wires the attendance reconciler.
func NewAttendanceReconciler(
	users userDirectory,
	resolver *SlotResolver,
	leaves approvedLeaveReader,
	records attendanceStore,
	qr qrCodeFinder,
	logger *zap.Logger,
) *AttendanceReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceReconciler{
		users:    users,
		resolver: resolver,
		leaves:   leaves,
		records:  records,
		qr:       qr,
		logger:   logger,
	}
}

// Name implements Reconciler.
func (r *AttendanceReconciler) Name() string { return models.ReconcilerAttendance }

// Reconcile implements Reconciler.
func (r *AttendanceReconciler) Reconcile(ctx context.Context, now time.Time) (map[string]int, error) {
	result, err := r.Run(ctx, now)
	if result == nil {
		return nil, err
	}
	return result.Counts(), err
}

// Run reconciles every student and staff member against now. Per-occurrence
// failures are counted and the run continues.
func (r *AttendanceReconciler) Run(ctx context.Context, now time.Time) (*models.AttendanceRunResult, error) {
	users, err := r.users.ListWithAnyRole(ctx, models.RoleStudent, models.RoleStaff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrReconcileFailed.Code, appErrors.ErrReconcileFailed.Status, "failed to list users")
	}

	lookup := NewLeaveLookup(r.leaves, now.Location(), r.logger)
	result := models.NewAttendanceRunResult()
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		strategy := r.strategyFor(user, lookup)
		if strategy == nil {
			continue
		}
		result.Users++
		r.reconcileUser(ctx, user, strategy, now, result)
	}
	return result, nil
}

func (r *AttendanceReconciler) strategyFor(user models.User, leaves leaveFinder) statusStrategy {
	switch {
	case user.IsStudent():
		return studentStrategy{leaves: leaves, qr: r.qr, logger: r.logger}
	case user.IsStaff():
		return staffStrategy{leaves: leaves}
	default:
		return nil
	}
}

func (r *AttendanceReconciler) reconcileUser(ctx context.Context, user models.User, strategy statusStrategy, now time.Time, result *models.AttendanceRunResult) {
	log := r.logger.With(zap.String("user_id", user.ID))

	resolution, err := r.resolver.Resolve(ctx, user, now)
	if err != nil {
		log.Error("failed to resolve time slots", zap.Error(err))
		result.Failed++
		return
	}
	result.Skipped += resolution.Skipped
	if len(resolution.Occurrences) == 0 {
		return
	}

	existing, err := r.records.ExistingKeys(ctx, user.ID, r.resolver.FromDate(now))
	if err != nil {
		log.Error("failed to load existing attendance", zap.Error(err))
		result.Failed++
		return
	}

	for _, occ := range resolution.Occurrences {
		if !occ.EndedBy(now) {
			result.NotEnded++
			continue
		}
		key := models.AttendanceKey{TimeSlotID: occ.SlotID, Date: occ.DateKey()}
		if _, ok := existing[key]; ok {
			result.Existing++
			continue
		}

		decision, err := strategy.Resolve(ctx, user, occ)
		if err != nil {
			log.Error("failed to resolve attendance status",
				zap.String("slot_id", occ.SlotID), zap.String("date", key.Date), zap.Error(err))
			result.Failed++
			continue
		}

		record := &models.AttendanceRecord{
			UserID:         user.ID,
			TimeSlotID:     occ.SlotID,
			AttendanceDate: occ.Date,
			Status:         decision.Status,
			QRCodeID:       decision.QRCodeID,
			CreatedAt:      now.UTC(),
		}
		if decision.Leave != nil {
			leaveID := decision.Leave.ID
			record.LeaveRequestID = &leaveID
		}

		created, err := r.records.InsertIfAbsent(ctx, record)
		if err != nil {
			log.Error("failed to insert attendance record",
				zap.String("slot_id", occ.SlotID), zap.String("date", key.Date), zap.Error(err))
			result.Failed++
			continue
		}
		existing[key] = struct{}{}
		if !created {
			result.Existing++
			continue
		}
		result.Created[decision.Status]++
		log.Debug("attendance record created",
			zap.String("slot_id", occ.SlotID), zap.String("date", key.Date), zap.String("status", string(decision.Status)))
	}
}
