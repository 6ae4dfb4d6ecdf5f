package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	"github.com/noah-isme/sma-adp-reconciler/pkg/clock"
)

type timeSlotReader interface {
	ListForStudent(ctx context.Context, studentID, fromDate string) ([]models.TimeSlot, error)
	ListForTeacher(ctx context.Context, teacherID, fromDate string) ([]models.TimeSlot, error)
}

// SlotResolution holds the occurrences resolved for one user and how many slots were unusable.
type SlotResolution struct {
	Occurrences []models.SlotOccurrence
	Skipped     int
}

// SlotResolver expands a user's timetable into concrete slot occurrences.
type SlotResolver struct {
	slots        timeSlotReader
	lookbackDays int
	logger       *zap.Logger
}

// NewSlotResolver constructs a resolver. lookbackDays <= 0 loads every slot.
func NewSlotResolver(slots timeSlotReader, lookbackDays int, logger *zap.Logger) *SlotResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	return &SlotResolver{slots: slots, lookbackDays: lookbackDays, logger: logger}
}

// FromDate returns the earliest slot date considered at now, or "" when unbounded.
func (r *SlotResolver) FromDate(now time.Time) string {
	if r.lookbackDays == 0 {
		return ""
	}
	return clock.FormatDate(clock.StartOfDay(now).AddDate(0, 0, -r.lookbackDays))
}

// Resolve returns the slot occurrences of user, with bounds expressed in now's location.
// Students are resolved through group timetables, staff through taught slots. Users
// holding both roles are treated as students.
func (r *SlotResolver) Resolve(ctx context.Context, user models.User, now time.Time) (*SlotResolution, error) {
	from := r.FromDate(now)

	var (
		slots []models.TimeSlot
		err   error
	)
	switch {
	case user.IsStudent():
		slots, err = r.slots.ListForStudent(ctx, user.ID, from)
	case user.IsStaff():
		slots, err = r.slots.ListForTeacher(ctx, user.ID, from)
	default:
		return &SlotResolution{}, nil
	}
	if err != nil {
		return nil, err
	}

	loc := now.Location()
	result := &SlotResolution{Occurrences: make([]models.SlotOccurrence, 0, len(slots))}
	for _, slot := range slots {
		occ, err := slot.Resolve(loc)
		if err != nil {
			if !errors.Is(err, models.ErrMalformedSlot) {
				return nil, err
			}
			r.logger.Warn("skipping malformed time slot",
				zap.String("slot_id", slot.ID),
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			result.Skipped++
			continue
		}
		result.Occurrences = append(result.Occurrences, occ)
	}
	return result, nil
}
