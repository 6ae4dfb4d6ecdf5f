package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

// statusStrategy decides the attendance status of an ended occurrence nobody scanned for.
type statusStrategy interface {
	Resolve(ctx context.Context, user models.User, occ models.SlotOccurrence) (models.StatusDecision, error)
}

type leaveFinder interface {
	ApprovedCovering(ctx context.Context, userID string, day time.Time) (*models.LeaveRequest, error)
}

type qrCodeFinder interface {
	FindActiveByLocation(ctx context.Context, locationID string) (*string, error)
}

// studentStrategy: teacher leave cancels the class, then the student's own leave, then absent.
type studentStrategy struct {
	leaves leaveFinder
	qr     qrCodeFinder
	logger *zap.Logger
}

func (s studentStrategy) Resolve(ctx context.Context, user models.User, occ models.SlotOccurrence) (models.StatusDecision, error) {
	decision := models.StatusDecision{Status: models.AttendanceStatusAbsent}

	teacherLeave, err := s.leaves.ApprovedCovering(ctx, occ.TeacherID, occ.Date)
	if err != nil {
		return models.StatusDecision{}, err
	}
	if teacherLeave != nil {
		decision = models.StatusDecision{Status: models.AttendanceStatusNoClass, Leave: teacherLeave}
	} else {
		ownLeave, err := s.leaves.ApprovedCovering(ctx, user.ID, occ.Date)
		if err != nil {
			return models.StatusDecision{}, err
		}
		if ownLeave != nil {
			decision = models.StatusDecision{Status: models.AttendanceStatusOnLeave, Leave: ownLeave}
		}
	}

	decision.QRCodeID = s.lookupQRCode(ctx, occ)
	return decision, nil
}

// lookupQRCode links the location's QR code when one exists. Failures never block the write.
func (s studentStrategy) lookupQRCode(ctx context.Context, occ models.SlotOccurrence) *string {
	if s.qr == nil || occ.LocationID == nil || *occ.LocationID == "" {
		return nil
	}
	id, err := s.qr.FindActiveByLocation(ctx, *occ.LocationID)
	if err != nil {
		s.logger.Warn("qr code lookup failed",
			zap.String("slot_id", occ.SlotID),
			zap.String("location_id", *occ.LocationID),
			zap.Error(err),
		)
		return nil
	}
	return id
}

type staffStrategy struct {
	leaves leaveFinder
}

func (s staffStrategy) Resolve(ctx context.Context, user models.User, occ models.SlotOccurrence) (models.StatusDecision, error) {
	leave, err := s.leaves.ApprovedCovering(ctx, user.ID, occ.Date)
	if err != nil {
		return models.StatusDecision{}, err
	}
	if leave != nil {
		return models.StatusDecision{Status: models.AttendanceStatusOnLeave, Leave: leave}, nil
	}
	return models.StatusDecision{Status: models.AttendanceStatusAbsent}, nil
}
