package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

type userDirectoryStub struct {
	users []models.User
	err   error
}

func (s userDirectoryStub) ListWithAnyRole(ctx context.Context, roles ...models.UserRole) ([]models.User, error) {
	return s.users, s.err
}

type timeSlotReaderStub struct {
	student   map[string][]models.TimeSlot
	teacher   map[string][]models.TimeSlot
	err       error
	fromDates []string
}

func (s *timeSlotReaderStub) ListForStudent(ctx context.Context, studentID, fromDate string) ([]models.TimeSlot, error) {
	s.fromDates = append(s.fromDates, fromDate)
	if s.err != nil {
		return nil, s.err
	}
	return s.student[studentID], nil
}

func (s *timeSlotReaderStub) ListForTeacher(ctx context.Context, teacherID, fromDate string) ([]models.TimeSlot, error) {
	s.fromDates = append(s.fromDates, fromDate)
	if s.err != nil {
		return nil, s.err
	}
	return s.teacher[teacherID], nil
}

type leaveReaderStub struct {
	mu     sync.Mutex
	byUser map[string][]models.LeaveRequest
	errFor map[string]error
	calls  map[string]int
}

func (s *leaveReaderStub) ListApprovedByUser(ctx context.Context, userID string) ([]models.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[userID]++
	if err := s.errFor[userID]; err != nil {
		return nil, err
	}
	return s.byUser[userID], nil
}

type storedKey struct {
	userID string
	key    models.AttendanceKey
}

// attendanceStoreStub behaves like the unique (user, slot, date) constraint.
type attendanceStoreStub struct {
	records     map[storedKey]models.AttendanceRecord
	inserted    []models.AttendanceRecord
	existingErr error
	insertErr   error
	// concurrent simulates another writer winning every insert race.
	concurrent bool
}

func newAttendanceStoreStub() *attendanceStoreStub {
	return &attendanceStoreStub{records: make(map[storedKey]models.AttendanceRecord)}
}

func (s *attendanceStoreStub) ExistingKeys(ctx context.Context, userID, fromDate string) (map[models.AttendanceKey]struct{}, error) {
	if s.existingErr != nil {
		return nil, s.existingErr
	}
	keys := make(map[models.AttendanceKey]struct{})
	for k := range s.records {
		if k.userID == userID && (fromDate == "" || k.key.Date >= fromDate) {
			keys[k.key] = struct{}{}
		}
	}
	return keys, nil
}

func (s *attendanceStoreStub) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if s.concurrent {
		return false, nil
	}
	k := storedKey{userID: record.UserID, key: models.AttendanceKey{TimeSlotID: record.TimeSlotID, Date: record.AttendanceDate.Format("2006-01-02")}}
	if _, ok := s.records[k]; ok {
		return false, nil
	}
	s.records[k] = *record
	s.inserted = append(s.inserted, *record)
	return true, nil
}

func (s *attendanceStoreStub) only() models.AttendanceRecord {
	if len(s.inserted) != 1 {
		panic(fmt.Sprintf("expected exactly one inserted record, got %d", len(s.inserted)))
	}
	return s.inserted[0]
}

type qrFinderStub struct {
	ids map[string]string
	err error
}

func (s qrFinderStub) FindActiveByLocation(ctx context.Context, locationID string) (*string, error) {
	if s.err != nil {
		return nil, s.err
	}
	id, ok := s.ids[locationID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func newSlot(id, teacherID, date, start, end string) models.TimeSlot {
	return models.TimeSlot{
		ID:         id,
		TeacherID:  teacherID,
		SubjectID:  "math",
		Date:       date,
		TimeWindow: types.JSONText(fmt.Sprintf(`{"start":%q,"end":%q}`, start, end)),
	}
}

func approvedLeave(id, userID, start, end string) models.LeaveRequest {
	return models.LeaveRequest{ID: id, UserID: userID, StartDate: start, EndDate: end, Status: models.LeaveStatusApproved}
}

func student(id string) models.User {
	return models.User{ID: id, Roles: []string{string(models.RoleStudent)}}
}

func staff(id string) models.User {
	return models.User{ID: id, Roles: []string{string(models.RoleStaff)}}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
}
