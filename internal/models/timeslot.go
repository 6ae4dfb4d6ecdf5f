package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ErrMalformedSlot marks a time slot whose date or window cannot be resolved.
var ErrMalformedSlot = errors.New("malformed time slot")

// TimeSlot is a scheduled session on a concrete calendar date.
type TimeSlot struct {
	ID          string         `db:"id" json:"id"`
	TimetableID *string        `db:"timetable_id" json:"timetable_id,omitempty"`
	TeacherID   string         `db:"teacher_id" json:"teacher_id"`
	SubjectID   string         `db:"subject_id" json:"subject_id"`
	LocationID  *string        `db:"location_id" json:"location_id,omitempty"`
	Date        string         `db:"date" json:"date"`
	TimeWindow  types.JSONText `db:"time_window" json:"time_window"`
}

// TimeWindow is the stored start/end time-of-day payload.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

var clockLayouts = []string{"15:04", "15:04:05"}

// Resolve builds the absolute occurrence of the slot in loc.
func (s TimeSlot) Resolve(loc *time.Location) (SlotOccurrence, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s.Date), loc)
	if err != nil {
		return SlotOccurrence{}, fmt.Errorf("%w: slot %s date %q: %v", ErrMalformedSlot, s.ID, s.Date, err)
	}
	if len(s.TimeWindow) == 0 {
		return SlotOccurrence{}, fmt.Errorf("%w: slot %s has no time window", ErrMalformedSlot, s.ID)
	}
	var window TimeWindow
	if err := json.Unmarshal(s.TimeWindow, &window); err != nil {
		return SlotOccurrence{}, fmt.Errorf("%w: slot %s time window: %v", ErrMalformedSlot, s.ID, err)
	}
	start, err := atClock(day, window.Start)
	if err != nil {
		return SlotOccurrence{}, fmt.Errorf("%w: slot %s start %q: %v", ErrMalformedSlot, s.ID, window.Start, err)
	}
	end, err := atClock(day, window.End)
	if err != nil {
		return SlotOccurrence{}, fmt.Errorf("%w: slot %s end %q: %v", ErrMalformedSlot, s.ID, window.End, err)
	}
	if end.Before(start) {
		return SlotOccurrence{}, fmt.Errorf("%w: slot %s ends before it starts", ErrMalformedSlot, s.ID)
	}
	return SlotOccurrence{
		SlotID:     s.ID,
		SubjectID:  s.SubjectID,
		TeacherID:  s.TeacherID,
		LocationID: s.LocationID,
		Date:       day,
		Start:      start,
		End:        end,
	}, nil
}

func atClock(day time.Time, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing")
	}
	var lastErr error
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location()), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// SlotOccurrence is a concrete (slot, date) instance with absolute bounds.
type SlotOccurrence struct {
	SlotID     string
	SubjectID  string
	TeacherID  string
	LocationID *string
	Date       time.Time
	Start      time.Time
	End        time.Time
}

// DateKey returns the occurrence date as YYYY-MM-DD.
func (o SlotOccurrence) DateKey() string {
	return o.Date.Format("2006-01-02")
}

// EndedBy reports whether the occurrence is over at now.
func (o SlotOccurrence) EndedBy(now time.Time) bool {
	return !o.End.After(now)
}
