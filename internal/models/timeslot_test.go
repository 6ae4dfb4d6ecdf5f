package models

import (
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSlotResolve(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	room := "loc-1"
	slot := TimeSlot{
		ID:         "slot-1",
		TeacherID:  "teacher-1",
		SubjectID:  "math",
		LocationID: &room,
		Date:       "2024-05-01",
		TimeWindow: types.JSONText(`{"start":"13:30","end":"15:00:00"}`),
	}

	occ, err := slot.Resolve(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 13, 30, 0, 0, loc), occ.Start)
	assert.Equal(t, time.Date(2024, 5, 1, 15, 0, 0, 0, loc), occ.End)
	assert.Equal(t, "2024-05-01", occ.DateKey())
	assert.Equal(t, "teacher-1", occ.TeacherID)
	assert.Equal(t, &room, occ.LocationID)

	assert.False(t, occ.EndedBy(time.Date(2024, 5, 1, 14, 59, 0, 0, loc)))
	assert.True(t, occ.EndedBy(time.Date(2024, 5, 1, 15, 0, 0, 0, loc)))
	assert.True(t, occ.EndedBy(time.Date(2024, 5, 1, 15, 1, 0, 0, loc)))
}

func TestTimeSlotResolveMalformed(t *testing.T) {
	cases := map[string]TimeSlot{
		"bad date":       {ID: "s", Date: "01/05/2024", TimeWindow: types.JSONText(`{"start":"08:00","end":"09:00"}`)},
		"missing window": {ID: "s", Date: "2024-05-01"},
		"bad json":       {ID: "s", Date: "2024-05-01", TimeWindow: types.JSONText(`{"start":`)},
		"missing end":    {ID: "s", Date: "2024-05-01", TimeWindow: types.JSONText(`{"start":"08:00"}`)},
		"bad start":      {ID: "s", Date: "2024-05-01", TimeWindow: types.JSONText(`{"start":"8am","end":"09:00"}`)},
		"inverted":       {ID: "s", Date: "2024-05-01", TimeWindow: types.JSONText(`{"start":"10:00","end":"09:00"}`)},
	}
	for name, slot := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := slot.Resolve(time.UTC)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedSlot))
		})
	}
}
