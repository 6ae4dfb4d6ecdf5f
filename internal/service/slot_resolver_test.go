package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

func TestSlotResolverSelectsSourceByRole(t *testing.T) {
	reader := &timeSlotReaderStub{
		student: map[string][]models.TimeSlot{"u-1": {newSlot("group-slot", "t-9", "2024-05-01", "08:00", "09:00")}},
		teacher: map[string][]models.TimeSlot{"u-1": {newSlot("taught-slot", "u-1", "2024-05-01", "10:00", "11:00")}},
	}
	resolver := NewSlotResolver(reader, 0, nil)
	ctx := context.Background()

	both := models.User{ID: "u-1", Roles: []string{"STAFF", "STUDENT"}}
	res, err := resolver.Resolve(ctx, both, at(12, 0))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "group-slot", res.Occurrences[0].SlotID, "users with both roles resolve as students")

	res, err = resolver.Resolve(ctx, staff("u-1"), at(12, 0))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "taught-slot", res.Occurrences[0].SlotID)

	res, err = resolver.Resolve(ctx, models.User{ID: "u-1", Roles: []string{"ADMIN"}}, at(12, 0))
	require.NoError(t, err)
	assert.Empty(t, res.Occurrences)
}

func TestSlotResolverBuildsInstantsInClockLocation(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	reader := &timeSlotReaderStub{student: map[string][]models.TimeSlot{
		"s-1": {newSlot("slot-1", "t-1", "2024-05-01", "07:30", "09:00:30")},
	}}

	res, err := NewSlotResolver(reader, 0, nil).Resolve(context.Background(), student("s-1"), time.Date(2024, 5, 1, 12, 0, 0, 0, jakarta))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	occ := res.Occurrences[0]
	assert.Equal(t, time.Date(2024, 5, 1, 0, 30, 0, 0, time.UTC), occ.Start.UTC())
	assert.Equal(t, time.Date(2024, 5, 1, 2, 0, 30, 0, time.UTC), occ.End.UTC())
	assert.Equal(t, "t-1", occ.TeacherID)
}

func TestSlotResolverSkipsMalformedSlots(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reader := &timeSlotReaderStub{student: map[string][]models.TimeSlot{"s-1": {
		newSlot("ok", "t-1", "2024-05-01", "08:00", "09:00"),
		newSlot("bad-date", "t-1", "01/05/2024", "08:00", "09:00"),
		{ID: "bad-json", TeacherID: "t-1", Date: "2024-05-01", TimeWindow: types.JSONText(`{"start":`)},
		newSlot("missing-end", "t-1", "2024-05-01", "08:00", ""),
		newSlot("bad-time", "t-1", "2024-05-01", "8am", "09:00"),
	}}}

	res, err := NewSlotResolver(reader, 0, zap.New(core)).Resolve(context.Background(), student("s-1"), at(12, 0))
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 1)
	assert.Equal(t, 4, res.Skipped)
	assert.Equal(t, 4, logs.FilterMessage("skipping malformed time slot").Len())
}

func TestSlotResolverLookback(t *testing.T) {
	reader := &timeSlotReaderStub{}
	resolver := NewSlotResolver(reader, 7, nil)

	assert.Equal(t, "2024-04-24", resolver.FromDate(at(12, 0)))
	_, err := resolver.Resolve(context.Background(), staff("t-1"), at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-04-24"}, reader.fromDates)

	assert.Equal(t, "", NewSlotResolver(reader, 0, nil).FromDate(at(12, 0)))
}

func TestSlotResolverPropagatesStoreErrors(t *testing.T) {
	reader := &timeSlotReaderStub{err: errors.New("db down")}
	_, err := NewSlotResolver(reader, 0, nil).Resolve(context.Background(), student("s-1"), at(12, 0))
	require.Error(t, err)
}
