package internal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guest-presence-backend/config"
	"guest-presence-backend/internal/activity"
	"guest-presence-backend/internal/apperr"
	"guest-presence-backend/internal/db"
	"guest-presence-backend/internal/displayid"
	"guest-presence-backend/internal/guest"
	"guest-presence-backend/internal/presence"
	"guest-presence-backend/internal/reporter"
	"guest-presence-backend/internal/store"
	"guest-presence-backend/internal/timeslot"
)

// TestGuestVisitLifecycle walks one guest through a facility day: registration,
// check-in, an activity log, check-out and a second visit, verifying the
// derived views at each step.
func TestGuestVisitLifecycle(t *testing.T) {
	// --- Test Setup ---

	// 1. In-memory SQLite database with the full schema.
	gdb, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:lifecycle?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close(gdb)

	// 2. Facility at UTC+09:00 with 30 minute buckets, on a controllable clock.
	loc := time.FixedZone("facility", 9*60*60)
	now := time.Date(2026, 3, 2, 9, 5, 0, 0, loc)
	clock := func() time.Time { return now }

	log := zap.NewNop()
	st := store.NewGormStore(gdb)
	slots := timeslot.New(30, 9*60)
	ids := displayid.New(st, displayid.DefaultWidth, displayid.DefaultMaxAttempts, log)

	guests := guest.NewService(st, ids, slots, log).WithClock(clock)
	visits := presence.NewService(st, slots, log).WithClock(clock)
	logs := activity.NewService(st, slots, activity.DefaultMaxRangeDays, log).WithClock(clock)
	ctx := context.Background()

	// --- Test Execution ---

	// 3. Register the guest; the display id carries the facility year.
	ada, err := guests.Register(ctx, guest.RegisterInput{Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 26001, ada.DisplayID)

	// 4. Check in at 09:05 local.
	session, err := visits.CheckIn(ctx, ada.ID, nil)
	require.NoError(t, err)
	assert.True(t, session.CheckedInAt.Equal(now))

	present, err := visits.ListCurrentlyPresent(ctx)
	require.NoError(t, err)
	require.Len(t, present, 1)
	assert.Equal(t, "2026-03-02T09:05:00", present[0].CheckedInAtLocal)
	assert.Equal(t, 26001, present[0].Guest.DisplayID)

	// 5. Log an activity at 09:05; it lands in the 09:00 bucket.
	entry, err := logs.UpsertLog(ctx, activity.UpsertInput{
		GuestID:    ada.ID,
		Categories: []string{"drone"},
	})
	require.NoError(t, err)
	assert.Equal(t, "09:00", entry.Slot)

	now = now.Add(10 * time.Minute)
	revised, err := logs.UpsertLog(ctx, activity.UpsertInput{
		GuestID:    ada.ID,
		Categories: []string{"drone", "3d_printer"},
	})
	require.NoError(t, err)
	assert.Equal(t, entry.ID, revised.ID, "same bucket keeps the entry")

	day, err := logs.GetLogsForDate(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, []string{"Drone", "3D Printer"}, day[0].CategoryLabels)

	// 6. Check out at 10:20 local.
	now = time.Date(2026, 3, 2, 10, 20, 0, 0, loc)
	closed, err := visits.CheckOut(ctx, ada.ID, nil)
	require.NoError(t, err)
	assert.False(t, closed.Active)

	present, err = visits.ListCurrentlyPresent(ctx)
	require.NoError(t, err)
	assert.Empty(t, present)

	_, err = visits.CheckOut(ctx, ada.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrNotCheckedIn)

	// 7. A second visit the same afternoon opens a fresh session.
	now = time.Date(2026, 3, 2, 14, 0, 0, 0, loc)
	second, err := visits.CheckIn(ctx, ada.ID, nil)
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, second.ID)

	// --- Verification ---

	// 8. Today's figures: two check-ins, one guest present. The closed stay
	// was 75 minutes and the open one has just begun.
	now = time.Date(2026, 3, 2, 14, 1, 0, 0, loc)
	stats, err := visits.ComputeTodayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", stats.Date)
	assert.EqualValues(t, 2, stats.TotalCheckins)
	assert.EqualValues(t, 1, stats.CurrentGuests)
	assert.Equal(t, 38, stats.AverageStayMinutes)

	// 9. The reporter publishes the same figures as gauges.
	rep := reporter.NewService(&config.ReporterConfig{Enabled: true, Interval: time.Minute}, visits, log)
	require.NotNil(t, rep.RefreshOnce(ctx))
	expected := `
# HELP presence_current_guests Guests with an active presence session.
# TYPE presence_current_guests gauge
presence_current_guests 1
# HELP presence_today_checkins Sessions started during the current facility day.
# TYPE presence_today_checkins gauge
presence_today_checkins 2
`
	assert.NoError(t, testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(expected),
		"presence_current_guests", "presence_today_checkins"))

	// 10. The guest cannot be removed while present, and can once absent.
	assert.ErrorIs(t, visits.DeleteGuest(ctx, ada.ID), apperr.ErrGuestCurrentlyCheckedIn)
	_, err = visits.CheckOut(ctx, ada.ID, nil)
	require.NoError(t, err)
	require.NoError(t, visits.DeleteGuest(ctx, ada.ID))

	_, err = guests.Get(ctx, ada.ID)
	assert.ErrorIs(t, err, apperr.ErrGuestNotFound)
	day, err = logs.GetLogsForDate(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Empty(t, day)
}
