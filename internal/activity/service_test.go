package activity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guest-presence-backend/config"
	"guest-presence-backend/internal/apperr"
	"guest-presence-backend/internal/auth"
	"guest-presence-backend/internal/db"
	"guest-presence-backend/internal/export"
	"guest-presence-backend/internal/model"
	"guest-presence-backend/internal/store"
	"guest-presence-backend/internal/timeslot"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	gdb, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	st := store.NewGormStore(gdb)
	// Facility at UTC+09:00; now is 2026-03-02 12:00 local.
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	svc := NewService(st, timeslot.New(30, 9*60), 31, zap.NewNop()).WithClock(func() time.Time { return now })
	return svc, st
}

func seedGuest(t *testing.T, st store.Store, displayID int, name string) *model.Guest {
	t.Helper()
	g := &model.Guest{DisplayID: displayID, Name: name}
	require.NoError(t, st.CreateGuest(context.Background(), g))
	return g
}

func ptr(s string) *string { return &s }

func TestService_UpsertLog(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	ada := seedGuest(t, st, 26001, "Ada")

	first, err := svc.UpsertLog(ctx, UpsertInput{
		GuestID:     ada.ID,
		Categories:  []string{"drone"},
		Description: ptr("hover practice"),
		Timestamp:   "2026-03-02T09:05:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02T09:00:00", first.BucketStartLocal)
	assert.Equal(t, "09:00", first.Slot)
	assert.True(t, first.BucketStart.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 26001, first.Guest.DisplayID)

	second, err := svc.UpsertLog(ctx, UpsertInput{
		GuestID:    ada.ID,
		Categories: []string{"3d_printer", "VR_HEADSET", "3d_printer"},
		MentorNote: ptr("  focused  "),
		Timestamp:  "2026-03-02T00:25:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same bucket replaces in place")
	assert.Equal(t, model.CategorySet{model.CategoryVRHeadset, model.Category3DPrinter}, second.Categories)
	assert.Equal(t, []string{"VR Headset", "3D Printer"}, second.CategoryLabels)
	assert.Nil(t, second.Description)
	require.NotNil(t, second.MentorNote)
	assert.Equal(t, "focused", *second.MentorNote)

	logs, err := svc.GetLogsForDate(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, logs, 1, "no duplicate entry")
	assert.Equal(t, second.Categories, logs[0].Categories)

	// A blank timestamp uses the current bucket.
	now, err := svc.UpsertLog(ctx, UpsertInput{GuestID: ada.ID, Categories: []string{"other"}})
	require.NoError(t, err)
	assert.Equal(t, "12:00", now.Slot)
}

func TestService_UpsertLogValidation(t *testing.T) {
	svc, st := newTestService(t)
	ada := seedGuest(t, st, 26001, "Ada")

	testCases := []struct {
		name  string
		input UpsertInput
		kind  apperr.Kind
		field string
	}{
		{
			name:  "No categories",
			input: UpsertInput{GuestID: ada.ID},
			kind:  apperr.KindValidation, field: "categories",
		},
		{
			name:  "Unknown category",
			input: UpsertInput{GuestID: ada.ID, Categories: []string{"drone", "jetpack"}},
			kind:  apperr.KindValidation, field: "categories",
		},
		{
			name:  "Description too long",
			input: UpsertInput{GuestID: ada.ID, Categories: []string{"drone"}, Description: ptr(strings.Repeat("あ", 1001))},
			kind:  apperr.KindValidation, field: "description",
		},
		{
			name:  "Mentor note too long",
			input: UpsertInput{GuestID: ada.ID, Categories: []string{"drone"}, MentorNote: ptr(strings.Repeat("x", 1001))},
			kind:  apperr.KindValidation, field: "mentorNote",
		},
		{
			name:  "Unparseable timestamp",
			input: UpsertInput{GuestID: ada.ID, Categories: []string{"drone"}, Timestamp: "yesterday at nine"},
			kind:  apperr.KindInvalidTimestamp, field: "timestamp",
		},
		{
			name:  "Unknown guest",
			input: UpsertInput{GuestID: "missing", Categories: []string{"drone"}},
			kind:  apperr.KindGuestNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpsertLog(context.Background(), tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Equal(t, tc.field, apperr.FieldOf(err))
		})
	}

	// A description of exactly 1000 characters is accepted.
	_, err := svc.UpsertLog(context.Background(), UpsertInput{
		GuestID:     ada.ID,
		Categories:  []string{"drone"},
		Description: ptr(strings.Repeat("あ", 1000)),
	})
	assert.NoError(t, err)
}

func TestService_GetLogsForDate(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	ada := seedGuest(t, st, 26002, "Ada")
	alan := seedGuest(t, st, 26001, "Alan")

	for _, in := range []UpsertInput{
		{GuestID: ada.ID, Categories: []string{"drone"}, Timestamp: "2026-03-02T10:10"},
		{GuestID: ada.ID, Categories: []string{"drone"}, Timestamp: "2026-03-02T09:40"},
		{GuestID: alan.ID, Categories: []string{"drone"}, Timestamp: "2026-03-02T09:59"},
		{GuestID: alan.ID, Categories: []string{"drone"}, Timestamp: "2026-03-01T23:59"},
		{GuestID: alan.ID, Categories: []string{"drone"}, Timestamp: "2026-03-03T00:00"},
	} {
		_, err := svc.UpsertLog(ctx, in)
		require.NoError(t, err)
	}

	logs, err := svc.GetLogsForDate(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "09:30", logs[0].Slot)
	assert.Equal(t, 26001, logs[0].Guest.DisplayID, "display id breaks bucket ties")
	assert.Equal(t, "09:30", logs[1].Slot)
	assert.Equal(t, 26002, logs[1].Guest.DisplayID)
	assert.Equal(t, "10:00", logs[2].Slot)

	_, err = svc.GetLogsForDate(ctx, "02/03/2026")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "date", apperr.FieldOf(err))
}

func TestService_ExportLogs(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	ada := seedGuest(t, st, 26002, "Ada")
	alan := seedGuest(t, st, 26001, "Alan, Jr.")

	for _, in := range []UpsertInput{
		{GuestID: ada.ID, Categories: []string{"3d_printer", "drone"}, Description: ptr("two things"), Timestamp: "2026-03-02T09:10"},
		{GuestID: alan.ID, Categories: []string{"vr_headset"}, MentorNote: ptr("calm"), Timestamp: "2026-03-02T09:20"},
		{GuestID: alan.ID, Categories: []string{"drone"}, Timestamp: "2026-03-03T14:00"},
		{GuestID: ada.ID, Categories: []string{"other"}, Timestamp: "2026-03-05T08:00"},
	} {
		_, err := svc.UpsertLog(ctx, in)
		require.NoError(t, err)
	}

	rows, err := svc.ExportLogs(ctx, ExportQuery{StartDate: "2026-03-02", EndDate: "2026-03-03"})
	require.NoError(t, err)
	assert.Equal(t, []export.Row{
		{Date: "2026-03-02", Time: "09:00", DisplayID: 26001, GuestName: "Alan, Jr.", Category: "VR Headset", MentorNote: "calm"},
		{Date: "2026-03-02", Time: "09:00", DisplayID: 26002, GuestName: "Ada", Category: "Drone", Description: "two things"},
		{Date: "2026-03-02", Time: "09:00", DisplayID: 26002, GuestName: "Ada", Category: "3D Printer", Description: "two things"},
		{Date: "2026-03-03", Time: "14:00", DisplayID: 26001, GuestName: "Alan, Jr.", Category: "Drone"},
	}, rows)

	drones, err := svc.ExportLogs(ctx, ExportQuery{StartDate: "2026-03-01", EndDate: "2026-03-31", Categories: []string{"drone"}})
	require.NoError(t, err)
	require.Len(t, drones, 2)
	for _, r := range drones {
		assert.Equal(t, "Drone", r.Category)
	}

	single, err := svc.ExportLogs(ctx, ExportQuery{StartDate: "2026-03-05", EndDate: "2026-03-05"})
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "Other", single[0].Category)
}

func TestService_ExportLogsValidation(t *testing.T) {
	svc, _ := newTestService(t)

	testCases := []struct {
		name  string
		query ExportQuery
		field string
	}{
		{name: "Start after end", query: ExportQuery{StartDate: "2026-03-05", EndDate: "2026-03-02"}, field: "endDate"},
		{name: "Bad start", query: ExportQuery{StartDate: "March", EndDate: "2026-03-02"}, field: "startDate"},
		{name: "Missing end", query: ExportQuery{StartDate: "2026-03-02"}, field: "endDate"},
		{name: "Range too long", query: ExportQuery{StartDate: "2026-01-01", EndDate: "2026-02-01"}, field: "endDate"},
		{name: "Unknown category", query: ExportQuery{StartDate: "2026-03-01", EndDate: "2026-03-02", Categories: []string{"jetpack"}}, field: "categories"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ExportLogs(context.Background(), tc.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.Validation("", ""))
			assert.Equal(t, tc.field, apperr.FieldOf(err))
		})
	}

	// 31 days inclusive is the configured limit.
	_, err := svc.ExportLogs(context.Background(), ExportQuery{StartDate: "2026-01-01", EndDate: "2026-01-31"})
	assert.NoError(t, err)
}

func TestService_DeleteLog(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	ada := seedGuest(t, st, 26001, "Ada")

	entry, err := svc.UpsertLog(ctx, UpsertInput{GuestID: ada.ID, Categories: []string{"drone"}})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteLog(ctx, entry.ID, auth.RoleStaff), apperr.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteLog(ctx, entry.ID, auth.RoleNone), apperr.ErrForbidden)
	require.NoError(t, svc.DeleteLog(ctx, entry.ID, auth.RoleAdmin))
	assert.ErrorIs(t, svc.DeleteLog(ctx, entry.ID, auth.RoleAdmin), apperr.ErrNotFound)
}

func TestService_Categories(t *testing.T) {
	svc, _ := newTestService(t)
	cats := svc.Categories()
	require.Len(t, cats, 13)
	assert.Equal(t, model.CategoryVRHeadset, cats[0].ID)
	assert.Equal(t, model.CategoryOther, cats[len(cats)-1].ID)
}
