package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"guest-presence-backend/config"
	"guest-presence-backend/internal/db"
	"guest-presence-backend/internal/model"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteStore opens a private in-memory database with the full schema.
func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	return NewGormStore(gdb)
}

func createGuest(t *testing.T, s Store, displayID int, name string) *model.Guest {
	t.Helper()
	g := &model.Guest{DisplayID: displayID, Name: name}
	require.NoError(t, s.CreateGuest(context.Background(), g))
	return g
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestGormStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	g := createGuest(t, s, 26001, "Ada")

	_, err := s.FindActiveSession(ctx, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	opened, err := s.CreateActiveSession(ctx, g.ID, at(9, 0))
	require.NoError(t, err)
	assert.True(t, opened.Active)
	assert.NotEmpty(t, opened.ID)

	_, err = s.CreateActiveSession(ctx, g.ID, at(9, 5))
	assert.ErrorIs(t, err, ErrActiveSession)

	count, err := s.CountActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	active, err := s.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Ada", active[0].Guest.Name)

	_, err = s.CloseActiveSession(ctx, g.ID, at(8, 0))
	assert.ErrorIs(t, err, ErrCheckoutBeforeCheckin)

	closed, err := s.CloseActiveSession(ctx, g.ID, at(10, 30))
	require.NoError(t, err)
	assert.False(t, closed.Active)
	require.NotNil(t, closed.CheckedOutAt)
	assert.True(t, closed.CheckedOutAt.Equal(at(10, 30)))

	_, err = s.CloseActiveSession(ctx, g.ID, at(11, 0))
	assert.ErrorIs(t, err, ErrNotFound)

	// A new stay may not begin inside the closed one.
	_, err = s.CreateActiveSession(ctx, g.ID, at(10, 0))
	assert.ErrorIs(t, err, ErrCheckinBeforeCheckout)

	// A new stay may start once the previous one is closed.
	_, err = s.CreateActiveSession(ctx, g.ID, at(13, 0))
	require.NoError(t, err)

	inDay, err := s.CountSessionsStartingInRange(ctx, at(0, 0), at(0, 0).Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), inDay)

	morning, err := s.ListSessionsStartingInRange(ctx, at(0, 0), at(12, 0))
	require.NoError(t, err)
	require.Len(t, morning, 1)
	assert.True(t, morning[0].CheckedInAt.Equal(at(9, 0)))

	history, err := s.ListSessions(ctx, g.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].CheckedInAt.Equal(at(13, 0)), "newest first")

	total, err := s.CountSessions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestGormStore_ConcurrentCheckIn(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	g := createGuest(t, s, 26001, "Ada")

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateActiveSession(ctx, g.ID, at(9, 0))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrActiveSession):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)
}

func TestGormStore_SearchAndDeleteGuests(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	ada := createGuest(t, s, 26001, "Ada Lovelace")
	createGuest(t, s, 26002, "Alan Turing")
	createGuest(t, s, 26003, "Grace Hopper")

	guests, total, err := s.SearchGuests(ctx, "", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, guests, 2)
	assert.Equal(t, 26001, guests[0].DisplayID)

	guests, total, err = s.SearchGuests(ctx, "a", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	guests, total, err = s.SearchGuests(ctx, "LOVE", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, ada.ID, guests[0].ID)

	// Wildcards in the query match literally.
	for _, q := range []string{"_", "%", `\`} {
		_, total, err = s.SearchGuests(ctx, q, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total, q)
	}
	percent := createGuest(t, s, 26004, "100% Grace")
	guests, total, err = s.SearchGuests(ctx, "0%", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, percent.ID, guests[0].ID)

	guests, _, err = s.SearchGuests(ctx, "26003", 0, 10)
	require.NoError(t, err)
	require.Len(t, guests, 1)
	assert.Equal(t, "Grace Hopper", guests[0].Name)

	_, err = s.CreateActiveSession(ctx, ada.ID, at(9, 0))
	require.NoError(t, err)
	_, err = s.UpsertActivityEntry(ctx, &model.ActivityLogEntry{
		GuestID:     ada.ID,
		BucketStart: at(9, 0),
		Categories:  model.CategorySet{model.CategoryDrone},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteGuest(ctx, ada.ID), ErrActiveSession)
	_, err = s.FindGuestByID(ctx, ada.ID)
	assert.NoError(t, err, "guest survives a refused delete")

	_, err = s.CloseActiveSession(ctx, ada.ID, at(10, 0))
	require.NoError(t, err)
	require.NoError(t, s.DeleteGuest(ctx, ada.ID))

	_, err = s.FindGuestByID(ctx, ada.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	sessions, err := s.CountSessions(ctx, ada.ID)
	require.NoError(t, err)
	assert.Zero(t, sessions)
	entries, err := s.QueryActivityEntries(ctx, ActivityFilter{Start: at(0, 0), End: at(23, 59)})
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, s.DeleteGuest(ctx, ada.ID), ErrNotFound)
}

func TestGormStore_ActivityEntries(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	ada := createGuest(t, s, 26001, "Ada")
	alan := createGuest(t, s, 26002, "Alan")

	note := "first try"
	first, err := s.UpsertActivityEntry(ctx, &model.ActivityLogEntry{
		GuestID:     ada.ID,
		BucketStart: at(9, 0),
		Categories:  model.CategorySet{model.CategoryDrone},
		Description: &note,
	})
	require.NoError(t, err)

	updated := "second try"
	second, err := s.UpsertActivityEntry(ctx, &model.ActivityLogEntry{
		GuestID:     ada.ID,
		BucketStart: at(9, 0),
		Categories:  model.CategorySet{model.CategoryVRHeadset, model.Category3DPrinter},
		Description: &updated,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same (guest, bucket) keeps its identity")
	assert.Equal(t, model.CategorySet{model.CategoryVRHeadset, model.Category3DPrinter}, second.Categories)
	require.NotNil(t, second.Description)
	assert.Equal(t, "second try", *second.Description)

	_, err = s.UpsertActivityEntry(ctx, &model.ActivityLogEntry{
		GuestID:     alan.ID,
		BucketStart: at(10, 30),
		Categories:  model.CategorySet{model.CategoryOther},
	})
	require.NoError(t, err)

	all, err := s.QueryActivityEntries(ctx, ActivityFilter{Start: at(0, 0), End: at(23, 0)})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ada", all[0].Guest.Name)

	drones, err := s.QueryActivityEntries(ctx, ActivityFilter{
		Start:      at(0, 0),
		End:        at(23, 0),
		Categories: model.CategorySet{model.Category3DPrinter},
	})
	require.NoError(t, err)
	require.Len(t, drones, 1)
	assert.Equal(t, ada.ID, drones[0].GuestID)

	// The end bound is exclusive.
	none, err := s.QueryActivityEntries(ctx, ActivityFilter{Start: at(0, 0), End: at(9, 0)})
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := s.GetActivityEntry(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Guest.Name)

	require.NoError(t, s.DeleteActivityEntry(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteActivityEntry(ctx, first.ID), ErrNotFound)
	_, err = s.GetActivityEntry(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_Sequence(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	got, err := s.ReadMaxSequence(ctx, 26)
	require.NoError(t, err)
	assert.Zero(t, got)

	ok, err := s.ProposeSequence(ctx, 26, 0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// A stale proposal loses.
	ok, err = s.ProposeSequence(ctx, 26, 0, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ProposeSequence(ctx, 26, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = s.ReadMaxSequence(ctx, 26)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	// Years are independent.
	got, err = s.ReadMaxSequence(ctx, 27)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = s.ProposeSequence(ctx, 26, 2, 2)
	assert.Error(t, err)
}

func TestGormStore_SequenceMock(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		run              func(s Store) error
		expectedErr      bool
	}{
		{
			name: "Advance existing counter",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sequence_counters" SET "max_sequence"=$1`)).
					WithArgs(8, 26, 7).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			run: func(s Store) error {
				ok, err := s.ProposeSequence(context.Background(), 26, 7, 8)
				if err == nil && !ok {
					return errors.New("expected proposal to win")
				}
				return err
			},
		},
		{
			name: "Lost race on existing counter",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sequence_counters" SET "max_sequence"=$1`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			run: func(s Store) error {
				ok, err := s.ProposeSequence(context.Background(), 26, 7, 8)
				if err == nil && ok {
					return errors.New("expected proposal to lose")
				}
				return err
			},
		},
		{
			name: "Update fails",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sequence_counters"`)).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			run: func(s Store) error {
				_, err := s.ProposeSequence(context.Background(), 26, 7, 8)
				return err
			},
			expectedErr: true,
		},
		{
			name: "Read fails",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sequence_counters"`)).
					WillReturnError(errors.New("connection reset"))
			},
			run: func(s Store) error {
				_, err := s.ReadMaxSequence(context.Background(), 26)
				return err
			},
			expectedErr: true,
		},
		{
			name: "Read existing counter",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sequence_counters"`)).
					WillReturnRows(sqlmock.NewRows([]string{"year", "max_sequence"}).AddRow(26, 41))
			},
			run: func(s Store) error {
				got, err := s.ReadMaxSequence(context.Background(), 26)
				if err == nil && got != 41 {
					return errors.New("unexpected max sequence")
				}
				return err
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newMockDB(t)
			tc.mockExpectations(mock)

			err := tc.run(NewGormStore(gormDB))

			if tc.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
