// Package presence enforces the per-guest Absent/Present state machine and
// answers questions about who is in the facility.
package presence

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"guest-presence-backend/internal/apperr"
	"guest-presence-backend/internal/metrics"
	"guest-presence-backend/internal/model"
	"guest-presence-backend/internal/paging"
	"guest-presence-backend/internal/store"
	"guest-presence-backend/internal/timeslot"
)

// SessionView is a presence session joined with its guest.
type SessionView struct {
	ID                string             `json:"id"`
	Guest             model.GuestSummary `json:"guest"`
	CheckedInAt       time.Time          `json:"checkedInAt"`
	CheckedInAtLocal  string             `json:"checkedInAtLocal"`
	CheckedOutAt      *time.Time         `json:"checkedOutAt,omitempty"`
	CheckedOutAtLocal string             `json:"checkedOutAtLocal,omitempty"`
	Active            bool               `json:"active"`
	StayMinutes       int                `json:"stayMinutes"`
}

// TodayStats summarises the current facility day.
type TodayStats struct {
	Date               string `json:"date"`
	TotalCheckins      int64  `json:"totalCheckins"`
	CurrentGuests      int64  `json:"currentGuests"`
	AverageStayMinutes int    `json:"averageStayMinutes"`
}

// HistoryQuery selects a page of sessions, optionally for one guest.
type HistoryQuery struct {
	GuestID string
	Page    int
	Limit   int
}

type HistoryResult struct {
	Sessions   []SessionView `json:"sessions"`
	Pagination paging.Page   `json:"pagination"`
}

type Service struct {
	store store.Store
	slots *timeslot.Normalizer
	log   *zap.Logger
	now   func() time.Time
}

// maxClockSkew is how far past the server clock a requested instant may lie.
const maxClockSkew = time.Minute

func NewService(st store.Store, slots *timeslot.Normalizer, log *zap.Logger) *Service {
	return &Service{store: st, slots: slots, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CheckIn opens a session for an Absent guest. at defaults to now.
func (s *Service) CheckIn(ctx context.Context, guestID string, at *time.Time) (*model.PresenceSession, error) {
	session, err := s.checkIn(ctx, guestID, at)
	metrics.RecordTransition("check_in", err)
	return session, err
}

func (s *Service) checkIn(ctx context.Context, guestID string, at *time.Time) (*model.PresenceSession, error) {
	if _, err := s.guest(ctx, guestID); err != nil {
		return nil, err
	}

	t, err := s.instant(at)
	if err != nil {
		return nil, err
	}
	session, err := s.store.CreateActiveSession(ctx, guestID, t)
	switch {
	case errors.Is(err, store.ErrActiveSession):
		return nil, apperr.ErrAlreadyCheckedIn
	case errors.Is(err, store.ErrCheckinBeforeCheckout):
		return nil, apperr.Validation("at", "check-in time precedes the previous check-out")
	case err != nil:
		return nil, apperr.Internal(err, "failed to check in")
	}

	s.log.Info("guest checked in",
		zap.String("guest_id", guestID),
		zap.String("session_id", session.ID),
		zap.Time("at", session.CheckedInAt),
	)
	return session, nil
}

// CheckOut closes the active session of a Present guest. at defaults to now
// and may not precede the check-in.
func (s *Service) CheckOut(ctx context.Context, guestID string, at *time.Time) (*model.PresenceSession, error) {
	session, err := s.checkOut(ctx, guestID, at)
	metrics.RecordTransition("check_out", err)
	return session, err
}

func (s *Service) checkOut(ctx context.Context, guestID string, at *time.Time) (*model.PresenceSession, error) {
	if _, err := s.guest(ctx, guestID); err != nil {
		return nil, err
	}

	t, err := s.instant(at)
	if err != nil {
		return nil, err
	}
	session, err := s.store.CloseActiveSession(ctx, guestID, t)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.ErrNotCheckedIn
	case errors.Is(err, store.ErrCheckoutBeforeCheckin):
		return nil, apperr.Validation("at", "check-out time precedes check-in time")
	case err != nil:
		return nil, apperr.Internal(err, "failed to check out")
	}

	s.log.Info("guest checked out",
		zap.String("guest_id", guestID),
		zap.String("session_id", session.ID),
		zap.Duration("stay", session.StayDuration(session.CheckedInAt)),
	)
	return session, nil
}

// ListCurrentlyPresent returns the active sessions, earliest check-in first.
func (s *Service) ListCurrentlyPresent(ctx context.Context) ([]SessionView, error) {
	sessions, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list present guests")
	}
	now := s.now()
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, s.view(session, now))
	}
	return views, nil
}

// ComputeTodayStats counts today's check-ins and present guests and averages
// the stay of today's sessions, counting open ones up to now.
func (s *Service) ComputeTodayStats(ctx context.Context) (*TodayStats, error) {
	now := s.now()
	start, end := s.slots.DayRange(now)

	var (
		total    int64
		current  int64
		sessions []model.PresenceSession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.store.CountSessionsStartingInRange(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		current, err = s.store.CountActiveSessions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = s.store.ListSessionsStartingInRange(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(err, "failed to compute today's stats")
	}

	return &TodayStats{
		Date:               s.slots.LocalDate(now),
		TotalCheckins:      total,
		CurrentGuests:      current,
		AverageStayMinutes: averageStayMinutes(sessions, now),
	}, nil
}

func averageStayMinutes(sessions []model.PresenceSession, now time.Time) int {
	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for _, session := range sessions {
		sum += session.StayDuration(now).Minutes()
	}
	return int(math.Round(sum / float64(len(sessions))))
}

// DeleteGuest removes an Absent guest and its history. A Present guest is
// refused before any write; storage repeats the check atomically.
func (s *Service) DeleteGuest(ctx context.Context, guestID string) error {
	if _, err := s.guest(ctx, guestID); err != nil {
		return err
	}

	_, err := s.store.FindActiveSession(ctx, guestID)
	switch {
	case err == nil:
		return apperr.ErrGuestCurrentlyCheckedIn
	case !errors.Is(err, store.ErrNotFound):
		return apperr.Internal(err, "failed to check guest presence")
	}

	err = s.store.DeleteGuest(ctx, guestID)
	switch {
	case errors.Is(err, store.ErrActiveSession):
		return apperr.ErrGuestCurrentlyCheckedIn
	case errors.Is(err, store.ErrNotFound):
		return apperr.ErrGuestNotFound
	case err != nil:
		return apperr.Internal(err, "failed to delete guest")
	}

	s.log.Info("guest deleted", zap.String("guest_id", guestID))
	return nil
}

// History returns sessions newest first.
func (s *Service) History(ctx context.Context, q HistoryQuery) (*HistoryResult, error) {
	if q.GuestID != "" {
		if _, err := s.guest(ctx, q.GuestID); err != nil {
			return nil, err
		}
	}

	total, err := s.store.CountSessions(ctx, q.GuestID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count sessions")
	}
	plan := paging.Plan(q.Page, q.Limit, total)

	sessions, err := s.store.ListSessions(ctx, q.GuestID, plan.Offset(), plan.Limit)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list sessions")
	}

	now := s.now()
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, s.view(session, now))
	}
	return &HistoryResult{Sessions: views, Pagination: plan}, nil
}

func (s *Service) guest(ctx context.Context, id string) (*model.Guest, error) {
	g, err := s.store.FindGuestByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrGuestNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load guest")
	}
	return g, nil
}

// instant normalises a requested instant for storage: UTC, whole seconds.
// Instants in the future are rejected.
func (s *Service) instant(at *time.Time) (time.Time, error) {
	now := s.now()
	t := now
	if at != nil {
		if at.After(now.Add(maxClockSkew)) {
			return time.Time{}, apperr.Validation("at", "time is in the future")
		}
		t = *at
	}
	return t.UTC().Truncate(time.Second), nil
}

func (s *Service) view(session model.PresenceSession, now time.Time) SessionView {
	v := SessionView{
		ID:               session.ID,
		Guest:            session.Guest.Summary(),
		CheckedInAt:      session.CheckedInAt,
		CheckedInAtLocal: s.slots.FormatLocal(session.CheckedInAt),
		CheckedOutAt:     session.CheckedOutAt,
		Active:           session.Active,
		StayMinutes:      int(session.StayDuration(now).Minutes()),
	}
	if session.CheckedOutAt != nil {
		v.CheckedOutAtLocal = s.slots.FormatLocal(*session.CheckedOutAt)
	}
	return v
}
