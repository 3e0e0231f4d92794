// Package guest registers guests and looks them up.
package guest

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"guest-presence-backend/internal/apperr"
	"guest-presence-backend/internal/displayid"
	"guest-presence-backend/internal/model"
	"guest-presence-backend/internal/paging"
	"guest-presence-backend/internal/store"
	"guest-presence-backend/internal/timeslot"
)

const maxFieldRunes = 128

// RegisterInput carries a new guest's details.
type RegisterInput struct {
	Name    string  `json:"name"`
	Contact *string `json:"contact"`
}

// SearchQuery selects a page of guests. Query matches the name or display id.
type SearchQuery struct {
	Query string
	Page  int
	Limit int
}

// SearchResult is one page of guests.
type SearchResult struct {
	Guests     []model.Guest `json:"guests"`
	Pagination paging.Page   `json:"pagination"`
}

type Service struct {
	store store.Store
	ids   *displayid.Allocator
	slots *timeslot.Normalizer
	log   *zap.Logger
	now   func() time.Time
}

func NewService(st store.Store, ids *displayid.Allocator, slots *timeslot.Normalizer, log *zap.Logger) *Service {
	return &Service{store: st, ids: ids, slots: slots, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register validates the input, allocates a display id for the current
// facility year and stores the guest.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Guest, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	if utf8.RuneCountInString(name) > maxFieldRunes {
		return nil, apperr.Validation("name", "name is too long")
	}

	var contact *string
	if in.Contact != nil {
		if c := strings.TrimSpace(*in.Contact); c != "" {
			if utf8.RuneCountInString(c) > maxFieldRunes {
				return nil, apperr.Validation("contact", "contact is too long")
			}
			contact = &c
		}
	}

	year := displayid.YearOf(s.now(), s.slots.Location())
	displayID, err := s.ids.Allocate(ctx, year)
	if err != nil {
		return nil, err
	}

	g := &model.Guest{DisplayID: displayID, Name: name, Contact: contact}
	if err := s.store.CreateGuest(ctx, g); err != nil {
		return nil, apperr.Internal(err, "failed to store guest")
	}

	s.log.Info("guest registered", zap.String("guest_id", g.ID), zap.Int("display_id", g.DisplayID))
	return g, nil
}

// Get returns the guest or GuestNotFound.
func (s *Service) Get(ctx context.Context, id string) (*model.Guest, error) {
	g, err := s.store.FindGuestByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrGuestNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load guest")
	}
	return g, nil
}

// Search returns guests ordered by display id.
func (s *Service) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	plan := paging.Plan(q.Page, q.Limit, 0)
	guests, total, err := s.store.SearchGuests(ctx, q.Query, plan.Offset(), plan.Limit)
	if err != nil {
		return nil, apperr.Internal(err, "failed to search guests")
	}
	if guests == nil {
		guests = []model.Guest{}
	}
	return &SearchResult{
		Guests:     guests,
		Pagination: paging.Plan(plan.Page, plan.Limit, total),
	}, nil
}
