// Package activity records what guests used in each time bucket and exports
// those records for reporting.
package activity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"guest-presence-backend/internal/apperr"
	"guest-presence-backend/internal/auth"
	"guest-presence-backend/internal/export"
	"guest-presence-backend/internal/metrics"
	"guest-presence-backend/internal/model"
	"guest-presence-backend/internal/parse"
	"guest-presence-backend/internal/store"
	"guest-presence-backend/internal/timeslot"
)

const (
	maxTextRunes        = 1000
	DefaultMaxRangeDays = 366
)

// UpsertInput is a raw activity log submission. A blank Timestamp means now.
type UpsertInput struct {
	GuestID     string   `json:"guestId"`
	Categories  []string `json:"categories"`
	Description *string  `json:"description"`
	MentorNote  *string  `json:"mentorNote"`
	Timestamp   string   `json:"timestamp"`
}

// EntryView is an activity entry joined with its guest.
type EntryView struct {
	ID               string             `json:"id"`
	Guest            model.GuestSummary `json:"guest"`
	BucketStart      time.Time          `json:"bucketStart"`
	BucketStartLocal string             `json:"bucketStartLocal"`
	Slot             string             `json:"slot"`
	Categories       model.CategorySet  `json:"categories"`
	CategoryLabels   []string           `json:"categoryLabels"`
	Description      *string            `json:"description,omitempty"`
	MentorNote       *string            `json:"mentorNote,omitempty"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// ExportQuery bounds an export by inclusive local dates. Empty Categories
// exports every category.
type ExportQuery struct {
	StartDate  string
	EndDate    string
	Categories []string
}

type Service struct {
	store        store.Store
	slots        *timeslot.Normalizer
	maxRangeDays int
	log          *zap.Logger
	now          func() time.Time
}

func NewService(st store.Store, slots *timeslot.Normalizer, maxRangeDays int, log *zap.Logger) *Service {
	if maxRangeDays <= 0 {
		maxRangeDays = DefaultMaxRangeDays
	}
	return &Service{store: st, slots: slots, maxRangeDays: maxRangeDays, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Categories returns the category catalog in display order.
func (s *Service) Categories() []model.CategoryInfo {
	return model.Categories()
}

// UpsertLog validates the submission, floors its timestamp to the bucket and
// stores it. A second submission for the same (guest, bucket) replaces the
// first.
func (s *Service) UpsertLog(ctx context.Context, in UpsertInput) (*EntryView, error) {
	if len(in.Categories) == 0 {
		return nil, apperr.Validation("categories", "at least one category is required")
	}
	categories, err := model.NewCategorySet(in.Categories)
	if err != nil {
		return nil, apperr.Validation("categories", err.Error())
	}

	description, err := optionalText("description", in.Description)
	if err != nil {
		return nil, err
	}
	note, err := optionalText("mentorNote", in.MentorNote)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if strings.TrimSpace(in.Timestamp) != "" {
		at, err = parse.Instant(in.Timestamp, s.slots.Location())
		if err != nil {
			return nil, apperr.InvalidTimestamp("timestamp", err)
		}
	}

	guest, err := s.store.FindGuestByID(ctx, in.GuestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrGuestNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load guest")
	}

	stored, err := s.store.UpsertActivityEntry(ctx, &model.ActivityLogEntry{
		GuestID:     guest.ID,
		BucketStart: s.slots.Floor(at),
		Categories:  categories,
		Description: description,
		MentorNote:  note,
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to store activity log")
	}
	metrics.RecordActivityUpsert()

	stored.Guest = *guest
	v := s.view(*stored)
	return &v, nil
}

func optionalText(field string, raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > maxTextRunes {
		return nil, apperr.Validation(field, fmt.Sprintf("must be at most %d characters", maxTextRunes))
	}
	return &v, nil
}

// GetLogsForDate returns the entries whose bucket lies in the local calendar
// day, by bucket then display id.
func (s *Service) GetLogsForDate(ctx context.Context, date string) ([]EntryView, error) {
	day, err := parse.Date(date, s.slots.Location())
	if err != nil {
		return nil, apperr.Validation("date", "date must be YYYY-MM-DD")
	}
	start, end := s.slots.DayRange(day)

	entries, err := s.store.QueryActivityEntries(ctx, store.ActivityFilter{Start: start, End: end})
	if err != nil {
		return nil, apperr.Internal(err, "failed to load activity logs")
	}
	sortEntries(entries)

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, s.view(e))
	}
	return views, nil
}

// ExportLogs returns one row per (guest, bucket, category) for the inclusive
// local date range, restricted to the requested categories.
func (s *Service) ExportLogs(ctx context.Context, q ExportQuery) ([]export.Row, error) {
	loc := s.slots.Location()
	first, err := parse.Date(q.StartDate, loc)
	if err != nil {
		return nil, apperr.Validation("startDate", "startDate must be YYYY-MM-DD")
	}
	last, err := parse.Date(q.EndDate, loc)
	if err != nil {
		return nil, apperr.Validation("endDate", "endDate must be YYYY-MM-DD")
	}
	if first.After(last) {
		return nil, apperr.Validation("endDate", "endDate must not precede startDate")
	}
	if days := int(last.Sub(first).Hours()/24) + 1; days > s.maxRangeDays {
		return nil, apperr.Validation("endDate", fmt.Sprintf("range may span at most %d days", s.maxRangeDays))
	}

	filter, err := model.NewCategorySet(q.Categories)
	if err != nil {
		return nil, apperr.Validation("categories", err.Error())
	}

	start, end := s.slots.DatesRange(first, last)
	entries, err := s.store.QueryActivityEntries(ctx, store.ActivityFilter{Start: start, End: end, Categories: filter})
	if err != nil {
		return nil, apperr.Internal(err, "failed to load activity logs")
	}
	sortEntries(entries)

	rows := make([]export.Row, 0, len(entries))
	for _, e := range entries {
		for _, c := range e.Categories {
			if len(filter) > 0 && !filter.Contains(c) {
				continue
			}
			rows = append(rows, export.Row{
				Date:        s.slots.LocalDate(e.BucketStart),
				Time:        s.slots.SlotLabel(e.BucketStart),
				DisplayID:   e.Guest.DisplayID,
				GuestName:   e.Guest.Name,
				Category:    c.Label(),
				Description: deref(e.Description),
				MentorNote:  deref(e.MentorNote),
			})
		}
	}

	metrics.RecordExportRows(len(rows))
	s.log.Info("activity logs exported",
		zap.String("start_date", q.StartDate),
		zap.String("end_date", q.EndDate),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// DeleteLog removes an entry. Only roles allowed to delete logs may do so.
func (s *Service) DeleteLog(ctx context.Context, id string, role auth.Role) error {
	if !role.CanDeleteLogs() {
		return apperr.ErrForbidden
	}
	err := s.store.DeleteActivityEntry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return apperr.Internal(err, "failed to delete activity log")
	}
	s.log.Info("activity log deleted", zap.String("entry_id", id), zap.Stringer("role", role))
	return nil
}

func sortEntries(entries []model.ActivityLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].BucketStart.Equal(entries[j].BucketStart) {
			return entries[i].BucketStart.Before(entries[j].BucketStart)
		}
		return entries[i].Guest.DisplayID < entries[j].Guest.DisplayID
	})
}

func (s *Service) view(e model.ActivityLogEntry) EntryView {
	return EntryView{
		ID:               e.ID,
		Guest:            e.Guest.Summary(),
		BucketStart:      e.BucketStart,
		BucketStartLocal: s.slots.FormatLocal(e.BucketStart),
		Slot:             s.slots.SlotLabel(e.BucketStart),
		Categories:       e.Categories,
		CategoryLabels:   e.Categories.Labels(),
		Description:      e.Description,
		MentorNote:       e.MentorNote,
		UpdatedAt:        e.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
