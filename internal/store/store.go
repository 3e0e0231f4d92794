package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"guest-presence-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	FindGuestByID(ctx context.Context, id string) (*model.Guest, error)
	CreateGuest(ctx context.Context, guest *model.Guest) error
	SearchGuests(ctx context.Context, query string, offset, limit int) ([]model.Guest, int64, error)
	DeleteGuest(ctx context.Context, id string) error

	CreateActiveSession(ctx context.Context, guestID string, at time.Time) (*model.PresenceSession, error)
	CloseActiveSession(ctx context.Context, guestID string, at time.Time) (*model.PresenceSession, error)
	FindActiveSession(ctx context.Context, guestID string) (*model.PresenceSession, error)
	ListActiveSessions(ctx context.Context) ([]model.PresenceSession, error)
	CountActiveSessions(ctx context.Context) (int64, error)
	ListSessionsStartingInRange(ctx context.Context, start, end time.Time) ([]model.PresenceSession, error)
	CountSessionsStartingInRange(ctx context.Context, start, end time.Time) (int64, error)
	ListSessions(ctx context.Context, guestID string, offset, limit int) ([]model.PresenceSession, error)
	CountSessions(ctx context.Context, guestID string) (int64, error)

	ReadMaxSequence(ctx context.Context, year int) (int, error)
	ProposeSequence(ctx context.Context, year, expectedMax, newMax int) (bool, error)

	UpsertActivityEntry(ctx context.Context, entry *model.ActivityLogEntry) (*model.ActivityLogEntry, error)
	GetActivityEntry(ctx context.Context, id string) (*model.ActivityLogEntry, error)
	QueryActivityEntries(ctx context.Context, filter ActivityFilter) ([]model.ActivityLogEntry, error)
	DeleteActivityEntry(ctx context.Context, id string) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// --- Guests ---

func (s *gormStore) FindGuestByID(ctx context.Context, id string) (*model.Guest, error) {
	var guest model.Guest
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&guest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guest %s: %w", id, err)
	}
	return &guest, nil
}

func (s *gormStore) CreateGuest(ctx context.Context, guest *model.Guest) error {
	if err := s.db.WithContext(ctx).Create(guest).Error; err != nil {
		return fmt.Errorf("failed to create guest with display id %d: %w", guest.DisplayID, err)
	}
	return nil
}

func (s *gormStore) SearchGuests(ctx context.Context, query string, offset, limit int) ([]model.Guest, int64, error) {
	match := guestMatch(query)

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Guest{}).Scopes(match).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count guests: %w", err)
	}

	var guests []model.Guest
	if err := s.db.WithContext(ctx).Scopes(match).
		Order("display_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&guests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search guests: %w", err)
	}
	return guests, total, nil
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// guestMatch filters by case-insensitive name substring, or exact display id
// when the query is numeric.
func guestMatch(query string) func(*gorm.DB) *gorm.DB {
	query = strings.TrimSpace(query)
	return func(db *gorm.DB) *gorm.DB {
		if query == "" {
			return db
		}
		like := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
		if n, err := strconv.Atoi(query); err == nil {
			return db.Where(`LOWER(name) LIKE ? ESCAPE '\' OR display_id = ?`, like, n)
		}
		return db.Where(`LOWER(name) LIKE ? ESCAPE '\'`, like)
	}
}

// DeleteGuest removes a guest together with its history, but only while the
// guest has no active session. The check and the delete are one statement.
func (s *gormStore) DeleteGuest(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND NOT EXISTS (SELECT 1 FROM presence_sessions ps WHERE ps.guest_id = guests.id AND ps.active = ?)", id, true).
			Delete(&model.Guest{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete guest %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Guest{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to re-check guest %s: %w", id, err)
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrActiveSession
		}

		// Postgres cascades through the foreign keys; sqlite may not enforce them.
		if err := tx.Where("guest_id = ?", id).Delete(&model.ActivityLogEntry{}).Error; err != nil {
			return fmt.Errorf("failed to delete activity entries of guest %s: %w", id, err)
		}
		if err := tx.Where("guest_id = ?", id).Delete(&model.PresenceSession{}).Error; err != nil {
			return fmt.Errorf("failed to delete sessions of guest %s: %w", id, err)
		}
		return nil
	})
}

// --- Presence sessions ---

// CreateActiveSession inserts an active session unless one already exists for
// the guest. The partial unique index makes the insert conditional. A check-in
// earlier than any of the guest's previous check-outs would overlap that stay
// and is refused.
func (s *gormStore) CreateActiveSession(ctx context.Context, guestID string, at time.Time) (*model.PresenceSession, error) {
	session := model.PresenceSession{
		GuestID:     guestID,
		CheckedInAt: at,
		Active:      true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var overlapping int64
		if err := tx.Model(&model.PresenceSession{}).
			Where("guest_id = ? AND active = ? AND checked_out_at > ?", guestID, false, at).
			Count(&overlapping).Error; err != nil {
			return fmt.Errorf("failed to check previous sessions of guest %s: %w", guestID, err)
		}
		if overlapping > 0 {
			return ErrCheckinBeforeCheckout
		}

		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:     []clause.Column{{Name: "guest_id"}},
				TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "active"}}},
				DoNothing:   true,
			}).
			Create(&session)
		if res.Error != nil {
			return fmt.Errorf("failed to create session for guest %s: %w", guestID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrActiveSession
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CloseActiveSession marks the guest's active session as checked out.
func (s *gormStore) CloseActiveSession(ctx context.Context, guestID string, at time.Time) (*model.PresenceSession, error) {
	var closed model.PresenceSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session model.PresenceSession
		err := forUpdate(tx).Where("guest_id = ? AND active = ?", guestID, true).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to fetch active session of guest %s: %w", guestID, err)
		}
		if at.Before(session.CheckedInAt) {
			return ErrCheckoutBeforeCheckin
		}

		res := tx.Model(&model.PresenceSession{}).
			Where("id = ? AND active = ?", session.ID, true).
			Updates(map[string]any{"active": false, "checked_out_at": at})
		if res.Error != nil {
			return fmt.Errorf("failed to close session %s: %w", session.ID, res.Error)
		}
		// Lost a race against a concurrent check-out.
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		session.Active = false
		session.CheckedOutAt = &at
		closed = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

func (s *gormStore) FindActiveSession(ctx context.Context, guestID string) (*model.PresenceSession, error) {
	var session model.PresenceSession
	err := s.db.WithContext(ctx).Where("guest_id = ? AND active = ?", guestID, true).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active session of guest %s: %w", guestID, err)
	}
	return &session, nil
}

func (s *gormStore) ListActiveSessions(ctx context.Context) ([]model.PresenceSession, error) {
	var sessions []model.PresenceSession
	if err := s.db.WithContext(ctx).
		Preload("Guest").
		Where("active = ?", true).
		Order("checked_in_at ASC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return sessions, nil
}

func (s *gormStore) CountActiveSessions(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.PresenceSession{}).Where("active = ?", true).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

func (s *gormStore) ListSessionsStartingInRange(ctx context.Context, start, end time.Time) ([]model.PresenceSession, error) {
	var sessions []model.PresenceSession
	if err := s.db.WithContext(ctx).
		Where("checked_in_at >= ? AND checked_in_at < ?", start, end).
		Order("checked_in_at ASC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions in range: %w", err)
	}
	return sessions, nil
}

func (s *gormStore) CountSessionsStartingInRange(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.PresenceSession{}).
		Where("checked_in_at >= ? AND checked_in_at < ?", start, end).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sessions in range: %w", err)
	}
	return count, nil
}

// ListSessions returns session history, newest first. An empty guestID lists
// all guests.
func (s *gormStore) ListSessions(ctx context.Context, guestID string, offset, limit int) ([]model.PresenceSession, error) {
	var sessions []model.PresenceSession
	if err := s.db.WithContext(ctx).
		Preload("Guest").
		Scopes(sessionsOf(guestID)).
		Order("checked_in_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *gormStore) CountSessions(ctx context.Context, guestID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.PresenceSession{}).Scopes(sessionsOf(guestID)).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func sessionsOf(guestID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if guestID == "" {
			return db
		}
		return db.Where("guest_id = ?", guestID)
	}
}

// --- Display id sequence ---

func (s *gormStore) ReadMaxSequence(ctx context.Context, year int) (int, error) {
	var counters []model.SequenceCounter
	if err := s.db.WithContext(ctx).Where("year = ?", year).Limit(1).Find(&counters).Error; err != nil {
		return 0, fmt.Errorf("failed to read sequence for year %d: %w", year, err)
	}
	if len(counters) == 0 {
		return 0, nil
	}
	return counters[0].MaxSequence, nil
}

// ProposeSequence moves the year's counter from expectedMax to newMax. It
// reports false, without error, when another writer got there first.
func (s *gormStore) ProposeSequence(ctx context.Context, year, expectedMax, newMax int) (bool, error) {
	if newMax <= expectedMax {
		return false, fmt.Errorf("proposed sequence %d does not advance %d", newMax, expectedMax)
	}

	res := s.db.WithContext(ctx).Model(&model.SequenceCounter{}).
		Where("year = ? AND max_sequence = ?", year, expectedMax).
		Update("max_sequence", newMax)
	if res.Error != nil {
		return false, fmt.Errorf("failed to advance sequence for year %d: %w", year, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if expectedMax != 0 {
		return false, nil
	}

	// First allocation of the year: the row may not exist yet.
	res = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "year"}},
		DoNothing: true,
	}).Create(&model.SequenceCounter{Year: year, MaxSequence: newMax})
	if res.Error != nil {
		return false, fmt.Errorf("failed to start sequence for year %d: %w", year, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// --- Activity entries ---

// UpsertActivityEntry inserts the entry or replaces the content of the one
// already stored for (guest, bucket). The stored row is returned.
func (s *gormStore) UpsertActivityEntry(ctx context.Context, entry *model.ActivityLogEntry) (*model.ActivityLogEntry, error) {
	var stored model.ActivityLogEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guest_id"}, {Name: "bucket_start"}},
			DoUpdates: clause.AssignmentColumns([]string{"categories", "description", "mentor_note", "updated_at"}),
		}).Create(entry).Error; err != nil {
			return fmt.Errorf("failed to upsert activity entry for guest %s: %w", entry.GuestID, err)
		}
		if err := tx.Where("guest_id = ? AND bucket_start = ?", entry.GuestID, entry.BucketStart).First(&stored).Error; err != nil {
			return fmt.Errorf("failed to reload activity entry for guest %s: %w", entry.GuestID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *gormStore) GetActivityEntry(ctx context.Context, id string) (*model.ActivityLogEntry, error) {
	var entry model.ActivityLogEntry
	err := s.db.WithContext(ctx).Preload("Guest").Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity entry %s: %w", id, err)
	}
	return &entry, nil
}

// QueryActivityEntries returns entries whose bucket lies in [Start, End),
// with the guest preloaded, keeping only those matching the category filter.
func (s *gormStore) QueryActivityEntries(ctx context.Context, filter ActivityFilter) ([]model.ActivityLogEntry, error) {
	var entries []model.ActivityLogEntry
	if err := s.db.WithContext(ctx).
		Preload("Guest").
		Where("bucket_start >= ? AND bucket_start < ?", filter.Start, filter.End).
		Order("bucket_start ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to query activity entries: %w", err)
	}

	if len(filter.Categories) == 0 {
		return entries, nil
	}
	matched := entries[:0]
	for _, e := range entries {
		if e.Categories.Intersects(filter.Categories) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (s *gormStore) DeleteActivityEntry(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ActivityLogEntry{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete activity entry %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// forUpdate adds row locking where the dialect supports it.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
