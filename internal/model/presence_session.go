package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PresenceSession is one continuous stay of a guest. At most one session per
// guest is active; the partial unique index created in db.Migrate enforces it.
type PresenceSession struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	GuestID      string     `gorm:"size:36;not null;index" json:"guestId"`
	CheckedInAt  time.Time  `gorm:"not null;index" json:"checkedInAt"`
	CheckedOutAt *time.Time `json:"checkedOutAt,omitempty"`
	Active       bool       `gorm:"not null" json:"active"`
	CreatedAt    time.Time  `gorm:"not null" json:"-"`
	UpdatedAt    time.Time  `gorm:"not null" json:"-"`

	// Associations
	Guest Guest `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns the session identity.
func (s *PresenceSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// StayDuration returns the length of the stay, using now for active sessions.
func (s PresenceSession) StayDuration(now time.Time) time.Duration {
	end := now
	if s.CheckedOutAt != nil {
		end = *s.CheckedOutAt
	}
	if end.Before(s.CheckedInAt) {
		return 0
	}
	return end.Sub(s.CheckedInAt)
}
