package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLogEntry records a guest's use of facility resources during one
// time bucket. (GuestID, BucketStart) is unique; writes are upserts.
type ActivityLogEntry struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	GuestID     string      `gorm:"size:36;not null;uniqueIndex:idx_activity_guest_bucket,priority:1" json:"guestId"`
	BucketStart time.Time   `gorm:"not null;uniqueIndex:idx_activity_guest_bucket,priority:2;index" json:"bucketStart"`
	Categories  CategorySet `gorm:"not null" json:"categories"`
	Description *string     `gorm:"size:1000" json:"description,omitempty"`
	MentorNote  *string     `gorm:"size:1000" json:"mentorNote,omitempty"`
	CreatedAt   time.Time   `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time   `gorm:"not null" json:"updatedAt"`

	// Associations
	Guest Guest `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns the entry identity.
func (e *ActivityLogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
