package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Guest is a registered visitor of the facility.
type Guest struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	DisplayID int       `gorm:"uniqueIndex;not null" json:"displayId"` // immutable once assigned
	Name      string    `gorm:"size:128;not null;index" json:"name"`
	Contact   *string   `gorm:"size:128" json:"contact,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate assigns the internal identity.
func (g *Guest) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// GuestSummary is the guest projection joined onto sessions and log entries.
type GuestSummary struct {
	ID        string `json:"id"`
	DisplayID int    `json:"displayId"`
	Name      string `json:"name"`
}

// Summary projects the guest onto its summary.
func (g Guest) Summary() GuestSummary {
	return GuestSummary{ID: g.ID, DisplayID: g.DisplayID, Name: g.Name}
}
