package store

import (
	"errors"
	"time"

	"guest-presence-backend/internal/model"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrActiveSession signals that the guest already has an active session
	// (on check-in) or still has one (on delete).
	ErrActiveSession = errors.New("guest has an active session")
	// ErrCheckoutBeforeCheckin is returned when a check-out instant precedes
	// the session's check-in.
	ErrCheckoutBeforeCheckin = errors.New("check-out precedes check-in")
	// ErrCheckinBeforeCheckout is returned when a check-in instant precedes
	// the check-out of one of the guest's earlier sessions.
	ErrCheckinBeforeCheckout = errors.New("check-in precedes an earlier check-out")
)

// ActivityFilter selects activity entries by half-open bucket range and,
// optionally, by category. An empty Categories matches every entry.
type ActivityFilter struct {
	Start      time.Time
	End        time.Time
	Categories model.CategorySet
}
