// Package timeslot maps instants onto fixed-width buckets of the facility's
// local day. The facility runs on one fixed UTC offset, so the host timezone
// database is never consulted.
package timeslot

import (
	"fmt"
	"time"
)

const (
	LocalLayout = "2006-01-02T15:04:05"
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// FloorToSlot returns the start of the widthMinutes-wide local bucket that
// contains t, in UTC. Instants on a boundary are returned unchanged.
func FloorToSlot(t time.Time, widthMinutes, offsetMinutes int) time.Time {
	return New(widthMinutes, offsetMinutes).Floor(t)
}

// Normalizer floors and formats instants for one facility.
type Normalizer struct {
	width int
	loc   *time.Location
}

// New builds a Normalizer. widthMinutes must be positive; config validation
// guarantees it also divides a day.
func New(widthMinutes, offsetMinutes int) *Normalizer {
	if widthMinutes <= 0 {
		widthMinutes = 30
	}
	return &Normalizer{
		width: widthMinutes,
		loc:   time.FixedZone(zoneName(offsetMinutes), offsetMinutes*60),
	}
}

func zoneName(offsetMinutes int) string {
	sign := '+'
	if offsetMinutes < 0 {
		sign = '-'
		offsetMinutes = -offsetMinutes
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, offsetMinutes/60, offsetMinutes%60)
}

// Location returns the facility's fixed zone.
func (n *Normalizer) Location() *time.Location { return n.loc }

// Width returns the bucket width.
func (n *Normalizer) Width() time.Duration { return time.Duration(n.width) * time.Minute }

// Floor returns the UTC start of the bucket containing t.
func (n *Normalizer) Floor(t time.Time) time.Time {
	local := t.In(n.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, n.loc)
	minuteOfDay := local.Hour()*60 + local.Minute()
	floored := minuteOfDay - minuteOfDay%n.width
	return midnight.Add(time.Duration(floored) * time.Minute).UTC()
}

// FormatLocal renders t as facility wall-clock time.
func (n *Normalizer) FormatLocal(t time.Time) string {
	return t.In(n.loc).Format(LocalLayout)
}

// LocalDate renders the facility calendar date containing t.
func (n *Normalizer) LocalDate(t time.Time) string {
	return t.In(n.loc).Format(DateLayout)
}

// SlotLabel renders the facility wall-clock time of t as HH:MM.
func (n *Normalizer) SlotLabel(t time.Time) string {
	return t.In(n.loc).Format(ClockLayout)
}

// StartOfDay returns the UTC instant of local midnight for the day containing t.
func (n *Normalizer) StartOfDay(t time.Time) time.Time {
	local := t.In(n.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, n.loc).UTC()
}

// DayRange returns the half-open UTC range [start, end) of the local calendar
// day containing t.
func (n *Normalizer) DayRange(t time.Time) (time.Time, time.Time) {
	start := n.StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// DatesRange returns the half-open UTC range covering the local days from
// first through last inclusive.
func (n *Normalizer) DatesRange(first, last time.Time) (time.Time, time.Time) {
	start := n.StartOfDay(first)
	_, end := n.DayRange(last)
	return start, end
}
