// Package parse turns untrusted raw request values into typed values.
package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	listSepRe = regexp.MustCompile(`[,;\s]+`)
	dateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ErrEmpty is returned when a required value is blank.
var ErrEmpty = errors.New("empty value")

// Layouts with an explicit zone are taken as absolute; the rest are facility wall-clock time.
var (
	absoluteLayouts = []string{time.RFC3339Nano, time.RFC3339}
	localLayouts    = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// Instant parses a timestamp. Values without a zone are interpreted in loc.
func Instant(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrEmpty
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", raw)
}

// Date parses a YYYY-MM-DD calendar date as local midnight in loc.
func Date(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrEmpty
	}
	if !dateRe.MatchString(s) {
		return time.Time{}, fmt.Errorf("unable to parse date: %q", raw)
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date %q: %w", raw, err)
	}
	return t, nil
}

// List splits a comma or whitespace separated list, dropping blanks and
// duplicates while keeping first-seen order.
func List(raw string) []string {
	parts := listSepRe.Split(strings.TrimSpace(raw), -1)
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
