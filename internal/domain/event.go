package domain

import (
	"time"

	"github.com/google/uuid"
)

// CalendarEvent is a scheduled calendar entry.
// Date is "YYYY-MM-DD" and Time is "HH:MM"; both sort lexicographically,
// which keeps ordering rules simple string comparisons.
type CalendarEvent struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Title       string     `json:"title"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Duration    int        `json:"duration"`
	Color       string     `json:"color"`
	Category    string     `json:"category,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// sentinel sorting events with no time after all timed ones.
const missingTime = "99:99"

// SortKey returns the time used for ordering; events without a time sort last
// within their day.
func (e CalendarEvent) SortKey() string {
	if e.Time == "" {
		return missingTime
	}
	return e.Time
}

// Before reports whether e sorts before other under the (date, time) rule.
func (e CalendarEvent) Before(other CalendarEvent) bool {
	if e.Date != other.Date {
		return e.Date < other.Date
	}
	return e.SortKey() < other.SortKey()
}

// EventPatch is a partial update for a calendar event. Nil fields are left
// untouched.
type EventPatch struct {
	Title       *string
	Date        *string
	Time        *string
	Duration    *int
	Color       *string
	Category    *string
	Description *string
}

// Apply returns a copy of e with the non-nil patch fields applied.
func (p EventPatch) Apply(e CalendarEvent) CalendarEvent {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	return e
}
