package domain

import (
	"time"

	"github.com/google/uuid"
)

// Expense is a single spending record. Amount is in whole currency units with
// two decimals; Date is "YYYY-MM-DD".
type Expense struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Amount      float64    `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Date        string     `json:"date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Before reports whether e sorts before other under the (date, description)
// rule used by the expense lists.
func (e Expense) Before(other Expense) bool {
	if e.Date != other.Date {
		return e.Date < other.Date
	}
	return e.Description < other.Description
}

// ExpensePatch is a partial update for an expense. Nil fields are left
// untouched.
type ExpensePatch struct {
	Amount      *float64
	Category    *string
	Description *string
	Icon        *string
	Date        *string
}

// Apply returns a copy of e with the non-nil patch fields applied.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Icon != nil {
		e.Icon = *p.Icon
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

// Budget is the monthly spending limit, unique per (user, year, month).
type Budget struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Amount    float64   `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}
