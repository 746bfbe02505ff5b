package domain

import "github.com/google/uuid"

// WellnessRow tracks daily wellbeing metrics, unique per (user, date) when
// stored remotely. Mood and Energy are 1..5; Steps and Calories are
// non-negative counters. Nil pointers mean "not recorded".
type WellnessRow struct {
	ID       uuid.UUID  `json:"id"`
	UserID   *uuid.UUID `json:"user_id,omitempty"`
	Date     string     `json:"date"`
	Mood     *int       `json:"mood,omitempty"`
	Energy   *int       `json:"energy,omitempty"`
	Steps    *int       `json:"steps,omitempty"`
	Calories *int       `json:"calories,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

// WellnessStats aggregates a set of wellness rows.
type WellnessStats struct {
	AvgMood       float64 `json:"avg_mood"`
	AvgEnergy     float64 `json:"avg_energy"`
	TotalSteps    int     `json:"total_steps"`
	TotalCalories int     `json:"total_calories"`
}
