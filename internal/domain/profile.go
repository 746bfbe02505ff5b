package domain

import "github.com/google/uuid"

// Profile holds per-user display preferences, unique per user.
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Language  string    `json:"language,omitempty"`
	Theme     string    `json:"theme,omitempty"`
}
