package model

import "time"

// User is an account whose Paperless API token the sync scheduler uses.
// Tokens are sealed at rest; PaperlessToken holds the open value only
// after the store unseals it.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	PaperlessToken string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
