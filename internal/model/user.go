// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Accounts are created by email/password registration, by the GitHub OAuth
// callback, or by the blogctl admin command. GitHubID is nil for accounts
// that never signed in through GitHub, and PasswordHash is empty for
// GitHub-only accounts.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the resolved caller of a request. A nil *Identity means the
// caller is anonymous.
type Identity struct {
	UserID  int64  `json:"userId"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}
