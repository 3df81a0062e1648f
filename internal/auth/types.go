// Package auth is the identity session provider: password sign-up and
// sign-in, short-lived access tokens backed by Redis sessions, rotating
// refresh tokens, and session-change notifications.
package auth

import (
	"errors"
	"time"

	"github.com/neexbeast/destinasi/internal/destination"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrSessionNotFound    = errors.New("session not found")
)

// User is the credential record behind a profile.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         destination.Role
	CreatedAt    time.Time
}

// Metadata is optional sign-up data copied onto the new profile.
type Metadata struct {
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Session is an authenticated browser session. AccessToken and RefreshToken
// are only populated on the values returned by sign-in, sign-up and refresh.
type Session struct {
	ID           string           `json:"session_id"`
	UserID       string           `json:"user_id"`
	Email        string           `json:"email"`
	Role         destination.Role `json:"role"`
	AccessToken  string           `json:"access_token,omitempty"`
	RefreshToken string           `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

// IsAdmin reports whether the session belongs to an admin.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == destination.RoleAdmin
}

// EventType names a session transition.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is delivered to OnSessionChange subscribers.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	At        time.Time `json:"at"`
}
