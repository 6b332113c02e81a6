package auth

import (
	"time"

	"github.com/google/uuid"
)

type LoginRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
	Provider  string `json:"provider"`
	Remember  bool   `json:"remember"`
}

type RefreshRequest struct {
	RefreshSecret string `json:"refresh_secret" binding:"required"`
}

// LoginResult is returned once at login; the refresh secret is never
// recoverable afterwards.
type LoginResult struct {
	SessionID        uuid.UUID `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshSecret    string    `json:"refresh_secret"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// RefreshResult is the freshly rotated pair.
type RefreshResult struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshSecret    string    `json:"refresh_secret"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthResult identifies the caller behind a verified access token.
type AuthResult struct {
	SubjectID      string    `json:"subject_id"`
	SessionID      uuid.UUID `json:"session_id"`
	SessionVersion int64     `json:"session_version"`
}

// SessionInfo is the device listing view of a session.
type SessionInfo struct {
	ID          uuid.UUID  `json:"id"`
	Provider    string     `json:"provider"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ClientIP    string     `json:"client_ip,omitempty"`
	ClientAgent string     `json:"client_agent,omitempty"`
}
