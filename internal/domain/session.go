package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a session. Transitions are
// one-way: active -> revoked or active -> expired, never backward.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionRevoked SessionStatus = "revoked"
	SessionExpired SessionStatus = "expired"
)

// Session is the server-side record of one authenticated device/login.
//
// Version starts at 1 and is bumped on every successful refresh
// rotation. Access tokens embed the version they were minted for, so
// tokens from before the latest rotation stop validating immediately.
type Session struct {
	ID        uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	SubjectID string        `json:"subject_id" gorm:"size:128;index;not null"`
	Provider  string        `json:"provider" gorm:"size:64;not null"`
	Remember  bool          `json:"remember"`
	Status    SessionStatus `json:"status" gorm:"size:16;index;not null"`
	Version   int64         `json:"version" gorm:"not null"`

	ExpiresAt  time.Time  `json:"expires_at" gorm:"index;not null"`
	LastSeenAt *time.Time `json:"last_seen_at"`
	RevokedAt  *time.Time `json:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"index"`

	ClientIP    string `json:"client_ip" gorm:"size:64"`
	ClientAgent string `json:"client_agent" gorm:"size:512"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) IsActive() bool { return s.Status == SessionActive }

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsTerminal reports whether the session can no longer change state.
func (s *Session) IsTerminal() bool {
	return s.Status == SessionRevoked || s.Status == SessionExpired
}
