package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenStatus is the one-time-use state of a refresh token.
type TokenStatus string

const (
	TokenActive   TokenStatus = "active"
	TokenConsumed TokenStatus = "consumed"
	TokenRevoked  TokenStatus = "revoked"
	TokenExpired  TokenStatus = "expired"
)

// RefreshToken stores one refresh secret bound to a session.
//
// Security notes:
//   - We never store the raw secret in DB, only its SHA-256 hash (SecretHash).
//   - On refresh we rotate: the presented token becomes consumed and
//     ReplacedByID points at the replacement row.
//   - ParentID/ReplacedByID form an audit chain only; authorization state
//     is decided by Status and the session version, never by the chain.
type RefreshToken struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID `json:"session_id" gorm:"type:uuid;index;not null"`

	// SubjectID is denormalized from the session so bulk revokes and
	// retention sweeps never need a join.
	SubjectID string `json:"subject_id" gorm:"size:128;index;not null"`

	SecretHash string      `json:"-" gorm:"size:64;uniqueIndex;not null"`
	Status     TokenStatus `json:"status" gorm:"size:16;index;not null"`

	ParentID     *uuid.UUID `json:"parent_id" gorm:"type:uuid;index"`
	ReplacedByID *uuid.UUID `json:"replaced_by_id" gorm:"type:uuid;index"`

	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"index;not null"`
	ConsumedAt *time.Time `json:"consumed_at"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"index"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

func (t *RefreshToken) IsActive() bool { return t.Status == TokenActive }

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
