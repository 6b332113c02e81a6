package auth

import "errors"

var (
	// ErrInvalidCredential covers unknown or malformed secrets and
	// signatures. No state changes.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpired covers tokens and sessions past expiry. Triggers no
	// revocation.
	ErrExpired = errors.New("credential expired")
	// ErrReplayDetected is returned when a consumed or revoked refresh
	// secret is re-presented outside any idempotency window. The owning
	// session and all of its refresh tokens are revoked before this is
	// returned, so the caller must force re-authentication.
	ErrReplayDetected = errors.New("refresh replay detected")
	// ErrSessionInactive means the owning session is already revoked or
	// expired. No further mutation happens.
	ErrSessionInactive = errors.New("session inactive")
	// ErrSessionNotFound means the addressed session id does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrLockTimeout means another rotation of the same secret held the
	// row lock past the configured bound. Safe to retry.
	ErrLockTimeout = errors.New("rotation lock timeout")
	// ErrUnauthorized is the generic liveness/version mismatch answer
	// for access-token checks.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnknownProvider means the session references a credential
	// provider that is not registered.
	ErrUnknownProvider = errors.New("unknown credential provider")
)
