package auth

import (
	"context"
	"time"

	"authcore/internal/cache"
	jwtsvc "authcore/internal/pkg/jwt"

	"github.com/google/uuid"
)

// AccessTokenIssuer signs and verifies short-lived access tokens.
// Implemented by internal/pkg/jwt.
type AccessTokenIssuer interface {
	Issue(sessionID uuid.UUID, version int64, subject string) (token string, expiresAt time.Time, err error)
	Verify(token string) (*jwtsvc.Claims, error)
	TTL() time.Duration
}

// StateCache is the read-through session liveness cache plus the
// idempotency-window result stash. Implemented by internal/cache.
type StateCache interface {
	Get(ctx context.Context, sessionID uuid.UUID) (cache.SessionState, error)
	Put(ctx context.Context, sessionID uuid.UUID, state cache.SessionState, ttl time.Duration) error
	Invalidate(ctx context.Context, sessionID uuid.UUID) error

	PutResult(ctx context.Context, tokenID uuid.UUID, v any, ttl time.Duration) error
	GetResult(ctx context.Context, tokenID uuid.UUID, dest any) error
}
