package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Service signs and verifies short-lived access tokens. It has no
// persistence; liveness checks against session state happen elsewhere.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// Claims carried by every access token. SessionVersion pins the token
// to the session version it was minted for; JTI exists only for
// audit/correlation, no blocklist is consulted.
type Claims struct {
	SessionID      string `json:"sid"`
	SessionVersion int64  `json:"sver"`
	jwtlib.RegisteredClaims
}

func New(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL returns the configured access-token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

func (s *Service) Issue(sessionID uuid.UUID, version int64, subject string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(s.ttl)
	claims := Claims{
		SessionID:      sessionID.String(),
		SessionVersion: version,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(exp),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (s *Service) Verify(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.SessionVersion < 1 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
