package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	svc := New("test-secret", 15*time.Minute)
	sid := uuid.New()

	token, exp, err := svc.Issue(sid, 3, "user-42")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, sid.String(), claims.SessionID)
	assert.Equal(t, int64(3), claims.SessionVersion)
	assert.Equal(t, "user-42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyExpired(t *testing.T) {
	svc := New("test-secret", -time.Minute)

	token, _, err := svc.Issue(uuid.New(), 1, "user-42")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	svc := New("test-secret", 15*time.Minute)
	other := New("other-secret", 15*time.Minute)

	token, _, err := svc.Issue(uuid.New(), 1, "user-42")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	svc := New("test-secret", 15*time.Minute)

	_, err := svc.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
