package repository

import (
	"context"
	"testing"
	"time"

	"authcore/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedSessionWithToken(t *testing.T, db *gorm.DB, subjectID, hash string) (*domain.Session, *domain.RefreshToken) {
	t.Helper()
	ctx := context.Background()

	sess := newTestSession(subjectID, time.Now().Add(time.Hour))
	require.NoError(t, NewSessionRepository(db).Create(ctx, sess))

	tok := &domain.RefreshToken{
		ID:         uuid.New(),
		SessionID:  sess.ID,
		SubjectID:  subjectID,
		SecretHash: hash,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	require.NoError(t, NewRefreshTokenRepository(db).InsertActive(ctx, tok))
	return sess, tok
}

func TestTokenInsertAndLockByHash(t *testing.T) {
	db := openTestDB(t)
	repo := NewRefreshTokenRepository(db)
	ctx := context.Background()

	_, tok := seedSessionWithToken(t, db, "u1", "hash-1")
	assert.Equal(t, domain.TokenActive, tok.Status)

	got, err := repo.LockByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)
	assert.Equal(t, tok.SessionID, got.SessionID)

	_, err = repo.LockByHash(ctx, "no-such-hash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenMarkConsumed(t *testing.T) {
	db := openTestDB(t)
	repo := NewRefreshTokenRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	_, tok := seedSessionWithToken(t, db, "u1", "hash-1")
	replacement := uuid.New()

	require.NoError(t, repo.MarkConsumed(ctx, tok.ID, replacement, now))

	got, err := repo.LockByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TokenConsumed, got.Status)
	require.NotNil(t, got.ConsumedAt)
	require.NotNil(t, got.ReplacedByID)
	assert.Equal(t, replacement, *got.ReplacedByID)

	// Consuming a non-active row is a guarded transition.
	err = repo.MarkConsumed(ctx, tok.ID, uuid.New(), now)
	assert.ErrorIs(t, err, ErrInvalidState)

	err = repo.MarkConsumed(ctx, uuid.New(), uuid.New(), now)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTokenRevokeAllForSession(t *testing.T) {
	db := openTestDB(t)
	repo := NewRefreshTokenRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	sess, _ := seedSessionWithToken(t, db, "u1", "hash-1")
	second := &domain.RefreshToken{
		SessionID:  sess.ID,
		SubjectID:  "u1",
		SecretHash: "hash-2",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.InsertActive(ctx, second))

	_, other := seedSessionWithToken(t, db, "u2", "hash-3")

	n, err := repo.RevokeAllForSession(ctx, sess.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := repo.GetBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, domain.TokenRevoked, row.Status)
	}

	got, err := repo.LockByHash(ctx, other.SecretHash)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenActive, got.Status)
}

func TestTokenRevokeAllForSubject(t *testing.T) {
	db := openTestDB(t)
	repo := NewRefreshTokenRepository(db)
	ctx := context.Background()

	seedSessionWithToken(t, db, "u1", "hash-1")
	seedSessionWithToken(t, db, "u1", "hash-2")
	_, other := seedSessionWithToken(t, db, "u2", "hash-3")

	n, err := repo.RevokeAllForSubject(ctx, "u1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := repo.LockByHash(ctx, other.SecretHash)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenActive, got.Status)
}

func TestTokenMarkExpired(t *testing.T) {
	db := openTestDB(t)
	repo := NewRefreshTokenRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	sess, pastDue := seedSessionWithToken(t, db, "u1", "hash-1")
	require.NoError(t, db.Model(pastDue).Update("expires_at", now.Add(-time.Minute)).Error)

	fresh := &domain.RefreshToken{
		SessionID:  sess.ID,
		SubjectID:  "u1",
		SecretHash: "hash-2",
		ExpiresAt:  now.Add(time.Hour),
	}
	require.NoError(t, repo.InsertActive(ctx, fresh))

	n, err := repo.MarkExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.LockByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TokenExpired, got.Status)

	got, err = repo.LockByHash(ctx, "hash-2")
	require.NoError(t, err)
	assert.Equal(t, domain.TokenActive, got.Status)
}

func TestTokenDeleteTerminalBefore(t *testing.T) {
	db := openTestDB(t)
	repo := NewRefreshTokenRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	_, old := seedSessionWithToken(t, db, "u1", "hash-1")
	require.NoError(t, repo.MarkConsumed(ctx, old.ID, uuid.New(), now.Add(-time.Hour)))

	_, live := seedSessionWithToken(t, db, "u1", "hash-2")

	n, err := repo.DeleteTerminalBefore(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.LockByHash(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repo.LockByHash(ctx, live.SecretHash)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenActive, got.Status)
}
