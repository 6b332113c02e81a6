package cleanup

import (
	"context"
	"testing"
	"time"

	"authcore/internal/cache"
	"authcore/internal/database"
	"authcore/internal/domain"
	"authcore/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sweepFixture struct {
	svc      *Service
	db       *gorm.DB
	sessions *repository.SessionRepository
	tokens   *repository.RefreshTokenRepository
	store    *cache.MemoryStore
}

func newSweepFixture(t *testing.T, retention, idleTTL time.Duration) *sweepFixture {
	t.Helper()

	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Session{}, &domain.RefreshToken{}))

	sessions := repository.NewSessionRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)
	store := cache.NewMemoryStore(time.Minute)

	return &sweepFixture{
		svc:      NewService(sessions, tokens, store, nil, time.Hour, retention, idleTTL),
		db:       db,
		sessions: sessions,
		tokens:   tokens,
		store:    store,
	}
}

func (f *sweepFixture) seedSession(t *testing.T, expiresAt time.Time) *domain.Session {
	t.Helper()
	s := &domain.Session{
		ID:        uuid.New(),
		SubjectID: "u1",
		Provider:  "local",
		ExpiresAt: expiresAt,
	}
	require.NoError(t, f.sessions.Create(context.Background(), s))
	return s
}

func (f *sweepFixture) seedToken(t *testing.T, sessionID uuid.UUID, expiresAt time.Time) *domain.RefreshToken {
	t.Helper()
	tok := &domain.RefreshToken{
		SessionID:  sessionID,
		SubjectID:  "u1",
		SecretHash: uuid.NewString(),
		ExpiresAt:  expiresAt,
	}
	require.NoError(t, f.tokens.InsertActive(context.Background(), tok))
	return tok
}

func TestSweepExpired(t *testing.T) {
	f := newSweepFixture(t, 720*time.Hour, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	pastDue := f.seedSession(t, now.Add(-time.Minute))
	fresh := f.seedSession(t, now.Add(time.Hour))
	f.seedToken(t, pastDue.ID, now.Add(-time.Minute))
	freshTok := f.seedToken(t, fresh.ID, now.Add(time.Hour))

	// A cached liveness entry for the dying session must not survive
	// the sweep.
	require.NoError(t, f.store.Put(ctx, pastDue.ID, cache.SessionState{Status: string(domain.SessionActive), Version: 1}, time.Minute))

	sessionsN, tokensN, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessionsN)
	assert.Equal(t, int64(1), tokensN)

	got, err := f.sessions.GetByID(ctx, pastDue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionExpired, got.Status)

	got, err = f.sessions.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, got.Status)

	rows, err := f.tokens.GetBySession(ctx, fresh.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, freshTok.ID, rows[0].ID)
	assert.Equal(t, domain.TokenActive, rows[0].Status)

	_, err = f.store.Get(ctx, pastDue.ID)
	assert.ErrorIs(t, err, cache.ErrMiss)

	// Second pass finds nothing.
	sessionsN, tokensN, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, sessionsN)
	assert.Zero(t, tokensN)
}

func TestSweepExpiredIdleWindow(t *testing.T) {
	f := newSweepFixture(t, 720*time.Hour, time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	idle := f.seedSession(t, now.Add(24*time.Hour))
	require.NoError(t, f.db.Model(idle).Update("last_seen_at", now.Add(-2*time.Hour)).Error)

	recent := f.seedSession(t, now.Add(24*time.Hour))
	require.NoError(t, f.db.Model(recent).Update("last_seen_at", now.Add(-time.Minute)).Error)

	sessionsN, _, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessionsN)

	got, err := f.sessions.GetByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionExpired, got.Status)

	got, err = f.sessions.GetByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, got.Status)
}

func TestSweepExpiredIdleWindowDisabled(t *testing.T) {
	f := newSweepFixture(t, 720*time.Hour, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	idle := f.seedSession(t, now.Add(24*time.Hour))
	require.NoError(t, f.db.Model(idle).Update("last_seen_at", now.Add(-48*time.Hour)).Error)

	sessionsN, _, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, sessionsN)

	got, err := f.sessions.GetByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, got.Status)
}

func TestSweepRetention(t *testing.T) {
	f := newSweepFixture(t, time.Hour, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	// Terminal and past retention: purged.
	old := f.seedSession(t, now.Add(-3*time.Hour))
	oldTok := f.seedToken(t, old.ID, now.Add(-3*time.Hour))
	require.NoError(t, f.sessions.SetStatus(ctx, old.ID, domain.SessionRevoked, now.Add(-2*time.Hour)))
	require.NoError(t, f.db.Model(oldTok).Updates(map[string]any{
		"status":     domain.TokenRevoked,
		"updated_at": now.Add(-2 * time.Hour),
	}).Error)

	// Terminal but recent: kept.
	recent := f.seedSession(t, now.Add(time.Hour))
	require.NoError(t, f.sessions.SetStatus(ctx, recent.ID, domain.SessionRevoked, now))

	// Still active: never purged regardless of age.
	live := f.seedSession(t, now.Add(time.Hour))

	sessionsN, tokensN, err := f.svc.SweepRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessionsN)
	assert.Equal(t, int64(1), tokensN)

	_, err = f.sessions.GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.sessions.GetByID(ctx, recent.ID)
	assert.NoError(t, err)
	_, err = f.sessions.GetByID(ctx, live.ID)
	assert.NoError(t, err)
}

func TestRunOnce(t *testing.T) {
	f := newSweepFixture(t, time.Hour, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	f.seedSession(t, now.Add(-time.Minute))
	require.NoError(t, f.svc.RunOnce(ctx))
}
