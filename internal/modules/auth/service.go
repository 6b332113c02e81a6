package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authcore/internal/cache"
	"authcore/internal/domain"
	"authcore/internal/observability/metrics"
	jwtsvc "authcore/internal/pkg/jwt"
	"authcore/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options are the engine's runtime knobs, filled from config.
type Options struct {
	RefreshTTL         time.Duration
	SessionTTL         time.Duration
	SessionTTLRemember time.Duration
	LockTimeout        time.Duration
	// IdempotencyWindow absorbs duplicate submissions of a just-consumed
	// secret. Zero disables the window (strict replay mode).
	IdempotencyWindow time.Duration
	// MaxSessionsPerSubject caps concurrent active sessions per subject;
	// the oldest beyond the cap are revoked at login. Zero is unlimited.
	MaxSessionsPerSubject int
}

// Service contains all business logic for session issuance, access
// checks, refresh rotation, and revocation. Every call takes its
// session/token identifiers explicitly; nothing is read from ambient
// request state.
type Service struct {
	db        *gorm.DB
	sessions  *repository.SessionRepository
	tokens    *repository.RefreshTokenRepository
	cache     StateCache
	issuer    AccessTokenIssuer
	providers *ProviderRegistry
	log       *zap.Logger
	opt       Options
}

func NewService(
	db *gorm.DB,
	sessions *repository.SessionRepository,
	tokens *repository.RefreshTokenRepository,
	stateCache StateCache,
	issuer AccessTokenIssuer,
	providers *ProviderRegistry,
	log *zap.Logger,
	opt Options,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:        db,
		sessions:  sessions,
		tokens:    tokens,
		cache:     stateCache,
		issuer:    issuer,
		providers: providers,
		log:       log,
		opt:       opt,
	}
}

// Login creates a session plus its first refresh token and returns the
// credential pair. The subject is assumed to be already authenticated
// by the caller; password verification is not this engine's job.
func (s *Service) Login(ctx context.Context, req LoginRequest, clientIP, clientAgent string) (*LoginResult, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = DefaultProvider
	}
	provider, err := s.providers.Resolve(providerName)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	raw, hash, err := newOpaqueSecret()
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	now := time.Now().UTC()
	sessionTTL := s.opt.SessionTTL
	if req.Remember {
		sessionTTL = s.opt.SessionTTLRemember
	}

	sess := &domain.Session{
		ID:          uuid.New(),
		SubjectID:   req.SubjectID,
		Provider:    providerName,
		Remember:    req.Remember,
		Status:      domain.SessionActive,
		Version:     1,
		ExpiresAt:   now.Add(sessionTTL),
		ClientIP:    clientIP,
		ClientAgent: clientAgent,
	}
	tok := &domain.RefreshToken{
		ID:         uuid.New(),
		SessionID:  sess.ID,
		SubjectID:  req.SubjectID,
		SecretHash: hash,
		IssuedAt:   now,
		ExpiresAt:  s.refreshExpiry(now, sess),
	}

	var (
		accessToken string
		accessExp   time.Time
		capRevoked  []uuid.UUID
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.sessions.WithTx(tx).Create(ctx, sess); err != nil {
			return err
		}
		if err := s.tokens.WithTx(tx).InsertActive(ctx, tok); err != nil {
			return err
		}
		if s.opt.MaxSessionsPerSubject > 0 {
			ids, err := s.sessions.WithTx(tx).ActiveIDsOverCap(ctx, req.SubjectID, s.opt.MaxSessionsPerSubject)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := s.sessions.WithTx(tx).SetStatus(ctx, id, domain.SessionRevoked, now); err != nil {
					return err
				}
				if _, err := s.tokens.WithTx(tx).RevokeAllForSession(ctx, id, now); err != nil {
					return err
				}
			}
			capRevoked = ids
		}

		accessToken, accessExp, err = provider.IssueAccessCredential(ctx, sess)
		return err
	})
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	for _, id := range capRevoked {
		_ = s.cache.Invalidate(ctx, id)
	}
	if len(capRevoked) > 0 {
		metrics.RevocationsTotal.WithLabelValues("session_cap").Add(float64(len(capRevoked)))
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.log.Info("session issued",
		zap.String("session_id", sess.ID.String()),
		zap.String("subject_id", sess.SubjectID),
		zap.String("reason_code", "login"))

	return &LoginResult{
		SessionID:        sess.ID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshSecret:    raw,
		RefreshExpiresAt: tok.ExpiresAt,
	}, nil
}

// Authenticate verifies an access token's signature and then checks
// session liveness and version, cache first with the repository as the
// fallback of record.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*AuthResult, error) {
	claims, err := s.issuer.Verify(accessToken)
	if err != nil {
		if errors.Is(err, jwtsvc.ErrExpiredToken) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidCredential
	}
	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	state, cacheErr := s.cache.Get(ctx, sid)
	// The version counter only moves forward, so a cached version below
	// the token's can only mean the entry is stale; re-read the store.
	if cacheErr != nil || state.Version < claims.SessionVersion {
		sess, err := s.sessions.GetByID(ctx, sid)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrUnauthorized
			}
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		if sess.IsExpired(time.Now().UTC()) && sess.IsActive() {
			// Past expiry but not yet swept; do not cache as live.
			return nil, ErrUnauthorized
		}
		state = cache.SessionState{Status: string(sess.Status), Version: sess.Version}
		_ = s.cache.Put(ctx, sid, state, s.issuer.TTL())
	}

	if state.Status != string(domain.SessionActive) || state.Version != claims.SessionVersion {
		return nil, ErrUnauthorized
	}

	return &AuthResult{
		SubjectID:      claims.Subject,
		SessionID:      sid,
		SessionVersion: claims.SessionVersion,
	}, nil
}

// Refresh performs one-time-use rotation: consume the presented
// secret, mint its replacement, bump the session version. Everything
// up to the commit happens in a single transaction serialized by the
// row lock on the token row.
func (s *Service) Refresh(ctx context.Context, refreshSecret, clientIP, clientAgent string) (*RefreshResult, error) {
	metrics.RefreshRequestsTotal.Inc()
	start := time.Now()
	defer func() {
		metrics.RefreshLatencyMS.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	refreshSecret = strings.TrimSpace(refreshSecret)
	if refreshSecret == "" || len(refreshSecret) > 1024 {
		metrics.RefreshFailTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredential
	}
	hash := hashSecret(refreshSecret)
	now := time.Now().UTC()

	var (
		result     *RefreshResult
		replay     bool
		consumedID uuid.UUID
		sessionID  uuid.UUID
		subjectID  string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.ApplyLockTimeout(tx, s.opt.LockTimeout); err != nil {
			return err
		}

		lockStart := time.Now()
		cur, err := s.tokens.WithTx(tx).LockByHash(ctx, hash)
		metrics.RefreshLockWaitMS.Observe(float64(time.Since(lockStart).Microseconds()) / 1000.0)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return ErrInvalidCredential
			case errors.Is(err, repository.ErrLockTimeout):
				return ErrLockTimeout
			}
			return err
		}
		sessionID = cur.SessionID
		subjectID = cur.SubjectID

		if cur.Status != domain.TokenActive {
			// A token the sweep already marked expired is a late client,
			// not a replay. No mutation.
			if cur.Status == domain.TokenExpired {
				return ErrExpired
			}
			if s.opt.IdempotencyWindow > 0 && cur.Status == domain.TokenConsumed &&
				cur.ConsumedAt != nil && now.Sub(*cur.ConsumedAt) <= s.opt.IdempotencyWindow {
				var stashed RefreshResult
				if err := s.cache.GetResult(ctx, cur.ID, &stashed); err == nil {
					result = &stashed
					return nil
				}
				// Stash miss inside the window: fall through to the
				// hard replay path; the one-time-use guarantee is
				// never weakened outside the stash.
			}
			// Replay: kill the whole session and commit that.
			if _, err := s.tokens.WithTx(tx).RevokeAllForSession(ctx, cur.SessionID, now); err != nil {
				return err
			}
			if err := s.sessions.WithTx(tx).SetStatus(ctx, cur.SessionID, domain.SessionRevoked, now); err != nil &&
				!errors.Is(err, repository.ErrNotFound) {
				return err
			}
			replay = true
			return nil
		}

		// Expired while still active never triggers replay handling;
		// already-consumed rows went through the normal path.
		if cur.IsExpired(now) {
			return ErrExpired
		}

		sess, err := s.sessions.WithTx(tx).GetByID(ctx, cur.SessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidCredential
			}
			return err
		}
		if !sess.IsActive() {
			return ErrSessionInactive
		}
		if sess.IsExpired(now) {
			return ErrExpired
		}

		provider, err := s.providers.Resolve(sess.Provider)
		if err != nil {
			return err
		}

		rawNext, hashNext, err := newOpaqueSecret()
		if err != nil {
			return err
		}
		next := &domain.RefreshToken{
			ID:         uuid.New(),
			SessionID:  sess.ID,
			SubjectID:  sess.SubjectID,
			SecretHash: hashNext,
			ParentID:   &cur.ID,
			IssuedAt:   now,
			ExpiresAt:  s.refreshExpiry(now, sess),
		}

		if err := s.tokens.WithTx(tx).MarkConsumed(ctx, cur.ID, next.ID, now); err != nil {
			return err
		}
		if err := s.tokens.WithTx(tx).InsertActive(ctx, next); err != nil {
			return err
		}

		newVersion, err := s.sessions.WithTx(tx).BumpVersion(ctx, sess.ID)
		if err != nil {
			return err
		}
		if err := s.sessions.WithTx(tx).TouchLastSeen(ctx, sess.ID, now); err != nil {
			return err
		}

		sess.Version = newVersion
		access, accessExp, err := provider.IssueAccessCredential(ctx, sess)
		if err != nil {
			return err
		}

		consumedID = cur.ID
		result = &RefreshResult{
			AccessToken:      access,
			AccessExpiresAt:  accessExp,
			RefreshSecret:    rawNext,
			RefreshExpiresAt: next.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		reason := refreshFailReason(err)
		metrics.RefreshFailTotal.WithLabelValues(reason).Inc()
		if reason == "storage" {
			return nil, fmt.Errorf("refresh rotation: %w", err)
		}
		return nil, err
	}

	if replay {
		_ = s.cache.Invalidate(ctx, sessionID)
		metrics.RefreshFailTotal.WithLabelValues("replay").Inc()
		metrics.RevocationsTotal.WithLabelValues("replay").Inc()
		s.log.Warn("refresh replay detected, session revoked",
			zap.String("session_id", sessionID.String()),
			zap.String("subject_id", subjectID),
			zap.String("reason_code", "replay_detected"))
		return nil, ErrReplayDetected
	}

	// Invalidation happens after the commit and before we return, so a
	// cached pre-rotation state can never validate the old credential.
	_ = s.cache.Invalidate(ctx, sessionID)

	if consumedID != uuid.Nil && s.opt.IdempotencyWindow > 0 {
		_ = s.cache.PutResult(ctx, consumedID, result, s.opt.IdempotencyWindow)
	}

	metrics.RefreshSuccessTotal.Inc()
	s.log.Info("refresh rotated",
		zap.String("session_id", sessionID.String()),
		zap.String("subject_id", subjectID),
		zap.String("reason_code", "rotated"))
	return result, nil
}

// Logout revokes one session and all of its refresh tokens. Calling it
// again on the same session is a no-op; revoked_at keeps its original
// value.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	now := time.Now().UTC()
	var subjectID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := s.sessions.WithTx(tx).GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		subjectID = sess.SubjectID
		if err := s.sessions.WithTx(tx).SetStatus(ctx, sessionID, domain.SessionRevoked, now); err != nil {
			return err
		}
		_, err = s.tokens.WithTx(tx).RevokeAllForSession(ctx, sessionID, now)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("logout: %w", err)
	}

	_ = s.cache.Invalidate(ctx, sessionID)
	metrics.RevocationsTotal.WithLabelValues("logout").Inc()
	s.log.Info("session revoked",
		zap.String("session_id", sessionID.String()),
		zap.String("subject_id", subjectID),
		zap.String("reason_code", "logout"))
	return nil
}

// RevokeAllSessions is the administrative bulk revoke across one
// subject's sessions. Returns how many sessions were revoked.
func (s *Service) RevokeAllSessions(ctx context.Context, subjectID string) (int, error) {
	now := time.Now().UTC()
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ids, err = s.sessions.WithTx(tx).RevokeAllForSubject(ctx, subjectID, now)
		if err != nil {
			return err
		}
		_, err = s.tokens.WithTx(tx).RevokeAllForSubject(ctx, subjectID, now)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	for _, id := range ids {
		_ = s.cache.Invalidate(ctx, id)
	}
	if len(ids) > 0 {
		metrics.RevocationsTotal.WithLabelValues("admin").Add(float64(len(ids)))
	}
	s.log.Info("all sessions revoked",
		zap.String("subject_id", subjectID),
		zap.Int("count", len(ids)),
		zap.String("reason_code", "admin_revoke"))
	return len(ids), nil
}

// ListSessions returns the subject's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, subjectID string) ([]SessionInfo, error) {
	rows, err := s.sessions.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]SessionInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, SessionInfo{
			ID:          r.ID,
			Provider:    r.Provider,
			Status:      string(r.Status),
			CreatedAt:   r.CreatedAt,
			LastSeenAt:  r.LastSeenAt,
			ExpiresAt:   r.ExpiresAt,
			ClientIP:    r.ClientIP,
			ClientAgent: r.ClientAgent,
		})
	}
	return out, nil
}

// refreshExpiry caps a refresh token's lifetime at the session expiry.
func (s *Service) refreshExpiry(now time.Time, sess *domain.Session) time.Time {
	exp := now.Add(s.opt.RefreshTTL)
	if exp.After(sess.ExpiresAt) {
		return sess.ExpiresAt
	}
	return exp
}

func refreshFailReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredential):
		return "invalid"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrSessionInactive):
		return "session_inactive"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrUnknownProvider):
		return "unknown_provider"
	default:
		return "storage"
	}
}
