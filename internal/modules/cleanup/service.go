package cleanup

import (
	"context"
	"time"

	"authcore/internal/modules/auth"
	"authcore/internal/observability/metrics"
	"authcore/internal/repository"

	"go.uber.org/zap"
)

// Service runs the two retention sweeps: marking expired sessions and
// tokens, and purging terminal rows past the retention window. Both
// sweeps are idempotent and safe next to live traffic.
type Service struct {
	sessions  *repository.SessionRepository
	tokens    *repository.RefreshTokenRepository
	cache     auth.StateCache
	log       *zap.Logger
	interval  time.Duration
	retention time.Duration
	// idleTTL expires sessions not seen for this long; zero disables
	// the inactivity check and only absolute expiry applies.
	idleTTL time.Duration
}

func NewService(
	sessions *repository.SessionRepository,
	tokens *repository.RefreshTokenRepository,
	stateCache auth.StateCache,
	log *zap.Logger,
	interval, retention, idleTTL time.Duration,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sessions:  sessions,
		tokens:    tokens,
		cache:     stateCache,
		log:       log,
		interval:  interval,
		retention: retention,
		idleTTL:   idleTTL,
	}
}

// SweepExpired transitions past-due active sessions and tokens to
// expired, including sessions idle past the inactivity window when one
// is configured. Sessions moved to a terminal state get their cache
// entries invalidated so stale liveness can never outlive the sweep.
func (s *Service) SweepExpired(ctx context.Context) (sessions int64, tokens int64, err error) {
	now := time.Now().UTC()

	ids, err := s.sessions.MarkExpired(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	if s.idleTTL > 0 {
		idleIDs, err := s.sessions.MarkIdleExpired(ctx, now.Add(-s.idleTTL))
		if err != nil {
			return int64(len(ids)), 0, err
		}
		ids = append(ids, idleIDs...)
	}
	for _, id := range ids {
		if s.cache != nil {
			_ = s.cache.Invalidate(ctx, id)
		}
	}

	tokens, err = s.tokens.MarkExpired(ctx, now)
	if err != nil {
		return int64(len(ids)), 0, err
	}

	metrics.CleanupRowsTotal.WithLabelValues("expire", "sessions").Add(float64(len(ids)))
	metrics.CleanupRowsTotal.WithLabelValues("expire", "refresh_tokens").Add(float64(tokens))
	return int64(len(ids)), tokens, nil
}

// SweepRetention hard-deletes terminal rows older than the retention
// window. Tokens go first so session deletion never strands children.
func (s *Service) SweepRetention(ctx context.Context) (sessions int64, tokens int64, err error) {
	cutoff := time.Now().UTC().Add(-s.retention)

	tokens, err = s.tokens.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}
	sessions, err = s.sessions.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, tokens, err
	}

	metrics.CleanupRowsTotal.WithLabelValues("purge", "sessions").Add(float64(sessions))
	metrics.CleanupRowsTotal.WithLabelValues("purge", "refresh_tokens").Add(float64(tokens))
	return sessions, tokens, nil
}

// RunOnce executes both sweeps and logs the outcome.
func (s *Service) RunOnce(ctx context.Context) error {
	expSessions, expTokens, err := s.SweepExpired(ctx)
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
		return err
	}
	purgedSessions, purgedTokens, err := s.SweepRetention(ctx)
	if err != nil {
		s.log.Error("retention sweep failed", zap.Error(err))
		return err
	}
	s.log.Info("cleanup sweep completed",
		zap.Int64("expired_sessions", expSessions),
		zap.Int64("expired_tokens", expTokens),
		zap.Int64("purged_sessions", purgedSessions),
		zap.Int64("purged_tokens", purgedTokens))
	return nil
}

// Start runs the sweeps on the configured interval until ctx is done.
func (s *Service) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.RunOnce(ctx)
			}
		}
	}()
}
