package repository

import (
	"context"
	"time"

	"authcore/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRepository provides DB access for sessions.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// WithTx returns a copy bound to the given transaction so mutations
// participate in the caller's commit/rollback.
func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = domain.SessionActive
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var s domain.Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// BumpVersion atomically increments the session version and returns
// the post-increment value.
func (r *SessionRepository) BumpVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	var row struct {
		Version int64
	}
	res := r.db.WithContext(ctx).Raw(
		`UPDATE sessions SET version = version + 1, updated_at = ? WHERE id = ? RETURNING version`,
		time.Now().UTC(), id,
	).Scan(&row)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return row.Version, nil
}

// SetStatus moves an active session to a terminal status. Calling it
// on an already-terminal session is a no-op: revoked_at set by the
// first transition is never overwritten.
func (r *SessionRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus, now time.Time) error {
	updates := map[string]any{"status": status, "updated_at": now}
	if status == domain.SessionRevoked {
		updates["revoked_at"] = now
	}
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND status = ?", id, domain.SessionActive).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		// Either already terminal (fine) or unknown id.
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return translate(err)
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (r *SessionRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, now time.Time) error {
	return translate(r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_seen_at": now, "updated_at": now}).Error)
}

func (r *SessionRepository) ListBySubject(ctx context.Context, subjectID string) ([]domain.Session, error) {
	var out []domain.Session
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at DESC").
		Find(&out).Error
	return out, translate(err)
}

// ActiveIDsOverCap returns the ids of the subject's active sessions
// beyond the keep newest ones, oldest last.
func (r *SessionRepository) ActiveIDsOverCap(ctx context.Context, subjectID string, keep int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("subject_id = ? AND status = ?", subjectID, domain.SessionActive).
		Order("created_at DESC").
		Offset(keep).
		Limit(1000).
		Pluck("id", &ids).Error
	return ids, translate(err)
}

// RevokeAllForSubject revokes every active session of the subject and
// returns the affected ids so callers can invalidate cache entries.
func (r *SessionRepository) RevokeAllForSubject(ctx context.Context, subjectID string, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("subject_id = ? AND status = ?", subjectID, domain.SessionActive).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err = r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id IN ? AND status = ?", ids, domain.SessionActive).
		Updates(map[string]any{"status": domain.SessionRevoked, "revoked_at": now, "updated_at": now}).Error
	return ids, translate(err)
}

// MarkExpired transitions active sessions past their expiry and
// returns the affected ids for cache invalidation.
func (r *SessionRepository) MarkExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("status = ? AND expires_at < ?", domain.SessionActive, now).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err = r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id IN ? AND status = ?", ids, domain.SessionActive).
		Updates(map[string]any{"status": domain.SessionExpired, "updated_at": now}).Error
	return ids, translate(err)
}

// MarkIdleExpired transitions active sessions not seen since the
// cutoff. Sessions never refreshed fall back to their creation time.
func (r *SessionRepository) MarkIdleExpired(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("status = ? AND COALESCE(last_seen_at, created_at) < ?", domain.SessionActive, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err = r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id IN ? AND status = ?", ids, domain.SessionActive).
		Updates(map[string]any{"status": domain.SessionExpired, "updated_at": time.Now().UTC()}).Error
	return ids, translate(err)
}

// DeleteTerminalBefore hard-deletes revoked/expired sessions whose last
// update is older than the cutoff.
func (r *SessionRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []domain.SessionStatus{domain.SessionRevoked, domain.SessionExpired}, cutoff).
		Delete(&domain.Session{})
	return res.RowsAffected, translate(res.Error)
}
