package repository

import (
	"context"
	"time"

	"authcore/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefreshTokenRepository provides DB access for refresh tokens.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *RefreshTokenRepository) WithTx(tx *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: tx}
}

// InsertActive creates the row for a freshly issued secret.
func (r *RefreshTokenRepository) InsertActive(ctx context.Context, t *domain.RefreshToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Status = domain.TokenActive
	if t.IssuedAt.IsZero() {
		t.IssuedAt = time.Now().UTC()
	}
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

// LockByHash loads the token row for the presented secret hash and
// takes a row-level exclusive lock for the rest of the transaction.
// This is the sole serialization point for concurrent rotations of the
// same secret; it never blocks rotations of other secrets.
func (r *RefreshTokenRepository) LockByHash(ctx context.Context, secretHash string) (*domain.RefreshToken, error) {
	q := r.db.WithContext(ctx)
	// sqlite rejects FOR UPDATE and serializes writers anyway.
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t domain.RefreshToken
	if err := q.Where("secret_hash = ?", secretHash).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// MarkConsumed transitions an active token to consumed and records its
// replacement. ErrInvalidState means the row was not active anymore,
// which callers classify as replay.
func (r *RefreshTokenRepository) MarkConsumed(ctx context.Context, id, replacedByID uuid.UUID, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("id = ? AND status = ?", id, domain.TokenActive).
		Updates(map[string]any{
			"status":         domain.TokenConsumed,
			"consumed_at":    now,
			"replaced_by_id": replacedByID,
			"updated_at":     now,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidState
	}
	return nil
}

// RevokeAllForSession bulk-revokes every active token of one session.
// Used by replay handling and explicit revocation only.
func (r *RefreshTokenRepository) RevokeAllForSession(ctx context.Context, sessionID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("session_id = ? AND status = ?", sessionID, domain.TokenActive).
		Updates(map[string]any{"status": domain.TokenRevoked, "updated_at": now})
	return res.RowsAffected, translate(res.Error)
}

func (r *RefreshTokenRepository) RevokeAllForSubject(ctx context.Context, subjectID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("subject_id = ? AND status = ?", subjectID, domain.TokenActive).
		Updates(map[string]any{"status": domain.TokenRevoked, "updated_at": now})
	return res.RowsAffected, translate(res.Error)
}

// GetBySession returns the session's tokens, newest first.
func (r *RefreshTokenRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.RefreshToken, error) {
	var out []domain.RefreshToken
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("issued_at DESC").
		Find(&out).Error
	return out, translate(err)
}

// MarkExpired transitions past-due active tokens to expired.
func (r *RefreshTokenRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("status = ? AND expires_at < ?", domain.TokenActive, now).
		Updates(map[string]any{"status": domain.TokenExpired, "updated_at": now})
	return res.RowsAffected, translate(res.Error)
}

// DeleteTerminalBefore hard-deletes consumed/revoked/expired tokens
// whose last update is older than the cutoff.
func (r *RefreshTokenRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]domain.TokenStatus{domain.TokenConsumed, domain.TokenRevoked, domain.TokenExpired}, cutoff).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, translate(res.Error)
}
