package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
)

// GetIdempotency returns the live record for (scope, key) at now, or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.IdempotencyKey, error) {
	if strings.TrimSpace(scope) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.IdempotencyKey
	err := db.WithContext(ctx).
		Where("scope = ? AND key = ? AND expires_at > ?", scope, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records that (scope, key) produced detectionID with the
// given HTTP status. A live record for the same pair returns ErrDuplicate;
// an expired one is replaced.
func CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key string, detectionID int64, status int, ttl time.Duration, now time.Time) (*domain.IdempotencyKey, error) {
	now = now.UTC()
	rec := &domain.IdempotencyKey{
		ID:          uuid.NewString(),
		Scope:       scope,
		Key:         key,
		DetectionID: detectionID,
		Status:      status,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	q := db.WithContext(ctx)
	if err := q.Where("scope = ? AND key = ? AND expires_at <= ?", scope, key, now).
		Delete(&domain.IdempotencyKey{}).Error; err != nil {
		return nil, err
	}
	if err := q.Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records whose TTL elapsed before now and
// returns how many were removed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
