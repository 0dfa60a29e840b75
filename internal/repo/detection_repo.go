package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
)

// CreateDetection inserts d. ID comes from the store's autoincrement and
// CreatedAt is stamped in UTC when unset.
func CreateDetection(ctx context.Context, db *gorm.DB, d *domain.DetectionResult) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(d).Error
}

// GetDetection fetches one detection by id, or ErrNotFound.
func GetDetection(ctx context.Context, db *gorm.DB, id int64) (*domain.DetectionResult, error) {
	var d domain.DetectionResult
	err := db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CountDetectionsByUser returns the number of detections recorded for userID.
func CountDetectionsByUser(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DetectionResult{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}

// ListDetectionsByUserPage returns a page of userID's detections, newest
// first. Ties on created_at are broken by id so pages are stable.
func ListDetectionsByUserPage(ctx context.Context, db *gorm.DB, userID int64, offset, limit int) ([]domain.DetectionResult, error) {
	var out []domain.DetectionResult
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
