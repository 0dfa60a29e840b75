// Package repo implements the persistence layer on top of GORM. This file
// holds small aggregate queries used for conditional responses (ETag) in the
// HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
)

// DetectionStats returns the number of detections recorded for userID, the
// largest id among them and the newest CreatedAt. Rows are append-only, so
// (count, maxID) changes whenever the history does. With no rows, count and
// maxID are 0 and latest is nil.
func DetectionStats(ctx context.Context, db *gorm.DB, userID int64) (count, maxID int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.DetectionResult{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, 0, nil, err
	}
	if count == 0 {
		return 0, 0, nil, nil
	}

	// avoid MAX(created_at): SQLite hands it back as TEXT
	var row struct {
		ID        int64
		CreatedAt time.Time
	}
	if err = db.WithContext(ctx).
		Model(&domain.DetectionResult{}).
		Where("user_id = ?", userID).
		Select("id", "created_at").
		Order("id desc").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, 0, nil, err
	}
	return count, row.ID, &row.CreatedAt, nil
}
