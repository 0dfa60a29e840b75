// Package repo implements the persistence layer on top of GORM. This file
// provides the thin User helpers; callers pass either the root handle or a
// transaction from InTx.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
)

// CreateUser inserts u and fills its ID. A unique violation on email returns
// ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUserByEmail fetches a user by exact email, or ErrNotFound.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EmailExists reports whether a user with email is already registered.
func EmailExists(ctx context.Context, db *gorm.DB, email string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("email = ?", email).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}
