// Package domain defines the persistence models for registered users and
// recorded detections. These types are mapped with GORM; the schema itself is
// owned by the versioned migrations in internal/repo/migrations.
package domain

import "time"

// Verdict labels rendered to clients.
const (
	LabelFake = "FAKE"
	LabelReal = "REAL"
)

// User is a registered account. Email is the login identifier and is unique
// across the store; the password is only ever kept as a bcrypt digest.
//
// Fields:
//   - ID: store-assigned autoincrement key.
//   - Username: display name, not unique.
//   - Email: login identifier (unique index ux_users_email).
//   - HashedPassword: bcrypt digest bytes; never serialized.
type User struct {
	ID             int64  `json:"id"       gorm:"primaryKey;autoIncrement"`
	Username       string `json:"username" gorm:"type:varchar(255);not null"`
	Email          string `json:"email"    gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	HashedPassword []byte `json:"-"        gorm:"column:hashed_password;not null"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// DetectionResult is one classified text submission. UserID is a free-form
// nullable reference: anonymous submissions store NULL and no foreign key
// ties it to users.
type DetectionResult struct {
	ID         int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	Text       string    `json:"text"       gorm:"type:varchar(500);not null"`
	IsFake     bool      `json:"is_fake"    gorm:"not null"`
	Confidence float64   `json:"confidence" gorm:"not null"`
	UserID     *int64    `json:"user_id"    gorm:"index:idx_detection_results_user"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
}

// TableName returns the database table name for DetectionResult.
func (DetectionResult) TableName() string { return "detection_results" }

// Label renders the boolean verdict as FAKE or REAL.
func (d DetectionResult) Label() string {
	if d.IsFake {
		return LabelFake
	}
	return LabelReal
}
