package domain

import "time"

// IdempotencyKey records the detection produced for a client-supplied
// Idempotency-Key so that a retried POST /detect replays the stored row
// instead of inserting a second one. Scope is "user:<id>" for authenticated
// callers and "ip:<addr>" otherwise; (Scope, Key) is unique.
type IdempotencyKey struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	Scope       string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_idempotency_scope_key,priority:1"`
	Key         string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_idempotency_scope_key,priority:2"`
	DetectionID int64     `gorm:"not null"`
	Status      int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyKey) TableName() string { return "idempotency_keys" }

// Expired reports whether the record is past its TTL at now.
func (k IdempotencyKey) Expired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}
