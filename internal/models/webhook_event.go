package models

import "time"

// WebhookEvent records a vendor webhook event that was handled successfully.
type WebhookEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EventID string `gorm:"type:varchar(255);not null;uniqueIndex"` // Vendor event ID.
	Type    string `gorm:"type:varchar(128);not null;index"`       // Vendor event type.

	Outcome     string    `gorm:"type:varchar(32);not null;default:'processed'"` // Handler outcome.
	ProcessedAt time.Time `gorm:"not null"`                                          // Handling completion time.
}
