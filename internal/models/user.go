package models

import "time"

// User represents an end-user account mirrored from the hosted identity provider.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ExternalID string `gorm:"type:varchar(255);not null;uniqueIndex"` // Identity-provider subject.
	Email      string `gorm:"type:text"`                              // Email address.
	Name       string `gorm:"type:text"`                              // Display name.

	StripeCustomerID string `gorm:"type:varchar(255);index"` // Stripe customer ID once known.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
