package models

import "time"

// ModelReference stores provider model limits synced from models.dev.
type ModelReference struct {
	ProviderName string `gorm:"type:varchar(255);not null;primaryKey"` // Provider identifier.
	ModelName    string `gorm:"type:varchar(255);not null;primaryKey;index"` // Model identifier.

	ContextLimit int `gorm:"not null;default:0"` // Max context length.
	OutputLimit  int `gorm:"not null;default:0"` // Max output tokens.

	LastSeenAt time.Time `gorm:"not null;index"`          // Last sync timestamp.
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime"` // Update timestamp.
}

// TableName overrides the default table name.
func (ModelReference) TableName() string {
	return "model_references"
}
