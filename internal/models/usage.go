package models

import (
	"time"

	"gorm.io/datatypes"
)

// AIUsageLog records one AI generation request.
type AIUsageLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    uint64 `gorm:"not null;index:idx_ai_usage_logs_user_created,priority:1"` // Requesting user.
	RequestID string `gorm:"type:varchar(64);not null;index"`                          // Request correlation ID.

	TemplateName string         `gorm:"type:varchar(128);not null"`       // Template used.
	VariableKeys datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Names of supplied variables.

	Provider string `gorm:"type:varchar(64);not null"`  // Provider that served the request.
	Model    string `gorm:"type:varchar(255);not null"` // Model actually used.

	PromptTokens     int   `gorm:"not null;default:0"`
	CompletionTokens int   `gorm:"not null;default:0"`
	TotalTokens      int   `gorm:"not null;default:0"`
	DurationMs       int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;index:idx_ai_usage_logs_user_created,priority:2"` // Creation timestamp.
}

// TableName overrides the default table name.
func (AIUsageLog) TableName() string {
	return "ai_usage_logs"
}
