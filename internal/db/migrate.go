package db

import (
	"fmt"

	"github.com/contentjet/contentjet/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.AIUsageLog{},
		&models.ModelReference{},
		&models.WebhookEvent{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// At most one open subscription per user.
	if errOpenUnique := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_user_open
		ON subscriptions (user_id)
		WHERE status IN ('active', 'trialing')
	`).Error; errOpenUnique != nil {
		return fmt.Errorf("db: create open subscription index: %w", errOpenUnique)
	}
	if errLatest := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_subscriptions_user_created
		ON subscriptions (user_id, created_at DESC)
	`).Error; errLatest != nil {
		return fmt.Errorf("db: create subscription history index: %w", errLatest)
	}
	return nil
}
