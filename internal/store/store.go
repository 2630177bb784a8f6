// Package store persists users, subscriptions and webhook events with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contentjet/contentjet/internal/db"
	"github.com/contentjet/contentjet/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps a gorm connection.
type Store struct {
	db *gorm.DB
}

// New constructs a Store.
func New(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	return s.db.WithContext(ctx), nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return errConn
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return fmt.Errorf("store: ping: %w", errDB)
	}
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		return fmt.Errorf("store: ping: %w", errPing)
	}
	return nil
}

// WebhookEventProcessed reports whether eventID was already handled.
func (s *Store) WebhookEventProcessed(ctx context.Context, eventID string) (bool, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return false, errConn
	}
	var count int64
	if errCount := conn.Model(&models.WebhookEvent{}).Where("event_id = ?", eventID).Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("store: check webhook event: %w", errCount)
	}
	return count > 0, nil
}

// RecordWebhookEvent stores a handled event. Duplicate ids are ignored.
func (s *Store) RecordWebhookEvent(ctx context.Context, eventID, eventType, outcome string) error {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return errConn
	}
	row := models.WebhookEvent{
		EventID:     eventID,
		Type:        eventType,
		Outcome:     outcome,
		ProcessedAt: time.Now().UTC(),
	}
	errCreate := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row).Error
	if errCreate != nil && !db.IsUniqueViolation(errCreate) {
		return fmt.Errorf("store: record webhook event: %w", errCreate)
	}
	return nil
}
