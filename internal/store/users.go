package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/contentjet/contentjet/internal/models"
	"gorm.io/gorm/clause"
)

// EnsureUser returns the user for externalID, creating it on first sight and
// refreshing email and name when they changed.
func (s *Store) EnsureUser(ctx context.Context, externalID, email, name string) (*models.User, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return nil, errConn
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("store: ensure user: empty external id")
	}

	candidate := models.User{ExternalID: externalID, Email: email, Name: name}
	if errCreate := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).Create(&candidate).Error; errCreate != nil {
		return nil, fmt.Errorf("store: create user: %w", errCreate)
	}

	var user models.User
	if errFind := conn.Where("external_id = ?", externalID).First(&user).Error; errFind != nil {
		return nil, fmt.Errorf("store: load user: %w", notFound(errFind))
	}

	updates := map[string]any{}
	if email != "" && email != user.Email {
		updates["email"] = email
	}
	if name != "" && name != user.Name {
		updates["name"] = name
	}
	if len(updates) > 0 {
		if errUpdate := conn.Model(&user).Updates(updates).Error; errUpdate != nil {
			return nil, fmt.Errorf("store: update user profile: %w", errUpdate)
		}
	}
	return &user, nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return nil, errConn
	}
	var user models.User
	if errFind := conn.First(&user, id).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &user, nil
}

// FindUserByStripeCustomer loads the user linked to a Stripe customer id.
func (s *Store) FindUserByStripeCustomer(ctx context.Context, customerID string) (*models.User, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return nil, errConn
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrNotFound
	}
	var user models.User
	if errFind := conn.Where("stripe_customer_id = ?", customerID).First(&user).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &user, nil
}

// SetStripeCustomerID links a Stripe customer id to a user.
func (s *Store) SetStripeCustomerID(ctx context.Context, userID uint64, customerID string) error {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return errConn
	}
	if strings.TrimSpace(customerID) == "" {
		return nil
	}
	res := conn.Model(&models.User{}).Where("id = ?", userID).Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return fmt.Errorf("store: set stripe customer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
