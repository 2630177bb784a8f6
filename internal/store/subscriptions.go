package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contentjet/contentjet/internal/db"
	"github.com/contentjet/contentjet/internal/models"
	"gorm.io/gorm"
)

// LatestSubscription returns the user's most recently created subscription.
func (s *Store) LatestSubscription(ctx context.Context, userID uint64) (*models.Subscription, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return nil, errConn
	}
	var sub models.Subscription
	if errFind := conn.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").First(&sub).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &sub, nil
}

// OpenSubscription returns the user's active or trialing subscription.
func (s *Store) OpenSubscription(ctx context.Context, userID uint64) (*models.Subscription, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return nil, errConn
	}
	var sub models.Subscription
	if errFind := conn.Where("user_id = ? AND status IN ?", userID, models.OpenSubscriptionStatuses).
		Order("id DESC").First(&sub).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &sub, nil
}

// FindByStripeSubscriptionID loads the row mirroring a Stripe subscription.
func (s *Store) FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return nil, errConn
	}
	if strings.TrimSpace(stripeSubscriptionID) == "" {
		return nil, ErrNotFound
	}
	var sub models.Subscription
	if errFind := conn.Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &sub, nil
}

// FindByStripeCustomerID loads the newest row for a Stripe customer.
func (s *Store) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return nil, errConn
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrNotFound
	}
	var sub models.Subscription
	if errFind := conn.Where("stripe_customer_id = ?", customerID).Order("id DESC").First(&sub).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &sub, nil
}

// CreateSubscription soft-closes the user's open rows and inserts sub.
func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return errConn
	}
	if sub == nil || sub.UserID == 0 {
		return fmt.Errorf("store: create subscription: missing user")
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		if errClose := closeOpenRows(tx, sub.UserID, 0, time.Now().UTC()); errClose != nil {
			return errClose
		}
		if errCreate := tx.Create(sub).Error; errCreate != nil {
			return fmt.Errorf("store: create subscription: %w", errCreate)
		}
		return nil
	})
}

// UpdateSubscription loads row id, applies mutate and saves it. When the row ends up
// open, other open rows of the same user are soft-closed first.
func (s *Store) UpdateSubscription(ctx context.Context, id uint64, mutate func(*models.Subscription)) (*models.Subscription, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return nil, errConn
	}
	var out models.Subscription
	errTx := conn.Transaction(func(tx *gorm.DB) error {
		if errFind := tx.First(&out, id).Error; errFind != nil {
			return notFound(errFind)
		}
		mutate(&out)
		return saveSubscription(tx, &out)
	})
	if errTx != nil {
		return nil, errTx
	}
	return &out, nil
}

// CancelSubscription marks row id cancelled and stamps ended_at. Already ended rows keep their timestamp.
func (s *Store) CancelSubscription(ctx context.Context, id uint64, at time.Time) (*models.Subscription, error) {
	return s.UpdateSubscription(ctx, id, func(sub *models.Subscription) {
		sub.Status = models.SubscriptionStatusCancelled
		if sub.EndedAt == nil {
			ended := at.UTC()
			sub.EndedAt = &ended
		}
	})
}

// UpsertVendorSubscription mirrors a Stripe subscription onto the user's rows.
//
// Resolution order: the row already carrying stripeSubscriptionID, else the user's open
// row without a vendor id (pre-provisioned), else a new row after soft-closing the user's
// open rows. A unique violation from a concurrent writer is retried once, which then
// resolves to an update.
func (s *Store) UpsertVendorSubscription(ctx context.Context, userID uint64, stripeSubscriptionID string, mutate func(*models.Subscription)) (*models.Subscription, error) {
	conn, errConn := s.conn(ctx)
	if errConn != nil {
		return nil, errConn
	}
	stripeSubscriptionID = strings.TrimSpace(stripeSubscriptionID)
	if userID == 0 || stripeSubscriptionID == "" {
		return nil, fmt.Errorf("store: upsert subscription: missing user or vendor id")
	}

	var out *models.Subscription
	attempt := func() error {
		return conn.Transaction(func(tx *gorm.DB) error {
			sub, errResolve := resolveUpsertTarget(tx, userID, stripeSubscriptionID)
			if errResolve != nil {
				return errResolve
			}
			vendorID := stripeSubscriptionID
			sub.StripeSubscriptionID = &vendorID
			mutate(sub)
			if sub.ID == 0 {
				if errClose := closeOpenRows(tx, userID, 0, time.Now().UTC()); errClose != nil {
					return errClose
				}
				if errCreate := tx.Create(sub).Error; errCreate != nil {
					return fmt.Errorf("store: insert subscription: %w", errCreate)
				}
			} else if errSave := saveSubscription(tx, sub); errSave != nil {
				return errSave
			}
			out = sub
			return nil
		})
	}

	errAttempt := attempt()
	if errAttempt != nil && db.IsUniqueViolation(errAttempt) {
		errAttempt = attempt()
	}
	if errAttempt != nil {
		return nil, errAttempt
	}
	return out, nil
}

func resolveUpsertTarget(tx *gorm.DB, userID uint64, stripeSubscriptionID string) (*models.Subscription, error) {
	var existing models.Subscription
	errFind := tx.Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&existing).Error
	switch {
	case errFind == nil:
		return &existing, nil
	case !errors.Is(errFind, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("store: find subscription by vendor id: %w", errFind)
	}

	var provisioned models.Subscription
	errFind = tx.Where("user_id = ? AND status IN ? AND (stripe_subscription_id IS NULL OR stripe_subscription_id = '')",
		userID, models.OpenSubscriptionStatuses).Order("id DESC").First(&provisioned).Error
	switch {
	case errFind == nil:
		return &provisioned, nil
	case !errors.Is(errFind, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("store: find provisioned subscription: %w", errFind)
	}

	return &models.Subscription{UserID: userID}, nil
}

func saveSubscription(tx *gorm.DB, sub *models.Subscription) error {
	if sub.Status.IsOpen() {
		if errClose := closeOpenRows(tx, sub.UserID, sub.ID, time.Now().UTC()); errClose != nil {
			return errClose
		}
	}
	if errSave := tx.Save(sub).Error; errSave != nil {
		return fmt.Errorf("store: save subscription: %w", errSave)
	}
	return nil
}

// closeOpenRows soft-closes every open row of userID except exceptID.
func closeOpenRows(tx *gorm.DB, userID, exceptID uint64, at time.Time) error {
	q := tx.Model(&models.Subscription{}).Where("user_id = ? AND status IN ?", userID, models.OpenSubscriptionStatuses)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if errUpdate := q.Updates(map[string]any{
		"status":   models.SubscriptionStatusCancelled,
		"ended_at": at,
	}).Error; errUpdate != nil {
		return fmt.Errorf("store: close open subscriptions: %w", errUpdate)
	}
	return nil
}
