package modelreference

import (
	"context"
	"fmt"
	"time"

	"github.com/contentjet/contentjet/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreReferences upserts model references and prunes rows not seen in this sync.
func StoreReferences(ctx context.Context, db *gorm.DB, refs []models.ModelReference, syncTime time.Time) error {
	if db == nil {
		return fmt.Errorf("modelreference: store: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(refs) == 0 {
		return nil
	}
	if syncTime.IsZero() {
		syncTime = time.Now().UTC()
	}
	syncTime = syncTime.UTC()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range refs {
			refs[i].LastSeenAt = syncTime
			refs[i].UpdatedAt = syncTime
		}
		errUpsert := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_name"}, {Name: "model_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"context_limit",
				"output_limit",
				"last_seen_at",
				"updated_at",
			}),
		}).CreateInBatches(&refs, 200).Error
		if errUpsert != nil {
			return fmt.Errorf("modelreference: store: upsert: %w", errUpsert)
		}
		if errPrune := tx.Where("last_seen_at < ?", syncTime).Delete(&models.ModelReference{}).Error; errPrune != nil {
			return fmt.Errorf("modelreference: store: prune: %w", errPrune)
		}
		return nil
	})
}

// LoadReferences returns every stored reference.
func LoadReferences(ctx context.Context, db *gorm.DB) ([]models.ModelReference, error) {
	if db == nil {
		return nil, fmt.Errorf("modelreference: load: nil db")
	}
	var refs []models.ModelReference
	if errFind := db.WithContext(ctx).Order("provider_name, model_name").Find(&refs).Error; errFind != nil {
		return nil, fmt.Errorf("modelreference: load: %w", errFind)
	}
	return refs, nil
}
