package modelreference

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/contentjet/contentjet/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "refs.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(&models.ModelReference{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func TestStoreReferences_UpsertAndPrune(t *testing.T) {
	db := openTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	refs := []models.ModelReference{
		{ProviderName: "openai", ModelName: "gpt-4o", ContextLimit: 128000},
		{ProviderName: "openai", ModelName: "gpt-4o-mini", ContextLimit: 128000},
	}
	if errStore := StoreReferences(context.Background(), db, refs, now); errStore != nil {
		t.Fatalf("store: %v", errStore)
	}

	later := now.Add(time.Minute)
	updated := []models.ModelReference{{ProviderName: "openai", ModelName: "gpt-4o", ContextLimit: 200000}}
	if errStore := StoreReferences(context.Background(), db, updated, later); errStore != nil {
		t.Fatalf("store: %v", errStore)
	}

	rows, err := LoadReferences(context.Background(), db)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after prune, got %d", len(rows))
	}
	if rows[0].ContextLimit != 200000 {
		t.Fatalf("expected context limit updated, got %d", rows[0].ContextLimit)
	}
	if !rows[0].LastSeenAt.Equal(later) {
		t.Fatalf("expected last_seen_at to be updated")
	}
}

func TestStoreReferences_EmptyKeepsRows(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	refs := []models.ModelReference{{ProviderName: "anthropic", ModelName: "claude-3-5-sonnet-20241022", ContextLimit: 200000}}
	if errStore := StoreReferences(context.Background(), db, refs, now); errStore != nil {
		t.Fatalf("store: %v", errStore)
	}
	if errStore := StoreReferences(context.Background(), db, nil, now.Add(time.Hour)); errStore != nil {
		t.Fatalf("store empty: %v", errStore)
	}
	rows, err := LoadReferences(context.Background(), db)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected rows kept on empty sync, got %d", len(rows))
	}
}
