package modelreference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/contentjet/contentjet/internal/models"
	"github.com/contentjet/contentjet/internal/tokens"
)

func TestSyncOnce_FetchesStoresAndPublishes(t *testing.T) {
	payload := []byte(`{"openai":{"models":{"gpt-9":{"cost":{"input":0.1},"limit":{"context":300000,"output":456}}}}}`)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	db := openTestDB(t)
	table := NewTable()
	now := time.Now().UTC().Truncate(time.Second)
	syncer := NewSyncer(db, table)
	syncer.url = server.URL
	syncer.client = server.Client()
	syncer.now = func() time.Time { return now }

	if errSync := syncer.SyncOnce(context.Background()); errSync != nil {
		t.Fatalf("sync once: %v", errSync)
	}

	var row models.ModelReference
	if errFind := db.Where("provider_name = ? AND model_name = ?", "openai", "gpt-9").First(&row).Error; errFind != nil {
		t.Fatalf("find row: %v", errFind)
	}
	if row.ContextLimit != 300000 || row.OutputLimit != 456 {
		t.Fatalf("unexpected limits: context=%d output=%d", row.ContextLimit, row.OutputLimit)
	}
	if !row.LastSeenAt.Equal(now) {
		t.Fatalf("expected last_seen_at to match sync time")
	}

	estimator := tokens.NewEstimator(table)
	if got := estimator.Window("gpt-9"); got != 300000 {
		t.Fatalf("expected estimator to use synced window, got %d", got)
	}
}

func TestSyncOnce_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	syncer := NewSyncer(openTestDB(t), NewTable())
	syncer.url = server.URL
	syncer.client = server.Client()

	if errSync := syncer.SyncOnce(context.Background()); errSync == nil {
		t.Fatalf("expected error on upstream failure")
	}
}

func TestSyncOnce_EmptyCatalogKeepsTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	table := NewTable()
	table.Replace([]models.ModelReference{{ProviderName: "openai", ModelName: "gpt-4o", ContextLimit: 128000}})
	syncer := NewSyncer(openTestDB(t), table)
	syncer.url = server.URL
	syncer.client = server.Client()

	if errSync := syncer.SyncOnce(context.Background()); !errors.Is(errSync, errEmptyCatalog) {
		t.Fatalf("expected errEmptyCatalog, got %v", errSync)
	}
	if table.Len() != 1 {
		t.Fatalf("expected previous table to survive, got %d entries", table.Len())
	}
}

func TestWarm_LoadsStoredRows(t *testing.T) {
	db := openTestDB(t)
	refs := []models.ModelReference{{ProviderName: "google", ModelName: "gemini-1.5-pro", ContextLimit: 2000000}}
	if errStore := StoreReferences(context.Background(), db, refs, time.Now()); errStore != nil {
		t.Fatalf("store: %v", errStore)
	}

	table := NewTable()
	if errWarm := NewSyncer(db, table).Warm(context.Background()); errWarm != nil {
		t.Fatalf("warm: %v", errWarm)
	}
	if window, ok := table.ContextWindow("gemini-1.5-pro"); !ok || window != 2000000 {
		t.Fatalf("expected warmed window, got %d ok=%v", window, ok)
	}
}
