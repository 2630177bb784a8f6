package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/contentjet/contentjet/internal/db"
	"github.com/contentjet/contentjet/internal/models"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewRecorder(conn)
}

func TestRecorder_RecordAndMonthlyTotals(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	r.Record(Record{UserID: 1, RequestID: "a", TemplateName: "blog_post", VariableKeys: []string{"title"}, Provider: "openai", Model: "gpt-4o", PromptTokens: 10, CompletionTokens: 5, Duration: 1500 * time.Millisecond, CreatedAt: now})
	r.Record(Record{UserID: 1, RequestID: "b", TotalTokens: 100, CreatedAt: now.AddDate(0, 0, 10)})
	r.Record(Record{UserID: 1, RequestID: "c", TotalTokens: 999, CreatedAt: now.AddDate(0, -1, 0)})
	r.Record(Record{UserID: 2, RequestID: "d", TotalTokens: 7, CreatedAt: now})
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	totals, err := r.MonthlyTotals(ctx, 1, now)
	if err != nil {
		t.Fatalf("MonthlyTotals: %v", err)
	}
	if totals.Tokens != 115 || totals.Count != 2 {
		t.Fatalf("expected tokens=115 count=2, got %+v", totals)
	}

	var row models.AIUsageLog
	if errFind := r.db.Where("request_id = ?", "a").First(&row).Error; errFind != nil {
		t.Fatalf("load row: %v", errFind)
	}
	if row.TotalTokens != 15 || row.DurationMs != 1500 || string(row.VariableKeys) != `["title"]` {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestRecorder_EmptyMonth(t *testing.T) {
	r := newTestRecorder(t)
	totals, err := r.MonthlyTotals(context.Background(), 9, time.Now())
	if err != nil {
		t.Fatalf("MonthlyTotals: %v", err)
	}
	if totals.Tokens != 0 || totals.Count != 0 {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestRecorder_FailureIsLoggedOnly(t *testing.T) {
	r := newTestRecorder(t)
	sqlDB, err := r.db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	_ = sqlDB.Close()

	r.Record(Record{UserID: 1, RequestID: "x"})
	if errWait := r.Wait(context.Background()); errWait != nil {
		t.Fatalf("wait: %v", errWait)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2024, 12, 31, 23, 0, 0, 0, time.FixedZone("x", -5*3600)))
	if !start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bounds %v %v", start, end)
	}
}
