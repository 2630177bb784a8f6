// Package usage records AI generation usage and reports monthly aggregates.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/contentjet/contentjet/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const writeTimeout = 5 * time.Second

// Record describes one completed generation.
type Record struct {
	UserID           uint64
	RequestID        string
	TemplateName     string
	VariableKeys     []string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
	CreatedAt        time.Time
}

// MonthlyTotals aggregates usage for one calendar month.
type MonthlyTotals struct {
	Tokens int64 `json:"tokens"`
	Count  int64 `json:"count"`
}

// Recorder persists usage records without delaying the caller. Failures are logged only.
type Recorder struct {
	db *gorm.DB
	wg sync.WaitGroup
}

// NewRecorder constructs a Recorder backed by GORM.
func NewRecorder(db *gorm.DB) *Recorder { return &Recorder{db: db} }

// Record writes rec in the background.
func (r *Recorder) Record(rec Record) {
	if r == nil || r.db == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if errWrite := r.write(ctx, rec); errWrite != nil {
			log.WithError(errWrite).WithFields(log.Fields{
				"user_id":    rec.UserID,
				"request_id": rec.RequestID,
			}).Warn("usage: failed to persist usage log")
		}
	}()
}

// Wait blocks until in-flight writes finish or ctx is done.
func (r *Recorder) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) write(ctx context.Context, rec Record) error {
	keys := append([]string(nil), rec.VariableKeys...)
	sort.Strings(keys)
	rawKeys, errMarshal := json.Marshal(keys)
	if errMarshal != nil {
		return fmt.Errorf("usage: marshal variable keys: %w", errMarshal)
	}

	total := rec.TotalTokens
	if total == 0 {
		total = rec.PromptTokens + rec.CompletionTokens
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := models.AIUsageLog{
		UserID:           rec.UserID,
		RequestID:        strings.TrimSpace(rec.RequestID),
		TemplateName:     rec.TemplateName,
		VariableKeys:     datatypes.JSON(rawKeys),
		Provider:         rec.Provider,
		Model:            rec.Model,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		TotalTokens:      total,
		DurationMs:       rec.Duration.Milliseconds(),
		CreatedAt:        createdAt.UTC(),
	}
	if errCreate := r.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return fmt.Errorf("usage: insert: %w", errCreate)
	}
	return nil
}

// MonthlyTotals sums the user's tokens and requests for the UTC calendar month containing now.
func (r *Recorder) MonthlyTotals(ctx context.Context, userID uint64, now time.Time) (MonthlyTotals, error) {
	if r == nil || r.db == nil {
		return MonthlyTotals{}, fmt.Errorf("usage: recorder not initialized")
	}
	start, end := MonthBounds(now)

	var out MonthlyTotals
	errQuery := r.db.WithContext(ctx).Model(&models.AIUsageLog{}).
		Select("COALESCE(SUM(total_tokens), 0) AS tokens, COUNT(*) AS count").
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, start, end).
		Scan(&out).Error
	if errQuery != nil {
		return MonthlyTotals{}, fmt.Errorf("usage: monthly totals: %w", errQuery)
	}
	return out, nil
}

// MonthBounds returns the first instant of now's UTC month and of the following month.
func MonthBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
